package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"github.com/tidwall/pretty"

	"github.com/ambiyansyah-risyal/jembatan"
)

var exampleUsage = strings.TrimSpace(`
  jembatan --config ./jembatan.toml get weather api/forecast -p city=Oslo --cache 1m --repeat 2
  jembatan --address cars=https://cars.example.com/ post cars api/cars --data '{"make":"Volvo"}'
  JEMBATAN_BASE_ADDRESSES=cars=https://cars.example.com/ jembatan get cars api/cars
`)

// cliOptions holds flags shared by every subcommand.
type cliOptions struct {
	configPath string
	timeout    time.Duration
	format     string
	httpCache  bool
	addresses  map[string]string
	headers    []string
	requestID  string
	verbose    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jembatan:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "jembatan",
		Short:         "Send GET and POST requests to configured HTTP services",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", jembatan.Version, runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to TOML config file")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	flags.StringVar(&opts.format, "format", jembatan.FormatJSON, "payload format (json or xml)")
	flags.BoolVar(&opts.httpCache, "http-cache", false, "honor HTTP cache headers in the transport")
	flags.StringToStringVar(&opts.addresses, "address", nil, "base address per purpose (purpose=url)")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "request header (name:value)")
	flags.StringVar(&opts.requestID, "request-id-header", "X-Request-ID", "header carrying the request identifier (empty to disable)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newGetCommand(opts), newPostCommand(opts))
	return root
}

func newGetCommand(opts *cliOptions) *cobra.Command {
	var (
		params []string
		cache  time.Duration
		repeat int
	)
	cmd := &cobra.Command{
		Use:   "get <purpose> <path>",
		Short: "Send a GET request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			client, logger, err := opts.client(cmd, args[0])
			if err != nil {
				return err
			}
			if repeat < 1 {
				repeat = 1
			}
			for i := 0; i < repeat; i++ {
				getOptions := []jembatan.GetOption{jembatan.WithCaching(cache)}
				for _, p := range params {
					name, value, _ := strings.Cut(p, "=")
					getOptions = append(getOptions, jembatan.WithParameter(name, value))
				}
				req, err := jembatan.NewGetRequest(args[1], getOptions...)
				if err != nil {
					return err
				}
				if err := addHeaders(req.Request, opts.headers); err != nil {
					return err
				}

				var body []byte
				if err := client.Get(ctx, req, &body); err != nil {
					return err
				}
				if req.Caching().IsCacheHit() {
					logger.Info("Served from cache", "uri", req.FullURI())
				}
				writeBody(cmd.OutOrStdout(), client.Codec(), body)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query parameter (name=value)")
	cmd.Flags().DurationVar(&cache, "cache", 0, "cache the response for this long")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "send the request this many times")
	return cmd
}

func newPostCommand(opts *cliOptions) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "post <purpose> <path>",
		Short: "Send a POST request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			client, _, err := opts.client(cmd, args[0])
			if err != nil {
				return err
			}
			if strings.HasPrefix(data, "@") {
				content, err := os.ReadFile(strings.TrimPrefix(data, "@"))
				if err != nil {
					return fmt.Errorf("read payload: %w", err)
				}
				data = string(content)
			}
			req, err := jembatan.NewPostRequest(args[1], data)
			if err != nil {
				return err
			}
			if err := addHeaders(req.Request, opts.headers); err != nil {
				return err
			}

			var body []byte
			if err := client.Post(ctx, req, &body); err != nil {
				return err
			}
			writeBody(cmd.OutOrStdout(), client.Codec(), body)
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "request payload, or @file")
	return cmd
}

// client layers config file, environment and changed flags, then builds
// the client for purpose.
func (o *cliOptions) client(cmd *cobra.Command, purpose string) (*jembatan.Client, jembatan.Logger, error) {
	level := zerolog.InfoLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	logger := jembatan.NewConsoleLogger(cmd.ErrOrStderr(), level)

	cfg := jembatan.DefaultConfig()
	if o.configPath != "" {
		if err := cfg.ApplyFile(o.configPath); err != nil {
			return nil, nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, nil, err
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	if changed["timeout"] {
		cfg.Timeout = o.timeout
	}
	if changed["format"] {
		cfg.Format = o.format
	}
	if changed["http-cache"] {
		cfg.HTTPCache = o.httpCache
	}
	for name, address := range o.addresses {
		cc := cfg.Clients[name]
		cc.BaseAddress = address
		cfg.Clients[name] = cc
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	timer := jembatan.NewExecutionTimeListener(func(et jembatan.ExecutionTime) {
		logger.Info("Request completed", "request", et.Key.String(), "elapsed", et.Elapsed)
	})
	builder := jembatan.NewBuilder(
		jembatan.WithConfig(cfg),
		jembatan.WithBuilderLogger(logger),
		jembatan.WithSharedCache(jembatan.NewMemoryCacheManager()),
		jembatan.WithClientOptions(jembatan.WithListeners(timer, jembatan.NewLogListener(logger))),
		jembatan.WithConfigure(func(_ string, client *jembatan.Client) error {
			if o.requestID == "" {
				return nil
			}
			return client.AddRequestIDInterceptor(o.requestID)
		}),
	)
	client, err := builder.Build(purpose)
	if err != nil {
		return nil, nil, err
	}
	return client, logger, nil
}

func addHeaders(req *jembatan.Request, headers []string) error {
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("header %q must be name:value", h)
		}
		if err := req.Headers().Set(strings.TrimSpace(name), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	return nil
}

func writeBody(w io.Writer, codec jembatan.Codec, body []byte) {
	if _, ok := codec.(jembatan.JSONCodec); ok && len(body) > 0 {
		body = pretty.Pretty(body)
	}
	w.Write(body)
	if len(body) > 0 && body[len(body)-1] != '\n' {
		fmt.Fprintln(w)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
