package jembatan

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gregjones/httpcache"
)

// AddressProvider resolves the base address of a purpose.
type AddressProvider interface {
	BaseAddress(purpose string) (string, error)
}

// StaticAddresses is a fixed purpose to base address table.
type StaticAddresses map[string]string

// BaseAddress implements AddressProvider.
func (s StaticAddresses) BaseAddress(purpose string) (string, error) {
	address, ok := s[purpose]
	if !ok || address == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownPurpose, purpose)
	}
	return address, nil
}

// ConfigureFunc adjusts a freshly built client.
type ConfigureFunc func(purpose string, client *Client) error

// Builder produces a ready to use Client per purpose. It holds no request
// state and may be called repeatedly and concurrently.
type Builder struct {
	mu         sync.RWMutex
	config     *Config
	addresses  AddressProvider
	httpClient *http.Client
	cache      CacheManager
	options    []Option
	configure  []ConfigureFunc
	logger     Logger

	transportOnce  sync.Once
	cacheTransport *httpcache.Transport
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithConfig sets the configuration. Unless WithAddresses is used, base
// addresses come from it too. A nil cfg keeps DefaultConfig.
func WithConfig(cfg *Config) BuilderOption {
	return func(b *Builder) {
		if cfg == nil {
			cfg = DefaultConfig()
		}
		b.config = cfg
	}
}

// WithAddresses overrides where base addresses come from.
func WithAddresses(provider AddressProvider) BuilderOption {
	return func(b *Builder) {
		b.addresses = provider
	}
}

// WithBuilderHTTPClient sets the client every sender is built on. Its
// timeout is replaced by the purpose timeout.
func WithBuilderHTTPClient(client *http.Client) BuilderOption {
	return func(b *Builder) {
		b.httpClient = client
	}
}

// WithSharedCache gives every built client the same cache manager.
func WithSharedCache(cache CacheManager) BuilderOption {
	return func(b *Builder) {
		b.cache = cache
	}
}

// WithClientOptions appends options applied to every built client.
func WithClientOptions(options ...Option) BuilderOption {
	return func(b *Builder) {
		b.options = append(b.options, options...)
	}
}

// WithConfigure adds a hook run after each client is constructed.
func WithConfigure(fn ConfigureFunc) BuilderOption {
	return func(b *Builder) {
		b.configure = append(b.configure, fn)
	}
}

// WithBuilderLogger sets the logger used by the builder and its clients.
func WithBuilderLogger(logger Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a builder over DefaultConfig unless WithConfig is given.
func NewBuilder(options ...BuilderOption) *Builder {
	b := &Builder{
		config: DefaultConfig(),
		cache:  NoopCacheManager{},
		logger: NoopLogger{},
	}
	for _, option := range options {
		option(b)
	}
	return b
}

// Build composes a client for purpose.
func (b *Builder) Build(purpose string) (*Client, error) {
	b.mu.RLock()
	cfg := b.config
	addresses := b.addresses
	b.mu.RUnlock()

	if addresses == nil {
		addresses = cfg
	}
	baseAddress, err := addresses.BaseAddress(purpose)
	if err != nil {
		return nil, err
	}

	settings := cfg.Resolve(purpose)
	codec, err := CodecFor(settings.Format)
	if err != nil {
		return nil, err
	}

	options := []Option{
		WithHTTPClient(baseAddress, b.newHTTPClient(settings, cfg.HTTPCache)),
		WithCodec(codec),
		WithCacheManager(b.cache),
		WithLogger(b.logger),
		WithDefaultHeader("User-Agent", UserAgent()),
	}
	for name, value := range settings.Headers {
		options = append(options, WithDefaultHeader(name, value))
	}
	options = append(options, b.options...)

	client := New(options...)
	if err := client.ValidationError(); err != nil {
		return nil, err
	}

	for _, fn := range b.configure {
		if err := fn(purpose, client); err != nil {
			return nil, fmt.Errorf("configure %s client: %w", purpose, err)
		}
	}

	b.logger.Debug("Client built", "purpose", purpose, "baseAddress", baseAddress, "format", settings.Format)
	return client, nil
}

// Reload validates cfg and uses it for subsequent builds. Clients already
// built keep their settings.
func (b *Builder) Reload(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	b.config = cfg.Clone()
	b.mu.Unlock()
	b.logger.Info("Configuration reloaded", "clients", len(cfg.Clients))
	return nil
}

// Config returns a copy of the current configuration.
func (b *Builder) Config() *Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config.Clone()
}

func (b *Builder) newHTTPClient(settings ClientConfig, useCache bool) *http.Client {
	client := &http.Client{}
	if b.httpClient != nil {
		*client = *b.httpClient
	}
	client.Timeout = settings.Timeout
	if useCache {
		client.Transport = b.sharedCacheTransport(client.Transport)
	}
	return client
}

// sharedCacheTransport returns the RFC 7234 caching transport shared by all
// clients of this builder.
func (b *Builder) sharedCacheTransport(next http.RoundTripper) *httpcache.Transport {
	b.transportOnce.Do(func() {
		b.cacheTransport = httpcache.NewMemoryCacheTransport()
		if next != nil {
			b.cacheTransport.Transport = next
		}
	})
	return b.cacheTransport
}
