package jembatan

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "JEMBATAN_"

// Config describes the clients a Builder can produce, one per purpose.
type Config struct {
	Timeout   time.Duration
	Format    string
	HTTPCache bool
	Headers   map[string]string
	Clients   map[string]ClientConfig
}

// ClientConfig holds the settings of one purpose. Empty fields fall back to
// the top level values.
type ClientConfig struct {
	BaseAddress string
	Format      string
	Timeout     time.Duration
	Headers     map[string]string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Format:  FormatJSON,
		Headers: map[string]string{},
		Clients: map[string]ClientConfig{},
	}
}

// LoadConfig layers defaults, the TOML file at path (if any) and the
// environment, then validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileConfig mirrors the TOML layout. Durations are strings so they can be
// written as "10s".
type fileConfig struct {
	Timeout   string                      `toml:"timeout"`
	Format    string                      `toml:"format"`
	HTTPCache *bool                       `toml:"http_cache"`
	Headers   map[string]string           `toml:"headers"`
	Clients   map[string]fileClientConfig `toml:"clients"`
}

type fileClientConfig struct {
	BaseAddress string            `toml:"base_address"`
	Format      string            `toml:"format"`
	Timeout     string            `toml:"timeout"`
	Headers     map[string]string `toml:"headers"`
}

// ApplyFile overlays the TOML file at path.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return c.applyTOML(data)
}

func (c *Config) applyTOML(data []byte) error {
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", fc.Timeout, err)
		}
		c.Timeout = d
	}
	if fc.Format != "" {
		c.Format = fc.Format
	}
	if fc.HTTPCache != nil {
		c.HTTPCache = *fc.HTTPCache
	}
	for name, value := range fc.Headers {
		if c.Headers == nil {
			c.Headers = map[string]string{}
		}
		c.Headers[name] = value
	}
	for purpose, fcc := range fc.Clients {
		cc := c.Clients[purpose]
		if fcc.BaseAddress != "" {
			cc.BaseAddress = fcc.BaseAddress
		}
		if fcc.Format != "" {
			cc.Format = fcc.Format
		}
		if fcc.Timeout != "" {
			d, err := time.ParseDuration(fcc.Timeout)
			if err != nil {
				return fmt.Errorf("invalid timeout %q for %s: %w", fcc.Timeout, purpose, err)
			}
			cc.Timeout = d
		}
		if len(fcc.Headers) > 0 {
			cc.Headers = mergeHeaders(cc.Headers, fcc.Headers)
		}
		c.setClient(purpose, cc)
	}
	return nil
}

// envConfig lists the variables understood by ApplyEnv.
type envConfig struct {
	Timeout       time.Duration     `env:"TIMEOUT"`
	Format        string            `env:"FORMAT"`
	HTTPCache     bool              `env:"HTTP_CACHE"`
	BaseAddresses map[string]string `env:"BASE_ADDRESSES" envKeyValSeparator:"="`
}

// ApplyEnv overlays JEMBATAN_TIMEOUT, JEMBATAN_FORMAT, JEMBATAN_HTTP_CACHE and
// JEMBATAN_BASE_ADDRESSES ("purpose=url,purpose=url").
func (c *Config) ApplyEnv() error {
	return c.applyEnv(env.Options{Prefix: EnvPrefix})
}

func (c *Config) applyEnv(opts env.Options) error {
	ec := envConfig{
		Timeout:   c.Timeout,
		Format:    c.Format,
		HTTPCache: c.HTTPCache,
	}
	if err := env.ParseWithOptions(&ec, opts); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	c.Timeout = ec.Timeout
	c.Format = ec.Format
	c.HTTPCache = ec.HTTPCache
	for purpose, address := range ec.BaseAddresses {
		cc := c.Clients[purpose]
		cc.BaseAddress = address
		c.setClient(purpose, cc)
	}
	return nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	if c == nil {
		return &RequestError{
			Type:      ErrorTypeValidation,
			Message:   "configuration is nil",
			Timestamp: time.Now(),
		}
	}
	var errs []error

	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if _, err := CodecFor(c.Format); err != nil {
		errs = append(errs, err)
	}
	for name, value := range c.Headers {
		if err := ValidateHeader(name, value); err != nil {
			errs = append(errs, fmt.Errorf("header %s: %s", name, errorMessage(err)))
		}
	}
	for purpose, cc := range c.Clients {
		if strings.TrimSpace(purpose) == "" {
			errs = append(errs, errors.New("client purpose is empty"))
		}
		u, err := url.Parse(cc.BaseAddress)
		if cc.BaseAddress == "" || err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("client %s: base address %q must be an absolute URL", purpose, cc.BaseAddress))
		}
		if cc.Format != "" {
			if _, err := CodecFor(cc.Format); err != nil {
				errs = append(errs, fmt.Errorf("client %s: %w", purpose, err))
			}
		}
		if cc.Timeout < 0 {
			errs = append(errs, fmt.Errorf("client %s: timeout must not be negative", purpose))
		}
		for name, value := range cc.Headers {
			if err := ValidateHeader(name, value); err != nil {
				errs = append(errs, fmt.Errorf("client %s: header %s: %s", purpose, name, errorMessage(err)))
			}
		}
	}

	if len(errs) > 0 {
		return &RequestError{
			Type:      ErrorTypeValidation,
			Message:   "configuration validation failed",
			Cause:     errors.Join(errs...),
			Timestamp: time.Now(),
		}
	}
	return nil
}

// BaseAddress implements AddressProvider.
func (c *Config) BaseAddress(purpose string) (string, error) {
	cc, ok := c.Clients[purpose]
	if !ok || cc.BaseAddress == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownPurpose, purpose)
	}
	return cc.BaseAddress, nil
}

// Resolve returns the settings of purpose with top level fallbacks applied.
func (c *Config) Resolve(purpose string) ClientConfig {
	cc := c.Clients[purpose]
	resolved := ClientConfig{
		BaseAddress: cc.BaseAddress,
		Format:      cc.Format,
		Timeout:     cc.Timeout,
		Headers:     mergeHeaders(c.Headers, cc.Headers),
	}
	if resolved.Format == "" {
		resolved.Format = c.Format
	}
	if resolved.Timeout == 0 {
		resolved.Timeout = c.Timeout
	}
	return resolved
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Headers = mergeHeaders(nil, c.Headers)
	clone.Clients = make(map[string]ClientConfig, len(c.Clients))
	for purpose, cc := range c.Clients {
		cc.Headers = mergeHeaders(nil, cc.Headers)
		clone.Clients[purpose] = cc
	}
	return &clone
}

func (c *Config) setClient(purpose string, cc ClientConfig) {
	if c.Clients == nil {
		c.Clients = map[string]ClientConfig{}
	}
	c.Clients[purpose] = cc
}

func mergeHeaders(base, overlay map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(overlay))
	for name, value := range base {
		merged[name] = value
	}
	for name, value := range overlay {
		merged[name] = value
	}
	return merged
}
