package jembatan

import (
	"fmt"
	"net/http"
	"time"
)

// WithSender sets the transport used to send requests
func WithSender(sender Sender) Option {
	return func(c *Client) {
		c.sender = sender
	}
}

// WithHTTPClient sends requests through client, resolving relative URIs
// against baseAddress
func WithHTTPClient(baseAddress string, client HTTPClient) Option {
	return func(c *Client) {
		sender, err := NewHTTPSender(baseAddress, client)
		if err != nil {
			c.sender = nil
			c.optionErrors = append(c.optionErrors, errorMessage(err))
			return
		}
		c.sender = sender
	}
}

// WithBaseAddress sends requests through a default *http.Client with the
// given timeout
func WithBaseAddress(baseAddress string, timeout time.Duration) Option {
	return WithHTTPClient(baseAddress, &http.Client{Timeout: timeout})
}

// WithCodec sets the payload codec
func WithCodec(codec Codec) Option {
	return func(c *Client) {
		c.codec = codec
	}
}

// WithCacheManager sets the response cache
func WithCacheManager(cache CacheManager) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithMemoryCache enables the in-memory response cache
func WithMemoryCache() Option {
	return func(c *Client) {
		c.cache = NewMemoryCacheManager()
	}
}

// WithGetInterceptors registers GET interceptors
func WithGetInterceptors(interceptors ...GetInterceptor) Option {
	return func(c *Client) {
		c.getInterceptors.Add(interceptors...)
	}
}

// WithPostInterceptors registers POST interceptors
func WithPostInterceptors(interceptors ...PostInterceptor) Option {
	return func(c *Client) {
		c.postInterceptors.Add(interceptors...)
	}
}

// WithInterceptors registers interceptors for both GET and POST
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(c *Client) {
		for _, interceptor := range interceptors {
			c.getInterceptors.Add(interceptor)
			c.postInterceptors.Add(interceptor)
		}
	}
}

// WithListeners registers listeners
func WithListeners(listeners ...Listener) Option {
	return func(c *Client) {
		c.listeners.Add(listeners...)
	}
}

// WithRateLimiter cancels requests once maxTokens are used up within refillRate
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		WithInterceptors(NewRateLimiter(maxTokens, refillRate))(c)
	}
}

// WithCircuitBreaker vetoes requests while the remote keeps failing
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		breaker := NewCircuitBreaker(config)
		WithInterceptors(breaker)(c)
		c.listeners.Add(breaker)
	}
}

// WithDefaultHeader sets a header sent with every request unless the
// request sets the same header
func WithDefaultHeader(name, value string) Option {
	return func(c *Client) {
		c.defaultHeader.Set(name, value)
	}
}

// WithMaxBodySize fails requests whose response body exceeds n bytes
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		c.maxBodySize = n
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the logger
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger logs to stderr at debug level
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.logger = NewSimpleLogger()
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.optionErrors...)
	errors = append(errors, c.validateTransportConfig()...)
	errors = append(errors, c.validateHeaderConfig()...)
	errors = append(errors, c.validateExtremeValues()...)

	if len(errors) > 0 {
		return &RequestError{
			Type:      ErrorTypeValidation,
			Message:   "configuration validation failed",
			Cause:     fmt.Errorf("validation errors: %v", errors),
			Timestamp: time.Now(),
		}
	}

	return nil
}

// validateTransportConfig validates the collaborators every request needs
func (c *Client) validateTransportConfig() []string {
	var errors []string

	if c.sender == nil {
		errors = append(errors, "sender cannot be nil")
	}
	if c.codec == nil {
		errors = append(errors, "codec cannot be nil")
	}
	if c.cache == nil {
		errors = append(errors, "cache manager cannot be nil")
	}
	if c.logger == nil {
		errors = append(errors, "logger cannot be nil")
	}
	if c.maxBodySize <= 0 {
		errors = append(errors, "maxBodySize must be positive")
	}

	return errors
}

// validateHeaderConfig checks default headers against the header wire rules
func (c *Client) validateHeaderConfig() []string {
	var errors []string

	for name, values := range c.defaultHeader {
		for _, value := range values {
			if err := ValidateHeader(name, value); err != nil {
				errors = append(errors, fmt.Sprintf("default header %s: %s", name, errorMessage(err)))
			}
		}
	}

	return errors
}

// validateExtremeValues validates that configuration values are within reasonable bounds
func (c *Client) validateExtremeValues() []string {
	var errors []string

	if c.maxBodySize > 1<<30 {
		errors = append(errors, "maxBodySize > 1GiB may cause memory issues")
	}

	return errors
}
