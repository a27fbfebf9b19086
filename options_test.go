package jembatan

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestWithRateLimiter(t *testing.T) {
	client := New(WithRateLimiter(100, 1*time.Minute))

	if client.GetInterceptors().Len() != 1 || client.PostInterceptors().Len() != 1 {
		t.Fatal("Expected rate limiter on both chains")
	}

	rl, ok := client.GetInterceptors().All()[0].(*RateLimiter)
	if !ok {
		t.Fatal("Expected *RateLimiter interceptor")
	}
	if rl.maxTokens != 100 {
		t.Errorf("Expected maxTokens=100, got %d", rl.maxTokens)
	}
	if rl.refillRate != 1*time.Minute {
		t.Errorf("Expected refillRate=1m, got %v", rl.refillRate)
	}
}

func TestWithRateLimiterNotShared(t *testing.T) {
	option := WithRateLimiter(1, time.Hour)
	a := New(option)
	b := New(option)

	if a.GetInterceptors().All()[0] == b.GetInterceptors().All()[0] {
		t.Error("Expected each client to get its own rate limiter")
	}
}

func TestWithMemoryCache(t *testing.T) {
	client := New(WithMemoryCache())

	if _, ok := client.CacheManager().(*MemoryCacheManager); !ok {
		t.Error("Expected MemoryCacheManager implementation")
	}
}

func TestWithCacheManager(t *testing.T) {
	cache := NewMemoryCacheManager()
	client := New(WithCacheManager(cache))

	if client.CacheManager() != cache {
		t.Error("Expected custom cache to be set")
	}
}

func TestWithCircuitBreaker(t *testing.T) {
	config := CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 1,
	}
	client := New(WithCircuitBreaker(config))

	cb, ok := client.GetInterceptors().All()[0].(*CircuitBreaker)
	if !ok {
		t.Fatal("Expected *CircuitBreaker interceptor")
	}
	if cb.config.FailureThreshold != 3 {
		t.Errorf("Expected FailureThreshold=3, got %d", cb.config.FailureThreshold)
	}
	if !client.Listeners().Contains(cb) {
		t.Error("Expected circuit breaker to be registered as listener")
	}
}

func TestWithInterceptors(t *testing.T) {
	h := NewHeaderInterceptor(Static("X-A"), Static("1"))
	client := New(WithInterceptors(h, h))

	if client.GetInterceptors().Len() != 1 {
		t.Errorf("Expected 1 GET interceptor, got %d", client.GetInterceptors().Len())
	}
	if !client.PostInterceptors().Contains(h) {
		t.Error("Expected interceptor on POST chain")
	}
}

func TestWithHTTPClient(t *testing.T) {
	custom := &http.Client{Timeout: 5 * time.Second}
	client := New(WithHTTPClient("https://api.example.com", custom))

	sender, ok := client.sender.(*HTTPSender)
	if !ok {
		t.Fatal("Expected *HTTPSender")
	}
	if sender.client != custom {
		t.Error("Expected custom HTTP client to be set")
	}
	if sender.BaseAddress() != "https://api.example.com" {
		t.Errorf("Unexpected base address %q", sender.BaseAddress())
	}
}

func TestWithBaseAddress(t *testing.T) {
	client := New(WithBaseAddress("https://api.example.com", 3*time.Second))

	sender := client.sender.(*HTTPSender)
	httpClient, ok := sender.client.(*http.Client)
	if !ok {
		t.Fatal("Expected *http.Client")
	}
	if httpClient.Timeout != 3*time.Second {
		t.Errorf("Expected timeout=3s, got %v", httpClient.Timeout)
	}
}

func TestWithMetricsCollector(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	client := New(WithMetricsCollector(collector))

	if client.metrics != collector {
		t.Error("Expected custom metrics collector to be set")
	}
}

func TestWithCodec(t *testing.T) {
	client := New(WithCodec(XMLCodec{}))

	if client.Codec().ContentType() != "application/xml" {
		t.Errorf("Expected XML codec, got %s", client.Codec().ContentType())
	}
}

func TestWithLogger(t *testing.T) {
	logger := NewSimpleLogger()
	client := New(WithLogger(logger))

	if client.logger != logger {
		t.Error("Expected custom logger to be set")
	}
}

func TestWithDefaultHeader(t *testing.T) {
	client := New(WithDefaultHeader("x-team", "platform"))

	if got := client.defaultHeader.Get("X-Team"); got != "platform" {
		t.Errorf("Expected X-Team=platform, got %q", got)
	}
}

func TestMultipleOptions(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	client := New(
		WithBaseAddress("https://api.example.com", time.Second),
		WithMemoryCache(),
		WithRateLimiter(10, time.Second),
		WithCircuitBreaker(CircuitBreakerConfig{}),
		WithMetricsCollector(collector),
		WithMaxBodySize(1024),
	)

	if !client.IsValid() {
		t.Fatalf("Expected valid client, got %v", client.ValidationError())
	}
	if client.GetInterceptors().Len() != 2 {
		t.Errorf("Expected 2 GET interceptors, got %d", client.GetInterceptors().Len())
	}
	if client.maxBodySize != 1024 {
		t.Errorf("Expected maxBodySize=1024, got %d", client.maxBodySize)
	}
}

func TestMaxBodySizeRejectsLargerResponse(t *testing.T) {
	cache := NewMemoryCacheManager()
	var errs []error
	sends := 0
	client := New(
		WithMaxBodySize(4),
		WithCacheManager(cache),
		WithListeners(&ListenerFuncs{Error: func(_ context.Context, _ *Request, err error) {
			errs = append(errs, err)
		}}),
		WithSender(SenderFunc(func(context.Context, *Outbound) (*Response, error) {
			sends++
			return &Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: io.NopCloser(strings.NewReader("abcdefgh"))}, nil
		})),
	)

	for i := 0; i < 2; i++ {
		req, _ := NewGetRequest("api", WithCaching(time.Minute))
		var body string
		err := client.Get(context.Background(), req, &body)
		if !errors.Is(err, ErrResponseTooLarge) {
			t.Fatalf("Get() error = %v, want ErrResponseTooLarge", err)
		}
		var reqErr *RequestError
		if !errors.As(err, &reqErr) || reqErr.Type != ErrorTypeRequest {
			t.Errorf("Expected a normalized request error, got %T", err)
		}
		if body != "" {
			t.Errorf("Expected body untouched, got %q", body)
		}
		if req.Caching().IsCacheHit() {
			t.Error("Expected no cache hit")
		}
	}

	if cache.Len() != 0 {
		t.Errorf("Expected empty cache, got %d entries", cache.Len())
	}
	if sends != 2 {
		t.Errorf("Expected 2 sends, got %d", sends)
	}
	if len(errs) != 2 || !errors.Is(errs[0], ErrResponseTooLarge) {
		t.Errorf("Expected OnError with ErrResponseTooLarge twice, got %v", errs)
	}
}

func TestMaxBodySizeAcceptsExactLimit(t *testing.T) {
	client := New(
		WithMaxBodySize(4),
		WithSender(SenderFunc(func(context.Context, *Outbound) (*Response, error) {
			return &Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: io.NopCloser(strings.NewReader("abcd"))}, nil
		})),
	)

	req, _ := NewGetRequest("api")
	var body string
	if err := client.Get(context.Background(), req, &body); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if body != "abcd" {
		t.Errorf("Expected body %q, got %q", "abcd", body)
	}
}

func TestDefaultValuesWithoutOptions(t *testing.T) {
	client := New()

	if client.maxBodySize != DefaultMaxBodySize {
		t.Errorf("Expected maxBodySize=%d, got %d", DefaultMaxBodySize, client.maxBodySize)
	}
	if _, ok := client.CacheManager().(NoopCacheManager); !ok {
		t.Error("Expected NoopCacheManager by default")
	}
	if _, ok := client.Codec().(JSONCodec); !ok {
		t.Error("Expected JSONCodec by default")
	}
	if client.metrics != nil {
		t.Error("Expected metrics to be disabled by default")
	}
	if _, ok := client.logger.(NoopLogger); !ok {
		t.Error("Expected NoopLogger by default")
	}
}
