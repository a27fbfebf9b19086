package jembatan

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewMetricsCollectorWithRegistry(registry)

	if collector == nil {
		t.Fatal("NewMetricsCollectorWithRegistry() returned nil")
	}

	if collector.requestsTotal == nil {
		t.Error("requestsTotal metric not initialized")
	}

	if collector.requestDuration == nil {
		t.Error("requestDuration metric not initialized")
	}

	if collector.requestsInFlight == nil {
		t.Error("requestsInFlight metric not initialized")
	}

	if collector.interceptionsTotal == nil {
		t.Error("interceptionsTotal metric not initialized")
	}

	if collector.cacheHits == nil || collector.cacheMisses == nil || collector.cacheSize == nil {
		t.Error("cache metrics not initialized")
	}

	if collector.errorsTotal == nil {
		t.Error("errorsTotal metric not initialized")
	}

	if collector.circuitBreakerState == nil || collector.rateLimiterTokens == nil {
		t.Error("circuit breaker and rate limiter metrics not initialized")
	}

	if collector.GetRegistry() != registry {
		t.Error("GetRegistry() should return the supplied registry")
	}
}

func TestNilMetricsCollector(t *testing.T) {
	var collector *MetricsCollector

	collector.RecordRequest("GET", "api", 200, time.Second)
	collector.RecordRequestStart("GET", "api")
	collector.RecordRequestEnd("GET", "api")
	collector.RecordInterception("GET", CancelThrow)
	collector.RecordCacheHit("GET", "api")
	collector.RecordCacheMiss("GET", "api")
	collector.RecordCacheSize("memory", 1)
	collector.RecordError(ErrorTypeRequest, "GET", "api")
	collector.RecordCircuitBreakerState("default", StateOpen)
	collector.RecordRateLimiterTokens("default", 3)
}

func TestMetricsCollectorRecords(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	collector.RecordRequest("GET", "api/cars", 200, 150*time.Millisecond)
	collector.RecordRequest("GET", "api/cars", 200, 50*time.Millisecond)
	collector.RecordInterception("POST", CancelReturn)
	collector.RecordCacheSize("memory", 7)

	if got := testutil.ToFloat64(collector.requestsTotal.WithLabelValues("GET", "200", "api/cars")); got != 2 {
		t.Errorf("Expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(collector.interceptionsTotal.WithLabelValues("POST", "return")); got != 1 {
		t.Errorf("Expected 1 interception, got %v", got)
	}
	if got := testutil.ToFloat64(collector.cacheSize.WithLabelValues("memory")); got != 7 {
		t.Errorf("Expected cache size 7, got %v", got)
	}
}

func TestClientRecordsMetrics(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	calls := 0
	client := New(
		WithSender(SenderFunc(func(context.Context, *Outbound) (*Response, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("offline")
			}
			return &Response{
				StatusCode: http.StatusOK,
				Status:     "200 OK",
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       http.NoBody,
			}, nil
		})),
		WithMemoryCache(),
		WithMetricsCollector(collector),
	)

	req, _ := NewGetRequest("api/cars", WithCaching(time.Minute))
	if err := client.Get(context.Background(), req, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	req, _ = NewGetRequest("api/cars", WithCaching(time.Minute))
	if err := client.Get(context.Background(), req, nil); err != nil {
		t.Fatalf("cached Get() error = %v", err)
	}
	req, _ = NewGetRequest("api/other")
	if err := client.Get(context.Background(), req, nil); err == nil {
		t.Fatal("Expected error from offline sender")
	}

	if got := testutil.ToFloat64(collector.requestsTotal.WithLabelValues("GET", "200", "api/cars")); got != 1 {
		t.Errorf("Expected 1 sent request, got %v", got)
	}
	if got := testutil.ToFloat64(collector.cacheMisses.WithLabelValues("GET", "api/cars")); got != 1 {
		t.Errorf("Expected 1 cache miss, got %v", got)
	}
	if got := testutil.ToFloat64(collector.cacheHits.WithLabelValues("GET", "api/cars")); got != 1 {
		t.Errorf("Expected 1 cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(collector.cacheSize.WithLabelValues("memory")); got != 1 {
		t.Errorf("Expected cache size 1, got %v", got)
	}
	if got := testutil.ToFloat64(collector.errorsTotal.WithLabelValues(ErrorTypeRequest, "GET", "api/other")); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(collector.requestsInFlight.WithLabelValues("GET", "api/cars")); got != 0 {
		t.Errorf("Expected no requests in flight, got %v", got)
	}
}

func TestCacheSizeFollowsEveryChange(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCacheManager(WithClock(func() time.Time { return now }), WithCacheName("cars"))
	ctx := context.Background()

	size := func() float64 {
		return testutil.ToFloat64(collector.cacheSize.WithLabelValues("cars"))
	}

	volvo, _ := NewGetRequest("api/cars", WithParameter("make", "volvo"))
	saab, _ := NewGetRequest("api/cars", WithParameter("make", "saab"))
	if err := cache.Put(ctx, volvo, "[]", "application/json", time.Second); err != nil {
		t.Fatal(err)
	}

	New(WithCacheManager(cache), WithMetricsCollector(collector))
	if got := size(); got != 1 {
		t.Fatalf("Expected size 1 once bound, got %v", got)
	}

	if err := cache.Put(ctx, saab, "[]", "application/json", time.Hour); err != nil {
		t.Fatal(err)
	}
	if got := size(); got != 2 {
		t.Errorf("Expected size 2 after Put, got %v", got)
	}

	now = now.Add(time.Minute)
	if _, found, _ := cache.Get(ctx, volvo); found {
		t.Fatal("Expected expired entry to be gone")
	}
	if got := size(); got != 1 {
		t.Errorf("Expected size 1 after lazy expiry, got %v", got)
	}

	if err := cache.Remove(ctx, saab); err != nil {
		t.Fatal(err)
	}
	if got := size(); got != 0 {
		t.Errorf("Expected size 0 after Remove, got %v", got)
	}

	_ = cache.Put(ctx, volvo, "[]", "application/json", time.Second)
	_ = cache.Put(ctx, saab, "[]", "application/json", time.Hour)
	now = now.Add(time.Minute)
	if removed := cache.Purge(); removed != 1 {
		t.Errorf("Expected Purge to remove 1 entry, got %d", removed)
	}
	if got := size(); got != 1 {
		t.Errorf("Expected size 1 after Purge, got %v", got)
	}

	cache.Clear()
	if got := size(); got != 0 {
		t.Errorf("Expected size 0 after Clear, got %v", got)
	}
}

func TestCircuitBreakerStateGauge(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	cb, now := newTestBreaker(CircuitBreakerConfig{
		Name:             "cars",
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		SuccessThreshold: 1,
	})
	New(WithInterceptors(cb), WithListeners(cb), WithMetricsCollector(collector))

	state := func() float64 {
		return testutil.ToFloat64(collector.circuitBreakerState.WithLabelValues("cars"))
	}

	if got := state(); got != float64(StateClosed) {
		t.Errorf("Expected closed state once bound, got %v", got)
	}

	cb.RecordFailure()
	if got := state(); got != float64(StateOpen) {
		t.Errorf("Expected open state after failure, got %v", got)
	}

	*now = now.Add(2 * time.Second)
	if cb.verdict().IsCanceled() {
		t.Fatal("Expected a probe request after the recovery timeout")
	}
	if got := state(); got != float64(StateHalfOpen) {
		t.Errorf("Expected half-open state, got %v", got)
	}

	cb.RecordSuccess()
	if got := state(); got != float64(StateClosed) {
		t.Errorf("Expected closed state after success, got %v", got)
	}
}

func TestRateLimiterTokensGauge(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	rl := NewRateLimiter(2, time.Hour).WithName("cars")
	New(WithInterceptors(rl), WithMetricsCollector(collector))

	tokens := func() float64 {
		return testutil.ToFloat64(collector.rateLimiterTokens.WithLabelValues("cars"))
	}

	if got := tokens(); got != 2 {
		t.Errorf("Expected 2 tokens once bound, got %v", got)
	}
	for want := 1.0; want >= 0; want-- {
		if rl.verdict().IsCanceled() {
			t.Fatal("Expected request within the limit to continue")
		}
		if got := tokens(); got != want {
			t.Errorf("Expected %v tokens, got %v", want, got)
		}
	}
	if !rl.verdict().IsCanceled() {
		t.Error("Expected limited request to be canceled")
	}
	if got := tokens(); got != 0 {
		t.Errorf("Expected 0 tokens, got %v", got)
	}
}

func TestWithoutMetricsComponentsStayUnbound(t *testing.T) {
	cache := NewMemoryCacheManager()
	rl := NewRateLimiter(1, time.Hour)
	New(WithCacheManager(cache), WithInterceptors(rl))

	if cache.metrics != nil || rl.metrics.Load() != nil {
		t.Error("Expected no collector without WithMetrics")
	}
	_ = cache.Put(context.Background(), mustGet(t, "api"), "v", "", time.Minute)
	rl.verdict()
}
