package jembatan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxBodySize is the largest response body a client accepts.
const DefaultMaxBodySize = 10 * 1024 * 1024

// Client runs GET and POST requests through interceptors, an optional
// response cache, a Sender and listeners, and reports failures as
// *RequestError. It is safe for concurrent use once configured.
type Client struct {
	sender           Sender
	codec            Codec
	cache            CacheManager
	getInterceptors  *Chain[GetInterceptor]
	postInterceptors *Chain[PostInterceptor]
	listeners        *Chain[Listener]
	defaultHeader    http.Header
	maxBodySize      int64
	metrics          *MetricsCollector
	logger           Logger
	optionErrors     []string
	validationError  error
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	sender, _ := NewHTTPSender("", &http.Client{Timeout: 30 * time.Second})
	client := &Client{
		sender:           sender,
		codec:            JSONCodec{},
		cache:            NoopCacheManager{},
		getInterceptors:  &Chain[GetInterceptor]{},
		postInterceptors: &Chain[PostInterceptor]{},
		listeners:        &Chain[Listener]{},
		defaultHeader:    make(http.Header),
		maxBodySize:      DefaultMaxBodySize,
		metrics:          nil,
		logger:           NoopLogger{},
	}

	for _, option := range options {
		option(client)
	}
	client.bindMetrics()

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// GetInterceptors returns the chain consulted before every GET.
func (c *Client) GetInterceptors() *Chain[GetInterceptor] { return c.getInterceptors }

// PostInterceptors returns the chain consulted before every POST.
func (c *Client) PostInterceptors() *Chain[PostInterceptor] { return c.postInterceptors }

// Listeners returns the listeners notified around each dispatch.
func (c *Client) Listeners() *Chain[Listener] { return c.listeners }

// Codec returns the payload codec.
func (c *Client) Codec() Codec { return c.codec }

// CacheManager returns the response cache.
func (c *Client) CacheManager() CacheManager { return c.cache }

// AddRequestIDInterceptor registers an interceptor sending the request
// identifier under headerName for both GET and POST.
func (c *Client) AddRequestIDInterceptor(headerName string) error {
	interceptor, err := NewRequestIDInterceptor(headerName)
	if err != nil {
		return err
	}
	c.getInterceptors.Add(interceptor)
	c.postInterceptors.Add(interceptor)
	return nil
}

// AddLocaleInterceptor registers a LocaleInterceptor for both GET and POST.
func (c *Client) AddLocaleInterceptor(localeHeader, uiLocaleHeader string, options ...LocaleOption) error {
	interceptor, err := NewLocaleInterceptor(localeHeader, uiLocaleHeader, options...)
	if err != nil {
		return err
	}
	c.getInterceptors.Add(interceptor)
	c.postInterceptors.Add(interceptor)
	return nil
}

// Get executes req and decodes the response into out. When an interceptor
// cancels with CancelReturn, out is left untouched and nil is returned.
func (c *Client) Get(ctx context.Context, req *GetRequest, out any) error {
	if req == nil {
		return newValidationError(ErrInvalidRequest, "request is nil")
	}

	verdict := intercept(c.getInterceptors.All(), func(i GetInterceptor) Interception {
		return i.InterceptGet(ctx, req)
	})
	if verdict.IsCanceled() {
		return c.refuse(req.Request, verdict)
	}

	caching := req.Caching()
	method := req.Method().String()
	if caching.CanCache() {
		if content, ok := c.cacheGet(ctx, req); ok {
			err := decodeBody(c.codec, []byte(content.Value), out)
			if err == nil {
				caching.markHit()
				c.metrics.RecordCacheHit(method, req.Path())
				c.logger.Debug("Cache hit", "requestID", req.ID().String(), "uri", req.FullURI())
				return nil
			}
			c.logger.Warn("Dropping undecodable cache entry", "requestID", req.ID().String(), "uri", req.FullURI(), "error", err)
			c.cacheRemove(ctx, req)
		}
		c.metrics.RecordCacheMiss(method, req.Path())
		c.logger.Debug("Cache miss", "requestID", req.ID().String(), "uri", req.FullURI())
	}

	return c.execute(ctx, req.Request, nil, out, func(body []byte, contentType string) {
		if caching.CanCache() {
			c.cachePut(ctx, req, string(body), contentType, caching.Duration())
		}
	})
}

// Post executes msg and decodes the response into out. A nil out discards
// the response body.
func (c *Client) Post(ctx context.Context, msg PostMessage, out any) error {
	if msg == nil || msg.Base() == nil {
		return newValidationError(ErrInvalidRequest, "request is nil")
	}
	req := msg.Base()

	verdict := intercept(c.postInterceptors.All(), func(i PostInterceptor) Interception {
		return i.InterceptPost(ctx, msg)
	})
	if verdict.IsCanceled() {
		return c.refuse(req, verdict)
	}

	return c.execute(ctx, req, msg.Body(), out, nil)
}

// Get executes req and returns the decoded response.
func Get[T any](ctx context.Context, c *Client, req *GetRequest) (T, error) {
	var result T
	err := c.Get(ctx, req, &result)
	return result, err
}

// Post executes req and returns the decoded response.
func Post[R any, T any](ctx context.Context, c *Client, req *PostRequest[T]) (R, error) {
	var result R
	err := c.Post(ctx, req, &result)
	return result, err
}

// refuse fires the request's cancellation signal and turns the verdict into
// the caller visible result.
func (c *Client) refuse(req *Request, verdict Interception) error {
	req.Cancel()
	c.metrics.RecordInterception(req.Method().String(), verdict.Behavior())
	c.logger.Debug("Request intercepted", "requestID", req.ID().String(), "uri", req.FullURI(), "behavior", verdict.Behavior().String(), "reason", verdict.Reason())

	if verdict.Behavior() != CancelThrow {
		return nil
	}
	message := verdict.Reason()
	if message == "" {
		message = DefaultInterceptionMessage
	}
	return &RequestError{
		Type:      ErrorTypeInterception,
		Message:   message,
		Cause:     ErrIntercepted,
		Request:   req,
		Timestamp: time.Now(),
	}
}

// execute sends req, notifies listeners and decodes the body. Every error
// is reported to OnError once and normalized once.
func (c *Client) execute(ctx context.Context, req *Request, body any, out any, received func([]byte, string)) error {
	start := time.Now()
	method := req.Method().String()
	endpoint := req.Path()

	c.metrics.RecordRequestStart(method, endpoint)
	statusCode := 0
	defer func() {
		c.metrics.RecordRequestEnd(method, endpoint)
		c.metrics.RecordRequest(method, endpoint, statusCode, time.Since(start))
	}()

	data, contentType, statusCode, err := c.dispatch(ctx, req, body)
	if err == nil {
		if received != nil {
			received(data, contentType)
		}
		c.notifyExecuted(ctx, req)
		err = decodeBody(c.codec, data, out)
	}
	if err != nil {
		c.notifyError(ctx, req, err)
		return c.normalize(req, err)
	}
	return nil
}

// dispatch propagates headers, notifies OnExecuting and performs the
// transport call.
func (c *Client) dispatch(ctx context.Context, req *Request, body any) ([]byte, string, int, error) {
	payload, err := encodeBody(c.codec, body)
	if err != nil {
		return nil, "", 0, err
	}
	header := c.outboundHeader(req, payload != nil)

	c.notifyExecuting(ctx, req)

	if req.Canceled() {
		return nil, "", 0, ErrRequestCanceled
	}

	sendCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)
	unregister := context.AfterFunc(req.ctx, func() {
		stop(ErrRequestCanceled)
	})
	defer unregister()

	uri := req.Path()
	if req.Method() == MethodGet {
		uri = req.FullURI()
	}

	c.logger.Debug("Sending request", "requestID", req.ID().String(), "method", req.Method().String(), "uri", uri)
	resp, err := c.sender.Send(sendCtx, &Outbound{
		Method: req.Method(),
		URI:    uri,
		Header: header,
		Body:   payload,
	})
	if err != nil {
		if cause := context.Cause(sendCtx); errors.Is(cause, ErrRequestCanceled) {
			return nil, "", 0, fmt.Errorf("%w: %w", ErrRequestCanceled, err)
		}
		return nil, "", 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, "", resp.StatusCode, err
	}
	tooLarge := int64(len(data)) > c.maxBodySize
	if tooLarge {
		data = data[:c.maxBodySize]
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", resp.StatusCode, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(data),
		}
	}
	if tooLarge {
		return nil, "", resp.StatusCode, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, c.maxBodySize)
	}
	return data, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

// outboundHeader merges the client defaults with the request headers. The
// request always wins.
func (c *Client) outboundHeader(req *Request, hasBody bool) http.Header {
	header := c.defaultHeader.Clone()
	if header.Get("Accept") == "" {
		header.Set("Accept", c.codec.ContentType())
	}
	if hasBody && header.Get("Content-Type") == "" {
		header.Set("Content-Type", c.codec.ContentType())
	}
	for _, h := range req.Headers().All() {
		header.Set(h.Name, h.Value)
	}
	return header
}

func (c *Client) normalize(req *Request, err error) error {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		c.metrics.RecordError(reqErr.Type, req.Method().String(), req.Path())
		return err
	}
	c.metrics.RecordError(ErrorTypeRequest, req.Method().String(), req.Path())
	c.logger.Warn("Request failed", "requestID", req.ID().String(), "uri", req.FullURI(), "error", err)
	return &RequestError{
		Type:       ErrorTypeRequest,
		Message:    fmt.Sprintf(requestMessageFormat, req.Method()),
		Cause:      err,
		Request:    req,
		StatusCode: statusCodeOf(err),
		Timestamp:  time.Now(),
	}
}

func (c *Client) notifyExecuting(ctx context.Context, req *Request) {
	for _, l := range c.listeners.All() {
		l.OnExecuting(ctx, req)
	}
}

func (c *Client) notifyExecuted(ctx context.Context, req *Request) {
	for _, l := range c.listeners.All() {
		l.OnExecuted(ctx, req)
	}
}

func (c *Client) notifyError(ctx context.Context, req *Request, err error) {
	for _, l := range c.listeners.All() {
		l.OnError(ctx, req, err)
	}
}

// The cache helpers fail open: errors and panics from the cache manager are
// logged and treated as a miss.

func (c *Client) cacheGet(ctx context.Context, req *GetRequest) (content *CacheContent, found bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("Cache lookup panicked", "requestID", req.ID().String(), "panic", fmt.Sprint(r))
			content, found = nil, false
		}
	}()

	content, found, err := c.cache.Get(ctx, req)
	if err != nil {
		c.logger.Warn("Cache lookup failed", "requestID", req.ID().String(), "error", err)
		return nil, false
	}
	if !found || content == nil {
		return nil, false
	}
	return content, true
}

func (c *Client) cachePut(ctx context.Context, req *GetRequest, value, contentType string, d time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("Cache write panicked", "requestID", req.ID().String(), "panic", fmt.Sprint(r))
		}
	}()

	if err := c.cache.Put(ctx, req, value, contentType, d); err != nil {
		c.logger.Warn("Cache write failed", "requestID", req.ID().String(), "error", err)
		return
	}
	c.logger.Debug("Response cached", "requestID", req.ID().String(), "uri", req.FullURI(), "ttl", d)
}

func (c *Client) cacheRemove(ctx context.Context, req *GetRequest) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("Cache remove panicked", "requestID", req.ID().String(), "panic", fmt.Sprint(r))
		}
	}()

	if err := c.cache.Remove(ctx, req); err != nil {
		c.logger.Warn("Cache remove failed", "requestID", req.ID().String(), "error", err)
	}
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}
