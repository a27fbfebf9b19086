package jembatan

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request is the part shared by every request kind: identity, target path,
// method, headers and a single-fire cancellation signal.
type Request struct {
	id      uuid.UUID
	path    string
	method  Method
	headers *Headers
	params  *Parameters

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu        sync.Mutex
	once      sync.Once
	observers []func(*Request)
}

// NewRequest validates path and method and creates a request with a fresh
// identifier.
func NewRequest(method Method, path string) (*Request, error) {
	return newRequest(method, path, nil)
}

func newRequest(method Method, path string, params *Parameters) (*Request, error) {
	if !method.IsDefined() {
		return nil, newValidationError(ErrInvalidRequest, "method %s is not defined", method)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, newValidationError(ErrInvalidRequest, "request path is empty")
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Request{
		id:      uuid.New(),
		path:    path,
		method:  method,
		headers: NewHeaders(),
		params:  params,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// ID is unique to every constructed request.
func (r *Request) ID() uuid.UUID { return r.id }

// Path is the relative path, without query string.
func (r *Request) Path() string { return r.path }

// Method returns the HTTP method.
func (r *Request) Method() Method { return r.method }

// Headers returns the request's own headers.
func (r *Request) Headers() *Headers { return r.headers }

// Base returns r itself, satisfying PostMessage for embedding types.
func (r *Request) Base() *Request { return r }

// Done is closed once the request is canceled.
func (r *Request) Done() <-chan struct{} {
	return r.ctx.Done()
}

// FullURI is the path followed by the query string, if any.
func (r *Request) FullURI() string {
	return r.path + r.params.Query()
}

// Key returns the per-dispatch identity of the request.
func (r *Request) Key() RequestKey {
	return RequestKey{Method: r.method, URI: r.FullURI(), ID: r.id}
}

// OnCancel registers fn to run when the request is canceled. Observers added
// after cancellation are never called.
func (r *Request) OnCancel(fn func(*Request)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Cancel fires the cancellation signal. Only the first call has an effect.
func (r *Request) Cancel() {
	fired := false
	r.once.Do(func() {
		r.cancel(ErrRequestCanceled)
		fired = true
	})
	if !fired {
		return
	}
	r.mu.Lock()
	observers := r.observers
	r.observers = nil
	r.mu.Unlock()
	for _, fn := range observers {
		fn(r)
	}
}

// Canceled reports whether Cancel has been called.
func (r *Request) Canceled() bool {
	return r.ctx.Err() != nil
}

// PostMessage is the type-erased view of a POST request.
type PostMessage interface {
	Base() *Request
	Body() any
}

// Caching holds the cache directives of a GET request.
type Caching struct {
	canCache bool
	duration time.Duration
	hit      bool
}

// NewCaching enables caching only when requested with a positive duration.
func NewCaching(enabled bool, duration time.Duration) *Caching {
	return &Caching{canCache: enabled && duration > 0, duration: duration}
}

// CanCache reports whether the response may be cached and served from cache.
func (c *Caching) CanCache() bool { return c.canCache }

// Duration is how long a cached response stays valid.
func (c *Caching) Duration() time.Duration { return c.duration }

// IsCacheHit reports whether the last execution was served from cache.
func (c *Caching) IsCacheHit() bool { return c.hit }

func (c *Caching) markHit() {
	if !c.hit {
		c.hit = true
	}
}

// GetRequest is a GET request with query parameters and cache directives.
type GetRequest struct {
	*Request
	caching *Caching
}

// GetOption configures a GetRequest at construction
type GetOption func(*GetRequest) error

// WithParameter adds one query parameter.
func WithParameter(name, value string) GetOption {
	return func(r *GetRequest) error {
		return r.params.Add(name, value)
	}
}

// WithParameterSource adds the parameters produced by src.
func WithParameterSource(src ParameterSource) GetOption {
	return func(r *GetRequest) error {
		return r.params.AddSource(src)
	}
}

// WithCaching asks for the response to be cached for d.
func WithCaching(d time.Duration) GetOption {
	return func(r *GetRequest) error {
		r.caching = NewCaching(true, d)
		return nil
	}
}

// NewGetRequest creates a GET request for path.
func NewGetRequest(path string, options ...GetOption) (*GetRequest, error) {
	base, err := newRequest(MethodGet, path, &Parameters{})
	if err != nil {
		return nil, err
	}
	req := &GetRequest{Request: base, caching: NewCaching(false, 0)}
	for _, option := range options {
		if err := option(req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Parameters returns the query parameters.
func (r *GetRequest) Parameters() *Parameters { return r.params }

// Caching returns the cache directives.
func (r *GetRequest) Caching() *Caching { return r.caching }

// PostRequest is a POST request carrying a typed payload.
type PostRequest[T any] struct {
	*Request
	payload T
}

// NewPostRequest creates a POST request for path.
func NewPostRequest[T any](path string, payload T) (*PostRequest[T], error) {
	base, err := newRequest(MethodPost, path, nil)
	if err != nil {
		return nil, err
	}
	return &PostRequest[T]{Request: base, payload: payload}, nil
}

// Payload returns the typed request body.
func (r *PostRequest[T]) Payload() T { return r.payload }

// Body returns the payload as any, for PostMessage.
func (r *PostRequest[T]) Body() any { return r.payload }
