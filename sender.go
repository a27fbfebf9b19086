package jembatan

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Outbound is what the client hands to a Sender.
type Outbound struct {
	Method Method
	URI    string
	Header http.Header
	Body   []byte
}

// Response is the transport level result of an exchange. The caller closes Body.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       io.ReadCloser
}

// Sender performs the wire exchange. It must return an error for transport
// failures and must honor ctx cancellation.
type Sender interface {
	Send(ctx context.Context, out *Outbound) (*Response, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, out *Outbound) (*Response, error)

func (f SenderFunc) Send(ctx context.Context, out *Outbound) (*Response, error) {
	return f(ctx, out)
}

// HTTPClient is the subset of *http.Client used by HTTPSender.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSender sends requests through an HTTPClient, resolving relative URIs
// against a base address.
type HTTPSender struct {
	client      HTTPClient
	baseAddress string
}

// NewHTTPSender creates a sender for baseAddress. An empty base address
// requires absolute request URIs.
func NewHTTPSender(baseAddress string, client HTTPClient) (*HTTPSender, error) {
	baseAddress = strings.TrimSpace(baseAddress)
	if baseAddress != "" {
		u, err := url.Parse(baseAddress)
		if err != nil {
			return nil, newValidationError(err, "invalid base address %q", baseAddress)
		}
		if !u.IsAbs() {
			return nil, newValidationError(ErrInvalidRequest, "base address %q is not absolute", baseAddress)
		}
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{client: client, baseAddress: baseAddress}, nil
}

// BaseAddress returns the address relative URIs are resolved against.
func (s *HTTPSender) BaseAddress() string {
	return s.baseAddress
}

func (s *HTTPSender) Send(ctx context.Context, out *Outbound) (*Response, error) {
	target := s.resolve(out.URI)

	var body io.Reader
	if out.Body != nil {
		body = bytes.NewReader(out.Body)
	}
	req, err := http.NewRequestWithContext(ctx, out.Method.String(), target, body)
	if err != nil {
		return nil, &TransportError{Method: out.Method.String(), URL: target, Err: err}
	}
	if out.Header != nil {
		req.Header = out.Header.Clone()
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{Method: out.Method.String(), URL: target, Err: err}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// resolve joins the base address and uri verbatim so the query string is
// sent exactly as built.
func (s *HTTPSender) resolve(uri string) string {
	path := uri
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		path = uri[:i]
	}
	if s.baseAddress == "" || strings.Contains(path, "://") {
		return uri
	}
	return strings.TrimRight(s.baseAddress, "/") + "/" + strings.TrimLeft(uri, "/")
}
