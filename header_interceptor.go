package jembatan

import (
	"context"
	"strings"

	"github.com/caarlos0/env/v11"
	"golang.org/x/oauth2"
)

// HeaderSupplier resolves a header name or value at interception time.
type HeaderSupplier func(ctx context.Context, req *Request) (string, error)

// Static returns a supplier that always yields s.
func Static(s string) HeaderSupplier {
	return func(context.Context, *Request) (string, error) {
		return s, nil
	}
}

// Deferred adapts a plain function to a HeaderSupplier.
func Deferred(fn func() string) HeaderSupplier {
	return func(context.Context, *Request) (string, error) {
		return fn(), nil
	}
}

// HeaderInterceptor adds one header to every GET and POST request. A blank
// name lets the request continue untouched. An invalid or duplicate header,
// or a supplier error, cancels the request.
type HeaderInterceptor struct {
	name     HeaderSupplier
	value    HeaderSupplier
	behavior CancelBehavior
}

// HeaderOption configures a HeaderInterceptor
type HeaderOption func(*HeaderInterceptor)

// WithInvalidHeaderBehavior sets how the request is canceled when the header
// cannot be added. The default is CancelThrow.
func WithInvalidHeaderBehavior(behavior CancelBehavior) HeaderOption {
	return func(h *HeaderInterceptor) {
		h.behavior = behavior
	}
}

// NewHeaderInterceptor creates an interceptor adding the header resolved by
// name and value.
func NewHeaderInterceptor(name, value HeaderSupplier, options ...HeaderOption) *HeaderInterceptor {
	h := &HeaderInterceptor{name: name, value: value, behavior: CancelThrow}
	for _, option := range options {
		option(h)
	}
	return h
}

// NewAPIKeyInterceptor sends an API key under the given header name.
func NewAPIKeyInterceptor(headerName string, key HeaderSupplier, options ...HeaderOption) (*HeaderInterceptor, error) {
	return newNamedHeaderInterceptor(headerName, key, options...)
}

// NewAuthTokenInterceptor sends an authentication token under the given header name.
func NewAuthTokenInterceptor(headerName string, token HeaderSupplier, options ...HeaderOption) (*HeaderInterceptor, error) {
	return newNamedHeaderInterceptor(headerName, token, options...)
}

// NewRequestIDInterceptor sends the request identifier under the given header name.
func NewRequestIDInterceptor(headerName string, options ...HeaderOption) (*HeaderInterceptor, error) {
	if strings.TrimSpace(headerName) == "" {
		return nil, newValidationError(ErrInvalidHeader, "request identifier header name is empty")
	}
	return newNamedHeaderInterceptor(headerName, func(_ context.Context, req *Request) (string, error) {
		return req.ID().String(), nil
	}, options...)
}

// NewOAuth2Interceptor sends "Authorization: <type> <token>" using a token
// from src. A token error cancels the request.
func NewOAuth2Interceptor(src oauth2.TokenSource, options ...HeaderOption) *HeaderInterceptor {
	return NewHeaderInterceptor(Static("Authorization"), func(context.Context, *Request) (string, error) {
		token, err := src.Token()
		if err != nil {
			return "", err
		}
		return token.Type() + " " + token.AccessToken, nil
	}, options...)
}

// LocaleInterceptor sends the locale and the UI locale of the caller under
// two header names. Both are resolved at interception time.
type LocaleInterceptor struct {
	locale   *HeaderInterceptor
	uiLocale *HeaderInterceptor
}

// LocaleOption configures a LocaleInterceptor
type LocaleOption func(*localeSuppliers)

type localeSuppliers struct {
	locale   HeaderSupplier
	uiLocale HeaderSupplier
	header   []HeaderOption
}

// WithLocale replaces the environment lookup of the locale.
func WithLocale(supplier HeaderSupplier) LocaleOption {
	return func(s *localeSuppliers) {
		s.locale = supplier
	}
}

// WithUILocale replaces the environment lookup of the UI locale.
func WithUILocale(supplier HeaderSupplier) LocaleOption {
	return func(s *localeSuppliers) {
		s.uiLocale = supplier
	}
}

// WithLocaleHeaderOptions applies header options to both headers.
func WithLocaleHeaderOptions(options ...HeaderOption) LocaleOption {
	return func(s *localeSuppliers) {
		s.header = append(s.header, options...)
	}
}

// NewLocaleInterceptor sends the locale under localeHeader and the UI locale
// under uiLocaleHeader. A blank name skips its header. When both names are
// the same header only the locale is sent. By default the locale comes from
// LC_ALL or LANG and the UI locale from LC_ALL, LC_MESSAGES or LANG.
func NewLocaleInterceptor(localeHeader, uiLocaleHeader string, options ...LocaleOption) (*LocaleInterceptor, error) {
	suppliers := &localeSuppliers{
		locale:   environmentLocale(false),
		uiLocale: environmentLocale(true),
	}
	for _, option := range options {
		option(suppliers)
	}

	locale, err := newNamedHeaderInterceptor(strings.TrimSpace(localeHeader), suppliers.locale, suppliers.header...)
	if err != nil {
		return nil, err
	}
	l := &LocaleInterceptor{locale: locale}

	uiLocaleHeader = strings.TrimSpace(uiLocaleHeader)
	if uiLocaleHeader != "" && !strings.EqualFold(uiLocaleHeader, strings.TrimSpace(localeHeader)) {
		l.uiLocale, err = newNamedHeaderInterceptor(uiLocaleHeader, suppliers.uiLocale, suppliers.header...)
		if err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *LocaleInterceptor) InterceptGet(ctx context.Context, req *GetRequest) Interception {
	return l.addHeaders(ctx, req.Request)
}

func (l *LocaleInterceptor) InterceptPost(ctx context.Context, req PostMessage) Interception {
	return l.addHeaders(ctx, req.Base())
}

func (l *LocaleInterceptor) addHeaders(ctx context.Context, req *Request) Interception {
	if verdict := l.locale.addHeader(ctx, req); verdict.IsCanceled() || l.uiLocale == nil {
		return verdict
	}
	return l.uiLocale.addHeader(ctx, req)
}

type localeEnv struct {
	All      string `env:"LC_ALL"`
	Messages string `env:"LC_MESSAGES"`
	Lang     string `env:"LANG"`
}

func environmentLocale(ui bool) HeaderSupplier {
	return func(context.Context, *Request) (string, error) {
		vars, err := env.ParseAs[localeEnv]()
		if err != nil {
			return "", err
		}
		candidates := []string{vars.All, vars.Lang}
		if ui {
			candidates = []string{vars.All, vars.Messages, vars.Lang}
		}
		for _, candidate := range candidates {
			if candidate != "" {
				return localeName(candidate), nil
			}
		}
		return "", nil
	}
}

// localeName turns a POSIX locale such as "fi_FI.UTF-8@euro" into "fi-FI".
// The C and POSIX locales have no name.
func localeName(posix string) string {
	name, _, _ := strings.Cut(posix, "@")
	name, _, _ = strings.Cut(name, ".")
	if name == "C" || name == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(name, "_", "-")
}

func newNamedHeaderInterceptor(headerName string, value HeaderSupplier, options ...HeaderOption) (*HeaderInterceptor, error) {
	if headerName != "" {
		if err := ValidateHeaderName(headerName); err != nil {
			return nil, err
		}
	}
	return NewHeaderInterceptor(Static(headerName), value, options...), nil
}

func (h *HeaderInterceptor) InterceptGet(ctx context.Context, req *GetRequest) Interception {
	return h.addHeader(ctx, req.Request)
}

func (h *HeaderInterceptor) InterceptPost(ctx context.Context, req PostMessage) Interception {
	return h.addHeader(ctx, req.Base())
}

func (h *HeaderInterceptor) addHeader(ctx context.Context, req *Request) Interception {
	name, err := h.name(ctx, req)
	if err != nil {
		return Cancel(h.behavior, errorMessage(err))
	}
	if strings.TrimSpace(name) == "" {
		return Continue
	}
	value, err := h.value(ctx, req)
	if err != nil {
		return Cancel(h.behavior, errorMessage(err))
	}
	if err := req.Headers().Add(name, value); err != nil {
		return Cancel(h.behavior, errorMessage(err))
	}
	return Continue
}
