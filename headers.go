package jembatan

import (
	"strings"
)

// MaxHeaderNameLength is the longest accepted header name.
const MaxHeaderNameLength = 40

const headerValuePunctuation = "_ :;.,\\/\"'?!(){}[]@<>=-+*#$&`|~^%"

// Header is a single name/value pair
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered set of request headers. Names are unique and
// compared case-insensitively.
type Headers struct {
	items []Header
}

// NewHeaders creates an empty header set.
func NewHeaders() *Headers {
	return &Headers{}
}

// Add appends a header. It fails when the name or value is invalid or when a
// header with the same name is already present.
func (h *Headers) Add(name, value string) error {
	if err := ValidateHeader(name, value); err != nil {
		return err
	}
	if h.indexOf(name) >= 0 {
		return newValidationError(ErrDuplicateHeader, "header %q already exists", name)
	}
	h.items = append(h.items, Header{Name: name, Value: value})
	return nil
}

// Set adds a header or overwrites the value of an existing one.
func (h *Headers) Set(name, value string) error {
	if err := ValidateHeader(name, value); err != nil {
		return err
	}
	if i := h.indexOf(name); i >= 0 {
		h.items[i].Value = value
		return nil
	}
	h.items = append(h.items, Header{Name: name, Value: value})
	return nil
}

// Get returns the value of the named header.
func (h *Headers) Get(name string) (string, bool) {
	if i := h.indexOf(name); i >= 0 {
		return h.items[i].Value, true
	}
	return "", false
}

// Contains reports whether the named header is present.
func (h *Headers) Contains(name string) bool {
	return h.indexOf(name) >= 0
}

// Remove deletes the named header and reports whether it was present.
func (h *Headers) Remove(name string) bool {
	i := h.indexOf(name)
	if i < 0 {
		return false
	}
	h.items = append(h.items[:i], h.items[i+1:]...)
	return true
}

// Len returns the number of headers.
func (h *Headers) Len() int {
	return len(h.items)
}

// All returns a copy of the headers in insertion order.
func (h *Headers) All() []Header {
	out := make([]Header, len(h.items))
	copy(out, h.items)
	return out
}

func (h *Headers) indexOf(name string) int {
	for i, item := range h.items {
		if strings.EqualFold(item.Name, name) {
			return i
		}
	}
	return -1
}

// ValidateHeader checks both name and value against the header wire rules.
func ValidateHeader(name, value string) error {
	if err := ValidateHeaderName(name); err != nil {
		return err
	}
	return ValidateHeaderValue(value)
}

// ValidateHeaderName accepts 1 to 40 ASCII letters, digits, '-' and '_'.
func ValidateHeaderName(name string) error {
	if strings.TrimSpace(name) == "" {
		return newValidationError(ErrInvalidHeader, "header name is empty")
	}
	if len(name) > MaxHeaderNameLength {
		return newValidationError(ErrInvalidHeader, "header name %q is longer than %d characters", name, MaxHeaderNameLength)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !isASCIILetterOrDigit(c) && c != '-' && c != '_' {
			return newValidationError(ErrInvalidHeader, "header name %q contains invalid character %q", name, rune(c))
		}
	}
	return nil
}

// ValidateHeaderValue accepts ASCII letters, digits and a fixed punctuation
// set. The empty value is valid.
func ValidateHeaderValue(value string) error {
	for _, r := range value {
		if r < 0x80 && (isASCIILetterOrDigit(byte(r)) || strings.ContainsRune(headerValuePunctuation, r)) {
			continue
		}
		return newValidationError(ErrInvalidHeader, "header value contains invalid character %q", r)
	}
	return nil
}

func isASCIILetterOrDigit(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
