package jembatan

import (
	"strings"
)

// Parameter is a single query parameter
type Parameter struct {
	Name  string
	Value string
}

// ParameterSource maps a caller value onto query parameters.
type ParameterSource interface {
	QueryParameters() []Parameter
}

// ParameterFunc adapts a function to ParameterSource.
type ParameterFunc func() []Parameter

func (f ParameterFunc) QueryParameters() []Parameter { return f() }

// Parameters is an ordered set of query parameters unique by
// case-insensitive name.
type Parameters struct {
	items []Parameter
}

// Add appends a parameter. Names are trimmed and must not be empty.
func (p *Parameters) Add(name, value string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return newValidationError(ErrInvalidRequest, "parameter name is empty")
	}
	if p.indexOf(name) >= 0 {
		return newValidationError(ErrDuplicateParameter, "parameter %q already exists", name)
	}
	p.items = append(p.items, Parameter{Name: name, Value: value})
	return nil
}

// AddSource adds every parameter produced by src.
func (p *Parameters) AddSource(src ParameterSource) error {
	if src == nil {
		return nil
	}
	for _, param := range src.QueryParameters() {
		if err := p.Add(param.Name, param.Value); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value of the named parameter.
func (p *Parameters) Get(name string) (string, bool) {
	if i := p.indexOf(name); i >= 0 {
		return p.items[i].Value, true
	}
	return "", false
}

// Len returns the number of parameters.
func (p *Parameters) Len() int {
	return len(p.items)
}

// All returns a copy of the parameters in insertion order.
func (p *Parameters) All() []Parameter {
	out := make([]Parameter, len(p.items))
	copy(out, p.items)
	return out
}

// Query renders "?n1=v1&n2=v2" verbatim, or "" when empty.
func (p *Parameters) Query() string {
	if p == nil || len(p.items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, item := range p.items {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(item.Name)
		b.WriteByte('=')
		b.WriteString(item.Value)
	}
	return b.String()
}

func (p *Parameters) indexOf(name string) int {
	for i, item := range p.items {
		if strings.EqualFold(item.Name, name) {
			return i
		}
	}
	return -1
}
