package jembatan

import (
	"context"
	"reflect"
)

// GetInterceptor inspects or mutates a GET request before it is sent.
type GetInterceptor interface {
	InterceptGet(ctx context.Context, req *GetRequest) Interception
}

// PostInterceptor inspects or mutates a POST request before it is sent.
type PostInterceptor interface {
	InterceptPost(ctx context.Context, req PostMessage) Interception
}

// Interceptor handles both GET and POST requests.
type Interceptor interface {
	GetInterceptor
	PostInterceptor
}

type getInterceptorFunc struct {
	fn func(ctx context.Context, req *GetRequest) Interception
}

func (f *getInterceptorFunc) InterceptGet(ctx context.Context, req *GetRequest) Interception {
	return f.fn(ctx, req)
}

// GetInterceptorFunc wraps fn as a GetInterceptor. Each call returns a
// distinct interceptor.
func GetInterceptorFunc(fn func(ctx context.Context, req *GetRequest) Interception) GetInterceptor {
	return &getInterceptorFunc{fn: fn}
}

type postInterceptorFunc struct {
	fn func(ctx context.Context, req PostMessage) Interception
}

func (f *postInterceptorFunc) InterceptPost(ctx context.Context, req PostMessage) Interception {
	return f.fn(ctx, req)
}

// PostInterceptorFunc wraps fn as a PostInterceptor. Each call returns a
// distinct interceptor.
func PostInterceptorFunc(fn func(ctx context.Context, req PostMessage) Interception) PostInterceptor {
	return &postInterceptorFunc{fn: fn}
}

// Chain is an ordered collection without duplicates. Items are compared by
// identity; items whose dynamic type is not comparable are never considered
// duplicates. A Chain is configured before concurrent use and is not safe for
// mutation during dispatch.
type Chain[T any] struct {
	items []T
}

// Add appends the items that are not nil and not already present. It returns
// the number of items added.
func (c *Chain[T]) Add(items ...T) int {
	added := 0
	for _, item := range items {
		if isNil(item) || c.Contains(item) {
			continue
		}
		c.items = append(c.items, item)
		added++
	}
	return added
}

// Remove deletes item and reports whether it was present.
func (c *Chain[T]) Remove(item T) bool {
	for i, existing := range c.items {
		if sameItem(existing, item) {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether item is registered.
func (c *Chain[T]) Contains(item T) bool {
	for _, existing := range c.items {
		if sameItem(existing, item) {
			return true
		}
	}
	return false
}

// Len returns the number of registered items.
func (c *Chain[T]) Len() int {
	return len(c.items)
}

// Clear removes every item.
func (c *Chain[T]) Clear() {
	c.items = nil
}

// All returns a copy of the items in registration order.
func (c *Chain[T]) All() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// intercept calls each interceptor in order and stops at the first cancel.
func intercept[T any](items []T, call func(T) Interception) Interception {
	for _, item := range items {
		if verdict := call(item); verdict.IsCanceled() {
			return verdict
		}
	}
	return Continue
}

func sameItem[T any](a, b T) bool {
	av, bv := any(a), any(b)
	if av == nil || bv == nil {
		return av == bv
	}
	ta := reflect.TypeOf(av)
	if ta != reflect.TypeOf(bv) || !ta.Comparable() {
		return false
	}
	return av == bv
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
