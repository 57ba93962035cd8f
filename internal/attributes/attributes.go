// Package attributes implements the scoped key/value store described in
// spec.md §4.A. Go has no implicit per-task local storage equivalent to
// Python's contextvars, so the store is carried explicitly on a
// context.Context: each scope derives a child context holding the merged
// map, and the caller threads that context through the call chain for the
// duration of the scope. Concurrent contexts never share a map, so
// concurrent tasks can't observe each other's attributes, and nested
// scopes compose as a stack because each scope's map is derived from its
// parent's.
//
// Grounded on original_source/vigilant/context.py's contextvars-based
// add_attributes/get_attributes.
package attributes

import "context"

type contextKey struct{}

// WithAttributes returns a new context whose effective attribute map is
// the current scope's map merged with attrs (attrs wins on key conflicts).
// The original map is unaffected; callers restore the prior scope simply
// by reverting to the parent context once the derived one goes out of
// scope, which is automatic in Go's context model.
func WithAttributes(ctx context.Context, attrs map[string]string) context.Context {
	current := FromContext(ctx)
	merged := make(map[string]string, len(current)+len(attrs))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range attrs {
		merged[k] = v
	}
	return context.WithValue(ctx, contextKey{}, merged)
}

// FromContext returns the effective attribute map for ctx, or an empty map
// if no scope has been established.
func FromContext(ctx context.Context) map[string]string {
	if ctx == nil {
		return map[string]string{}
	}
	if m, ok := ctx.Value(contextKey{}).(map[string]string); ok {
		return m
	}
	return map[string]string{}
}

// Run establishes attrs as the current scope for the duration of fn, and
// restores the prior scope on return — including when fn panics, since the
// derived context is only ever visible to fn's own call graph.
func Run(ctx context.Context, attrs map[string]string, fn func(context.Context)) {
	fn(WithAttributes(ctx, attrs))
}
