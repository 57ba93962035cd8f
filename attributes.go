package vigilant

import (
	"context"

	"github.com/vigilant-run/vigilant-go/internal/attributes"
)

// WithAttributes returns a context whose effective attribute scope is the
// parent's merged with attrs (attrs wins on key conflicts). Every
// LogInfo/LogWarn/... call made with the returned context carries these
// attributes in addition to the instance's configured defaults.
func WithAttributes(ctx context.Context, attrs map[string]string) context.Context {
	return attributes.WithAttributes(ctx, attrs)
}

// RunWithAttributes establishes attrs as the current scope for the
// duration of fn.
func RunWithAttributes(ctx context.Context, attrs map[string]string, fn func(context.Context)) {
	attributes.Run(ctx, attrs, fn)
}
