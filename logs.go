package vigilant

import (
	"context"
	"time"

	"github.com/vigilant-run/vigilant-go/internal/attributes"
	"github.com/vigilant-run/vigilant-go/internal/types"
)

// LogInfo, LogWarn, LogError, LogDebug, and LogTrace build a Log record
// (timestamp now, the given level and body, attributes merged from the
// context's current scope, the instance's configured defaults, and
// service.name) and dispatch it to the log batcher. They fail with
// ErrNotInitialized if Init has not been called.

func LogInfo(ctx context.Context, body string, attrs ...map[string]string) error {
	return dispatchLog(ctx, types.LevelInfo, body, attrs...)
}

func LogWarn(ctx context.Context, body string, attrs ...map[string]string) error {
	return dispatchLog(ctx, types.LevelWarn, body, attrs...)
}

func LogError(ctx context.Context, body string, attrs ...map[string]string) error {
	return dispatchLog(ctx, types.LevelError, body, attrs...)
}

func LogDebug(ctx context.Context, body string, attrs ...map[string]string) error {
	return dispatchLog(ctx, types.LevelDebug, body, attrs...)
}

func LogTrace(ctx context.Context, body string, attrs ...map[string]string) error {
	return dispatchLog(ctx, types.LevelTrace, body, attrs...)
}

func dispatchLog(ctx context.Context, level types.LogLevel, body string, attrs ...map[string]string) error {
	singletonMu.Lock()
	inst := current
	singletonMu.Unlock()

	if inst == nil {
		return ErrNotInitialized
	}

	var extra map[string]string
	if len(attrs) > 0 {
		extra = attrs[0]
	}
	inst.dispatchLog(ctx, level, body, extra)
	return nil
}

// dispatchLog is also used directly by the autocapture router, which has
// no call-site attrs of its own to merge in.
func (i *instance) dispatchLog(ctx context.Context, level types.LogLevel, body string, extra map[string]string) {
	if i.cfg.noop {
		return
	}

	merged := make(map[string]string, len(i.cfg.attributes)+len(extra)+2)
	merged["service.name"] = i.cfg.name
	for k, v := range i.cfg.attributes {
		merged[k] = v
	}
	for k, v := range attributes.FromContext(ctx) {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}

	i.logs.Add(types.Log{
		Timestamp:  time.Now(),
		Level:      level,
		Body:       body,
		Attributes: merged,
	})
}
