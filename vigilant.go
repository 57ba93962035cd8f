// Package vigilant is a client-side observability SDK: logs and metrics
// produced by a host application are batched, aggregated, and shipped to a
// hosted ingestion endpoint over HTTP.
//
// The package holds at most one initialized instance per process (the
// Lifecycle Manager, spec.md §4.G). Call Init once at startup and Shutdown
// once at exit; the logging and metric functions, InstanceID and
// MetricsRegistry dispatch through the current instance and fail with
// ErrNotInitialized if there isn't one.
package vigilant

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vigilant-run/vigilant-go/internal/aggregator"
	"github.com/vigilant-run/vigilant-go/internal/logbatch"
	"github.com/vigilant-run/vigilant-go/internal/metricsender"
	"github.com/vigilant-run/vigilant-go/internal/router"
	"github.com/vigilant-run/vigilant-go/internal/telemetry"
	"github.com/vigilant-run/vigilant-go/internal/transport"
	"github.com/vigilant-run/vigilant-go/internal/types"
)

// shutdownTimeout bounds how long Shutdown waits for any single component
// to drain; exceeding it is logged and that component is abandoned rather
// than blocking the caller forever.
const shutdownTimeout = 10 * time.Second

// instance is everything Init constructs and Shutdown tears down.
type instance struct {
	cfg        config
	instanceID string

	metricsReg *prometheus.Registry
	telemetry  *telemetry.Metrics
	sender     *transport.Sender

	logs    *logbatch.Batcher
	agg     *aggregator.Aggregator
	metrics *metricsender.Sender
	stream  *router.Router
}

var (
	singletonMu sync.Mutex
	current     *instance
	hookOnce    sync.Once
)

// Init constructs and starts the SDK's singleton instance. Fails with
// ErrAlreadyInitialized if one already exists.
func Init(user UserConfig) error {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if current != nil {
		return ErrAlreadyInitialized
	}

	cfg := mergeConfig(user)

	inst, err := newInstance(cfg)
	if err != nil {
		return &UnexpectedFailureError{Cause: err}
	}
	inst.start()
	current = inst

	hookOnce.Do(installExitHook)

	return nil
}

// InstanceID returns the current instance's correlation id, generated once
// at Init — useful for tying together log lines or support reports across a
// process that has called Init/Shutdown more than once in its lifetime.
// Fails with ErrNotInitialized if Init has not been called.
func InstanceID() (string, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if current == nil {
		return "", ErrNotInitialized
	}
	return current.instanceID, nil
}

// MetricsRegistry returns the current instance's internal self-monitoring
// registry (events accepted/dropped, batch outcomes, queue depth — see
// internal/telemetry), so a host application can expose it alongside its
// own Prometheus metrics. Fails with ErrNotInitialized if Init has not been
// called.
func MetricsRegistry() (*prometheus.Registry, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if current == nil {
		return nil, ErrNotInitialized
	}
	return current.metricsReg, nil
}

// Shutdown atomically takes and clears the singleton, stopping every child
// component in order F (disable) → E (stop) → D (stop) → C (stop) and
// closing HTTP resources. Idempotent when no instance is held.
func Shutdown() error {
	singletonMu.Lock()
	inst := current
	current = nil
	singletonMu.Unlock()

	if inst == nil {
		return nil
	}
	if err := inst.stop(); err != nil {
		return fmt.Errorf("vigilant: instance %s: %w", inst.instanceID, err)
	}
	return nil
}

func newInstance(cfg config) (*instance, error) {
	reg := prometheus.NewRegistry()
	tel := telemetry.New(reg)

	sender := transport.New(transport.Config{
		Endpoint:  cfg.endpoint,
		Token:     cfg.token,
		Insecure:  cfg.insecure,
		Placement: cfg.tokenPlacement,
	})

	inst := &instance{
		cfg:        cfg,
		instanceID: uuid.New().String(),
		metricsReg: reg,
		telemetry:  tel,
		sender:     sender,
	}

	inst.logs = logbatch.New(logbatch.Config{
		MaxBatchSize:  cfg.maxLogBatchSize,
		BatchInterval: cfg.logBatchInterval,
		Sender:        sender,
		Metrics:       tel,
	})

	inst.metrics = metricsender.New(metricsender.Config{
		BatchInterval: cfg.metricSendInterval,
		Sender:        sender,
		Metrics:       tel,
	})

	inst.agg = aggregator.New(aggregator.Config{
		Interval: cfg.metricInterval,
		Epsilon:  cfg.metricEpsilon,
		Deliver:  inst.metrics.Add,
		Metrics:  tel,
	})

	inst.stream = router.New(inst.routeCapturedLine, cfg.passthrough)

	return inst, nil
}

func (i *instance) start() {
	i.logs.Start()
	i.agg.Start()
	i.metrics.Start()
	if i.cfg.autocapture {
		if err := i.stream.Enable(); err != nil {
			fmt.Fprintln(os.Stderr, "vigilant: failed to enable autocapture:", err)
		}
	}
}

func (i *instance) stop() error {
	var result *multierror.Error

	boundedStop("stream router", func() { i.stream.Disable() }, &result)
	boundedStop("metric sender", i.metrics.Stop, &result)
	boundedStop("metric aggregator", i.agg.Stop, &result)
	boundedStop("log batcher", i.logs.Stop, &result)

	i.sender.Close()

	return result.ErrorOrNil()
}

// boundedStop runs stop in a goroutine and waits up to shutdownTimeout; a
// stop that hasn't returned by then is logged and abandoned rather than
// blocking the caller indefinitely.
func boundedStop(label string, stop func(), result **multierror.Error) {
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		*result = multierror.Append(*result, fmt.Errorf("%s: did not stop within %s, abandoning", label, shutdownTimeout))
	}
}

// routeCapturedLine is the autocapture router's sink: every intercepted
// stdout/stderr line becomes a log event dispatched the same way as a
// direct LogInfo/LogError call.
func (i *instance) routeCapturedLine(l types.Log) {
	i.dispatchLog(context.Background(), l.Level, l.Body, nil)
}

// installExitHook approximates spec.md §4.G's at-exit hook. Go has no
// process-wide atexit equivalent to Python's atexit module, so normal exit
// still depends on the caller running `defer vigilant.Shutdown()`; this
// handler only catches the interactive SIGINT/SIGTERM case, matching the
// spec's own admission that the hook "is not guaranteed on signal-induced
// crashes."
func installExitHook() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		if err := Shutdown(); err != nil {
			fmt.Fprintln(os.Stderr, "vigilant: shutdown error:", err)
		}
	}()
}
