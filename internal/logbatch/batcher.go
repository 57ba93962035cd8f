// Package logbatch implements the log batcher (component C in spec.md
// §4.C): a bounded FIFO of log records drained by a single background
// worker that flushes on a size trigger or a time trigger, whichever
// comes first, and drains-then-flushes-once on Stop.
//
// Grounded on original_source/vigilant/metric_batcher.py's
// _run_background_loop (the log batcher and metric batcher share the same
// shape in the original SDK; this package follows that loop structure for
// logs specifically).
package logbatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigilant-run/vigilant-go/internal/telemetry"
	"github.com/vigilant-run/vigilant-go/internal/transport"
	"github.com/vigilant-run/vigilant-go/internal/types"
)

const (
	DefaultMaxBatchSize  = 1000
	DefaultBatchInterval = 100 * time.Millisecond
)

// Config configures a Batcher.
type Config struct {
	MaxBatchSize  int
	BatchInterval time.Duration
	Sender        *transport.Sender
	Metrics       *telemetry.Metrics
}

// Batcher is the log batcher. Add is always non-blocking: a full queue
// drops the record silently, per spec.md's "never block the producer"
// rule.
type Batcher struct {
	maxBatchSize  int
	batchInterval time.Duration
	sender        *transport.Sender
	metrics       *telemetry.Metrics

	queue chan types.Log

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	invalidToken atomic.Bool
}

// New builds a Batcher but does not start its worker; call Start.
func New(cfg Config) *Batcher {
	maxBatchSize := cfg.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	batchInterval := cfg.BatchInterval
	if batchInterval <= 0 {
		batchInterval = DefaultBatchInterval
	}

	return &Batcher{
		maxBatchSize:  maxBatchSize,
		batchInterval: batchInterval,
		sender:        cfg.Sender,
		metrics:       cfg.Metrics,
		queue:         make(chan types.Log, maxBatchSize*10),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Add enqueues a log record. Non-blocking: if the queue is full the record
// is dropped silently (QueueFull, spec.md §7).
func (b *Batcher) Add(log types.Log) {
	select {
	case b.queue <- log:
		b.metrics.EventAccepted("log")
		b.metrics.SetQueueDepth("logs", len(b.queue))
	default:
		b.metrics.EventDropped("log", "queue_full")
	}
}

// Start launches the background worker.
func (b *Batcher) Start() {
	go b.run()
}

// Stop signals the worker to drain the remaining queue into a final batch,
// flush once, and exit. Blocks until the worker has returned.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	<-b.done
}

func (b *Batcher) run() {
	defer close(b.done)

	var batch []types.Log
	ticker := time.NewTicker(b.batchInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		switch b.flush(batch) {
		case transport.OutcomeServerError, transport.OutcomeNetworkError:
			// Leave the batch intact: the next flush re-sends it plus
			// whatever arrived in between, per spec.md §4.C.
		default:
			batch = nil
		}
	}

	for {
		select {
		case log := <-b.queue:
			batch = append(batch, log)
			if len(batch) >= b.maxBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-b.stopCh:
			batch = append(batch, b.drainQueue()...)
			flush()
			return
		}
	}
}

// drainQueue pulls everything currently buffered in the queue without
// blocking, for the final flush on Stop.
func (b *Batcher) drainQueue() []types.Log {
	var drained []types.Log
	for {
		select {
		case log := <-b.queue:
			drained = append(drained, log)
		default:
			return drained
		}
	}
}

// flush sends batch and returns the classified outcome so the caller can
// decide whether to clear the batch (OutcomeOK, OutcomeInvalidToken) or
// retain it for the next attempt (OutcomeServerError, OutcomeNetworkError).
func (b *Batcher) flush(batch []types.Log) transport.Outcome {
	if b.invalidToken.Load() {
		b.metrics.EventDropped("log", "stopped")
		return transport.OutcomeInvalidToken
	}

	logs := make([]map[string]any, len(batch))
	for i, l := range batch {
		logs[i] = l.JSON()
	}

	outcome := b.sender.Send(context.Background(), "/api/message", map[string]any{
		"type": "logs",
		"logs": logs,
	})

	switch outcome {
	case transport.OutcomeOK:
		b.metrics.BatchSent("logs")
	case transport.OutcomeInvalidToken:
		b.invalidToken.Store(true)
		b.metrics.BatchFailed("logs", "invalid_token")
	default:
		b.metrics.BatchFailed("logs", string(outcome))
	}
	return outcome
}
