// Package metricsender implements the metric sender (component E in
// spec.md §4.E): a bounded queue of whole AggregatedBatch values drained by
// one worker on a fixed interval, no size trigger, drop-silently on a full
// queue, draining and flushing everything on shutdown.
//
// Grounded on the same original_source/vigilant/metric_sender.py loop
// shape as internal/logbatch.Batcher, simplified per spec.md §4.E: each
// queued element is already a complete batch, so there is no size-based
// flush trigger, only the interval tick.
package metricsender

import (
	"context"
	"sync"
	"time"

	"github.com/vigilant-run/vigilant-go/internal/telemetry"
	"github.com/vigilant-run/vigilant-go/internal/transport"
	"github.com/vigilant-run/vigilant-go/internal/types"
)

const (
	DefaultBatchInterval = 100 * time.Millisecond
	queueCapacity        = 1000
)

// Config configures a Sender.
type Config struct {
	BatchInterval time.Duration
	Sender        *transport.Sender
	Metrics       *telemetry.Metrics
}

// Sender is the metric sender.
type Sender struct {
	batchInterval time.Duration
	sender        *transport.Sender
	metrics       *telemetry.Metrics

	queue chan types.AggregatedBatch

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	invalidToken bool
	mu           sync.Mutex
}

// New builds a Sender but does not start its worker; call Start.
func New(cfg Config) *Sender {
	batchInterval := cfg.BatchInterval
	if batchInterval <= 0 {
		batchInterval = DefaultBatchInterval
	}
	return &Sender{
		batchInterval: batchInterval,
		sender:        cfg.Sender,
		metrics:       cfg.Metrics,
		queue:         make(chan types.AggregatedBatch, queueCapacity),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Add enqueues a closed-interval batch from the aggregator. Non-blocking:
// a full queue drops the batch silently.
func (s *Sender) Add(batch types.AggregatedBatch) {
	if batch.Empty() {
		return
	}
	select {
	case s.queue <- batch:
		s.metrics.SetQueueDepth("metric_batches", len(s.queue))
	default:
		s.metrics.EventDropped("metric_batch", "queue_full")
	}
}

// Start launches the background worker.
func (s *Sender) Start() {
	go s.run()
}

// Stop drains the remaining queue, flushing each item, then exits. Blocks
// until the worker has returned.
func (s *Sender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
}

func (s *Sender) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.batchInterval)
	defer ticker.Stop()

	var pending []types.AggregatedBatch

	for {
		select {
		case b := <-s.queue:
			pending = append(pending, b)
		case <-ticker.C:
			for _, b := range pending {
				s.send(b)
			}
			pending = nil
		case <-s.stopCh:
			pending = append(pending, s.drainQueue()...)
			for _, b := range pending {
				s.send(b)
			}
			return
		}
	}
}

func (s *Sender) drainQueue() []types.AggregatedBatch {
	var drained []types.AggregatedBatch
	for {
		select {
		case b := <-s.queue:
			drained = append(drained, b)
		default:
			return drained
		}
	}
}

func (s *Sender) send(batch types.AggregatedBatch) {
	s.mu.Lock()
	abandoned := s.invalidToken
	s.mu.Unlock()
	if abandoned {
		s.metrics.EventDropped("metric_batch", "stopped")
		return
	}

	counters := make([]map[string]any, len(batch.Counters))
	for i, c := range batch.Counters {
		counters[i] = c.JSON()
	}
	gauges := make([]map[string]any, len(batch.Gauges))
	for i, g := range batch.Gauges {
		gauges[i] = g.JSON()
	}
	histograms := make([]map[string]any, len(batch.Histograms))
	for i, h := range batch.Histograms {
		histograms[i] = h.JSON()
	}

	outcome := s.sender.Send(context.Background(), "/api/message", map[string]any{
		"metrics_counters":   counters,
		"metrics_gauges":     gauges,
		"metrics_histograms": histograms,
	})

	switch outcome {
	case transport.OutcomeOK:
		s.metrics.BatchSent("metrics")
	case transport.OutcomeInvalidToken:
		s.mu.Lock()
		s.invalidToken = true
		s.mu.Unlock()
		s.metrics.BatchFailed("metrics", "invalid_token")
	default:
		s.metrics.BatchFailed("metrics", string(outcome))
	}
}
