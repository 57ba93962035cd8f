// Package aggregator implements the metric aggregator (component D in
// spec.md §4.D): three bounded per-kind queues of metric events are folded
// under a single mutex into per-series state, and a ticker aligned to
// epoch-boundary intervals periodically snapshots that state into an
// AggregatedBatch handed off to the metric sender.
//
// Grounded on internal/tsdb/aggregator.go's tumbling-window Aggregator
// (ticker-driven flush of a mutex-protected bucket map to a channel), but
// the window boundary here is aligned to wall-clock epoch multiples of the
// interval rather than to the first-seen timestamp, and the fold/reset
// policy differs per series kind (§3, §4.D) rather than the teacher's
// min/max/sum/count bucket.
package aggregator

import (
	"sort"
	"sync"
	"time"

	"github.com/vigilant-run/vigilant-go/internal/telemetry"
	"github.com/vigilant-run/vigilant-go/internal/types"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultEpsilon  = 50 * time.Millisecond
	queueCapacity   = 1000
)

// Config configures an Aggregator. Deliver receives each closed interval's
// batch; it is expected to hand off to the metric sender's own (bounded,
// drop-on-full) queue, so Deliver itself must not block for long.
type Config struct {
	Interval time.Duration
	Epsilon  time.Duration
	Deliver  func(types.AggregatedBatch)
	Metrics  *telemetry.Metrics
	Now      func() time.Time
}

// Aggregator is the metric aggregator. Add is always non-blocking.
type Aggregator struct {
	interval time.Duration
	epsilon  time.Duration
	deliver  func(types.AggregatedBatch)
	metrics  *telemetry.Metrics
	now      func() time.Time

	counterQueue   chan types.MetricEvent
	gaugeQueue     chan types.MetricEvent
	histogramQueue chan types.MetricEvent

	mu         sync.Mutex
	counters   map[string]*types.CounterSeries
	gauges     map[string]*types.GaugeSeries
	histograms map[string]*types.HistogramSeries

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// New builds an Aggregator but does not start its worker; call Start.
func New(cfg Config) *Aggregator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	epsilon := cfg.Epsilon
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Aggregator{
		interval:       interval,
		epsilon:        epsilon,
		deliver:        cfg.Deliver,
		metrics:        cfg.Metrics,
		now:            now,
		counterQueue:   make(chan types.MetricEvent, queueCapacity),
		gaugeQueue:     make(chan types.MetricEvent, queueCapacity),
		histogramQueue: make(chan types.MetricEvent, queueCapacity),
		counters:       make(map[string]*types.CounterSeries),
		gauges:         make(map[string]*types.GaugeSeries),
		histograms:     make(map[string]*types.HistogramSeries),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Add enqueues a metric event onto its kind's queue. Non-blocking: a full
// queue drops the event silently.
func (a *Aggregator) Add(event types.MetricEvent) {
	var q chan types.MetricEvent
	switch event.Kind {
	case types.KindCounter:
		q = a.counterQueue
	case types.KindGauge:
		q = a.gaugeQueue
	case types.KindHistogram:
		q = a.histogramQueue
	default:
		return
	}

	select {
	case q <- event:
		a.metrics.EventAccepted(string(event.Kind))
		a.metrics.SetQueueDepth(string(event.Kind), len(q))
	default:
		a.metrics.EventDropped(string(event.Kind), "queue_full")
	}
}

// Start launches the background worker.
func (a *Aggregator) Start() {
	go a.run()
}

// Stop halts the ticker, drains the three queues into the series maps, and
// delivers one final batch dated at the current truncated interval.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	<-a.done
}

// ceilToEpoch returns the next interval boundary at or after t: the
// smallest multiple of interval (counted from the Unix epoch, not from
// Go's year-1 zero time) that is >= t.
func ceilToEpoch(t time.Time, interval time.Duration) time.Time {
	i := interval.Nanoseconds()
	n := t.UnixNano()
	ceil := ((n + i - 1) / i) * i
	return time.Unix(0, ceil).UTC()
}

// floorToEpoch returns the most recent interval boundary at or before t.
func floorToEpoch(t time.Time, interval time.Duration) time.Time {
	i := interval.Nanoseconds()
	n := t.UnixNano()
	floor := (n / i) * i
	return time.Unix(0, floor).UTC()
}

func (a *Aggregator) run() {
	defer close(a.done)

	boundary := ceilToEpoch(a.now(), a.interval)
	intervalStart := boundary.Add(-a.interval)
	timer := time.NewTimer(time.Until(boundary.Add(a.epsilon)))
	defer timer.Stop()

	for {
		select {
		case e := <-a.counterQueue:
			a.foldCounter(e)
		case e := <-a.gaugeQueue:
			a.foldGauge(e)
		case e := <-a.histogramQueue:
			a.foldHistogram(e)
		case <-timer.C:
			// Emit exactly one batch per interval boundary crossed, even
			// if the goroutine was stalled past more than one — never
			// coalesce missed intervals into a single batch.
			for {
				a.tick(intervalStart)
				boundary = boundary.Add(a.interval)
				intervalStart = intervalStart.Add(a.interval)
				fireAt := boundary.Add(a.epsilon)
				if wait := time.Until(fireAt); wait > 0 {
					timer.Reset(wait)
					break
				}
			}
		case <-a.stopCh:
			a.drainAll()
			a.tick(floorToEpoch(a.now(), a.interval))
			return
		}
	}
}

func (a *Aggregator) drainAll() {
	for {
		select {
		case e := <-a.counterQueue:
			a.foldCounter(e)
		case e := <-a.gaugeQueue:
			a.foldGauge(e)
		case e := <-a.histogramQueue:
			a.foldHistogram(e)
		default:
			return
		}
	}
}

func (a *Aggregator) foldCounter(e types.MetricEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := types.SeriesID(e.Name, e.Tags)
	s, ok := a.counters[id]
	if !ok {
		s = &types.CounterSeries{Name: e.Name, Tags: e.Tags}
		a.counters[id] = s
	}
	s.Value += e.Value
}

func (a *Aggregator) foldGauge(e types.MetricEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := types.SeriesID(e.Name, e.Tags)
	s, ok := a.gauges[id]
	if !ok {
		s = &types.GaugeSeries{Name: e.Name, Tags: e.Tags}
		a.gauges[id] = s
	}
	switch e.GaugeMode {
	case types.GaugeInc:
		s.Value += e.Value
	case types.GaugeDec:
		s.Value -= e.Value
	default:
		s.Value = e.Value
	}
}

func (a *Aggregator) foldHistogram(e types.MetricEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := types.SeriesID(e.Name, e.Tags)
	s, ok := a.histograms[id]
	if !ok {
		s = &types.HistogramSeries{Name: e.Name, Tags: e.Tags}
		a.histograms[id] = s
	}
	s.Values = append(s.Values, e.Value)
}

// tick snapshots the current series state into a batch labeled
// intervalStart, applies the per-kind reset policy, and hands the batch to
// Deliver if it carries any series.
func (a *Aggregator) tick(intervalStart time.Time) {
	a.mu.Lock()
	batch := types.AggregatedBatch{IntervalStart: intervalStart}

	for _, s := range a.counters {
		batch.Counters = append(batch.Counters, types.CounterMessage{
			Timestamp: intervalStart, Name: s.Name, Value: s.Value, Tags: s.Tags,
		})
		s.Value = 0
	}
	for _, s := range a.gauges {
		batch.Gauges = append(batch.Gauges, types.GaugeMessage{
			Timestamp: intervalStart, Name: s.Name, Value: s.Value, Tags: s.Tags,
		})
	}
	for _, s := range a.histograms {
		values := make([]float64, len(s.Values))
		copy(values, s.Values)
		batch.Histograms = append(batch.Histograms, types.HistogramMessage{
			Timestamp: intervalStart, Name: s.Name, Values: values, Tags: s.Tags,
		})
		s.Values = s.Values[:0]
	}
	a.mu.Unlock()

	sortBatch(&batch)

	if batch.Empty() {
		return
	}
	if a.deliver != nil {
		a.deliver(batch)
	}
}

func sortBatch(b *types.AggregatedBatch) {
	sort.Slice(b.Counters, func(i, j int) bool { return b.Counters[i].Name < b.Counters[j].Name })
	sort.Slice(b.Gauges, func(i, j int) bool { return b.Gauges[i].Name < b.Gauges[j].Name })
	sort.Slice(b.Histograms, func(i, j int) bool { return b.Histograms[i].Name < b.Histograms[j].Name })
}
