// Package types holds the wire-level data model shared by the batchers,
// the aggregator, and the HTTP sender: log records, metric events, the
// per-series aggregation state, and the aggregated batch shipped to the
// ingestion endpoint.
package types

import (
	"sort"
	"strings"
	"time"
)

// LogLevel is the severity of a Log record.
type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
	LevelDebug LogLevel = "DEBUG"
	LevelTrace LogLevel = "TRACE"
)

// Log is a single log record produced by the facade, owned by the log
// batcher until it is flushed.
type Log struct {
	Timestamp  time.Time
	Level      LogLevel
	Body       string
	Attributes map[string]string
}

// JSON renders the log in the wire shape expected by the ingestion
// endpoint's logs payload.
func (l Log) JSON() map[string]any {
	return map[string]any{
		"timestamp":  FormatTimestamp(l.Timestamp),
		"body":       l.Body,
		"level":      string(l.Level),
		"attributes": l.Attributes,
	}
}

// FormatTimestamp renders t as UTC ISO-8601 with microsecond precision and
// a trailing "Z", matching the original Python SDK's wire format exactly.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}

// MetricKind distinguishes the three metric shapes the aggregator folds.
type MetricKind string

const (
	KindCounter   MetricKind = "counter"
	KindGauge     MetricKind = "gauge"
	KindHistogram MetricKind = "histogram"
)

// GaugeMode selects how a gauge event updates its series.
type GaugeMode string

const (
	GaugeSet GaugeMode = "SET"
	GaugeInc GaugeMode = "INC"
	GaugeDec GaugeMode = "DEC"
)

// MetricEvent is the ephemeral unit queued from a producer call to the
// aggregator worker. GaugeMode is only meaningful when Kind == KindGauge.
type MetricEvent struct {
	Kind      MetricKind
	Name      string
	Value     float64
	Tags      map[string]string
	GaugeMode GaugeMode
}

// SeriesID returns the deterministic identifier spec.md §3 requires: the
// bare name when there are no tags, else name + "_" + sorted "k_v" pairs
// joined by "_". Stable across aggregation windows and across processes.
func SeriesID(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte('_')
		b.WriteString(k)
		b.WriteByte('_')
		b.WriteString(tags[k])
	}
	return b.String()
}

// CounterSeries is the per-interval accumulator for one counter series.
type CounterSeries struct {
	Name  string
	Tags  map[string]string
	Value float64
}

// GaugeSeries is the last-observed value for one gauge series. Gauges carry
// their value across interval boundaries (they are not reset on tick).
type GaugeSeries struct {
	Name  string
	Tags  map[string]string
	Value float64
}

// HistogramSeries accumulates raw observations for one histogram series
// within the current interval; cleared on tick.
type HistogramSeries struct {
	Name   string
	Tags   map[string]string
	Values []float64
}

// CounterMessage is the per-series record emitted for a closed interval.
type CounterMessage struct {
	Timestamp time.Time
	Name      string
	Value     float64
	Tags      map[string]string
}

func (m CounterMessage) JSON() map[string]any {
	return map[string]any{
		"timestamp":   FormatTimestamp(m.Timestamp),
		"metric_name": m.Name,
		"value":       m.Value,
		"tags":        m.Tags,
	}
}

// GaugeMessage is the per-series record emitted for a closed interval.
type GaugeMessage struct {
	Timestamp time.Time
	Name      string
	Value     float64
	Tags      map[string]string
}

func (m GaugeMessage) JSON() map[string]any {
	return map[string]any{
		"timestamp":   FormatTimestamp(m.Timestamp),
		"metric_name": m.Name,
		"value":       m.Value,
		"tags":        m.Tags,
	}
}

// HistogramMessage is the per-series record emitted for a closed interval.
type HistogramMessage struct {
	Timestamp time.Time
	Name      string
	Values    []float64
	Tags      map[string]string
}

func (m HistogramMessage) JSON() map[string]any {
	return map[string]any{
		"timestamp":   FormatTimestamp(m.Timestamp),
		"metric_name": m.Name,
		"values":      m.Values,
		"tags":        m.Tags,
	}
}

// AggregatedBatch is the output of one closed aggregation interval: every
// series folded during that interval, keyed by kind.
type AggregatedBatch struct {
	IntervalStart time.Time
	Counters      []CounterMessage
	Gauges        []GaugeMessage
	Histograms    []HistogramMessage
}

// Empty reports whether the batch carries no series at all, in which case
// it should not be enqueued to the metric sender.
func (b AggregatedBatch) Empty() bool {
	return len(b.Counters) == 0 && len(b.Gauges) == 0 && len(b.Histograms) == 0
}
