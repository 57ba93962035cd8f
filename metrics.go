package vigilant

import "github.com/vigilant-run/vigilant-go/internal/types"

// Counter adds value to the named counter series for the current
// aggregation interval. Fails with ErrNotInitialized if Init has not been
// called.
func Counter(name string, value float64, tags map[string]string) error {
	return dispatchMetric(types.MetricEvent{
		Kind:  types.KindCounter,
		Name:  name,
		Value: value,
		Tags:  tags,
	})
}

// GaugeSet sets the named gauge series to value.
func GaugeSet(name string, value float64, tags map[string]string) error {
	return dispatchMetric(types.MetricEvent{
		Kind:      types.KindGauge,
		Name:      name,
		Value:     value,
		Tags:      tags,
		GaugeMode: types.GaugeSet,
	})
}

// GaugeInc increments the named gauge series by value.
func GaugeInc(name string, value float64, tags map[string]string) error {
	return dispatchMetric(types.MetricEvent{
		Kind:      types.KindGauge,
		Name:      name,
		Value:     value,
		Tags:      tags,
		GaugeMode: types.GaugeInc,
	})
}

// GaugeDec decrements the named gauge series by value.
func GaugeDec(name string, value float64, tags map[string]string) error {
	return dispatchMetric(types.MetricEvent{
		Kind:      types.KindGauge,
		Name:      name,
		Value:     value,
		Tags:      tags,
		GaugeMode: types.GaugeDec,
	})
}

// Histogram appends value as an observation of the named histogram series.
func Histogram(name string, value float64, tags map[string]string) error {
	return dispatchMetric(types.MetricEvent{
		Kind:  types.KindHistogram,
		Name:  name,
		Value: value,
		Tags:  tags,
	})
}

func dispatchMetric(event types.MetricEvent) error {
	singletonMu.Lock()
	inst := current
	singletonMu.Unlock()

	if inst == nil {
		return ErrNotInitialized
	}
	if inst.cfg.noop {
		return nil
	}
	inst.agg.Add(event)
	return nil
}
