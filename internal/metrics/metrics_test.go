package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekcal/internal/metrics"
	"weekcal/internal/model"
	"weekcal/internal/schedule"
)

func TestObserveLoadAndLayout(t *testing.T) {
	m := metrics.New()

	m.ObserveLoad(12, 1, 0, nil)
	m.ObserveLoad(0, 0, 0, errors.New("boom"))
	m.ObserveLayout(schedule.Result{Bars: []model.LayoutBar{{}, {}}}, time.Millisecond)
	m.ObserveLayout(schedule.Result{Reason: schedule.ErrEmptySource}, time.Millisecond)
	m.ObserveLayout(schedule.Result{Reason: schedule.ErrEmptyFilterResult}, time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	series := map[string]int{}
	for _, f := range families {
		series[f.GetName()] = len(f.GetMetric())
		for _, metric := range f.GetMetric() {
			key := f.GetName()
			for _, l := range metric.GetLabel() {
				key += "/" + l.GetValue()
			}
			switch {
			case metric.GetGauge() != nil:
				values[key] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				values[key] = metric.GetCounter().GetValue()
			}
		}
	}

	assert.Equal(t, 12.0, values["weekcal_events_loaded"])
	assert.Equal(t, 1.0, values["weekcal_events_rejected"])
	assert.Equal(t, 1.0, values["weekcal_loads_total/ok"])
	assert.Equal(t, 1.0, values["weekcal_loads_total/error"])
	assert.Equal(t, 1.0, values["weekcal_layout_passes_total/bars"])
	assert.Equal(t, 1.0, values["weekcal_layout_passes_total/no_source"])
	assert.Equal(t, 1.0, values["weekcal_layout_passes_total/filtered_empty"])

	assert.Equal(t, 3, series["weekcal_layout_passes_total"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveLoad(1, 0, 0, nil)
		m.ObserveLayout(schedule.Result{}, time.Second)
	})
	assert.NotNil(t, m.Handler())
}
