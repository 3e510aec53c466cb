package schedule_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekcal/internal/model"
	"weekcal/internal/schedule"
)

const eps = 1e-9

// at returns 2024-03-(day) hh:mm UTC; 2024-03-04 is a Monday.
func at(day, hh, mm int) time.Time {
	return time.Date(2024, time.March, day, hh, mm, 0, 0, time.UTC)
}

func ev(title, src string, start, end time.Time) model.Event {
	return model.Event{Start: start, End: end, Title: title, SourceID: src}
}

func includeAll(ids ...string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func TestEventSetSortIsStable(t *testing.T) {
	set := model.NewEventSet(
		ev("b", "x", at(5, 9, 0), at(5, 10, 0)),
		ev("a1", "x", at(4, 9, 0), at(4, 10, 0)),
		ev("a2", "y", at(4, 9, 0), at(4, 10, 0)),
	)
	set = set.Append(ev("a3", "z", at(4, 9, 0), at(4, 11, 0)))

	var titles []string
	for _, e := range set.Events() {
		titles = append(titles, e.Title)
	}
	assert.Equal(t, []string{"a1", "a2", "a3", "b"}, titles)
}

func TestSelectWeekSpanningThreeWeeks(t *testing.T) {
	set := model.NewEventSet(
		ev("w1-mon", "s", at(4, 8, 0), at(4, 9, 0)),
		ev("w1-sun", "s", at(10, 23, 0), at(10, 23, 30)),
		ev("w2-mon", "s", at(11, 0, 0), at(11, 1, 0)),
		ev("w3-mon", "s", at(18, 8, 0), at(18, 9, 0)),
	)

	week, w := schedule.SelectWeek(set)
	require.Equal(t, 2, week.Len())
	assert.Equal(t, "w1-mon", week.At(0).Title)
	assert.Equal(t, "w1-sun", week.At(1).Title)
	assert.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), w.First)
	assert.Equal(t, time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), w.Last)
}

func TestSelectWeekFromAnchor(t *testing.T) {
	set := model.NewEventSet(
		ev("w1", "s", at(4, 8, 0), at(4, 9, 0)),
		ev("w2", "s", at(12, 8, 0), at(12, 9, 0)),
	)
	week, _ := schedule.SelectWeekFrom(set, at(11, 15, 0))
	require.Equal(t, 1, week.Len())
	assert.Equal(t, "w2", week.At(0).Title)
}

func TestScenarioAOverlapInSameHour(t *testing.T) {
	set := model.NewEventSet(
		ev("first", "plan.ics", at(4, 9, 10), at(4, 10, 0)),
		ev("second", "plan.ics", at(4, 9, 30), at(4, 10, 30)),
	)
	cat := schedule.AssignColors([]string{"plan.ics"}, 10)

	bars := schedule.Layout(set, cat)
	require.Len(t, bars, 2)

	assert.Equal(t, 0, bars[0].WeekdayIndex)
	assert.InDelta(t, 0.4, bars[0].RowHeight, eps)
	assert.InDelta(t, 0.4, bars[1].RowHeight, eps)
	assert.InDelta(t, -0.4, bars[0].RowStart, eps)
	assert.InDelta(t, 0.0, bars[1].RowStart, eps)

	assert.InDelta(t, 9+10.0/60, bars[0].StartHourFraction, eps)
	assert.InDelta(t, 50.0/60, bars[0].DurationHours, eps)
	assert.InDelta(t, 0.6, bars[0].Alpha, eps)

	assert.True(t, bars[0].ShowLabelInLegend)
	assert.False(t, bars[1].ShowLabelInLegend)
}

func TestScenarioBLectureFilteredOut(t *testing.T) {
	set := model.NewEventSet(
		ev("Wykład X", "plan.ics", at(4, 9, 0), at(4, 10, 30)),
		ev("Ćwiczenia Y", "plan.ics", at(4, 11, 0), at(4, 12, 30)),
	)

	filtered := schedule.Filter(set, includeAll("plan.ics"), schedule.TitlePrefix("W"))
	require.Equal(t, 1, filtered.Len())

	bars := schedule.Layout(filtered, schedule.AssignColors([]string{"plan.ics"}, 10))
	require.Len(t, bars, 1)
	assert.Equal(t, "Ćwiczenia Y", bars[0].Title)
}

func TestTitlePrefixIsCaseSensitive(t *testing.T) {
	p := schedule.TitlePrefix("W")
	assert.True(t, p(model.Event{Title: "Wykład"}))
	assert.False(t, p(model.Event{Title: "wykład"}))
	assert.False(t, schedule.TitlePrefix("")(model.Event{Title: "Wykład"}))
}

func TestScenarioCEmptyInput(t *testing.T) {
	week, w := schedule.SelectWeek(model.EventSet{})
	assert.True(t, week.Empty())
	assert.True(t, w.IsZero())

	bars := schedule.Layout(model.EventSet{}, model.SourceCatalog{})
	assert.Empty(t, bars)

	res := schedule.Pipeline{}.Run(model.EventSet{}, model.NewFilterState(nil))
	assert.True(t, res.Empty())
	assert.ErrorIs(t, res.Reason, schedule.ErrEmptySource)
}

func TestScenarioDColorsStableAcrossToggles(t *testing.T) {
	sources := []string{"a.ics", "b.ics", "c.ics"}
	cat := schedule.AssignColors(sources, 10)
	set := model.NewEventSet(
		ev("A", "a.ics", at(5, 10, 0), at(5, 11, 0)),
		ev("B", "b.ics", at(5, 10, 15), at(5, 11, 0)),
		ev("C", "c.ics", at(6, 12, 0), at(6, 13, 0)),
	)
	p := schedule.Pipeline{Catalog: cat}

	all := p.Run(set, model.NewFilterState(sources))
	state := model.NewFilterState(sources)
	state.Included["c.ics"] = false
	without := p.Run(set, state)

	require.Len(t, all.Bars, 3)
	require.Len(t, without.Bars, 2)
	assert.NotEqual(t, all.Bars[0].ColorIndex, all.Bars[1].ColorIndex)
	assert.Equal(t, all.Bars[0].ColorIndex, without.Bars[0].ColorIndex)
	assert.Equal(t, all.Bars[1].ColorIndex, without.Bars[1].ColorIndex)
}

func TestWeekendEventsAreDropped(t *testing.T) {
	set := model.NewEventSet(
		ev("sat", "s", at(9, 10, 0), at(9, 11, 0)),
		ev("sun", "s", at(10, 10, 0), at(10, 11, 0)),
	)
	assert.Empty(t, schedule.Layout(set, schedule.AssignColors([]string{"s"}, 10)))

	res := schedule.Pipeline{}.Run(set, model.NewFilterState([]string{"s"}))
	assert.ErrorIs(t, res.Reason, schedule.ErrEmptyFilterResult)
}

func TestHourBucketsFollowStartHourOnly(t *testing.T) {
	set := model.NewEventSet(
		ev("early", "s", at(6, 8, 55), at(6, 9, 30)),
		ev("late", "s", at(6, 9, 5), at(6, 9, 45)),
		ev("later", "s", at(6, 9, 50), at(6, 10, 10)),
	)
	bars := schedule.Layout(set, schedule.AssignColors([]string{"s"}, 10))
	require.Len(t, bars, 3)

	assert.InDelta(t, 0.8, bars[0].RowHeight, eps)
	assert.InDelta(t, 0.55, bars[0].Alpha, eps)
	assert.InDelta(t, 0.4, bars[1].RowHeight, eps)
	assert.InDelta(t, 0.4, bars[2].RowHeight, eps)
	assert.InDelta(t, 2-0.4, bars[1].RowStart, eps)
	assert.InDelta(t, 2.0, bars[2].RowStart, eps)
}

func TestLayoutProperties(t *testing.T) {
	var events []model.Event
	for day := 4; day <= 10; day++ {
		for i := range day {
			start := at(day, 7+i%5, (i*7)%60)
			events = append(events, ev("e", []string{"a", "b", "c"}[i%3], start, start.Add(75*time.Minute)))
		}
	}
	set := model.NewEventSet(events...)
	cat := schedule.AssignColors([]string{"a", "b", "c"}, 10)
	bars := schedule.Layout(set, cat)
	require.NotEmpty(t, bars)

	type key struct{ wd, hour int }
	sums := map[key]float64{}
	legend := map[string]int{}
	for _, b := range bars {
		assert.Less(t, b.WeekdayIndex, schedule.GridDays)
		lo := float64(b.WeekdayIndex) - 0.4
		hi := float64(b.WeekdayIndex) + 0.4
		assert.GreaterOrEqual(t, b.RowStart, lo-eps)
		assert.Less(t, b.RowStart, hi)
		assert.LessOrEqual(t, b.RowStart+b.RowHeight, hi+eps)
		assert.LessOrEqual(t, b.Alpha, 1.0)
		sums[key{b.WeekdayIndex, b.Start.Hour()}] += b.RowHeight
		if b.ShowLabelInLegend {
			legend[b.SourceID]++
		}
	}
	for k, s := range sums {
		assert.InDelta(t, 0.8, s, eps, "bucket %v", k)
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, legend)

	again, err := json.Marshal(schedule.Layout(set, cat))
	require.NoError(t, err)
	first, err := json.Marshal(bars)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestDenseBucketAlphaSaturates(t *testing.T) {
	var events []model.Event
	for i := range 12 {
		start := at(7, 13, i*4)
		events = append(events, ev("x", "s", start, start.Add(time.Hour)))
	}
	bars := schedule.Layout(model.NewEventSet(events...), schedule.AssignColors([]string{"s"}, 10))
	require.Len(t, bars, 12)
	for _, b := range bars {
		assert.InDelta(t, 1.0, b.Alpha, eps)
	}
}

func TestDurationWrapsAroundMidnight(t *testing.T) {
	assert.InDelta(t, 2.0, schedule.DurationHours(ev("n", "s", at(4, 23, 0), at(5, 1, 0))), eps)
	assert.InDelta(t, 0.0, schedule.DurationHours(ev("d", "s", at(4, 9, 0), at(5, 9, 0))), eps)
	assert.InDelta(t, 1.5, schedule.DurationHours(ev("o", "s", at(4, 9, 0), at(4, 10, 30))), eps)
}

func TestUncatalogedSource(t *testing.T) {
	set := model.NewEventSet(ev("x", "ghost", at(4, 9, 0), at(4, 10, 0)))
	bars := schedule.Layout(set, schedule.AssignColors([]string{"a"}, 10))
	require.Len(t, bars, 1)
	assert.Equal(t, schedule.UncatalogedColor, bars[0].ColorIndex)
}

func TestPipelineHidesLecturesWithCustomPredicate(t *testing.T) {
	set := model.NewEventSet(
		ev("L: algebra", "s", at(4, 9, 0), at(4, 10, 0)),
		ev("Wykład", "s", at(4, 11, 0), at(4, 12, 0)),
	)
	p := schedule.Pipeline{
		Catalog: schedule.AssignColors([]string{"s"}, 10),
		Exclude: schedule.TitlePrefix("L:"),
	}
	state := model.NewFilterState([]string{"s"})
	state.ShowLectures = false

	res := p.Run(set, state)
	require.Len(t, res.Bars, 1)
	assert.Equal(t, "Wykład", res.Bars[0].Title)
	assert.Equal(t, 2, res.Selected)
	assert.Equal(t, 1, res.Filtered)
	assert.NoError(t, res.Reason)
}

func TestPipelineFilteredToNothing(t *testing.T) {
	set := model.NewEventSet(ev("x", "s", at(4, 9, 0), at(4, 10, 0)))
	res := schedule.Pipeline{}.Run(set, model.NewFilterState(nil))
	assert.True(t, res.Empty())
	assert.ErrorIs(t, res.Reason, schedule.ErrEmptyFilterResult)
}
