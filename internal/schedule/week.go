package schedule

import (
	"time"

	"weekcal/internal/model"
)

// WeekDays is the length of the representative window.
const WeekDays = 7

// Window is an inclusive range of calendar dates.
type Window struct {
	First time.Time // first civil date, as midnight UTC
	Last  time.Time // last civil date, as midnight UTC
}

// Contains reports whether the calendar date of t lies within the window.
func (w Window) Contains(t time.Time) bool {
	d := dateOf(t)
	return !d.Before(w.First) && !d.After(w.Last)
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool { return w.First.IsZero() }

// WeekOf returns the seven-day window starting at the date of t.
func WeekOf(t time.Time) Window {
	first := dateOf(t)
	return Window{First: first, Last: first.AddDate(0, 0, WeekDays-1)}
}

// SelectWeek keeps the events whose start date falls within the seven days
// beginning at the date of the earliest event. An empty set yields an empty
// set and a zero Window.
func SelectWeek(events model.EventSet) (model.EventSet, Window) {
	if events.Empty() {
		return model.EventSet{}, Window{}
	}
	return SelectWeekFrom(events, events.At(0).Start)
}

// SelectWeekFrom is SelectWeek with an explicit first day.
func SelectWeekFrom(events model.EventSet, anchor time.Time) (model.EventSet, Window) {
	w := WeekOf(anchor)
	return events.Keep(func(ev model.Event) bool {
		return w.Contains(ev.Start)
	}), w
}

// dateOf returns the civil date of t, read in t's own location, as midnight UTC.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
