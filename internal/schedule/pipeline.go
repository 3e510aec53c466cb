package schedule

import (
	"errors"
	"time"

	"weekcal/internal/model"
)

var (
	// ErrEmptySource means no events were loaded at all.
	ErrEmptySource = errors.New("no calendar events available")
	// ErrEmptyFilterResult means events exist but none survive week selection and filtering.
	ErrEmptyFilterResult = errors.New("no events to display")
	// ErrMalformedEvent is model.ErrMalformedEvent.
	ErrMalformedEvent = model.ErrMalformedEvent
)

// Pipeline runs week selection, filtering and layout over a loaded set.
type Pipeline struct {
	Catalog model.SourceCatalog

	// Exclude is the category predicate applied when lectures are hidden.
	// Nil means TitlePrefix(DefaultLecturePrefix).
	Exclude Predicate

	// Anchor, when set, replaces the earliest event date as the first day of the week.
	Anchor time.Time
}

// Result is the outcome of one pipeline pass.
type Result struct {
	Bars     []model.LayoutBar
	Week     Window
	Selected int // events inside the week
	Filtered int // events surviving the filter

	// Reason is ErrEmptySource or ErrEmptyFilterResult when Bars is empty.
	Reason error
}

// Empty reports whether nothing is to be drawn.
func (r Result) Empty() bool { return len(r.Bars) == 0 }

// Run executes one pass. It never fails: emptiness is reported via Reason.
func (p Pipeline) Run(events model.EventSet, state model.FilterState) Result {
	var res Result

	var week model.EventSet
	if p.Anchor.IsZero() {
		week, res.Week = SelectWeek(events)
	} else {
		week, res.Week = SelectWeekFrom(events, p.Anchor)
	}
	res.Selected = week.Len()

	if events.Empty() {
		res.Reason = ErrEmptySource
		res.Bars = []model.LayoutBar{}
		return res
	}

	exclude := Never
	if !state.ShowLectures {
		exclude = p.Exclude
		if exclude == nil {
			exclude = TitlePrefix(DefaultLecturePrefix)
		}
	}
	filtered := Filter(week, state.Included, exclude)
	res.Filtered = filtered.Len()

	if filtered.Empty() {
		res.Reason = ErrEmptyFilterResult
		res.Bars = []model.LayoutBar{}
		return res
	}

	res.Bars = Layout(filtered, p.Catalog)
	if len(res.Bars) == 0 {
		// Everything left fell on a weekend.
		res.Reason = ErrEmptyFilterResult
	}
	return res
}
