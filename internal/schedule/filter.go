package schedule

import (
	"strings"

	"weekcal/internal/model"
)

// DefaultLecturePrefix marks lecture titles ("W" as in "Wykład").
const DefaultLecturePrefix = "W"

// Predicate reports whether an event belongs to an excluded category.
type Predicate func(model.Event) bool

// TitlePrefix matches events whose title starts with prefix (case-sensitive).
// An empty prefix matches nothing.
func TitlePrefix(prefix string) Predicate {
	return func(ev model.Event) bool {
		return prefix != "" && strings.HasPrefix(ev.Title, prefix)
	}
}

// Never matches no event.
func Never(model.Event) bool { return false }

// Filter keeps events whose source is included and which exclude does not
// match. Order is preserved. A nil exclude keeps every included event.
func Filter(events model.EventSet, included map[string]bool, exclude Predicate) model.EventSet {
	if exclude == nil {
		exclude = Never
	}
	return events.Keep(func(ev model.Event) bool {
		return included[ev.SourceID] && !exclude(ev)
	})
}
