package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrMalformedEvent marks an event whose end does not come after its start.
var ErrMalformedEvent = errors.New("malformed event")

// Event is one discrete calendar occurrence as handed over by ingestion.
// Values are never mutated once they enter an EventSet.
type Event struct {
	Start    time.Time
	End      time.Time
	Title    string
	SourceID string // originating calendar source (file name or config ID)
}

// Validate reports ErrMalformedEvent when End is not after Start.
func (e Event) Validate() error {
	if !e.End.After(e.Start) {
		return fmt.Errorf("%w: %q ends at %s, not after start %s",
			ErrMalformedEvent, e.Title, e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
	}
	return nil
}

// WeekdayIndex returns 0 for Monday through 6 for Sunday.
func (e Event) WeekdayIndex() int {
	return (int(e.Start.Weekday()) + 6) % 7
}

// EventSet is an ordered, read-only sequence of events sorted by Start.
// Events with equal Start keep the order in which they were appended.
type EventSet struct {
	events []Event
}

// NewEventSet builds a sorted set from events. The input slice is copied.
func NewEventSet(events ...Event) EventSet {
	return EventSet{}.Append(events...)
}

// Append returns a new set holding the receiver's events followed by events,
// re-sorted. The receiver is left untouched.
func (s EventSet) Append(events ...Event) EventSet {
	merged := make([]Event, 0, len(s.events)+len(events))
	merged = append(merged, s.events...)
	merged = append(merged, events...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start.Before(merged[j].Start)
	})
	return EventSet{events: merged}
}

// Len returns the number of events.
func (s EventSet) Len() int { return len(s.events) }

// Empty reports whether the set holds no events.
func (s EventSet) Empty() bool { return len(s.events) == 0 }

// At returns the i-th event.
func (s EventSet) At(i int) Event { return s.events[i] }

// Events returns a copy of the events in set order.
func (s EventSet) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Keep returns the subsequence of events for which keep returns true,
// preserving order. Already sorted, so no re-sort happens.
func (s EventSet) Keep(keep func(Event) bool) EventSet {
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return EventSet{events: out}
}

// SourceCatalog maps a source ID to its stable color identity.
type SourceCatalog struct {
	order   []string
	indexes map[string]int
	labels  map[string]string
}

// NewSourceCatalog assigns each distinct source ID the given color index.
// ids and colorIndexes must have equal length; duplicate ids keep their first index.
func NewSourceCatalog(ids []string, colorIndexes []int) SourceCatalog {
	c := SourceCatalog{
		order:   make([]string, 0, len(ids)),
		indexes: make(map[string]int, len(ids)),
		labels:  make(map[string]string, len(ids)),
	}
	for i, id := range ids {
		if _, ok := c.indexes[id]; ok {
			continue
		}
		c.order = append(c.order, id)
		c.indexes[id] = colorIndexes[i]
		c.labels[id] = SourceLabel(id)
	}
	return c
}

// ColorIndex returns the color identity of id and whether id is known.
func (c SourceCatalog) ColorIndex(id string) (int, bool) {
	idx, ok := c.indexes[id]
	return idx, ok
}

// Label returns a human-friendly legend label for id.
func (c SourceCatalog) Label(id string) string {
	if l, ok := c.labels[id]; ok {
		return l
	}
	return SourceLabel(id)
}

// SetLabel overrides the legend label of a known source.
func (c SourceCatalog) SetLabel(id, label string) {
	if _, ok := c.indexes[id]; ok && label != "" {
		c.labels[id] = label
	}
}

// IDs returns source IDs in first-seen order.
func (c SourceCatalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of sources.
func (c SourceCatalog) Len() int { return len(c.order) }

// SourceLabel derives a legend label from a source ID: the .ics extension is
// dropped, separators become spaces and the words are title-cased.
func SourceLabel(id string) string {
	base := strings.TrimSuffix(id, filepath.Ext(id))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	base = strings.TrimSpace(base)
	if base == "" {
		return id
	}
	return cases.Title(language.Und, cases.NoLower).String(base)
}

// FilterState is the control-surface selection for one layout pass.
type FilterState struct {
	// Included holds the source IDs to keep.
	Included map[string]bool
	// ShowLectures disables the lecture exclusion when true.
	ShowLectures bool
}

// NewFilterState includes every given source and shows lectures.
func NewFilterState(sourceIDs []string) FilterState {
	inc := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		inc[id] = true
	}
	return FilterState{Included: inc, ShowLectures: true}
}

// Includes reports whether id is selected.
func (f FilterState) Includes(id string) bool {
	return f.Included[id]
}

// LayoutBar is one positioned draw instruction for a renderer.
type LayoutBar struct {
	WeekdayIndex      int     `json:"weekday_index"`
	RowStart          float64 `json:"row_start"`
	RowHeight         float64 `json:"row_height"`
	StartHourFraction float64 `json:"start_hour"`
	DurationHours     float64 `json:"duration_hours"`
	SourceID          string  `json:"source_id"`
	ColorIndex        int     `json:"color_index"`
	Alpha             float64 `json:"alpha"`
	Title             string  `json:"title"`
	ShowLabelInLegend bool    `json:"show_label_in_legend"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
