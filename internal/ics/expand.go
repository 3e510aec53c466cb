package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone every event is converted to. Nil means time.Local.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the instances generated from RRULEs.
	// A zero RangeStart means the display-zone date of the earliest event;
	// a zero RangeEnd means HorizonDays after RangeStart plus one day, so
	// the last day is covered whatever zone the source uses.
	RangeStart  time.Time
	RangeEnd    time.Time
	HorizonDays int

	// MaxOccurrencesPerEvent caps one RRULE's instances. Zero means 5000.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the discrete events and the UIDs that hit the cap.
type ExpandResult struct {
	Events          []model.Event
	TruncatedEvents []string
}

// ExpandEvents turns parsed VEVENTs into discrete events. Non-recurring
// events pass through whatever their date; recurring ones yield the
// instances inside the range, minus EXDATEs, with RECURRENCE-ID overrides
// applied. Output is ordered by source, then UID, then start.
func ExpandEvents(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	if cfg.RangeStart.IsZero() {
		cfg.RangeStart = earliestDate(events, cfg.DisplayLocation)
	} else {
		cfg.RangeStart = midnight(cfg.RangeStart.In(cfg.DisplayLocation), cfg.DisplayLocation)
	}
	if cfg.RangeEnd.IsZero() {
		days := cfg.HorizonDays
		if days <= 0 {
			days = 7
		}
		cfg.RangeEnd = cfg.RangeStart.AddDate(0, 0, days+1)
	}
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}

	type key struct{ source, uid string }
	var order []key
	bases := make(map[key][]ParsedEvent)
	overrides := make(map[key][]ParsedEvent)

	for _, ev := range events {
		k := key{ev.Source.ID, ev.UID}
		if ev.IsOverride() {
			overrides[k] = append(overrides[k], ev)
			continue
		}
		if _, seen := bases[k]; !seen {
			order = append(order, k)
		}
		bases[k] = append(bases[k], ev)
	}

	out := make([]model.Event, 0, len(events))
	for _, k := range order {
		truncated := false
		for _, ev := range bases[k] {
			if ev.RawRRule == "" {
				out = append(out, toEvent(ev, ev.Start, ev.End, cfg.DisplayLocation))
				continue
			}
			occ, hitCap := expandRecurring(ev, overrides[k], cfg)
			truncated = truncated || hitCap
			out = append(out, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, k.uid)
			appLog.Warn("expand: occurrences truncated", "id", k.source, "uid", k.uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	result.Events = out
	return result, nil
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "id", ev.Source.ID, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	starts := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]model.Event, 0, len(starts))
	for _, s := range starts {
		if o, ok := findOverride(overrides, s); ok {
			out = append(out, toEvent(o, o.Start, o.End, cfg.DisplayLocation))
			continue
		}
		out = append(out, toEvent(ev, s, s.Add(dur), cfg.DisplayLocation))
	}
	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func toEvent(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Event {
	s, e := start.In(loc), end.In(loc)
	if ev.AllDay {
		// All-day dates keep their calendar day in the display zone.
		s = midnight(start, loc)
		e = midnight(end, loc)
	}
	return model.Event{
		Start:    s,
		End:      e,
		Title:    ev.Summary,
		SourceID: ev.Source.ID,
	}
}

// earliestDate is midnight, in loc, of the date the earliest event starts on there.
func earliestDate(events []ParsedEvent, loc *time.Location) time.Time {
	if len(events) == 0 {
		return time.Time{}
	}
	starts := make([]time.Time, 0, len(events))
	for _, ev := range events {
		starts = append(starts, ev.Start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	first := starts[0].In(loc)
	return midnight(first, loc)
}
