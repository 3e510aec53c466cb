package ics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

// Source is one calendar collection: a local file or a subscription URL.
type Source struct {
	ID   string
	Name string
	Path string
	URL  string
}

// DiscoverDir lists the *.ics files of dir as sources ordered by file name.
// The ID of each source is its file name.
func DiscoverDir(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ics: discover %s: %w", dir, err)
	}
	var out []Source
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".ics") {
			continue
		}
		out = append(out, Source{ID: e.Name(), Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SourceError reports a source that could not be read or parsed.
type SourceError struct {
	ID  string
	Err error
}

func (e *SourceError) Error() string { return e.Err.Error() }

func (e *SourceError) Unwrap() error { return e.Err }

// Loader reads, parses and expands sources into discrete events.
type Loader struct {
	Fetcher *Fetcher

	Location    *time.Location
	HorizonDays int
	ShowAllDay  bool

	// Anchor, when set, starts recurrence expansion there instead of at the earliest event.
	Anchor time.Time
}

// LoadResult is the outcome of Load.
type LoadResult struct {
	Events    []model.Event
	Truncated []string
	// Errors collects per-source failures; the other sources still load.
	Errors []error
	// Rejected counts events dropped as malformed.
	Rejected int
	// Parsed keeps the unexpanded VEVENTs so other weeks can be expanded
	// without reading the sources again.
	Parsed []ParsedEvent
}

// Expansion is the outcome of Expand.
type Expansion struct {
	Events    []model.Event
	Truncated []string
	Rejected  int
}

// Load reads every source. One failing source does not abort the rest.
func (l *Loader) Load(ctx context.Context, sources []Source) (LoadResult, error) {
	var res LoadResult

	parsed := make([]ParsedEvent, 0)
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		body, err := l.read(ctx, src)
		if err != nil {
			res.Errors = append(res.Errors, &SourceError{ID: src.ID, Err: err})
			appLog.Error("ics source unavailable", err, "id", src.ID)
			continue
		}
		events, err := ParseICS(src, body)
		if err != nil {
			res.Errors = append(res.Errors, &SourceError{ID: src.ID, Err: err})
			appLog.Error("ics source unreadable", err, "id", src.ID)
			continue
		}
		if !l.ShowAllDay {
			events = dropAllDay(events)
		}
		parsed = append(parsed, events...)
	}
	res.Parsed = parsed

	exp, err := l.Expand(parsed, l.Anchor)
	if err != nil {
		return res, err
	}
	res.Events = exp.Events
	res.Truncated = exp.Truncated
	res.Rejected = exp.Rejected

	appLog.Info("calendars loaded",
		"source_count", len(sources),
		"event_count", len(res.Events),
		"rejected", res.Rejected,
		"failed_sources", len(res.Errors),
	)
	return res, nil
}

// Expand turns parsed VEVENTs into validated discrete events. A zero anchor
// starts recurrence expansion at the earliest event; otherwise it starts at
// anchor and covers HorizonDays from there.
func (l *Loader) Expand(parsed []ParsedEvent, anchor time.Time) (Expansion, error) {
	var out Expansion

	exp, err := ExpandEvents(parsed, ExpandConfig{
		DisplayLocation: l.Location,
		RangeStart:      anchor,
		HorizonDays:     l.HorizonDays,
	})
	if err != nil {
		return out, err
	}
	out.Truncated = exp.TruncatedEvents

	out.Events = make([]model.Event, 0, len(exp.Events))
	for _, ev := range exp.Events {
		if err := ev.Validate(); err != nil {
			out.Rejected++
			appLog.Warn("event rejected", "id", ev.SourceID, "reason", err.Error())
			continue
		}
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

func (l *Loader) read(ctx context.Context, src Source) ([]byte, error) {
	switch {
	case src.Path != "":
		body, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("ics: read %s: %w", src.ID, err)
		}
		return body, nil
	case src.URL != "":
		if l.Fetcher == nil {
			return nil, fmt.Errorf("ics: %s: no fetcher configured for URL sources", src.ID)
		}
		body, _, err := l.Fetcher.Fetch(ctx, src)
		return body, err
	default:
		return nil, errors.New("ics: source " + src.ID + " has neither path nor url")
	}
}

func dropAllDay(events []ParsedEvent) []ParsedEvent {
	out := events[:0]
	for _, ev := range events {
		if !ev.AllDay {
			out = append(out, ev)
		}
	}
	return out
}
