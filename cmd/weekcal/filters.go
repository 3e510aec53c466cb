package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

// filterFlags are the control-panel flags shared by render and snapshot.
type filterFlags struct {
	sources  []string
	excludes []string
	hide     bool
	show     bool
	week     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.sources, "source", nil, "include only these source IDs (repeatable)")
	cmd.Flags().StringSliceVar(&f.excludes, "exclude-source", nil, "drop these source IDs (repeatable)")
	cmd.Flags().BoolVar(&f.hide, "hide-lectures", false, "hide lecture events")
	cmd.Flags().BoolVar(&f.show, "show-lectures", false, "show lecture events")
	cmd.Flags().StringVar(&f.week, "week", "", `first day of the week: YYYY-MM-DD or a phrase like "next monday"`)
	cmd.MarkFlagsMutuallyExclusive("hide-lectures", "show-lectures")
}

// state applies the flags on top of def.
func (f *filterFlags) state(cat model.SourceCatalog, def model.FilterState) model.FilterState {
	st := model.FilterState{
		Included:     make(map[string]bool, cat.Len()),
		ShowLectures: def.ShowLectures,
	}
	if len(f.sources) > 0 {
		for _, id := range f.sources {
			if _, ok := cat.ColorIndex(id); !ok {
				appLog.Warn("unknown source ignored", "id", id)
				continue
			}
			st.Included[id] = true
		}
	} else {
		for id, on := range def.Included {
			st.Included[id] = on
		}
	}
	for _, id := range f.excludes {
		delete(st.Included, id)
	}
	switch {
	case f.hide:
		st.ShowLectures = false
	case f.show:
		st.ShowLectures = true
	}
	return st
}

// query encodes the flags as web query parameters.
func (f *filterFlags) query(anchor time.Time) url.Values {
	q := url.Values{}
	for _, id := range f.sources {
		q.Add("source", id)
	}
	for _, id := range f.excludes {
		q.Add("exclude", id)
	}
	switch {
	case f.hide:
		q.Set("lectures", "0")
	case f.show:
		q.Set("lectures", "1")
	}
	if !anchor.IsZero() {
		q.Set("week", anchor.Format("2006-01-02"))
	}
	return q
}

// parseWeek resolves --week. ISO dates are taken as is; phrases are parsed
// relative to now and snapped to the Monday of their week.
func parseWeek(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, now.In(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("week %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("week %q: not a date", s)
	}
	return mondayOf(r.Time), nil
}

func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}
