package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"weekcal/internal/model"
	"weekcal/internal/schedule"
	"weekcal/internal/session"
)

var errBadWeek = errors.New("invalid week")

// view is one evaluated request.
type view struct {
	snap   session.Snapshot
	state  model.FilterState
	week   string
	result schedule.Result
}

func (s *Server) layout(r *http.Request, snap session.Snapshot) (view, error) {
	q := r.URL.Query()
	v := view{
		snap:  snap,
		state: filterFromQuery(q, snap.Catalog, s.session.DefaultFilter(snap)),
		week:  q.Get("week"),
	}

	p := s.session.Pipeline(snap)
	events := snap.Events
	if v.week != "" {
		anchor, err := time.ParseInLocation("2006-01-02", v.week, s.loc)
		if err != nil {
			return v, fmt.Errorf("%w: %q, want YYYY-MM-DD", errBadWeek, v.week)
		}
		p.Anchor = anchor
		if events, err = s.session.Week(snap, anchor); err != nil {
			return v, err
		}
	}

	start := time.Now()
	v.result = p.Run(events, v.state)
	s.metrics.ObserveLayout(v.result, time.Since(start))
	return v, nil
}

// filterFromQuery derives the filter state from query parameters.
//
// Without source or form parameters every cataloged source is included.
// A submitted form (form=1) with no source boxes checked includes nothing.
// lectures takes the last value so a hidden "0" can precede a checkbox "1".
func filterFromQuery(q url.Values, cat model.SourceCatalog, def model.FilterState) model.FilterState {
	st := model.FilterState{
		Included:     make(map[string]bool, cat.Len()),
		ShowLectures: def.ShowLectures,
	}

	selected, explicit := q["source"]
	if q.Get("form") != "" {
		explicit = true
	}
	if explicit {
		for _, id := range selected {
			if _, ok := cat.ColorIndex(id); ok {
				st.Included[id] = true
			}
		}
	} else {
		for id, on := range def.Included {
			st.Included[id] = on
		}
	}
	for _, id := range q["exclude"] {
		delete(st.Included, id)
	}

	if vals := q["lectures"]; len(vals) > 0 {
		if on, err := strconv.ParseBool(vals[len(vals)-1]); err == nil {
			st.ShowLectures = on
		}
	}
	return st
}
