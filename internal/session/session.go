package session

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"weekcal/internal/config"
	"weekcal/internal/ics"
	appLog "weekcal/internal/log"
	"weekcal/internal/metrics"
	"weekcal/internal/model"
	"weekcal/internal/schedule"
)

// ErrNotLoaded is returned by Snapshot before the first successful Reload.
var ErrNotLoaded = errors.New("session: calendars not loaded yet")

// Snapshot is one loaded, immutable view of all calendars.
type Snapshot struct {
	Events   model.EventSet
	Catalog  model.SourceCatalog
	Sources  []ics.Source
	LoadedAt time.Time

	// Failed lists the IDs of sources that could not be read.
	Failed    []string
	Rejected  int
	Truncated []string

	parsed []ics.ParsedEvent
	anchor time.Time
}

// Counts returns the number of events per source ID.
func (s Snapshot) Counts() map[string]int {
	out := make(map[string]int, s.Catalog.Len())
	for _, ev := range s.Events.Events() {
		out[ev.SourceID]++
	}
	return out
}

// Session owns the current Snapshot and replaces it on Reload.
type Session struct {
	cfg     *config.Config
	loc     *time.Location
	loader  *ics.Loader
	metrics *metrics.Metrics

	mu     sync.RWMutex
	snap   Snapshot
	loaded bool

	reloadMu sync.Mutex
}

// New creates a session for cfg. m may be nil.
func New(cfg *config.Config, m *metrics.Metrics) (*Session, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg: cfg,
		loc: loc,
		loader: &ics.Loader{
			Fetcher:     ics.NewFetcher(cfg.CacheDir),
			Location:    loc,
			HorizonDays: cfg.HorizonDays,
			ShowAllDay:  cfg.ShowAllDay,
		},
		metrics: m,
	}, nil
}

// Location is the display zone events are converted to.
func (s *Session) Location() *time.Location { return s.loc }

// SetAnchor makes recurrence expansion start at anchor instead of the
// earliest event. It applies from the next Reload.
func (s *Session) SetAnchor(anchor time.Time) {
	s.reloadMu.Lock()
	s.loader.Anchor = anchor
	s.reloadMu.Unlock()
}

// Sources resolves the configured sources followed by those discovered in
// CalendarDir. Duplicate IDs keep the first entry. A missing directory is
// not an error.
func Sources(cfg *config.Config) ([]ics.Source, error) {
	out := make([]ics.Source, 0, len(cfg.Sources))
	seen := make(map[string]bool)
	add := func(src ics.Source) {
		if src.ID == "" || seen[src.ID] {
			return
		}
		seen[src.ID] = true
		out = append(out, src)
	}

	for _, sc := range cfg.Sources {
		add(ics.Source{ID: sc.ID, Name: sc.Name, Path: sc.Path, URL: sc.URL})
	}

	if cfg.CalendarDir != "" {
		found, err := ics.DiscoverDir(cfg.CalendarDir)
		switch {
		case err == nil:
			for _, src := range found {
				add(src)
			}
		case errors.Is(err, fs.ErrNotExist):
			appLog.Warn("calendar directory missing", "dir", cfg.CalendarDir)
		default:
			return out, err
		}
	}
	return out, nil
}

// Reload reads every source and swaps in a new snapshot. Concurrent calls
// are serialized. On failure the previous snapshot stays in place.
func (s *Session) Reload(ctx context.Context) (Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	sources, err := Sources(s.cfg)
	if err != nil {
		s.metrics.ObserveLoad(0, 0, 0, err)
		return Snapshot{}, err
	}

	res, err := s.loader.Load(ctx, sources)
	if err != nil {
		s.metrics.ObserveLoad(0, 0, 0, err)
		return Snapshot{}, err
	}

	snap := Snapshot{
		Events:    model.NewEventSet(res.Events...),
		Catalog:   BuildCatalog(sources, res.Events),
		Sources:   sources,
		LoadedAt:  time.Now(),
		Rejected:  res.Rejected,
		Truncated: res.Truncated,
		parsed:    res.Parsed,
		anchor:    s.loader.Anchor,
	}
	for _, e := range res.Errors {
		var se *ics.SourceError
		if errors.As(e, &se) {
			snap.Failed = append(snap.Failed, se.ID)
		}
	}

	s.mu.Lock()
	s.snap = snap
	s.loaded = true
	s.mu.Unlock()

	s.metrics.ObserveLoad(snap.Events.Len(), snap.Rejected, len(res.Errors), nil)
	return snap, nil
}

// Snapshot returns the current snapshot.
func (s *Session) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return Snapshot{}, ErrNotLoaded
	}
	return s.snap, nil
}

// Week returns the events of snap with recurrences expanded from anchor.
// A zero anchor, or the anchor snap was loaded with, returns snap.Events.
func (s *Session) Week(snap Snapshot, anchor time.Time) (model.EventSet, error) {
	if anchor.IsZero() || anchor.Equal(snap.anchor) {
		return snap.Events, nil
	}
	exp, err := s.loader.Expand(snap.parsed, anchor)
	if err != nil {
		return model.EventSet{}, err
	}
	return model.NewEventSet(exp.Events...), nil
}

// Pipeline returns a pipeline bound to snap's catalog and the configured
// lecture predicate.
func (s *Session) Pipeline(snap Snapshot) schedule.Pipeline {
	return schedule.Pipeline{
		Catalog: snap.Catalog,
		Exclude: schedule.TitlePrefix(s.cfg.LecturePrefix),
	}
}

// DefaultFilter includes every cataloged source and applies the configured
// lecture toggle.
func (s *Session) DefaultFilter(snap Snapshot) model.FilterState {
	st := model.NewFilterState(snap.Catalog.IDs())
	st.ShowLectures = s.cfg.ShowLectures
	return st
}

// BuildCatalog assigns colors to the sources in order, then to any event
// source not among them in first-seen order. Legend labels come from the
// source names where set.
func BuildCatalog(sources []ics.Source, events []model.Event) model.SourceCatalog {
	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, src.ID)
	}
	for _, ev := range events {
		ids = append(ids, ev.SourceID)
	}
	cat := schedule.AssignColors(ids, schedule.Tab10.Len())
	for _, src := range sources {
		cat.SetLabel(src.ID, src.Name)
	}
	return cat
}

// StartRefresh reloads the session on the given cron schedule until ctx is
// done. The returned function stops the scheduler and waits for a running
// reload to finish.
func (s *Session) StartRefresh(ctx context.Context, spec string) (func(), error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := s.Reload(ctx); err != nil {
			appLog.Error("scheduled reload failed", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("refresh scheduled", "cron", spec)

	stop := func() {
		<-c.Stop().Done()
	}
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return stop, nil
}
