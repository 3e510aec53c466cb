package session_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekcal/internal/config"
	"weekcal/internal/ics"
	"weekcal/internal/model"
	"weekcal/internal/session"
)

func writeCalendar(t *testing.T, path string, events ...string) {
	t.Helper()
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//weekcal//test//EN"}
	for _, e := range events {
		lines = append(lines, strings.Split(strings.TrimSpace(e), "\n")...)
	}
	lines = append(lines, "END:VCALENDAR")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\r\n")+"\r\n"), 0o600))
}

func vevent(uid, summary, start, end string) string {
	return strings.Join([]string{
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:20240301T000000Z",
		"SUMMARY:" + summary,
		"DTSTART:" + start,
		"DTEND:" + end,
		"END:VEVENT",
	}, "\n")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cal := filepath.Join(dir, "calendars")
	require.NoError(t, os.MkdirAll(cal, 0o700))

	writeCalendar(t, filepath.Join(cal, "group_a.ics"),
		vevent("a1", "Wykład", "20240304T090000Z", "20240304T103000Z"),
		vevent("a2", "Ćwiczenia", "20240305T090000Z", "20240305T103000Z"),
	)
	writeCalendar(t, filepath.Join(cal, "group_b.ics"),
		vevent("b1", "Lab", "20240304T091500Z", "20240304T100000Z"),
	)
	extra := filepath.Join(dir, "english.ics")
	writeCalendar(t, extra, vevent("e1", "English", "20240306T120000Z", "20240306T133000Z"))

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CalendarDir = cal
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.Sources = []config.SourceConfig{{Name: "English C1", Path: extra}}
	cfg.Normalize()
	return cfg
}

func TestSourcesOrderAndDedupe(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sources = append(cfg.Sources, config.SourceConfig{ID: "group_a.ics", Path: "/elsewhere/group_a.ics"})

	sources, err := session.Sources(cfg)
	require.NoError(t, err)

	ids := make([]string, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"english.ics", "group_a.ics", "group_b.ics"}, ids)
	assert.Equal(t, "/elsewhere/group_a.ics", sources[1].Path)
}

func TestSourcesMissingDirectory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CalendarDir = filepath.Join(t.TempDir(), "nope")

	sources, err := session.Sources(cfg)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestReloadBuildsSnapshot(t *testing.T) {
	cfg := testConfig(t)
	s, err := session.New(cfg, nil)
	require.NoError(t, err)

	_, err = s.Snapshot()
	assert.ErrorIs(t, err, session.ErrNotLoaded)

	snap, err := s.Reload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Events.Len())
	assert.Equal(t, []string{"english.ics", "group_a.ics", "group_b.ics"}, snap.Catalog.IDs())
	assert.Equal(t, "English C1", snap.Catalog.Label("english.ics"))
	assert.Equal(t, "Group A", snap.Catalog.Label("group_a.ics"))
	assert.Equal(t, map[string]int{"english.ics": 1, "group_a.ics": 2, "group_b.ics": 1}, snap.Counts())

	got, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snap.LoadedAt, got.LoadedAt)

	res := s.Pipeline(snap).Run(snap.Events, s.DefaultFilter(snap))
	require.False(t, res.Empty())
	assert.Len(t, res.Bars, 4)

	st := s.DefaultFilter(snap)
	st.ShowLectures = false
	res = s.Pipeline(snap).Run(snap.Events, st)
	assert.Len(t, res.Bars, 3)
}

func TestReloadRecordsFailedSources(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sources = append(cfg.Sources, config.SourceConfig{ID: "gone", Path: filepath.Join(t.TempDir(), "gone.ics")})

	s, err := session.New(cfg, nil)
	require.NoError(t, err)

	snap, err := s.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gone"}, snap.Failed)
	assert.Equal(t, 4, snap.Events.Len())
}

func TestBuildCatalogAppendsUnknownEventSources(t *testing.T) {
	sources := []ics.Source{{ID: "a.ics"}, {ID: "b.ics", Name: "Bee"}}
	events := []model.Event{{SourceID: "z.ics"}, {SourceID: "a.ics"}}

	cat := session.BuildCatalog(sources, events)
	assert.Equal(t, []string{"a.ics", "b.ics", "z.ics"}, cat.IDs())

	idx, ok := cat.ColorIndex("z.ics")
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "Bee", cat.Label("b.ics"))
}

func TestStartRefreshRejectsBadSpec(t *testing.T) {
	s, err := session.New(testConfig(t), nil)
	require.NoError(t, err)

	_, err = s.StartRefresh(context.Background(), "not a cron spec")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stop, err := s.StartRefresh(ctx, "@every 1h")
	require.NoError(t, err)
	cancel()
	stop()
}

func TestWeekExpandsRecurrencesFromAnchor(t *testing.T) {
	cfg := testConfig(t)
	writeCalendar(t, filepath.Join(cfg.CalendarDir, "standup.ics"), strings.Join([]string{
		"BEGIN:VEVENT",
		"UID:standup",
		"DTSTAMP:20240301T000000Z",
		"SUMMARY:Standup",
		"DTSTART:20240304T080000Z",
		"DTEND:20240304T081500Z",
		"RRULE:FREQ=WEEKLY;BYDAY=MO,WE",
		"END:VEVENT",
	}, "\n"))

	sess, err := session.New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "UTC", sess.Location().String())

	snap, err := sess.Reload(context.Background())
	require.NoError(t, err)

	events, err := sess.Week(snap, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, snap.Events, events)

	anchor := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	events, err = sess.Week(snap, anchor)
	require.NoError(t, err)

	var standups []string
	for _, ev := range events.Events() {
		if ev.Title == "Standup" && ev.Start.Before(anchor.AddDate(0, 0, 7)) && !ev.Start.Before(anchor) {
			standups = append(standups, ev.Start.Format("01-02"))
		}
	}
	assert.Equal(t, []string{"04-01", "04-03"}, standups)

	p := sess.Pipeline(snap)
	p.Anchor = anchor
	out := p.Run(events, sess.DefaultFilter(snap))
	assert.Len(t, out.Bars, 2)
}
