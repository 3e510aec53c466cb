package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekcal/internal/config"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "weekcal.yaml")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weekcal.yaml")
	body := `
timezone: Europe/Warsaw
show_lectures: false
day_labels: [Pon, Wt]
hour_min: 8
hour_max: 3
cache_ttl: 1d
capture_timeout: bogus
sources:
  - path: /srv/cal/grupa1.ics
  - url: https://example.com/feed.ics
    name: Team
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.ShowLectures)
	assert.True(t, cfg.ShowAllDay)
	assert.Equal(t, "W", cfg.LecturePrefix)
	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri"}, cfg.DayLabels)
	assert.Equal(t, 8, cfg.HourMin)
	assert.Equal(t, 20, cfg.HourMax)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTLDuration())
	assert.Equal(t, 30*time.Second, cfg.CaptureTimeoutDuration())

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "grupa1.ics", cfg.Sources[0].ID)
	assert.Equal(t, "Team", cfg.Sources[1].ID)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Warsaw", loc.String())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weekcal.yaml")
	cfg := config.DefaultConfig()
	cfg.Title = "Plan"
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestBadTimezoneFallsBackToLocal(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "Nowhere/Atlantis"
	loc, err := cfg.Location()
	assert.Error(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestResolvePath(t *testing.T) {
	t.Setenv(config.EnvConfigPath, "/etc/weekcal.yaml")
	assert.Equal(t, "x.yaml", config.ResolvePath("x.yaml"))
	assert.Equal(t, "/etc/weekcal.yaml", config.ResolvePath(""))

	t.Setenv(config.EnvConfigPath, "")
	assert.Equal(t, config.DefaultPath, config.ResolvePath(""))
}
