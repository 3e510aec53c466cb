package log_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	appLog "weekcal/internal/log"
)

func TestLevelsAndKeyValues(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	appLog.SetLevel(appLog.LevelInfo)
	t.Cleanup(func() { appLog.SetLevel(appLog.LevelInfo) })

	appLog.Debug("hidden", "k", 1)
	appLog.Info("loaded", "id", "plan.ics", "event_count", 3)
	appLog.Error("parse failed", errors.New("boom"), "id", "bad.ics", "dangling")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "loaded")
	assert.Contains(t, out, "id=plan.ics")
	assert.Contains(t, out, "event_count=3")
	assert.Contains(t, out, "err=boom")
	assert.Contains(t, out, "!BADKEY=dangling")

	buf.Reset()
	appLog.SetLevel(appLog.LevelDebug)
	appLog.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, appLog.LevelDebug, appLog.ParseLevel("debug"))
	assert.Equal(t, appLog.LevelWarn, appLog.ParseLevel(" Warning "))
	assert.Equal(t, appLog.LevelError, appLog.ParseLevel("ERROR"))
	assert.Equal(t, appLog.LevelInfo, appLog.ParseLevel("chatty"))
}
