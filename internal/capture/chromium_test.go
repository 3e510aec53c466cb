package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	o, err := Options{URL: "http://127.0.0.1:1/", OutputPath: "out.png"}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, o.Width)
	assert.Equal(t, DefaultHeight, o.Height)
	assert.Equal(t, DefaultTimeout, o.Timeout)

	o, err = Options{URL: "x", OutputPath: "y", Width: 800, Timeout: time.Second}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, 800, o.Width)
	assert.Equal(t, time.Second, o.Timeout)
}

func TestCaptureRequiresURLAndOutput(t *testing.T) {
	err := CaptureSchedulePNG(context.Background(), Options{OutputPath: "out.png"})
	assert.ErrorContains(t, err, "URL is required")

	err = CaptureSchedulePNG(context.Background(), Options{URL: "http://127.0.0.1:1/"})
	assert.ErrorContains(t, err, "OutputPath is required")
}
