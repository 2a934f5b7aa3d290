package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock_Advance(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(90*time.Second), c.Advance(90*time.Second))
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	later := start.Add(24 * time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestOrSystem(t *testing.T) {
	assert.IsType(t, SystemClock{}, OrSystem(nil))

	c := NewManualClock(time.Unix(0, 0))
	assert.Same(t, c, OrSystem(c))
}

func TestFormatTimeOfDay(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "09:05:07", FormatTimeOfDay(ts, nil))

	loc := time.FixedZone("UTC+5", 5*60*60)
	assert.Equal(t, "14:05:07", FormatTimeOfDay(ts, loc))
}

func TestStartOfDay(t *testing.T) {
	ts := time.Date(2025, 3, 1, 22, 30, 0, 0, time.UTC)
	loc := time.FixedZone("UTC+5", 5*60*60)

	got := StartOfDay(ts, loc)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, loc), got)
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}
