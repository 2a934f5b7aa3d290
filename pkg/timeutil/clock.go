// Package timeutil provides an injectable clock and the time formatting
// helpers shared by the engine, the scheduler and the activity feed.
// No external dependencies - uses only standard library.
package timeutil

import (
	"sync"
	"time"
)

// Clock abstracts the current time so that ledger records, grants and
// sweeps can be stamped deterministically in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the wall clock time in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock starting at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// OrSystem returns c, or a SystemClock when c is nil.
func OrSystem(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}

// Common date/time formats.
const (
	// LayoutTimeOfDay is used by the activity feed ("14:05:09").
	LayoutTimeOfDay = "15:04:05"

	// LayoutDate is the ISO date.
	LayoutDate = "2006-01-02"

	// LayoutDateTime is used in human-readable reports.
	LayoutDateTime = "2006-01-02 15:04"
)

// FormatTimeOfDay formats t as HH:MM:SS in loc (UTC when loc is nil).
func FormatTimeOfDay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(LayoutTimeOfDay)
}

// StartOfDay returns the start of the day (00:00:00) of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// LoadLocation resolves an IANA zone name, falling back to UTC for an
// empty name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
