package scheduler

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{
		Interval: interval,
	}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// JitterSchedule waits a uniformly random delay in [Min, Max] between runs.
type JitterSchedule struct {
	Min time.Duration
	Max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewJitterSchedule creates a JitterSchedule. A nil rnd uses a randomly
// seeded source; pass a seeded one for reproducible delays. Bounds are
// swapped if given in the wrong order.
func NewJitterSchedule(min, max time.Duration, rnd *rand.Rand) *JitterSchedule {
	if max < min {
		min, max = max, min
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &JitterSchedule{Min: min, Max: max, rnd: rnd}
}

// Next returns t plus a random delay.
func (s *JitterSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Delay())
}

// Delay draws the next delay.
func (s *JitterSchedule) Delay() time.Duration {
	span := s.Max - s.Min
	if span <= 0 {
		return s.Min
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Min + time.Duration(s.rnd.Int64N(int64(span)+1))
}

// String returns the string representation of the schedule.
func (s *JitterSchedule) String() string {
	return fmt.Sprintf("@jitter %s-%s", s.Min, s.Max)
}
