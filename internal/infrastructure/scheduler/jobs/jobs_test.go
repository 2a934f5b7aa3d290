package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/spectrum/internal/application/command"
	"github.com/alem-hub/spectrum/internal/domain/activity"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/spectrum/pkg/timeutil"
)

var (
	now       = time.Date(2025, 10, 1, 9, 15, 0, 0, time.UTC)
	discard   = slog.New(slog.DiscardHandler)
	errRedis  = errors.New("redis: connection refused")
	errSweep  = errors.New("student list unavailable")
	sweepDone = &command.SweepResult{SweepID: "sweep-1", StudentsScanned: 3}
)

type fakeSweeper struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *fakeSweeper) Run(context.Context) (*command.SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return sweepDone, nil
}

type fakeLocker struct {
	held     bool
	err      error
	released bool
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) error {
		l.released = true
		return nil
	}, true, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func TestSecuritySweepJob_RunsAndReleasesLock(t *testing.T) {
	sweeper := &fakeSweeper{}
	locker := &fakeLocker{}
	job := NewSecuritySweepJob(sweeper, locker, discard, DefaultSecuritySweepConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, sweeper.calls)
	assert.True(t, locker.released)
	assert.Equal(t, "sweep-1", job.LastResult().SweepID)
}

func TestSecuritySweepJob_SkipsWhenLockHeld(t *testing.T) {
	sweeper := &fakeSweeper{}
	job := NewSecuritySweepJob(sweeper, &fakeLocker{held: true}, discard, DefaultSecuritySweepConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, sweeper.calls)
	assert.Equal(t, int64(1), job.Skipped())
	assert.Nil(t, job.LastResult())
}

func TestSecuritySweepJob_SweepsWhenLockErrors(t *testing.T) {
	sweeper := &fakeSweeper{}
	job := NewSecuritySweepJob(sweeper, &fakeLocker{err: errRedis}, discard, DefaultSecuritySweepConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, sweeper.calls)
	assert.Zero(t, job.Skipped())
}

func TestSecuritySweepJob_PropagatesSweepError(t *testing.T) {
	job := NewSecuritySweepJob(&fakeSweeper{err: errSweep}, nil, discard, DefaultSecuritySweepConfig())

	err := job.Run(context.Background())
	assert.ErrorIs(t, err, errSweep)
	assert.Equal(t, "security_sweep", job.Name())
}

type fakeRebuilder struct {
	n   int
	err error
}

func (r fakeRebuilder) Rebuild(context.Context) (int, error) { return r.n, r.err }

func TestRebuildLeaderboardJob(t *testing.T) {
	job := NewRebuildLeaderboardJob(fakeRebuilder{n: 12}, 0, discard)
	require.NoError(t, job.Run(context.Background()))
	require.NotNil(t, job.LastStats())
	assert.Equal(t, 12, job.LastStats().Entries)

	failing := NewRebuildLeaderboardJob(fakeRebuilder{err: errRedis}, time.Second, discard)
	assert.ErrorIs(t, failing.Run(context.Background()), errRedis)
	assert.Nil(t, failing.LastStats())
}

func seedStudents(t *testing.T, store *memory.Store, n int) map[string]bool {
	t.Helper()
	ids := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		st, err := student.NewStudent(student.NewStudentParams{
			ID:        fmt.Sprintf("st-%d", i),
			Ticket:    fmt.Sprintf("ST-%03d", i),
			FullName:  fmt.Sprintf("Студент %d", i),
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.NoError(t, store.Create(context.Background(), st))
		ids[st.ID] = true
	}
	return ids
}

func newGenerator(store *memory.Store, pub shared.EventPublisher) *ActivityGeneratorJob {
	return NewActivityGeneratorJob(ActivityGeneratorDeps{
		Students:  store,
		Logs:      store,
		Publisher: pub,
		Clock:     timeutil.NewManualClock(now),
		Logger:    discard,
		Rand:      rand.New(rand.NewPCG(3, 5)),
	})
}

func TestActivityGeneratorJob_UsesExistingStudents(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := seedStudents(t, store, 4)
	pub := &recordingPublisher{}
	job := newGenerator(store, pub)

	for range 10 {
		require.NoError(t, job.Run(ctx))
	}

	logs, err := store.Recent(ctx, activity.Filter{Limit: 50})
	require.NoError(t, err)
	require.Len(t, logs, 10)
	for _, l := range logs {
		assert.True(t, ids[l.StudentID], "unexpected student %q", l.StudentID)
		assert.True(t, l.Type.IsValid())
		assert.NotEmpty(t, l.Message)
	}

	require.Len(t, pub.events, 10)
	evt := pub.events[0]
	assert.Equal(t, shared.EventActivityGenerated, evt.EventType())
	assert.Equal(t, "09:15:00", evt.Payload()["time"])
}

func TestActivityGeneratorJob_SystemWideWithoutStudents(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	job := newGenerator(store, nil)

	entry, err := job.Generate(ctx)
	require.NoError(t, err)
	assert.Empty(t, entry.StudentID)

	logs, err := store.Recent(ctx, activity.Filter{})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestActivityGeneratorJob_SeededIsReproducible(t *testing.T) {
	ctx := context.Background()
	a, b := memory.NewStore(), memory.NewStore()
	seedStudents(t, a, 5)
	seedStudents(t, b, 5)

	ga, gb := newGenerator(a, nil), newGenerator(b, nil)
	for range 5 {
		ea, err := ga.Generate(ctx)
		require.NoError(t, err)
		eb, err := gb.Generate(ctx)
		require.NoError(t, err)
		assert.Equal(t, ea.StudentID, eb.StudentID)
		assert.Equal(t, ea.Message, eb.Message)
	}
}
