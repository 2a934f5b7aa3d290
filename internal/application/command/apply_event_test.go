package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/achievement"
	"github.com/alem-hub/spectrum/internal/domain/rating"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/pkg/syncutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(f *fixture, cfg LedgerConfig, eval StudentEvaluator) *Ledger {
	return NewLedger(LedgerDeps{
		Store:     f.store,
		Publisher: f.publisher,
		Evaluator: eval,
		Clock:     f.clock,
	}, cfg)
}

func TestLedger_AppliesHomework(t *testing.T) {
	f := newFixture()
	st := f.onboard(t, 1)[0]
	l := newLedger(f, LedgerConfig{}, nil)

	res, err := l.Handle(context.Background(), ApplyEventCommand{
		StudentID: st.ID,
		Event:     rating.Academic{Type: rating.KindHomework, Grade: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, res.PrevRating)
	assert.Equal(t, 1010, res.NewRating)
	assert.Equal(t, 10, res.Delta)
	assert.Equal(t, "Grade: 5 (HOMEWORK)", res.Record.Reason)
	assert.Equal(t, f.clock.Now(), res.Record.CreatedAt)

	got, err := f.store.GetByID(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, 1010, got.Rating)

	history, err := f.store.History(context.Background(), st.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	events := f.publisher.ofType(shared.EventRatingChanged)
	require.Len(t, events, 1)
	assert.Equal(t, 10, events[0].(shared.RatingChangedEvent).Delta)
}

func TestLedger_UnknownStudentWritesNothing(t *testing.T) {
	f := newFixture()
	l := newLedger(f, LedgerConfig{}, nil)

	_, err := l.Handle(context.Background(), ApplyEventCommand{
		StudentID: "missing",
		Event:     rating.Kudos{Bonus: 5},
	})
	assert.True(t, shared.IsNotFound(err))
	assert.Empty(t, f.publisher.ofType(shared.EventRatingChanged))
}

func TestLedger_InvalidEventWritesNothing(t *testing.T) {
	f := newFixture()
	st := f.onboard(t, 1)[0]
	l := newLedger(f, LedgerConfig{}, nil)

	for _, ev := range []rating.Event{
		nil,
		rating.Academic{Type: rating.KindExam, Grade: 9},
		rating.Academic{Type: "QUIZ", Grade: 5},
		rating.Competition{Placement: 0},
		rating.Kudos{Bonus: -3},
	} {
		_, err := l.Handle(context.Background(), ApplyEventCommand{StudentID: st.ID, Event: ev})
		assert.True(t, shared.IsInvalidEvent(err), "event %#v", ev)
	}

	got, _ := f.store.GetByID(context.Background(), st.ID)
	assert.Equal(t, student.InitialRating, got.Rating)
	history, _ := f.store.History(context.Background(), st.ID)
	assert.Empty(t, history)
}

func TestLedger_HistoryReplaysToRating(t *testing.T) {
	f := newFixture()
	st := f.onboard(t, 1)[0]
	l := newLedger(f, LedgerConfig{}, nil)
	ctx := context.Background()

	events := []rating.Event{
		rating.Academic{Type: rating.KindExam, Grade: 5},
		rating.Competition{Placement: 1, Participants: 30},
		rating.Academic{Type: rating.KindTest, Grade: 2},
		rating.Kudos{Bonus: 15},
		rating.Manual{Delta: -400, Reason: "audit"},
		rating.Manual{Delta: -2000},
		rating.Academic{Type: rating.KindHomework, Grade: 4},
	}
	for _, ev := range events {
		f.clock.Advance(time.Minute)
		_, err := l.ApplyEvent(ctx, st.ID, ev)
		require.NoError(t, err)
	}

	got, _ := f.store.GetByID(ctx, st.ID)
	history, _ := f.store.History(ctx, st.ID)
	require.Len(t, history, len(events))
	assert.Equal(t, student.ReplayRating(history), got.Rating)
	assert.Less(t, got.Rating, 0, "ratings are not clamped")

	for i := 1; i < len(history); i++ {
		assert.Equal(t, history[i-1].NewRating, history[i].PrevRating)
		assert.True(t, history[i].CreatedAt.After(history[i-1].CreatedAt))
	}
}

func TestLedger_ConcurrentEventsForOneStudentSerialize(t *testing.T) {
	f := newFixture()
	st := f.onboard(t, 1)[0]
	l := newLedger(f, LedgerConfig{}, nil)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyEvent(context.Background(), st.ID, rating.Kudos{Bonus: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, _ := f.store.GetByID(context.Background(), st.ID)
	history, _ := f.store.History(context.Background(), st.ID)
	assert.Equal(t, 1000+n, got.Rating)
	require.Len(t, history, n)
	for i := 1; i < n; i++ {
		assert.Equal(t, history[i-1].NewRating, history[i].PrevRating)
	}
}

func TestLedger_AcademicEventStoresGrade(t *testing.T) {
	f := newFixture()
	st := f.onboard(t, 1)[0]
	l := newLedger(f, LedgerConfig{}, nil)

	_, err := l.ApplyEvent(context.Background(), st.ID,
		rating.Academic{Type: rating.KindExam, Grade: 4, Subject: student.SubjectAlgorithms})
	require.NoError(t, err)
	_, err = l.ApplyEvent(context.Background(), st.ID, rating.Academic{Type: rating.KindTest, Grade: 3})
	require.NoError(t, err)

	grades, err := f.store.GradesByStudent(context.Background(), st.ID)
	require.NoError(t, err)
	require.Len(t, grades, 1, "grades are stored only when a subject is given")
	assert.Equal(t, 80, grades[0].Score)
	assert.True(t, grades[0].IsExam)
	assert.Equal(t, student.SubjectAlgorithms, grades[0].Subject)
}

func TestLedger_EvaluatesAchievementsAfterCommit(t *testing.T) {
	f := newFixture()
	st := f.onboard(t, 1)[0]
	scanner := NewAchievementScanner(AchievementScannerDeps{
		Students:  f.store,
		Grades:    f.store,
		Grants:    f.store,
		Publisher: f.publisher,
		Clock:     f.clock,
	})
	l := newLedger(f, LedgerConfig{EvaluateOnEvent: true}, scanner)
	ctx := context.Background()

	res, err := l.ApplyEvent(ctx, st.ID, rating.Academic{Type: rating.KindExam, Grade: 5, Subject: student.SubjectCryptography})
	require.NoError(t, err)
	assert.Equal(t, []achievement.Code{achievement.HighPerformer, achievement.CyberGhost}, res.NewAchievements)

	res, err = l.ApplyEvent(ctx, st.ID, rating.Academic{Type: rating.KindExam, Grade: 5, Subject: student.SubjectDatabases})
	require.NoError(t, err)
	assert.Equal(t, []achievement.Code{achievement.CodeNinja}, res.NewAchievements)

	res, err = l.ApplyEvent(ctx, st.ID, rating.Kudos{Bonus: 3})
	require.NoError(t, err)
	assert.Empty(t, res.NewAchievements)

	assert.Len(t, f.publisher.ofType(shared.EventAchievementGranted), 3)
}

func TestLedger_LockTimeoutIsConflict(t *testing.T) {
	f := newFixture()
	st := f.onboard(t, 1)[0]
	locks := syncutil.NewKeyedMutex(1)
	l := NewLedger(LedgerDeps{Store: f.store, Locks: locks, Clock: f.clock}, LedgerConfig{LockTimeout: 10 * time.Millisecond})

	unlock, err := locks.Lock(context.Background(), st.ID)
	require.NoError(t, err)
	defer unlock()

	_, err = l.ApplyEvent(context.Background(), st.ID, rating.Kudos{Bonus: 1})
	assert.True(t, shared.IsConflict(err))

	got, _ := f.store.GetByID(context.Background(), st.ID)
	assert.Equal(t, student.InitialRating, got.Rating)
}

func TestLedger_StoreFailureIsUnavailable(t *testing.T) {
	l := NewLedger(LedgerDeps{Store: brokenRatingStore{}}, LedgerConfig{})

	_, err := l.ApplyEvent(context.Background(), "any", rating.Kudos{Bonus: 1})
	assert.True(t, shared.IsStoreUnavailable(err))
	assert.ErrorIs(t, err, errStoreDown)
}

func TestLedger_StoreDeadlineIsUnavailableNotConflict(t *testing.T) {
	l := NewLedger(LedgerDeps{Store: timedOutRatingStore{}}, LedgerConfig{LockTimeout: time.Second})

	_, err := l.ApplyEvent(context.Background(), "any", rating.Kudos{Bonus: 1})
	assert.True(t, shared.IsStoreUnavailable(err))
	assert.False(t, shared.IsConflict(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLedger_BackdatedEventKeepsCommitOrder(t *testing.T) {
	f := newFixture()
	st := f.onboard(t, 1)[0]
	l := newLedger(f, LedgerConfig{}, nil)
	ctx := context.Background()

	_, err := l.Handle(ctx, ApplyEventCommand{StudentID: st.ID, Event: rating.Kudos{Bonus: 10}, OccurredAt: t0})
	require.NoError(t, err)
	_, err = l.Handle(ctx, ApplyEventCommand{StudentID: st.ID, Event: rating.Kudos{Bonus: 5}, OccurredAt: t0.Add(-time.Hour)})
	require.NoError(t, err)

	history, err := f.store.History(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1000, history[0].PrevRating)
	assert.Equal(t, 1010, history[1].PrevRating)
	assert.Equal(t, t0.Add(-time.Hour), history[1].CreatedAt)
}
