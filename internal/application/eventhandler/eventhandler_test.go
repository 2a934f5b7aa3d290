package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/spectrum/internal/domain/activity"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/spectrum/pkg/logger"
)

var t0 = time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC)

type memBoard struct {
	mu      sync.Mutex
	entries map[string]student.Standing
	err     error
}

func newMemBoard() *memBoard { return &memBoard{entries: map[string]student.Standing{}} }

func (b *memBoard) Upsert(_ context.Context, s student.Standing) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.entries[s.StudentID] = s
	return nil
}

func (b *memBoard) Top(context.Context, int) ([]student.Standing, error) { return nil, nil }

func (b *memBoard) Rebuild(_ context.Context, all []student.Standing) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = map[string]student.Standing{}
	for _, s := range all {
		b.entries[s.StudentID] = s
	}
	return nil
}

func seed(t *testing.T, s *memory.Store, id string) *student.Student {
	t.Helper()
	st, err := student.NewStudent(student.NewStudentParams{ID: id, Ticket: "T-" + id, FullName: "Имя " + id, CreatedAt: t0})
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), st))
	return st
}

func TestOnRatingChanged_UpsertsCurrentRating(t *testing.T) {
	s := memory.NewStore()
	st := seed(t, s, "s1")
	_, err := s.ApplyRatingChange(context.Background(), st.ID, func(*student.Student) (student.RatingChange, error) {
		return student.RatingChange{RecordID: "r1", Delta: 25, Reason: "x", At: t0}, nil
	})
	require.NoError(t, err)

	board := newMemBoard()
	h := NewOnRatingChangedHandler(s, board, logger.Discard())

	require.NoError(t, h.Handle(shared.NewRatingChangedEvent(st.ID, "KUDOS", 1000, 1025, "x", t0)))
	assert.Equal(t, 1025, board.entries[st.ID].Rating)

	// Other event types are ignored.
	require.NoError(t, h.Handle(shared.NewAlertResolvedEvent("a1", t0)))

	assert.Error(t, h.Handle(shared.NewRatingChangedEvent("ghost", "KUDOS", 0, 1, "x", t0)))

	board.err = errors.New("redis down")
	assert.Error(t, h.Handle(shared.NewRatingChangedEvent(st.ID, "KUDOS", 1000, 1025, "x", t0)))
}

func TestOnRatingChanged_Rebuild(t *testing.T) {
	s := memory.NewStore()
	seed(t, s, "a")
	seed(t, s, "b")
	board := newMemBoard()
	board.entries["stale"] = student.Standing{StudentID: "stale"}

	n, err := NewOnRatingChangedHandler(s, board, nil).Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, board.entries, 2)
	assert.NotContains(t, board.entries, "stale")
}

type capture struct{ events []shared.Event }

func (c *capture) Publish(e shared.Event) error {
	c.events = append(c.events, e)
	return nil
}

func TestActivityRecorder(t *testing.T) {
	s := memory.NewStore()
	pub := &capture{}
	r := NewActivityRecorder(s, pub, logger.Discard())

	require.NoError(t, r.Handle(shared.NewAchievementGrantedEvent("s1", "CYBER_GHOST", "Кибер-призрак", t0)))
	require.NoError(t, r.Handle(shared.NewAlertRaisedEvent("s2", "a1", "CRITICAL", "High risk detected for student X (T-1)", "AI_MONITOR", t0)))
	require.NoError(t, r.Handle(shared.NewAlertResolvedEvent("a1", t0)))

	logs, err := s.Recent(context.Background(), activity.Filter{})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, activity.TypeSystem, logs[0].Type)
	assert.Equal(t, activity.SeverityWarning, logs[0].Severity)
	assert.Equal(t, "Получено достижение «Кибер-призрак»", logs[1].Message)
	assert.Equal(t, "s1", logs[1].StudentID)

	require.Len(t, pub.events, 2)
	assert.Equal(t, shared.EventActivityGenerated, pub.events[0].EventType())
}
