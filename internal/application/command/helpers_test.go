package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/security"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/spectrum/pkg/timeutil"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)

// recordingPublisher keeps published events for assertions.
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

func (p *recordingPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store     *memory.Store
	clock     *timeutil.ManualClock
	publisher *recordingPublisher
}

func newFixture() *fixture {
	return &fixture{
		store:     memory.NewStore(),
		clock:     timeutil.NewManualClock(t0),
		publisher: &recordingPublisher{},
	}
}

func (f *fixture) onboard(t *testing.T, n int) []*student.Student {
	t.Helper()
	h := NewOnboardStudentHandler(f.store, f.publisher, f.clock, nil)
	var out []*student.Student
	for i := 0; i < n; i++ {
		st, err := h.Handle(context.Background(), OnboardStudentCommand{
			Ticket:   fmt.Sprintf("ST-%03d", i),
			FullName: fmt.Sprintf("Студент %d", i),
		})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
		out = append(out, st)
	}
	return out
}

func (f *fixture) setRisk(t *testing.T, id string, score int) {
	t.Helper()
	_, err := f.store.Update(context.Background(), id, func(s *student.Student) error {
		return s.SetRiskScore(score, t0)
	})
	require.NoError(t, err)
}

var errStoreDown = errors.New("connection refused")

// brokenRatingStore fails every write.
type brokenRatingStore struct{}

func (brokenRatingStore) ApplyRatingChange(context.Context, string, student.RatingMutation) (student.RatingRecord, error) {
	return student.RatingRecord{}, errStoreDown
}

func (brokenRatingStore) History(context.Context, string) ([]student.RatingRecord, error) {
	return nil, errStoreDown
}

// timedOutRatingStore reports a statement deadline on every write.
type timedOutRatingStore struct{ brokenRatingStore }

func (timedOutRatingStore) ApplyRatingChange(context.Context, string, student.RatingMutation) (student.RatingRecord, error) {
	return student.RatingRecord{}, fmt.Errorf("update students: %w", context.DeadlineExceeded)
}

// failingAlerts rejects every new alert.
type failingAlerts struct {
	security.AlertRepository
}

func (failingAlerts) CreateIfAbsent(context.Context, security.Alert) (bool, error) {
	return false, errStoreDown
}

// flakyGrades fails for the listed students.
type flakyGrades struct {
	student.GradeRepository
	failFor map[string]bool
}

func (g flakyGrades) GradesByStudent(ctx context.Context, id string) ([]student.Grade, error) {
	if g.failFor[id] {
		return nil, errStoreDown
	}
	return g.GradeRepository.GradesByStudent(ctx, id)
}

// brokenStudentList fails List.
type brokenStudentList struct {
	student.Repository
}

func (brokenStudentList) List(context.Context, student.ListOptions) ([]*student.Student, error) {
	return nil, errStoreDown
}
