package student

import (
	"testing"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

func newTestStudent(t *testing.T) *Student {
	t.Helper()
	s, err := NewStudent(NewStudentParams{
		ID:        "7f1c2d9e-0000-4000-8000-000000000001",
		Ticket:    " ST-001 ",
		FullName:  "Иванов Иван",
		GroupName: "КБ-1",
		CreatedAt: now,
	})
	require.NoError(t, err)
	return s
}

func TestNewStudent(t *testing.T) {
	s := newTestStudent(t)

	assert.Equal(t, InitialRating, s.Rating)
	assert.Equal(t, "ST-001", s.Ticket)
	assert.Equal(t, Stats{}, s.Stats)
	assert.Zero(t, s.RiskScore)
	assert.Equal(t, StatusStudying, s.Status)
	assert.Equal(t, now, s.CreatedAt)
}

func TestNewStudent_Validation(t *testing.T) {
	_, err := NewStudent(NewStudentParams{Ticket: "T", FullName: "N"})
	assert.ErrorIs(t, err, shared.ErrInvalidStudentID)

	_, err = NewStudent(NewStudentParams{ID: "id", FullName: "N"})
	assert.ErrorIs(t, err, shared.ErrInvalidTicket)
	assert.True(t, shared.IsValidation(err))

	_, err = NewStudent(NewStudentParams{ID: "id", Ticket: "T", FullName: "  "})
	assert.ErrorIs(t, err, shared.ErrInvalidFullName)
}

func TestStudent_TransitionTo(t *testing.T) {
	s := newTestStudent(t)
	later := now.Add(time.Hour)

	require.NoError(t, s.TransitionTo(StatusAcademicLeave, later))
	assert.Equal(t, StatusAcademicLeave, s.Status)
	assert.Equal(t, later, s.UpdatedAt)

	require.NoError(t, s.TransitionTo(StatusStudying, later))
	require.NoError(t, s.TransitionTo(StatusGraduated, later))

	err := s.TransitionTo(StatusStudying, later)
	assert.ErrorIs(t, err, shared.ErrStateTransition)
	assert.True(t, s.Status.IsTerminal())

	fresh := newTestStudent(t)
	assert.ErrorIs(t, fresh.TransitionTo(Status("ON_MARS"), later), shared.ErrInvalidStudentStatus)
}

func TestStats_AddClamps(t *testing.T) {
	s := Stats{Aptitude: 95, Resilience: 3, Sociability: 50}
	got := s.Add(Stats{Aptitude: 10, Resilience: -10, Sociability: 5})

	assert.Equal(t, Stats{Aptitude: 100, Resilience: 0, Sociability: 55}, got)
	assert.True(t, got.IsValid())
	assert.False(t, Stats{Aptitude: 101}.IsValid())
}

func TestStudent_GrantXP(t *testing.T) {
	s := newTestStudent(t)
	s.Stats.Aptitude = 97

	gained := s.GrantXP(250, now)
	assert.Equal(t, 2, gained)
	assert.Equal(t, 99, s.Stats.Aptitude)

	gained = s.GrantXP(1000, now)
	assert.Equal(t, 1, gained)
	assert.Equal(t, 100, s.Stats.Aptitude)
	assert.Equal(t, InitialRating, s.Rating)
}

func TestStudent_SetRiskScore(t *testing.T) {
	s := newTestStudent(t)

	require.NoError(t, s.SetRiskScore(85, now))
	assert.Equal(t, 85, s.RiskScore)
	assert.ErrorIs(t, s.SetRiskScore(101, now), shared.ErrValueOutOfRange)
	assert.Equal(t, 85, s.RiskScore)
}

func TestGPA(t *testing.T) {
	assert.Zero(t, GPA(nil))

	grades := []Grade{{Score: ScoreFromGrade(5)}, {Score: ScoreFromGrade(4)}, {Score: ScoreFromGrade(4)}}
	assert.Equal(t, 4.33, GPA(grades))

	mean, ok := MeanScore(grades)
	assert.True(t, ok)
	assert.InDelta(t, 86.67, mean, 0.01)
}

func TestReplayRating(t *testing.T) {
	history := []RatingRecord{
		RatingChange{Delta: 10}.Record("s", 1000),
		RatingChange{Delta: -14}.Record("s", 1010),
		RatingChange{Delta: 105}.Record("s", 996),
	}
	assert.Equal(t, 1101, ReplayRating(history))
	assert.Equal(t, 1101, history[2].NewRating)
	assert.Equal(t, InitialRating, ReplayRating(nil))
}
