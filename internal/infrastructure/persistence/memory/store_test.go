package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/achievement"
	"github.com/alem-hub/spectrum/internal/domain/activity"
	"github.com/alem-hub/spectrum/internal/domain/security"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store, n int) []*student.Student {
	t.Helper()
	var out []*student.Student
	for i := 0; i < n; i++ {
		st, err := student.NewStudent(student.NewStudentParams{
			ID:        fmt.Sprintf("id-%02d", i),
			Ticket:    fmt.Sprintf("ST-%02d", i),
			FullName:  fmt.Sprintf("Студент Номер%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.NoError(t, s.Create(context.Background(), st))
		out = append(out, st)
	}
	return out
}

func TestStore_CreateRejectsDuplicateTicket(t *testing.T) {
	s := NewStore()
	seed(t, s, 1)

	dup, _ := student.NewStudent(student.NewStudentParams{ID: "other", Ticket: "ST-00", FullName: "X", CreatedAt: base})
	err := s.Create(context.Background(), dup)
	assert.True(t, shared.IsAlreadyExists(err))
}

func TestStore_ApplyRatingChange(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, 1)

	rec, err := s.ApplyRatingChange(ctx, "id-00", func(cur *student.Student) (student.RatingChange, error) {
		assert.Equal(t, student.InitialRating, cur.Rating)
		return student.RatingChange{
			RecordID: "r1",
			Delta:    -14,
			Reason:   "Grade: 4 (EXAM)",
			At:       base,
			Grade:    &student.Grade{ID: "g1", Subject: "Алгоритмы", Score: 80, IsExam: true},
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, rec.PrevRating)
	assert.Equal(t, 986, rec.NewRating)

	got, err := s.GetByID(ctx, "id-00")
	require.NoError(t, err)
	assert.Equal(t, 986, got.Rating)

	grades, err := s.GradesByStudent(ctx, "id-00")
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, "id-00", grades[0].StudentID)
}

func TestStore_ApplyRatingChange_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, 1)

	boom := errors.New("boom")
	_, err := s.ApplyRatingChange(ctx, "id-00", func(*student.Student) (student.RatingChange, error) {
		return student.RatingChange{}, boom
	})
	assert.ErrorIs(t, err, boom)

	got, _ := s.GetByID(ctx, "id-00")
	assert.Equal(t, student.InitialRating, got.Rating)
	history, _ := s.History(ctx, "id-00")
	assert.Empty(t, history)
}

func TestStore_ApplyRatingChange_NotFound(t *testing.T) {
	s := NewStore()
	called := false
	_, err := s.ApplyRatingChange(context.Background(), "ghost", func(*student.Student) (student.RatingChange, error) {
		called = true
		return student.RatingChange{}, nil
	})
	assert.True(t, shared.IsNotFound(err))
	assert.False(t, called)
}

func TestStore_UpdateNeverWritesRating(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, 1)

	updated, err := s.Update(ctx, "id-00", func(st *student.Student) error {
		st.Rating = 9999
		st.Stats.Resilience = 70
		return st.SetRiskScore(90, base)
	})
	require.NoError(t, err)
	assert.Equal(t, student.InitialRating, updated.Rating)
	assert.Equal(t, 70, updated.Stats.Resilience)
	assert.Equal(t, 90, updated.RiskScore)
}

func TestStore_ListSortAndPage(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, 5)

	for i, delta := range []int{30, -10, 50, 0, 20} {
		id := fmt.Sprintf("id-%02d", i)
		d := delta
		_, err := s.ApplyRatingChange(ctx, id, func(*student.Student) (student.RatingChange, error) {
			return student.RatingChange{RecordID: id, Delta: d, At: base}, nil
		})
		require.NoError(t, err)
	}

	top, err := s.List(ctx, student.DefaultListOptions().WithSort(student.SortByRating, true).WithLimit(3))
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"id-02", "id-00", "id-04"}, []string{top[0].ID, top[1].ID, top[2].ID})

	pageTwo, err := s.List(ctx, student.DefaultListOptions().WithOffset(3).WithLimit(3))
	require.NoError(t, err)
	require.Len(t, pageTwo, 2)
	assert.Equal(t, "id-03", pageTwo[0].ID)

	empty, err := s.List(ctx, student.DefaultListOptions().WithOffset(10))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_Search(t *testing.T) {
	s := NewStore()
	seed(t, s, 3)

	found, err := s.Search(context.Background(), "номер1", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "id-01", found[0].ID)

	limited, err := s.Search(context.Background(), "студент", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_Summary(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.TotalStudents)

	seed(t, s, 2)
	_, err = s.Update(ctx, "id-00", func(st *student.Student) error { return st.SetRiskScore(50, base) })
	require.NoError(t, err)

	sum, err = s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalStudents)
	assert.Equal(t, 25.0, sum.AverageRiskScore)
}

func TestStore_GrantIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, 1)

	g := achievement.Grant{StudentID: "id-00", Code: achievement.IronWill, EarnedAt: base}
	created, err := s.Grant(ctx, g)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Grant(ctx, g)
	require.NoError(t, err)
	assert.False(t, created)

	held, err := s.ListByStudent(ctx, "id-00")
	require.NoError(t, err)
	assert.Len(t, held, 1)

	_, err = s.Grant(ctx, achievement.Grant{StudentID: "ghost", Code: achievement.IronWill})
	assert.True(t, shared.IsNotFound(err))
}

func TestStore_AlertDedupAndResolve(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	a := security.NewHighRiskAlert("a1", "id-00", "Иванов", "ST-00", base)
	created, err := s.CreateIfAbsent(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)

	dup := security.NewHighRiskAlert("a2", "id-00", "Иванов", "ST-00", base.Add(time.Hour))
	created, err = s.CreateIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, s.Resolve(ctx, "a1", base.Add(2*time.Hour)))
	assert.True(t, shared.IsNotFound(s.Resolve(ctx, "nope", base)))

	created, err = s.CreateIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.True(t, created)

	open, err := s.ListAlerts(ctx, security.AlertFilter{UnresolvedOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "a2", open[0].ID)

	all, err := s.ListAlerts(ctx, security.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_ActivityRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	for i := 0; i < 3; i++ {
		l, err := activity.NewLog(fmt.Sprintf("l%d", i), "", activity.TypeSystem, activity.SeverityInfo, "m", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, l))
	}

	recent, err := s.Recent(ctx, activity.Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "l2", recent[0].ID)
	assert.Equal(t, "l1", recent[1].ID)

	login, err := activity.NewLog("l3", "s1", activity.TypeLogin, activity.SeverityInfo, "m", base)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, login))

	only, err := s.Recent(ctx, activity.Filter{Type: activity.TypeLogin})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "l3", only[0].ID)
}
