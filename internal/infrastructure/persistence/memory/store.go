// Package memory provides an in-process implementation of every store
// contract. It backs the server when no DATABASE_URL is configured and is
// the store used by application tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/achievement"
	"github.com/alem-hub/spectrum/internal/domain/activity"
	"github.com/alem-hub/spectrum/internal/domain/security"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
)

var (
	_ student.Repository       = (*Store)(nil)
	_ student.RatingStore      = (*Store)(nil)
	_ student.GradeRepository  = (*Store)(nil)
	_ achievement.Repository   = (*Store)(nil)
	_ security.AlertRepository = (*Store)(nil)
	_ activity.Repository      = (*Store)(nil)
)

// Store keeps all state in maps guarded by one mutex. Every write method
// holds the mutex for its whole duration, so each call is atomic.
type Store struct {
	mu sync.RWMutex

	students map[string]*student.Student
	tickets  map[string]string // ticket -> id
	order    []string          // insertion order of student ids

	history  map[string][]student.RatingRecord
	grades   map[string][]student.Grade
	grants   map[string][]achievement.Grant
	alerts   []security.Alert
	activity []*activity.Log
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		students: make(map[string]*student.Student),
		tickets:  make(map[string]string),
		history:  make(map[string][]student.RatingRecord),
		grades:   make(map[string][]student.Grade),
		grants:   make(map[string][]achievement.Grant),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

// Create implements student.Repository.
func (s *Store) Create(ctx context.Context, st *student.Student) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[st.ID]; ok {
		return shared.ErrStudentAlreadyExists
	}
	if _, ok := s.tickets[st.Ticket]; ok {
		return shared.ErrStudentAlreadyExists
	}
	s.students[st.ID] = st.Clone()
	s.tickets[st.Ticket] = st.ID
	s.order = append(s.order, st.ID)
	return nil
}

// GetByID implements student.Repository.
func (s *Store) GetByID(ctx context.Context, id string) (*student.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return st.Clone(), nil
}

// Update implements student.Repository. The rating column is never written.
func (s *Store) Update(ctx context.Context, id string, mutate func(*student.Student) error) (*student.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}

	draft := current.Clone()
	if err := mutate(draft); err != nil {
		return nil, err
	}

	current.Stats = draft.Stats
	current.RiskScore = draft.RiskScore
	current.DebtsCount = draft.DebtsCount
	current.Status = draft.Status
	current.GroupName = draft.GroupName
	current.UpdatedAt = draft.UpdatedAt
	return current.Clone(), nil
}

// List implements student.Repository.
func (s *Store) List(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*student.Student, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.students[id].Clone())
	}

	sortStudents(all, opts)
	return page(all, opts.Offset, opts.Limit), nil
}

// Search implements student.Repository.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*student.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*student.Student
	for _, id := range s.order {
		st := s.students[id]
		if strings.Contains(strings.ToLower(st.FullName), needle) {
			out = append(out, st.Clone())
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Summary implements student.Repository.
func (s *Store) Summary(ctx context.Context) (student.Summary, error) {
	if err := ctx.Err(); err != nil {
		return student.Summary{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := student.Summary{TotalStudents: len(s.students)}
	if sum.TotalStudents == 0 {
		return sum, nil
	}
	total := 0
	for _, st := range s.students {
		total += st.RiskScore
	}
	sum.AverageRiskScore = float64(total) / float64(sum.TotalStudents)
	return sum, nil
}

func sortStudents(list []*student.Student, opts student.ListOptions) {
	less := func(a, b *student.Student) bool {
		switch opts.SortBy {
		case student.SortByRating:
			if a.Rating != b.Rating {
				return a.Rating < b.Rating
			}
		case student.SortByRisk:
			if a.RiskScore != b.RiskScore {
				return a.RiskScore < b.RiskScore
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	}
	sort.SliceStable(list, func(i, j int) bool {
		if opts.SortDesc {
			return less(list[j], list[i])
		}
		return less(list[i], list[j])
	})
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ══════════════════════════════════════════════════════════════════════════════
// RATING LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// ApplyRatingChange implements student.RatingStore.
func (s *Store) ApplyRatingChange(ctx context.Context, id string, mutate student.RatingMutation) (student.RatingRecord, error) {
	if err := ctx.Err(); err != nil {
		return student.RatingRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.students[id]
	if !ok {
		return student.RatingRecord{}, shared.ErrStudentNotFound
	}

	change, err := mutate(current.Clone())
	if err != nil {
		return student.RatingRecord{}, err
	}

	rec := change.Record(id, current.Rating)
	current.Rating = rec.NewRating
	current.UpdatedAt = rec.CreatedAt
	s.history[id] = append(s.history[id], rec)

	if change.Grade != nil {
		g := *change.Grade
		g.StudentID = id
		s.grades[id] = append(s.grades[id], g)
	}
	return rec, nil
}

// History implements student.RatingStore.
func (s *Store) History(ctx context.Context, id string) ([]student.RatingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.students[id]; !ok {
		return nil, shared.ErrStudentNotFound
	}
	return append([]student.RatingRecord(nil), s.history[id]...), nil
}

// GradesByStudent implements student.GradeRepository.
func (s *Store) GradesByStudent(ctx context.Context, id string) ([]student.Grade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]student.Grade(nil), s.grades[id]...), nil
}

// AddGrade stores a grade outside the ledger. Used to seed fixtures for
// grades imported without a rating event.
func (s *Store) AddGrade(g student.Grade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grades[g.StudentID] = append(s.grades[g.StudentID], g)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Grant implements achievement.Repository.
func (s *Store) Grant(ctx context.Context, g achievement.Grant) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[g.StudentID]; !ok {
		return false, shared.ErrStudentNotFound
	}
	for _, held := range s.grants[g.StudentID] {
		if held.Code == g.Code {
			return false, nil
		}
	}
	s.grants[g.StudentID] = append(s.grants[g.StudentID], g)
	return true, nil
}

// ListByStudent implements achievement.Repository.
func (s *Store) ListByStudent(ctx context.Context, id string) ([]achievement.Grant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]achievement.Grant(nil), s.grants[id]...), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ALERTS
// ══════════════════════════════════════════════════════════════════════════════

// CreateIfAbsent implements security.AlertRepository.
func (s *Store) CreateIfAbsent(ctx context.Context, a security.Alert) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.alerts {
		if !existing.Resolved && existing.Fingerprint == a.Fingerprint {
			return false, nil
		}
	}
	s.alerts = append(s.alerts, a)
	return true, nil
}

// ListAlerts implements security.AlertRepository.
func (s *Store) ListAlerts(ctx context.Context, f security.AlertFilter) ([]security.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []security.Alert
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if f.UnresolvedOnly && a.Resolved {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// Resolve implements security.AlertRepository.
func (s *Store) Resolve(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Resolved = true
			s.alerts[i].ResolvedAt = at.UTC()
			return nil
		}
	}
	return shared.ErrAlertNotFound
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY
// ══════════════════════════════════════════════════════════════════════════════

// Save implements activity.Repository.
func (s *Store) Save(ctx context.Context, l *activity.Log) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *l
	s.activity = append(s.activity, &c)
	return nil
}

// Recent implements activity.Repository.
func (s *Store) Recent(ctx context.Context, f activity.Filter) ([]*activity.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*activity.Log
	for i := len(s.activity) - 1; i >= 0; i-- {
		if f.Type != "" && s.activity[i].Type != f.Type {
			continue
		}
		c := *s.activity[i]
		out = append(out, &c)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
