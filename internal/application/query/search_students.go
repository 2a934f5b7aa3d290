package query

import (
	"context"
	"strings"

	"github.com/alem-hub/spectrum/internal/domain/security"
	"github.com/alem-hub/spectrum/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEARCH STUDENTS QUERY
// Поиск по подстроке ФИО. Пустая строка возвращает первых студентов.
// ══════════════════════════════════════════════════════════════════════════════

// SearchStudentsQuery - параметры поиска.
type SearchStudentsQuery struct {
	// Text - подстрока ФИО.
	Text string

	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int
}

// Normalize приводит параметры к допустимым значениям.
func (q *SearchStudentsQuery) Normalize() {
	q.Text = strings.TrimSpace(q.Text)
	q.Limit = clampLimit(q.Limit, 20, 100)
}

// StudentSummaryDTO - строка списка студентов.
type StudentSummaryDTO struct {
	ID        string `json:"id"`
	Ticket    string `json:"ticket"`
	FullName  string `json:"full_name"`
	GroupName string `json:"group_name"`
	Rating    int    `json:"rating"`
	RiskScore int    `json:"risk_score"`
	RiskClass string `json:"risk_class"`
	Status    string `json:"status"`
}

// SearchStudentsHandler ищет студентов.
type SearchStudentsHandler struct {
	students student.Repository
}

// NewSearchStudentsHandler создаёт новый обработчик.
func NewSearchStudentsHandler(students student.Repository) *SearchStudentsHandler {
	return &SearchStudentsHandler{students: students}
}

// Handle выполняет поиск.
func (h *SearchStudentsHandler) Handle(ctx context.Context, q SearchStudentsQuery) ([]StudentSummaryDTO, error) {
	q.Normalize()

	var (
		found []*student.Student
		err   error
	)
	if q.Text == "" {
		found, err = h.students.List(ctx, student.DefaultListOptions().WithLimit(q.Limit))
	} else {
		found, err = h.students.Search(ctx, q.Text, q.Limit)
	}
	if err != nil {
		return nil, err
	}

	out := make([]StudentSummaryDTO, 0, len(found))
	for _, st := range found {
		out = append(out, summarize(st))
	}
	return out, nil
}

func summarize(st *student.Student) StudentSummaryDTO {
	return StudentSummaryDTO{
		ID:        st.ID,
		Ticket:    st.Ticket,
		FullName:  st.FullName,
		GroupName: st.GroupName,
		Rating:    st.Rating,
		RiskScore: st.RiskScore,
		RiskClass: string(security.ClassifyRisk(st.RiskScore)),
		Status:    string(st.Status),
	}
}

// clampLimit подставляет def для неположительного лимита и обрезает до max.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
