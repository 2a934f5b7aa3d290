// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/achievement"
	"github.com/alem-hub/spectrum/internal/domain/security"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT PROFILE QUERY
// Карточка студента: рейтинг, характеристики, риск, средний балл и
// полученные достижения.
// ══════════════════════════════════════════════════════════════════════════════

// StatsDTO - характеристики студента.
type StatsDTO struct {
	Aptitude    int `json:"aptitude"`
	Resilience  int `json:"resilience"`
	Sociability int `json:"sociability"`
}

// GradeDTO - оценка по предмету.
type GradeDTO struct {
	Subject    string    `json:"subject"`
	Score      int       `json:"score"`
	IsExam     bool      `json:"is_exam"`
	RecordedAt time.Time `json:"recorded_at"`
}

// AchievementDTO - полученное достижение.
type AchievementDTO struct {
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Reward      int       `json:"reward"`
	EarnedAt    time.Time `json:"earned_at"`
}

// StudentProfileDTO - полная карточка студента.
type StudentProfileDTO struct {
	ID           string           `json:"id"`
	Ticket       string           `json:"ticket"`
	FullName     string           `json:"full_name"`
	GroupName    string           `json:"group_name"`
	Rating       int              `json:"rating"`
	Stats        StatsDTO         `json:"stats"`
	RiskScore    int              `json:"risk_score"`
	RiskClass    string           `json:"risk_class"`
	DebtsCount   int              `json:"debts_count"`
	Status       string           `json:"status"`
	GPA          float64          `json:"gpa"`
	Grades       []GradeDTO       `json:"grades"`
	Achievements []AchievementDTO `json:"achievements"`
	CreatedAt    time.Time        `json:"created_at"`
}

// GetStudentProfileHandler собирает карточку студента.
type GetStudentProfileHandler struct {
	students student.Repository
	grades   student.GradeRepository
	grants   achievement.Repository
}

// NewGetStudentProfileHandler создаёт новый обработчик.
func NewGetStudentProfileHandler(students student.Repository, grades student.GradeRepository, grants achievement.Repository) *GetStudentProfileHandler {
	return &GetStudentProfileHandler{students: students, grades: grades, grants: grants}
}

// Handle возвращает карточку студента по ID.
func (h *GetStudentProfileHandler) Handle(ctx context.Context, studentID string) (*StudentProfileDTO, error) {
	if studentID == "" {
		return nil, shared.ErrInvalidStudentID
	}

	st, err := h.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	grades, err := h.grades.GradesByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load grades: %w", err)
	}
	held, err := h.grants.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}

	return buildProfile(st, grades, held), nil
}

func buildProfile(st *student.Student, grades []student.Grade, held []achievement.Grant) *StudentProfileDTO {
	dto := &StudentProfileDTO{
		ID:        st.ID,
		Ticket:    st.Ticket,
		FullName:  st.FullName,
		GroupName: st.GroupName,
		Rating:    st.Rating,
		Stats: StatsDTO{
			Aptitude:    st.Stats.Aptitude,
			Resilience:  st.Stats.Resilience,
			Sociability: st.Stats.Sociability,
		},
		RiskScore:    st.RiskScore,
		RiskClass:    string(security.ClassifyRisk(st.RiskScore)),
		DebtsCount:   st.DebtsCount,
		Status:       string(st.Status),
		GPA:          student.GPA(grades),
		Grades:       make([]GradeDTO, 0, len(grades)),
		Achievements: make([]AchievementDTO, 0, len(held)),
		CreatedAt:    st.CreatedAt,
	}

	for _, g := range grades {
		dto.Grades = append(dto.Grades, GradeDTO{
			Subject:    g.Subject,
			Score:      g.Score,
			IsExam:     g.IsExam,
			RecordedAt: g.RecordedAt,
		})
	}

	for _, g := range held {
		def, ok := achievement.Lookup(g.Code)
		if !ok {
			def = achievement.Definition{Code: g.Code, Title: string(g.Code)}
		}
		dto.Achievements = append(dto.Achievements, AchievementDTO{
			Code:        string(g.Code),
			Title:       def.Title,
			Description: def.Description,
			Reward:      def.Reward,
			EarnedAt:    g.EarnedAt,
		})
	}
	return dto
}
