package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/alem-hub/spectrum/internal/domain/security"
	"github.com/alem-hub/spectrum/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST AT-RISK STUDENTS QUERY
// Студенты с наибольшим риском, причины риска и рекомендация куратору.
// ══════════════════════════════════════════════════════════════════════════════

// Причины риска.
const (
	FactorLowPerformance = "Low academic performance"
	FactorBurnout        = "Potential burnout detected"
	FactorIrregular      = "Irregular activity pattern"
)

// Рекомендации куратору.
const (
	RecommendProbation = "Immediate academic probation"
	RecommendSupport   = "Send to psychological support"
	RecommendMeeting   = "Schedule a meeting"
)

// Пороги по стобалльной шкале и характеристикам.
const (
	lowPerformanceBelow = 60
	probationBelow      = 40
	burnoutAptitude     = 50
	supportResilience   = 40
)

// gpaPageSize - размер страницы при обходе всех студентов.
const gpaPageSize = 500

// ListAtRiskQuery содержит параметры запроса.
type ListAtRiskQuery struct {
	// Limit - количество записей (по умолчанию 10, максимум 100).
	Limit int
}

// AtRiskStudentDTO - профиль риска студента.
type AtRiskStudentDTO struct {
	StudentID      string   `json:"student_id"`
	FullName       string   `json:"full_name"`
	GroupName      string   `json:"group_name"`
	RiskScore      int      `json:"risk_score"`
	RiskClass      string   `json:"risk_class"`
	RiskFactors    []string `json:"risk_factors"`
	Recommendation string   `json:"recommendation"`
}

// ListAtRiskHandler формирует список студентов в зоне риска.
type ListAtRiskHandler struct {
	students student.Repository
	grades   student.GradeRepository
}

// NewListAtRiskHandler создаёт новый обработчик.
func NewListAtRiskHandler(students student.Repository, grades student.GradeRepository) *ListAtRiskHandler {
	return &ListAtRiskHandler{students: students, grades: grades}
}

// Handle возвращает студентов по убыванию риска.
func (h *ListAtRiskHandler) Handle(ctx context.Context, q ListAtRiskQuery) ([]AtRiskStudentDTO, error) {
	limit := clampLimit(q.Limit, 10, 100)

	top, err := h.students.List(ctx, student.DefaultListOptions().WithLimit(limit).WithSort(student.SortByRisk, true))
	if err != nil {
		return nil, err
	}

	out := make([]AtRiskStudentDTO, 0, len(top))
	for _, st := range top {
		grades, err := h.grades.GradesByStudent(ctx, st.ID)
		if err != nil {
			return nil, fmt.Errorf("load grades for %s: %w", st.ID, err)
		}
		// Без оценок средний балл считается нулевым.
		mean, _ := student.MeanScore(grades)
		out = append(out, AtRiskStudentDTO{
			StudentID:      st.ID,
			FullName:       st.FullName,
			GroupName:      st.GroupName,
			RiskScore:      st.RiskScore,
			RiskClass:      string(security.ClassifyRisk(st.RiskScore)),
			RiskFactors:    RiskFactors(mean, st.Stats),
			Recommendation: Recommendation(mean, st.Stats),
		})
	}
	return out, nil
}

// RiskFactors перечисляет причины риска. Список никогда не пуст.
func RiskFactors(meanScore float64, stats student.Stats) []string {
	var factors []string
	if meanScore < lowPerformanceBelow {
		factors = append(factors, FactorLowPerformance)
	}
	if stats.Aptitude < burnoutAptitude {
		factors = append(factors, FactorBurnout)
	}
	if len(factors) == 0 {
		factors = append(factors, FactorIrregular)
	}
	return factors
}

// Recommendation выбирает одну рекомендацию: сначала успеваемость, затем
// выносливость.
func Recommendation(meanScore float64, stats student.Stats) string {
	switch {
	case meanScore < probationBelow:
		return RecommendProbation
	case stats.Resilience < supportResilience:
		return RecommendSupport
	default:
		return RecommendMeeting
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TOP BY GPA QUERY
// ══════════════════════════════════════════════════════════════════════════════

// TopByGPAQuery содержит параметры запроса.
type TopByGPAQuery struct {
	// Limit - количество записей (по умолчанию 10, максимум 100).
	Limit int
}

// GPAEntryDTO - запись рейтинга по среднему баллу.
type GPAEntryDTO struct {
	Rank      int     `json:"rank"`
	StudentID string  `json:"student_id"`
	FullName  string  `json:"full_name"`
	GroupName string  `json:"group_name"`
	GPA       float64 `json:"gpa"`
}

// TopByGPAHandler строит рейтинг по среднему баллу. Студенты без оценок
// в рейтинг не попадают.
type TopByGPAHandler struct {
	students student.Repository
	grades   student.GradeRepository
}

// NewTopByGPAHandler создаёт новый обработчик.
func NewTopByGPAHandler(students student.Repository, grades student.GradeRepository) *TopByGPAHandler {
	return &TopByGPAHandler{students: students, grades: grades}
}

// Handle возвращает лучших студентов по среднему баллу.
func (h *TopByGPAHandler) Handle(ctx context.Context, q TopByGPAQuery) ([]GPAEntryDTO, error) {
	limit := clampLimit(q.Limit, 10, 100)

	type scored struct {
		st   *student.Student
		mean float64
		gpa  float64
	}
	var all []scored

	opts := student.DefaultListOptions().WithLimit(gpaPageSize)
	for {
		page, err := h.students.List(ctx, opts)
		if err != nil {
			return nil, err
		}
		for _, st := range page {
			grades, err := h.grades.GradesByStudent(ctx, st.ID)
			if err != nil {
				return nil, fmt.Errorf("load grades for %s: %w", st.ID, err)
			}
			mean, ok := student.MeanScore(grades)
			if !ok {
				continue
			}
			all = append(all, scored{st: st, mean: mean, gpa: student.GPA(grades)})
		}
		if len(page) < opts.Limit {
			break
		}
		opts = opts.WithOffset(opts.Offset + len(page))
	}

	// Порядок обхода стабилен, поэтому при равном балле выше тот, кто
	// зачислен раньше.
	sort.SliceStable(all, func(i, j int) bool { return all[i].mean > all[j].mean })
	if len(all) > limit {
		all = all[:limit]
	}

	out := make([]GPAEntryDTO, 0, len(all))
	for i, s := range all {
		out = append(out, GPAEntryDTO{
			Rank:      i + 1,
			StudentID: s.st.ID,
			FullName:  s.st.FullName,
			GroupName: s.st.GroupName,
			GPA:       s.gpa,
		})
	}
	return out, nil
}
