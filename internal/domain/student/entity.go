// Package student содержит доменную модель студента SPECTRUM.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package student

import (
	"strings"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/shared"
)

// InitialRating - рейтинг нового студента.
const InitialRating = 1000

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Границы характеристик и риск-скора.
const (
	MinStat = 0
	MaxStat = 100
)

// Stats - вектор характеристик студента, каждая в диапазоне [0, 100].
type Stats struct {
	// Aptitude - интеллект (stat_int).
	Aptitude int `json:"aptitude"`

	// Resilience - выносливость (stat_sta).
	Resilience int `json:"resilience"`

	// Sociability - социальность (stat_soc).
	Sociability int `json:"sociability"`
}

// IsValid проверяет, что все характеристики в допустимом диапазоне.
func (s Stats) IsValid() bool {
	return inRange(s.Aptitude) && inRange(s.Resilience) && inRange(s.Sociability)
}

// Add возвращает новый вектор, прибавив delta и зажав результат в [0, 100].
func (s Stats) Add(delta Stats) Stats {
	return Stats{
		Aptitude:    clampStat(s.Aptitude + delta.Aptitude),
		Resilience:  clampStat(s.Resilience + delta.Resilience),
		Sociability: clampStat(s.Sociability + delta.Sociability),
	}
}

func inRange(v int) bool {
	return v >= MinStat && v <= MaxStat
}

func clampStat(v int) int {
	if v < MinStat {
		return MinStat
	}
	if v > MaxStat {
		return MaxStat
	}
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет текущий статус студента.
type Status string

const (
	// StatusStudying - студент учится.
	StatusStudying Status = "STUDYING"
	// StatusAcademicLeave - академический отпуск.
	StatusAcademicLeave Status = "ACADEMIC_LEAVE"
	// StatusExpelled - отчислен.
	StatusExpelled Status = "EXPELLED"
	// StatusGraduated - выпускник.
	StatusGraduated Status = "GRADUATED"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusStudying, StatusAcademicLeave, StatusExpelled, StatusGraduated:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true для статусов, из которых нет перехода.
func (s Status) IsTerminal() bool {
	return s == StatusExpelled || s == StatusGraduated
}

// allowedTransitions - граф допустимых переходов статуса.
var allowedTransitions = map[Status][]Status{
	StatusStudying:      {StatusAcademicLeave, StatusExpelled, StatusGraduated},
	StatusAcademicLeave: {StatusStudying, StatusExpelled},
}

// CanTransitionTo проверяет, допустим ли переход в статус next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - оцениваемая сущность: рейтинг, характеристики и риск.
type Student struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// Ticket - номер студенческого билета, уникален.
	Ticket string

	// FullName - ФИО.
	FullName string

	// GroupName - академическая группа.
	GroupName string

	// Rating - текущий рейтинг. Меняется только через RatingStore.
	Rating int

	// Stats - характеристики.
	Stats Stats

	// RiskScore - риск-скор [0, 100], выставляется внешним аналитиком.
	RiskScore int

	// DebtsCount - количество академических задолженностей.
	DebtsCount int

	// Status - текущий статус.
	Status Status

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewStudentParams содержит параметры для создания нового студента.
type NewStudentParams struct {
	ID        string
	Ticket    string
	FullName  string
	GroupName string
	CreatedAt time.Time
}

// NewStudent создаёт нового студента: рейтинг InitialRating, нулевые
// характеристики и риск, статус STUDYING.
func NewStudent(params NewStudentParams) (*Student, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, shared.ErrInvalidStudentID
	}

	ticket := strings.TrimSpace(params.Ticket)
	if ticket == "" {
		return nil, shared.ErrInvalidTicket
	}

	fullName := strings.TrimSpace(params.FullName)
	if fullName == "" {
		return nil, shared.ErrInvalidFullName
	}

	now := params.CreatedAt.UTC()

	return &Student{
		ID:        params.ID,
		Ticket:    ticket,
		FullName:  fullName,
		GroupName: strings.TrimSpace(params.GroupName),
		Rating:    InitialRating,
		Status:    StatusStudying,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// TransitionTo переводит студента в новый статус.
func (s *Student) TransitionTo(next Status, at time.Time) error {
	if !next.IsValid() || !s.Status.CanTransitionTo(next) {
		return shared.ErrInvalidStudentStatus
	}
	s.Status = next
	s.UpdatedAt = at.UTC()
	return nil
}

// AdjustStats прибавляет delta к характеристикам с зажатием в [0, 100].
func (s *Student) AdjustStats(delta Stats, at time.Time) {
	s.Stats = s.Stats.Add(delta)
	s.UpdatedAt = at.UTC()
}

// SetRiskScore выставляет риск-скор.
func (s *Student) SetRiskScore(score int, at time.Time) error {
	if !inRange(score) {
		return shared.ErrStatOutOfRange
	}
	s.RiskScore = score
	s.UpdatedAt = at.UTC()
	return nil
}

// GrantXP переводит начисленный опыт в рост интеллекта: amount/100 очков,
// не выше 100.
func (s *Student) GrantXP(amount int, at time.Time) int {
	gain := amount / 100
	before := s.Stats.Aptitude
	s.AdjustStats(Stats{Aptitude: gain}, at)
	return s.Stats.Aptitude - before
}

// Clone возвращает копию студента.
func (s *Student) Clone() *Student {
	c := *s
	return &c
}
