// Package activity contains the activity feed: log entries shown on the
// live dashboard, including the synthetic events emitted by the generator.
// This is a pure domain layer with zero external dependencies.
package activity

import (
	"errors"
	"time"
)

// Domain errors for activity package.
var (
	ErrInvalidType     = errors.New("activity: invalid event type")
	ErrInvalidSeverity = errors.New("activity: invalid severity")
	ErrEmptyMessage    = errors.New("activity: message cannot be empty")
)

// Type is the category of a feed entry.
type Type string

const (
	TypeLogin       Type = "LOGIN"
	TypeSubmission  Type = "SUBMISSION"
	TypeGrade       Type = "GRADE"
	TypeAccess      Type = "ACCESS"
	TypeSystem      Type = "SYSTEM"
	TypeLibrary     Type = "LIBRARY"
	TypeAchievement Type = "ACHIEVEMENT"
	TypeConnection  Type = "CONNECTION"
)

// IsValid checks if the type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeLogin, TypeSubmission, TypeGrade, TypeAccess,
		TypeSystem, TypeLibrary, TypeAchievement, TypeConnection:
		return true
	default:
		return false
	}
}

// Severity of a feed entry.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeveritySuccess Severity = "SUCCESS"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// IsValid checks if the severity is known.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	default:
		return false
	}
}

// Log is one activity feed entry.
type Log struct {
	ID        string
	StudentID string // empty for system-wide entries
	Type      Type
	Severity  Severity
	Message   string
	CreatedAt time.Time
}

// NewLog creates a validated feed entry.
func NewLog(id, studentID string, typ Type, severity Severity, message string, at time.Time) (*Log, error) {
	if !typ.IsValid() {
		return nil, ErrInvalidType
	}
	if !severity.IsValid() {
		return nil, ErrInvalidSeverity
	}
	if message == "" {
		return nil, ErrEmptyMessage
	}
	return &Log{
		ID:        id,
		StudentID: studentID,
		Type:      typ,
		Severity:  severity,
		Message:   message,
		CreatedAt: at.UTC(),
	}, nil
}

// Template is a canned feed entry used by the synthetic generator.
type Template struct {
	Type     Type
	Severity Severity
	Message  string
}

// SyntheticTemplates returns the fixed list of synthetic dashboard events.
func SyntheticTemplates() []Template {
	return []Template{
		{TypeLogin, SeverityInfo, "Пользователь вошел в нейросеть"},
		{TypeSubmission, SeveritySuccess, "Лабораторная работа загружена в Репозиторий"},
		{TypeGrade, SeverityInfo, "Обновлена оценка по предмету: Алгоритмы"},
		{TypeAccess, SeverityWarning, "Заблокирована попытка несанкционированного доступа"},
		{TypeSystem, SeverityInfo, "Цикл оптимизации системы завершен"},
		{TypeLibrary, SeverityInfo, "Цифровой учебник загружен"},
		{TypeAchievement, SeveritySuccess, "Получено новое достижение"},
		{TypeConnection, SeverityError, "Сбой соединения с узлом КБ-1"},
	}
}
