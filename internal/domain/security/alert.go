// Package security содержит модель оповещений безопасности и
// классификацию риска студентов.
package security

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ══════════════════════════════════════════════════════════════════════════════
// RISK CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// RiskClass - класс риска по риск-скору.
type RiskClass string

const (
	RiskLow      RiskClass = "LOW"
	RiskMedium   RiskClass = "MEDIUM"
	RiskHigh     RiskClass = "HIGH"
	RiskCritical RiskClass = "CRITICAL"
)

// Границы классов. Критический риск строго выше CriticalRiskThreshold.
const (
	MediumRiskFrom        = 30
	HighRiskFrom          = 60
	CriticalRiskThreshold = 80
)

// ClassifyRisk возвращает класс риска для скора.
func ClassifyRisk(score int) RiskClass {
	switch {
	case score > CriticalRiskThreshold:
		return RiskCritical
	case score >= HighRiskFrom:
		return RiskHigh
	case score >= MediumRiskFrom:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ALERTS
// ══════════════════════════════════════════════════════════════════════════════

// Level - уровень оповещения.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// SourceAIMonitor - источник оповещений, создаваемых проходом по риску.
const SourceAIMonitor = "AI_MONITOR"

// Alert - оповещение безопасности. Не более одного неразрешённого
// оповещения на один отпечаток.
type Alert struct {
	// ID - идентификатор.
	ID string

	// StudentID - кого касается (может быть пустым для системных).
	StudentID string

	// Level - уровень.
	Level Level

	// Message - детерминированный текст.
	Message string

	// Source - кто создал.
	Source string

	// Fingerprint - ключ дедупликации, см. Fingerprint.
	Fingerprint string

	// Resolved - разрешено ли оповещение.
	Resolved bool

	// CreatedAt - время создания.
	CreatedAt time.Time

	// ResolvedAt - время разрешения, нулевое для открытых.
	ResolvedAt time.Time
}

// HighRiskMessage - текст оповещения о высоком риске.
func HighRiskMessage(fullName, ticket string) string {
	return fmt.Sprintf("High risk detected for student %s (%s)", fullName, ticket)
}

// Fingerprint - blake2b-256 от источника и текста. Одинаковая причина
// даёт одинаковый отпечаток.
func Fingerprint(source, message string) string {
	sum := blake2b.Sum256([]byte(source + "\x00" + message))
	return hex.EncodeToString(sum[:])
}

// NewHighRiskAlert собирает критическое оповещение для студента.
func NewHighRiskAlert(id, studentID, fullName, ticket string, at time.Time) Alert {
	msg := HighRiskMessage(fullName, ticket)
	return Alert{
		ID:          id,
		StudentID:   studentID,
		Level:       LevelCritical,
		Message:     msg,
		Source:      SourceAIMonitor,
		Fingerprint: Fingerprint(SourceAIMonitor, msg),
		CreatedAt:   at.UTC(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AlertFilter - параметры выборки оповещений.
type AlertFilter struct {
	UnresolvedOnly bool
	Limit          int
}

// AlertRepository хранит оповещения.
type AlertRepository interface {
	// CreateIfAbsent сохраняет оповещение, если нет неразрешённого с тем же
	// отпечатком. created=false означает, что такое уже открыто.
	CreateIfAbsent(ctx context.Context, a Alert) (created bool, err error)

	// ListAlerts возвращает оповещения, новые первыми.
	ListAlerts(ctx context.Context, f AlertFilter) ([]Alert, error)

	// Resolve помечает оповещение разрешённым.
	// Возвращает ErrAlertNotFound, если его нет.
	Resolve(ctx context.Context, id string, at time.Time) error
}
