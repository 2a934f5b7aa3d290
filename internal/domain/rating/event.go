// Package rating содержит калькулятор рейтинга: чистую функцию, которая
// по текущему рейтингу и событию оценивания возвращает изменение рейтинга.
package rating

import (
	"fmt"

	"github.com/alem-hub/spectrum/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT KINDS
// ══════════════════════════════════════════════════════════════════════════════

// Kind - тип события оценивания.
type Kind string

const (
	KindExam        Kind = "EXAM"
	KindTest        Kind = "TEST"
	KindHomework    Kind = "HOMEWORK"
	KindCompetition Kind = "COMPETITION"
	KindKudos       Kind = "KUDOS"
	KindManual      Kind = "MANUAL"
)

// IsAcademic возвращает true для оценок за учебные работы.
func (k Kind) IsAcademic() bool {
	switch k {
	case KindExam, KindTest, KindHomework:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что тип входит в закрытый набор.
func (k Kind) IsValid() bool {
	switch k {
	case KindExam, KindTest, KindHomework, KindCompetition, KindKudos, KindManual:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// Event - закрытый набор событий оценивания. Реализации есть только в
// этом пакете.
type Event interface {
	// Kind возвращает тип события.
	Kind() Kind

	// Validate проверяет, что данные события в своей области значений.
	Validate() error

	sealed()
}

// Граница области оценок.
const (
	MinGrade = 2
	MaxGrade = 5
)

// Academic - оценка за экзамен, контрольную или домашнюю работу.
type Academic struct {
	// Type - EXAM, TEST или HOMEWORK.
	Type Kind

	// Grade - оценка 2..5.
	Grade int

	// Subject - предмет; при наличии оценка сохраняется вместе с изменением рейтинга.
	Subject string
}

// Kind implements Event.
func (e Academic) Kind() Kind { return e.Type }

// Validate implements Event.
func (e Academic) Validate() error {
	if !e.Type.IsAcademic() {
		return shared.ErrUnknownEventKind
	}
	if e.Grade < MinGrade || e.Grade > MaxGrade {
		return shared.ErrGradeOutOfRange
	}
	return nil
}

func (Academic) sealed() {}

// DefaultParticipants подставляется, когда число участников неизвестно.
const DefaultParticipants = 50

// Competition - место в соревновании.
type Competition struct {
	// Placement - занятое место, с единицы.
	Placement int

	// Participants - число участников; 0 означает DefaultParticipants.
	Participants int
}

// Kind implements Event.
func (Competition) Kind() Kind { return KindCompetition }

// Validate implements Event.
func (e Competition) Validate() error {
	if e.Placement < 1 || e.Participants < 0 {
		return shared.ErrInvalidPlacement
	}
	if e.Placement > e.participants() {
		return shared.ErrInvalidPlacement
	}
	return nil
}

func (e Competition) participants() int {
	if e.Participants == 0 {
		return DefaultParticipants
	}
	return e.Participants
}

func (Competition) sealed() {}

// Kudos - бонус за помощь другим.
type Kudos struct {
	// Bonus - номинальный бонус, не меньше нуля.
	Bonus int
}

// Kind implements Event.
func (Kudos) Kind() Kind { return KindKudos }

// Validate implements Event.
func (e Kudos) Validate() error {
	if e.Bonus < 0 {
		return shared.ErrNegativeKudos
	}
	return nil
}

func (Kudos) sealed() {}

// DefaultManualReason используется, если причина не указана.
const DefaultManualReason = "Manual adjustment by admin"

// Manual - ручная корректировка: изменение задаёт вызывающий.
type Manual struct {
	// Delta - изменение рейтинга, любой знак.
	Delta int

	// Reason - причина для истории.
	Reason string
}

// Kind implements Event.
func (Manual) Kind() Kind { return KindManual }

// Validate implements Event.
func (Manual) Validate() error { return nil }

func (Manual) sealed() {}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// Validate проверяет событие, включая nil.
func Validate(ev Event) error {
	if ev == nil {
		return shared.ErrMissingEventPayload
	}
	return ev.Validate()
}

// Reason возвращает запись причины для истории рейтинга.
func Reason(ev Event) string {
	switch e := ev.(type) {
	case Academic:
		return fmt.Sprintf("Grade: %d (%s)", e.Grade, e.Type)
	case Competition:
		return fmt.Sprintf("Competition: place %d of %d", e.Placement, e.participants())
	case Kudos:
		return fmt.Sprintf("Kudos: +%d", e.Bonus)
	case Manual:
		if e.Reason == "" {
			return DefaultManualReason
		}
		return e.Reason
	default:
		return "Unknown event"
	}
}
