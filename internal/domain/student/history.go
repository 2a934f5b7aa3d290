package student

import (
	"time"
)

// RatingRecord - неизменяемая запись истории рейтинга.
type RatingRecord struct {
	// ID - идентификатор записи.
	ID string

	// StudentID - чей рейтинг изменился.
	StudentID string

	// PrevRating - рейтинг до изменения.
	PrevRating int

	// NewRating - рейтинг после изменения.
	NewRating int

	// Delta - NewRating - PrevRating.
	Delta int

	// Reason - человекочитаемая причина ("Grade: 4 (EXAM)").
	Reason string

	// CreatedAt - время события. Порядок записей в истории задаёт порядок коммита, а не это поле.
	CreatedAt time.Time
}

// RatingChange - результат расчёта, который RatingStore применяет атомарно.
type RatingChange struct {
	// RecordID - идентификатор будущей записи истории.
	RecordID string

	// Delta - изменение рейтинга, без ограничения диапазона.
	Delta int

	// Reason - причина для истории.
	Reason string

	// At - время записи.
	At time.Time

	// Grade - оценка, сохраняемая в той же транзакции (необязательно).
	Grade *Grade
}

// RatingMutation вычисляет изменение по текущему состоянию студента.
// Вызывается внутри транзакции под блокировкой строки; ошибка откатывает всё.
type RatingMutation func(current *Student) (RatingChange, error)

// Record собирает запись истории из изменения.
func (c RatingChange) Record(studentID string, prev int) RatingRecord {
	return RatingRecord{
		ID:         c.RecordID,
		StudentID:  studentID,
		PrevRating: prev,
		NewRating:  prev + c.Delta,
		Delta:      c.Delta,
		Reason:     c.Reason,
		CreatedAt:  c.At.UTC(),
	}
}

// ReplayRating восстанавливает рейтинг по истории.
func ReplayRating(history []RatingRecord) int {
	rating := InitialRating
	for _, r := range history {
		rating += r.Delta
	}
	return rating
}
