package query

import (
	"context"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RATING HISTORY QUERY
// История изменений рейтинга по возрастанию времени.
// ══════════════════════════════════════════════════════════════════════════════

// RatingRecordDTO - одна запись истории.
type RatingRecordDTO struct {
	ID         string    `json:"id"`
	PrevRating int       `json:"prev_rating"`
	NewRating  int       `json:"new_rating"`
	Delta      int       `json:"delta"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// RatingHistoryResult - история и текущий рейтинг.
type RatingHistoryResult struct {
	StudentID string            `json:"student_id"`
	Rating    int               `json:"rating"`
	Records   []RatingRecordDTO `json:"records"`
}

// GetRatingHistoryHandler читает историю рейтинга.
type GetRatingHistoryHandler struct {
	students student.Repository
	history  student.RatingStore
}

// NewGetRatingHistoryHandler создаёт новый обработчик.
func NewGetRatingHistoryHandler(students student.Repository, history student.RatingStore) *GetRatingHistoryHandler {
	return &GetRatingHistoryHandler{students: students, history: history}
}

// Handle возвращает историю студента.
func (h *GetRatingHistoryHandler) Handle(ctx context.Context, studentID string) (*RatingHistoryResult, error) {
	if studentID == "" {
		return nil, shared.ErrInvalidStudentID
	}

	st, err := h.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	records, err := h.history.History(ctx, studentID)
	if err != nil {
		return nil, err
	}

	out := &RatingHistoryResult{
		StudentID: st.ID,
		Rating:    st.Rating,
		Records:   make([]RatingRecordDTO, 0, len(records)),
	}
	for _, r := range records {
		out.Records = append(out.Records, RatingRecordDTO{
			ID:         r.ID,
			PrevRating: r.PrevRating,
			NewRating:  r.NewRating,
			Delta:      r.Delta,
			Reason:     r.Reason,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}
