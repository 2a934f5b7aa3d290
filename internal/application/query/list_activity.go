package query

import (
	"context"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/activity"
	"github.com/alem-hub/spectrum/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ACTIVITY QUERY
// Последние записи ленты активности для журнала аудита.
// ══════════════════════════════════════════════════════════════════════════════

// ListActivityQuery - параметры ленты.
type ListActivityQuery struct {
	// Type - фильтр по типу события (пустой = все).
	Type string

	// Limit - количество записей (по умолчанию 50, максимум 500).
	Limit int
}

// ActivityDTO - запись ленты.
type ActivityDTO struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id,omitempty"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Time      string    `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

// ListActivityHandler читает ленту активности.
type ListActivityHandler struct {
	logs     activity.Repository
	location *time.Location
}

// NewListActivityHandler создаёт новый обработчик. loc задаёт часовой
// пояс поля time (UTC, если nil).
func NewListActivityHandler(logs activity.Repository, loc *time.Location) *ListActivityHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ListActivityHandler{logs: logs, location: loc}
}

// Handle выполняет запрос.
func (h *ListActivityHandler) Handle(ctx context.Context, q ListActivityQuery) ([]ActivityDTO, error) {
	found, err := h.logs.Recent(ctx, activity.Filter{
		Type:  activity.Type(q.Type),
		Limit: clampLimit(q.Limit, 50, 500),
	})
	if err != nil {
		return nil, err
	}

	out := make([]ActivityDTO, 0, len(found))
	for _, l := range found {
		out = append(out, ActivityDTO{
			ID:        l.ID,
			StudentID: l.StudentID,
			Type:      string(l.Type),
			Severity:  string(l.Severity),
			Message:   l.Message,
			Time:      timeutil.FormatTimeOfDay(l.CreatedAt, h.location),
			CreatedAt: l.CreatedAt,
		})
	}
	return out, nil
}
