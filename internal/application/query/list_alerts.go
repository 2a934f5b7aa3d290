package query

import (
	"context"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/security"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ALERTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListAlertsQuery - параметры списка алертов.
type ListAlertsQuery struct {
	UnresolvedOnly bool

	// Limit - количество записей (по умолчанию 50, максимум 500).
	Limit int
}

// AlertDTO - алерт безопасности.
type AlertDTO struct {
	ID         string     `json:"id"`
	StudentID  string     `json:"student_id"`
	Level      string     `json:"level"`
	Message    string     `json:"message"`
	Source     string     `json:"source"`
	Resolved   bool       `json:"is_resolved"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// ListAlertsHandler возвращает алерты, новые первыми.
type ListAlertsHandler struct {
	alerts security.AlertRepository
}

// NewListAlertsHandler создаёт новый обработчик.
func NewListAlertsHandler(alerts security.AlertRepository) *ListAlertsHandler {
	return &ListAlertsHandler{alerts: alerts}
}

// Handle выполняет запрос.
func (h *ListAlertsHandler) Handle(ctx context.Context, q ListAlertsQuery) ([]AlertDTO, error) {
	found, err := h.alerts.ListAlerts(ctx, security.AlertFilter{
		UnresolvedOnly: q.UnresolvedOnly,
		Limit:          clampLimit(q.Limit, 50, 500),
	})
	if err != nil {
		return nil, err
	}

	out := make([]AlertDTO, 0, len(found))
	for _, a := range found {
		dto := AlertDTO{
			ID:        a.ID,
			StudentID: a.StudentID,
			Level:     string(a.Level),
			Message:   a.Message,
			Source:    a.Source,
			Resolved:  a.Resolved,
			CreatedAt: a.CreatedAt,
		}
		if a.Resolved && !a.ResolvedAt.IsZero() {
			resolvedAt := a.ResolvedAt
			dto.ResolvedAt = &resolvedAt
		}
		out = append(out, dto)
	}
	return out, nil
}
