// Package eventhandler содержит обработчики доменных событий.
// Обработчики реагируют на уже зафиксированные изменения и обновляют
// производные данные: рейтинговую таблицу и ленту активности.
// Ошибка обработчика не откатывает исходное изменение.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON RATING CHANGED HANDLER
// Поддерживает рейтинговую таблицу в актуальном состоянии.
// ═══════════════════════════════════════════════════════════════════════════

// handlerTimeout ограничивает работу одного обработчика.
const handlerTimeout = 5 * time.Second

// rebuildPageSize - размер страницы при полной перестройке таблицы.
const rebuildPageSize = 500

// OnRatingChangedHandler обновляет запись студента в таблице после
// каждого изменения рейтинга.
type OnRatingChangedHandler struct {
	students student.Repository
	board    student.RatingBoard
	logger   *slog.Logger
}

// NewOnRatingChangedHandler создаёт новый обработчик.
func NewOnRatingChangedHandler(students student.Repository, board student.RatingBoard, logger *slog.Logger) *OnRatingChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnRatingChangedHandler{
		students: students,
		board:    board,
		logger:   logger.With("handler", "on_rating_changed"),
	}
}

// Handle реализует shared.EventHandler. Студент перечитывается из
// хранилища, поэтому событие из другого экземпляра обрабатывается так же.
func (h *OnRatingChangedHandler) Handle(event shared.Event) error {
	if event.EventType() != shared.EventRatingChanged {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	st, err := h.students.GetByID(ctx, event.AggregateID())
	if err != nil {
		return fmt.Errorf("load student %s: %w", event.AggregateID(), err)
	}
	if err := h.board.Upsert(ctx, student.StandingOf(st)); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	h.logger.Debug("leaderboard entry updated", "student_id", st.ID, "rating", st.Rating)
	return nil
}

// Rebuild перестраивает таблицу целиком из хранилища.
func (h *OnRatingChangedHandler) Rebuild(ctx context.Context) (int, error) {
	var all []student.Standing
	opts := student.DefaultListOptions().WithLimit(rebuildPageSize)
	for {
		page, err := h.students.List(ctx, opts)
		if err != nil {
			return 0, fmt.Errorf("list students: %w", err)
		}
		for _, st := range page {
			all = append(all, student.StandingOf(st))
		}
		if len(page) < opts.Limit {
			break
		}
		opts = opts.WithOffset(opts.Offset + len(page))
	}

	if err := h.board.Rebuild(ctx, all); err != nil {
		return 0, fmt.Errorf("rebuild leaderboard: %w", err)
	}
	h.logger.Info("leaderboard rebuilt", "students", len(all))
	return len(all), nil
}
