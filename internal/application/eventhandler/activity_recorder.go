package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alem-hub/spectrum/internal/domain/activity"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/infrastructure/metrics"
)

// ═══════════════════════════════════════════════════════════════════════════
// ACTIVITY RECORDER
// Пишет в ленту активности записи о реальных событиях: выданных
// достижениях и поднятых алертах.
// ═══════════════════════════════════════════════════════════════════════════

// ActivityRecorder превращает доменные события в записи ленты.
type ActivityRecorder struct {
	logs      activity.Repository
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewActivityRecorder создаёт новый обработчик. publisher получает
// ActivityGeneratedEvent для каждой записанной строки.
func NewActivityRecorder(logs activity.Repository, publisher shared.EventPublisher, logger *slog.Logger) *ActivityRecorder {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityRecorder{
		logs:      logs,
		publisher: publisher,
		logger:    logger.With("handler", "activity_recorder"),
	}
}

// Handle реализует shared.EventHandler.
func (r *ActivityRecorder) Handle(event shared.Event) error {
	typ, severity, message, ok := describe(event)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	studentID := event.AggregateID()
	entry, err := activity.NewLog(uuid.New().String(), studentID, typ, severity, message, event.OccurredAt())
	if err != nil {
		return err
	}
	if err := r.logs.Save(ctx, entry); err != nil {
		return fmt.Errorf("save activity: %w", err)
	}
	metrics.ActivityGeneratedTotal.WithLabelValues(string(entry.Type)).Inc()

	evt := shared.NewActivityGeneratedEvent(entry.StudentID, entry.ID, string(entry.Type), entry.Message, string(entry.Severity), entry.CreatedAt)
	if err := r.publisher.Publish(evt); err != nil {
		r.logger.Warn("failed to publish activity", "activity_id", entry.ID, "error", err)
	}
	return nil
}

// describe строит запись ленты по событию. Payload используется вместо
// конкретных типов, чтобы события из других экземпляров тоже попадали в ленту.
func describe(event shared.Event) (activity.Type, activity.Severity, string, bool) {
	p := event.Payload()
	switch event.EventType() {
	case shared.EventAchievementGranted:
		return activity.TypeAchievement, activity.SeveritySuccess,
			fmt.Sprintf("Получено достижение «%v»", p["title"]), true
	case shared.EventAlertRaised:
		return activity.TypeSystem, activity.SeverityWarning, fmt.Sprint(p["message"]), true
	default:
		return "", "", "", false
	}
}
