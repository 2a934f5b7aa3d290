// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/spectrum/internal/domain/achievement"
	"github.com/alem-hub/spectrum/internal/domain/rating"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/internal/infrastructure/metrics"
	"github.com/alem-hub/spectrum/internal/infrastructure/tracing"
	"github.com/alem-hub/spectrum/pkg/syncutil"
	"github.com/alem-hub/spectrum/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY EVENT COMMAND (RATING LEDGER)
// The only path that changes a student's rating. One accepted event is one
// rating update plus one history record, committed together.
// ══════════════════════════════════════════════════════════════════════════════

// ApplyEventCommand contains one evaluation event for one student.
type ApplyEventCommand struct {
	// StudentID is the internal ID of the student.
	StudentID string

	// Event is the evaluation event.
	Event rating.Event

	// OccurredAt is when the event happened (defaults to now if zero).
	OccurredAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ApplyEventCommand) Validate() error {
	if c.StudentID == "" {
		return shared.ErrInvalidStudentID
	}
	return rating.Validate(c.Event)
}

// ApplyEventResult contains the committed change.
type ApplyEventResult struct {
	StudentID  string
	Kind       rating.Kind
	PrevRating int
	NewRating  int
	Delta      int
	Record     student.RatingRecord

	// NewAchievements are grants created by the follow-up evaluation, if enabled.
	NewAchievements []achievement.Code
}

// StudentEvaluator runs the achievement rules for one student.
type StudentEvaluator interface {
	EvaluateStudent(ctx context.Context, studentID string) ([]achievement.Code, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// LedgerConfig contains configuration for the ledger.
type LedgerConfig struct {
	// EvaluateOnEvent runs achievement rules right after each commit.
	EvaluateOnEvent bool

	// LockTimeout bounds the wait for the per-student lock. Zero means
	// the caller's context is the only bound.
	LockTimeout time.Duration
}

// DefaultLedgerConfig returns default configuration.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		EvaluateOnEvent: true,
		LockTimeout:     5 * time.Second,
	}
}

// Ledger handles ApplyEventCommand.
type Ledger struct {
	store     student.RatingStore
	locks     *syncutil.KeyedMutex
	publisher shared.EventPublisher
	evaluator StudentEvaluator
	clock     timeutil.Clock
	logger    *slog.Logger
	config    LedgerConfig
}

// LedgerDeps groups the ledger collaborators. Publisher, Evaluator, Clock
// and Logger are optional.
type LedgerDeps struct {
	Store     student.RatingStore
	Locks     *syncutil.KeyedMutex
	Publisher shared.EventPublisher
	Evaluator StudentEvaluator
	Clock     timeutil.Clock
	Logger    *slog.Logger
}

// NewLedger creates a new Ledger.
func NewLedger(deps LedgerDeps, config LedgerConfig) *Ledger {
	if deps.Locks == nil {
		deps.Locks = syncutil.NewKeyedMutex(0)
	}
	if deps.Publisher == nil {
		deps.Publisher = shared.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Ledger{
		store:     deps.Store,
		locks:     deps.Locks,
		publisher: deps.Publisher,
		evaluator: deps.Evaluator,
		clock:     timeutil.OrSystem(deps.Clock),
		logger:    deps.Logger,
		config:    config,
	}
}

// Ledger outcomes used as metric labels.
const (
	outcomeApplied  = "applied"
	outcomeInvalid  = "invalid"
	outcomeNotFound = "not_found"
	outcomeConflict = "conflict"
	outcomeFailed   = "failed"
)

// Handle validates the event, computes the delta against the student's
// current rating under the per-student lock, and commits the rating and
// history record atomically.
func (l *Ledger) Handle(ctx context.Context, cmd ApplyEventCommand) (result *ApplyEventResult, err error) {
	kind := "UNKNOWN"
	if cmd.Event != nil {
		kind = string(cmd.Event.Kind())
	}
	observe := metrics.ObserveLedger(kind)

	ctx, span := tracing.StartSpan(ctx, "ledger.apply_event",
		tracing.StudentID(cmd.StudentID),
		tracing.EventKind(kind),
	)
	defer func() {
		observe(ledgerOutcome(err))
		tracing.End(span, err)
	}()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	at := cmd.OccurredAt
	if at.IsZero() {
		at = l.clock.Now()
	}

	unlock, err := l.lock(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}
	rec, err := l.store.ApplyRatingChange(ctx, cmd.StudentID, func(current *student.Student) (student.RatingChange, error) {
		return l.buildChange(current, cmd.Event, at)
	})
	unlock()
	if err != nil {
		return nil, classifyStoreError(err)
	}

	span.SetAttributes(tracing.Delta(rec.Delta))
	l.logger.Info("rating changed",
		"student_id", cmd.StudentID,
		"kind", kind,
		"prev", rec.PrevRating,
		"new", rec.NewRating,
		"delta", rec.Delta,
	)

	result = &ApplyEventResult{
		StudentID:  cmd.StudentID,
		Kind:       cmd.Event.Kind(),
		PrevRating: rec.PrevRating,
		NewRating:  rec.NewRating,
		Delta:      rec.Delta,
		Record:     rec,
	}

	evt := shared.NewRatingChangedEvent(cmd.StudentID, kind, rec.PrevRating, rec.NewRating, rec.Reason, rec.CreatedAt)
	if cmd.CorrelationID != "" {
		evt.BaseEvent = evt.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	if pubErr := l.publisher.Publish(evt); pubErr != nil {
		l.logger.Warn("failed to publish rating change", "student_id", cmd.StudentID, "error", pubErr)
	}

	// The change is already committed; evaluation failures are reported, not returned.
	if l.config.EvaluateOnEvent && l.evaluator != nil {
		codes, evalErr := l.evaluator.EvaluateStudent(ctx, cmd.StudentID)
		if evalErr != nil {
			l.logger.Error("achievement evaluation after rating change failed",
				"student_id", cmd.StudentID,
				"error", evalErr,
			)
		}
		result.NewAchievements = codes
	}

	return result, nil
}

func (l *Ledger) lock(ctx context.Context, studentID string) (func(), error) {
	lockCtx := ctx
	if l.config.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, l.config.LockTimeout)
		defer cancel()
	}

	unlock, err := l.locks.Lock(lockCtx, studentID)
	if err != nil {
		return nil, shared.WrapError("rating", "ApplyEvent", shared.ErrConcurrentUpdate,
			"gave up waiting for student lock", err)
	}
	return unlock, nil
}

func (l *Ledger) buildChange(current *student.Student, ev rating.Event, at time.Time) (student.RatingChange, error) {
	delta, err := rating.ComputeDelta(current.Rating, ev)
	if err != nil {
		return student.RatingChange{}, err
	}

	change := student.RatingChange{
		RecordID: uuid.New().String(),
		Delta:    delta,
		Reason:   rating.Reason(ev),
		At:       at,
	}

	if a, ok := ev.(rating.Academic); ok && a.Subject != "" {
		change.Grade = &student.Grade{
			ID:         uuid.New().String(),
			StudentID:  current.ID,
			Subject:    a.Subject,
			Score:      student.ScoreFromGrade(a.Grade),
			IsExam:     a.Type == rating.KindExam,
			RecordedAt: at.UTC(),
		}
	}
	return change, nil
}

// classifyStoreError keeps domain kinds and folds everything else into
// ErrStoreUnavailable.
func classifyStoreError(err error) error {
	switch {
	case shared.IsNotFound(err), shared.IsInvalidEvent(err), shared.IsConflict(err):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("rating", "ApplyEvent", shared.ErrStoreUnavailable,
			"rating update interrupted", err)
	default:
		return shared.WrapError("rating", "ApplyEvent", shared.ErrStoreUnavailable,
			"rating store failed", err)
	}
}

func ledgerOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeApplied
	case shared.IsInvalidEvent(err) || shared.IsValidation(err):
		return outcomeInvalid
	case shared.IsNotFound(err):
		return outcomeNotFound
	case shared.IsConflict(err):
		return outcomeConflict
	default:
		return outcomeFailed
	}
}

// ApplyEvent is a convenience wrapper around Handle.
func (l *Ledger) ApplyEvent(ctx context.Context, studentID string, ev rating.Event) (*ApplyEventResult, error) {
	res, err := l.Handle(ctx, ApplyEventCommand{StudentID: studentID, Event: ev})
	if err != nil {
		return nil, fmt.Errorf("apply event: %w", err)
	}
	return res, nil
}
