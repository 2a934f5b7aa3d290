package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADJUST STUDENT COMMAND
// Changes stats, risk score and debts. Never touches the rating; rating
// changes go through the Ledger.
// ══════════════════════════════════════════════════════════════════════════════

// AdjustStudentCommand describes a stat/risk adjustment. Nil fields are
// left unchanged.
type AdjustStudentCommand struct {
	StudentID string

	// XP is converted into aptitude (XP/100 points, capped at 100).
	XP int

	// StatsDelta is added to the stats with clamping to [0, 100].
	StatsDelta student.Stats

	// RiskScore replaces the risk score.
	RiskScore *int

	// DebtsCount replaces the debt count.
	DebtsCount *int
}

// Validate validates the command.
func (c AdjustStudentCommand) Validate() error {
	if c.StudentID == "" {
		return shared.ErrInvalidStudentID
	}
	if c.XP < 0 {
		return shared.NewDomainError("student", "GrantXP", shared.ErrInvalidInput, "xp amount cannot be negative")
	}
	if c.DebtsCount != nil && *c.DebtsCount < 0 {
		return shared.NewDomainError("student", "Validate", shared.ErrInvalidInput, "debts count cannot be negative")
	}
	return nil
}

// AdjustStudentHandler handles AdjustStudentCommand and ChangeStatusCommand.
type AdjustStudentHandler struct {
	students  student.Repository
	evaluator StudentEvaluator
	publisher shared.EventPublisher
	clock     timeutil.Clock
	logger    *slog.Logger
}

// NewAdjustStudentHandler creates a new AdjustStudentHandler. The
// evaluator is optional; when set, achievements are re-evaluated after
// stats change.
func NewAdjustStudentHandler(students student.Repository, evaluator StudentEvaluator, publisher shared.EventPublisher, clock timeutil.Clock, logger *slog.Logger) *AdjustStudentHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdjustStudentHandler{
		students:  students,
		evaluator: evaluator,
		publisher: publisher,
		clock:     timeutil.OrSystem(clock),
		logger:    logger,
	}
}

// Handle applies the adjustment.
func (h *AdjustStudentHandler) Handle(ctx context.Context, cmd AdjustStudentCommand) (*student.Student, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	updated, err := h.students.Update(ctx, cmd.StudentID, func(st *student.Student) error {
		if cmd.XP > 0 {
			st.GrantXP(cmd.XP, now)
		}
		if cmd.StatsDelta != (student.Stats{}) {
			st.AdjustStats(cmd.StatsDelta, now)
		}
		if cmd.RiskScore != nil {
			if err := st.SetRiskScore(*cmd.RiskScore, now); err != nil {
				return err
			}
		}
		if cmd.DebtsCount != nil {
			st.DebtsCount = *cmd.DebtsCount
			st.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("student adjusted",
		"student_id", updated.ID,
		"aptitude", updated.Stats.Aptitude,
		"resilience", updated.Stats.Resilience,
		"sociability", updated.Stats.Sociability,
		"risk_score", updated.RiskScore,
	)
	_ = h.publisher.Publish(statsAdjustedEvent(updated, now))

	if h.evaluator != nil {
		if _, err := h.evaluator.EvaluateStudent(ctx, updated.ID); err != nil {
			h.logger.Error("achievement evaluation after adjustment failed", "student_id", updated.ID, "error", err)
		}
	}
	return updated, nil
}

// ChangeStatusCommand moves a student to another status.
type ChangeStatusCommand struct {
	StudentID string
	Status    student.Status
}

// ChangeStatus applies a status transition.
func (h *AdjustStudentHandler) ChangeStatus(ctx context.Context, cmd ChangeStatusCommand) (*student.Student, error) {
	if cmd.StudentID == "" {
		return nil, shared.ErrInvalidStudentID
	}

	now := h.clock.Now()
	var from student.Status
	updated, err := h.students.Update(ctx, cmd.StudentID, func(st *student.Student) error {
		from = st.Status
		return st.TransitionTo(cmd.Status, now)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("student status changed", "student_id", updated.ID, "from", from, "to", updated.Status)
	_ = h.publisher.Publish(shared.NewStudentStatusChangedEvent(updated.ID, string(from), string(updated.Status), now))
	return updated, nil
}

type studentStatsAdjustedEvent struct {
	shared.BaseEvent
	stats     student.Stats
	riskScore int
}

func (e studentStatsAdjustedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"aptitude":    e.stats.Aptitude,
		"resilience":  e.stats.Resilience,
		"sociability": e.stats.Sociability,
		"risk_score":  e.riskScore,
	}
}

func statsAdjustedEvent(st *student.Student, at time.Time) shared.Event {
	return studentStatsAdjustedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStudentStatsAdjusted, st.ID, at),
		stats:     st.Stats,
		riskScore: st.RiskScore,
	}
}
