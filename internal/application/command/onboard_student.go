package command

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ONBOARD STUDENT COMMAND
// Creates a student with the initial rating, zero stats and zero risk.
// ══════════════════════════════════════════════════════════════════════════════

// OnboardStudentCommand contains the data of a new student.
type OnboardStudentCommand struct {
	Ticket    string
	FullName  string
	GroupName string
}

// OnboardStudentHandler handles OnboardStudentCommand.
type OnboardStudentHandler struct {
	students  student.Repository
	publisher shared.EventPublisher
	clock     timeutil.Clock
	logger    *slog.Logger
}

// NewOnboardStudentHandler creates a new OnboardStudentHandler.
func NewOnboardStudentHandler(students student.Repository, publisher shared.EventPublisher, clock timeutil.Clock, logger *slog.Logger) *OnboardStudentHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OnboardStudentHandler{
		students:  students,
		publisher: publisher,
		clock:     timeutil.OrSystem(clock),
		logger:    logger,
	}
}

// Handle creates the student.
func (h *OnboardStudentHandler) Handle(ctx context.Context, cmd OnboardStudentCommand) (*student.Student, error) {
	st, err := student.NewStudent(student.NewStudentParams{
		ID:        uuid.New().String(),
		Ticket:    cmd.Ticket,
		FullName:  cmd.FullName,
		GroupName: cmd.GroupName,
		CreatedAt: h.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	if err := h.students.Create(ctx, st); err != nil {
		return nil, err
	}

	h.logger.Info("student onboarded", "student_id", st.ID, "ticket", st.Ticket)
	if err := h.publisher.Publish(shared.NewStudentOnboardedEvent(st.ID, st.Ticket, st.FullName, st.Rating, st.CreatedAt)); err != nil {
		h.logger.Warn("failed to publish onboarding", "student_id", st.ID, "error", err)
	}
	return st, nil
}
