package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alem-hub/spectrum/internal/domain/achievement"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/internal/infrastructure/metrics"
	"github.com/alem-hub/spectrum/internal/infrastructure/tracing"
	"github.com/alem-hub/spectrum/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN ACHIEVEMENT SCAN COMMAND
// Evaluates achievement rules for one student or for everyone and grants
// what is newly satisfied. Granting is idempotent; nothing is revoked.
// ══════════════════════════════════════════════════════════════════════════════

// AllStudents selects a full pass in RunAchievementScanCommand.
const AllStudents = "*"

// scanPageSize is the page size used when walking all students.
const scanPageSize = 200

// RunAchievementScanCommand selects the scan target.
type RunAchievementScanCommand struct {
	// StudentID is a student ID or AllStudents.
	StudentID string
}

// Validate validates the command.
func (c RunAchievementScanCommand) Validate() error {
	if c.StudentID == "" {
		return shared.ErrInvalidStudentID
	}
	return nil
}

// EntityFailure records a per-student failure isolated during a pass.
type EntityFailure struct {
	StudentID string
	Err       error
}

// RunAchievementScanResult summarizes one scan.
type RunAchievementScanResult struct {
	StudentsScanned int

	// Granted maps student ID to the codes created in this scan.
	Granted map[string][]achievement.Code

	Failures []EntityFailure
}

// TotalGranted returns the number of grants created.
func (r *RunAchievementScanResult) TotalGranted() int {
	n := 0
	for _, codes := range r.Granted {
		n += len(codes)
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AchievementScanner runs the achievement rules against stored metrics.
type AchievementScanner struct {
	students  student.Repository
	grades    student.GradeRepository
	grants    achievement.Repository
	evaluator *achievement.Evaluator
	publisher shared.EventPublisher
	clock     timeutil.Clock
	logger    *slog.Logger
}

// AchievementScannerDeps groups the scanner collaborators.
type AchievementScannerDeps struct {
	Students  student.Repository
	Grades    student.GradeRepository
	Grants    achievement.Repository
	Evaluator *achievement.Evaluator
	Publisher shared.EventPublisher
	Clock     timeutil.Clock
	Logger    *slog.Logger
}

// NewAchievementScanner creates a new AchievementScanner.
func NewAchievementScanner(deps AchievementScannerDeps) *AchievementScanner {
	if deps.Evaluator == nil {
		deps.Evaluator = achievement.NewEvaluator(achievement.DefaultThresholds())
	}
	if deps.Publisher == nil {
		deps.Publisher = shared.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &AchievementScanner{
		students:  deps.Students,
		grades:    deps.Grades,
		grants:    deps.Grants,
		evaluator: deps.Evaluator,
		publisher: deps.Publisher,
		clock:     timeutil.OrSystem(deps.Clock),
		logger:    deps.Logger,
	}
}

// Handle runs the scan for the selected target.
func (s *AchievementScanner) Handle(ctx context.Context, cmd RunAchievementScanCommand) (*RunAchievementScanResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &RunAchievementScanResult{Granted: make(map[string][]achievement.Code)}

	if cmd.StudentID != AllStudents {
		codes, err := s.EvaluateStudent(ctx, cmd.StudentID)
		if err != nil {
			return nil, err
		}
		result.StudentsScanned = 1
		if len(codes) > 0 {
			result.Granted[cmd.StudentID] = codes
		}
		return result, nil
	}

	err := forEachStudent(ctx, s.students, func(st *student.Student) {
		result.StudentsScanned++
		codes, err := s.EvaluateStudent(ctx, st.ID)
		if err != nil {
			s.logger.Error("achievement scan failed for student", "student_id", st.ID, "error", err)
			result.Failures = append(result.Failures, EntityFailure{StudentID: st.ID, Err: err})
			return
		}
		if len(codes) > 0 {
			result.Granted[st.ID] = codes
		}
	})
	if err != nil {
		return result, err
	}

	s.logger.Info("achievement scan finished",
		"students", result.StudentsScanned,
		"granted", result.TotalGranted(),
		"failures", len(result.Failures),
	)
	return result, nil
}

// EvaluateStudent loads one student's metrics and grants what is newly
// satisfied. Returns the codes created by this call.
func (s *AchievementScanner) EvaluateStudent(ctx context.Context, studentID string) ([]achievement.Code, error) {
	ctx, span := tracing.StartSpan(ctx, "achievements.evaluate_student", tracing.StudentID(studentID))

	snap, err := s.loadSnapshot(ctx, studentID)
	if err != nil {
		tracing.End(span, err)
		return nil, err
	}

	codes, err := s.GrantFromSnapshot(ctx, snap)
	tracing.End(span, err)
	return codes, err
}

func (s *AchievementScanner) loadSnapshot(ctx context.Context, studentID string) (achievement.Snapshot, error) {
	st, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return achievement.Snapshot{}, err
	}
	grades, err := s.grades.GradesByStudent(ctx, studentID)
	if err != nil {
		return achievement.Snapshot{}, fmt.Errorf("load grades: %w", err)
	}
	return achievement.Snapshot{StudentID: st.ID, Grades: grades, Stats: st.Stats}, nil
}

// GrantFromSnapshot evaluates an already-loaded snapshot. The security
// sweep uses it so metrics are read once per student.
func (s *AchievementScanner) GrantFromSnapshot(ctx context.Context, snap achievement.Snapshot) ([]achievement.Code, error) {
	held, err := s.grants.ListByStudent(ctx, snap.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load grants: %w", err)
	}

	var created []achievement.Code
	for _, code := range s.evaluator.Pending(snap, held) {
		now := s.clock.Now()
		ok, err := s.grants.Grant(ctx, achievement.Grant{
			StudentID: snap.StudentID,
			Code:      code,
			EarnedAt:  now,
		})
		if err != nil {
			return created, fmt.Errorf("grant %s: %w", code, err)
		}
		if !ok {
			continue
		}

		created = append(created, code)
		metrics.AchievementsGrantedTotal.WithLabelValues(string(code)).Inc()

		def, _ := achievement.Lookup(code)
		if err := s.publisher.Publish(shared.NewAchievementGrantedEvent(snap.StudentID, string(code), def.Title, now)); err != nil {
			s.logger.Warn("failed to publish achievement", "student_id", snap.StudentID, "code", code, "error", err)
		}
		s.logger.Info("achievement granted", "student_id", snap.StudentID, "code", code)
	}
	return created, nil
}

// forEachStudent walks all students page by page in creation order,
// stopping early when ctx is cancelled.
func forEachStudent(ctx context.Context, repo student.Repository, fn func(*student.Student)) error {
	opts := student.DefaultListOptions().WithLimit(scanPageSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := repo.List(ctx, opts)
		if err != nil {
			return shared.WrapError("student", "List", shared.ErrStoreUnavailable, "failed to list students", err)
		}

		for _, st := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(st)
		}

		if len(page) < opts.Limit {
			return nil
		}
		opts = opts.WithOffset(opts.Offset + len(page))
	}
}
