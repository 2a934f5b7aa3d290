package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/spectrum/internal/domain/achievement"
	"github.com/alem-hub/spectrum/internal/domain/security"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/internal/infrastructure/metrics"
	"github.com/alem-hub/spectrum/internal/infrastructure/tracing"
	"github.com/alem-hub/spectrum/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN SECURITY SCAN COMMAND
// Batch pass over all students: classifies risk, raises deduplicated
// CRITICAL alerts and runs the achievement rules on the same snapshot.
// A failing student is logged and skipped; the pass continues.
// ══════════════════════════════════════════════════════════════════════════════

// SweepResult summarizes one security sweep.
type SweepResult struct {
	SweepID             string
	StudentsScanned     int
	AlertsCreated       int
	AchievementsGranted int
	RiskClasses         map[security.RiskClass]int
	Failures            []EntityFailure
	StartedAt           time.Time
	Duration            time.Duration
}

// SecurityScanner runs the security sweep.
type SecurityScanner struct {
	students     student.Repository
	grades       student.GradeRepository
	alerts       security.AlertRepository
	achievements *AchievementScanner
	publisher    shared.EventPublisher
	clock        timeutil.Clock
	logger       *slog.Logger
}

// SecurityScannerDeps groups the scanner collaborators. Achievements is
// optional; without it the sweep only handles risk.
type SecurityScannerDeps struct {
	Students     student.Repository
	Grades       student.GradeRepository
	Alerts       security.AlertRepository
	Achievements *AchievementScanner
	Publisher    shared.EventPublisher
	Clock        timeutil.Clock
	Logger       *slog.Logger
}

// NewSecurityScanner creates a new SecurityScanner.
func NewSecurityScanner(deps SecurityScannerDeps) *SecurityScanner {
	if deps.Publisher == nil {
		deps.Publisher = shared.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &SecurityScanner{
		students:     deps.Students,
		grades:       deps.Grades,
		alerts:       deps.Alerts,
		achievements: deps.Achievements,
		publisher:    deps.Publisher,
		clock:        timeutil.OrSystem(deps.Clock),
		logger:       deps.Logger,
	}
}

// Run executes one sweep. It returns an error only when the student list
// itself cannot be read or ctx is cancelled; per-student errors are in
// SweepResult.Failures. Work committed before an error is kept.
func (s *SecurityScanner) Run(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{
		SweepID:     uuid.New().String(),
		RiskClasses: make(map[security.RiskClass]int),
		StartedAt:   s.clock.Now(),
	}

	ctx, span := tracing.StartSpan(ctx, "security.sweep", tracing.SweepID(result.SweepID))
	start := time.Now()

	err := forEachStudent(ctx, s.students, func(st *student.Student) {
		result.StudentsScanned++
		alerted, granted, err := s.scanStudent(ctx, st)
		result.AchievementsGranted += granted
		if alerted {
			result.AlertsCreated++
		}
		if err != nil {
			metrics.SweepFailuresTotal.Inc()
			s.logger.Error("security scan failed for student", "student_id", st.ID, "error", err)
			result.Failures = append(result.Failures, EntityFailure{StudentID: st.ID, Err: err})
			return
		}
		result.RiskClasses[security.ClassifyRisk(st.RiskScore)]++
	})

	result.Duration = time.Since(start)
	metrics.SweepDuration.Observe(result.Duration.Seconds())
	tracing.End(span, err)

	s.logger.Info("security sweep finished",
		"sweep_id", result.SweepID,
		"students", result.StudentsScanned,
		"alerts_created", result.AlertsCreated,
		"achievements_granted", result.AchievementsGranted,
		"failures", len(result.Failures),
		"duration", result.Duration,
	)

	evt := shared.NewSweepFinishedEvent(result.SweepID, result.StudentsScanned, result.AlertsCreated,
		result.AchievementsGranted, len(result.Failures), result.Duration, s.clock.Now())
	if pubErr := s.publisher.Publish(evt); pubErr != nil {
		s.logger.Warn("failed to publish sweep summary", "error", pubErr)
	}

	return result, err
}

// scanStudent handles one student. The alert and the grants are each
// committed on their own: a failed alert does not skip the grants and a
// grant failure does not undo an alert. Both errors are returned joined.
func (s *SecurityScanner) scanStudent(ctx context.Context, st *student.Student) (alerted bool, granted int, err error) {
	var alertErr error
	if security.ClassifyRisk(st.RiskScore) == security.RiskCritical {
		alerted, alertErr = s.raiseHighRisk(ctx, st)
	}

	if s.achievements == nil {
		return alerted, 0, alertErr
	}

	grades, err := s.grades.GradesByStudent(ctx, st.ID)
	if err != nil {
		return alerted, 0, errors.Join(alertErr, fmt.Errorf("load grades: %w", err))
	}
	codes, err := s.achievements.GrantFromSnapshot(ctx, achievement.Snapshot{
		StudentID: st.ID,
		Grades:    grades,
		Stats:     st.Stats,
	})
	return alerted, len(codes), errors.Join(alertErr, err)
}

func (s *SecurityScanner) raiseHighRisk(ctx context.Context, st *student.Student) (bool, error) {
	alert := security.NewHighRiskAlert(uuid.New().String(), st.ID, st.FullName, st.Ticket, s.clock.Now())

	created, err := s.alerts.CreateIfAbsent(ctx, alert)
	if err != nil {
		return false, fmt.Errorf("create alert: %w", err)
	}
	if !created {
		return false, nil
	}

	metrics.AlertsCreatedTotal.WithLabelValues(string(alert.Level)).Inc()
	s.logger.Warn("high risk alert raised", "student_id", st.ID, "risk_score", st.RiskScore)

	evt := shared.NewAlertRaisedEvent(st.ID, alert.ID, string(alert.Level), alert.Message, alert.Source, alert.CreatedAt)
	if err := s.publisher.Publish(evt); err != nil {
		s.logger.Warn("failed to publish alert", "alert_id", alert.ID, "error", err)
	}
	return true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVE ALERT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ResolveAlertHandler marks an alert as resolved. Sweeps never resolve
// alerts themselves.
type ResolveAlertHandler struct {
	alerts    security.AlertRepository
	publisher shared.EventPublisher
	clock     timeutil.Clock
}

// NewResolveAlertHandler creates a new ResolveAlertHandler.
func NewResolveAlertHandler(alerts security.AlertRepository, publisher shared.EventPublisher, clock timeutil.Clock) *ResolveAlertHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	return &ResolveAlertHandler{alerts: alerts, publisher: publisher, clock: timeutil.OrSystem(clock)}
}

// Handle resolves the alert with the given ID.
func (h *ResolveAlertHandler) Handle(ctx context.Context, alertID string) error {
	if alertID == "" {
		return shared.ErrAlertNotFound
	}
	now := h.clock.Now()
	if err := h.alerts.Resolve(ctx, alertID, now); err != nil {
		return err
	}
	_ = h.publisher.Publish(shared.NewAlertResolvedEvent(alertID, now))
	return nil
}
