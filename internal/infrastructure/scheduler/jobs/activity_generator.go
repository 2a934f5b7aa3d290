package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/alem-hub/spectrum/internal/domain/activity"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/internal/infrastructure/metrics"
	"github.com/alem-hub/spectrum/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY GENERATOR JOB
// ══════════════════════════════════════════════════════════════════════════════

// ActivityGeneratorJob writes one synthetic feed entry per run for a random
// student and publishes it for the live stream.
type ActivityGeneratorJob struct {
	students  student.Repository
	logs      activity.Repository
	publisher shared.EventPublisher
	clock     timeutil.Clock
	logger    *slog.Logger
	templates []activity.Template

	mu  sync.Mutex
	rnd *rand.Rand
}

// ActivityGeneratorDeps groups the generator collaborators. Rand, Clock,
// Publisher and Logger are optional.
type ActivityGeneratorDeps struct {
	Students  student.Repository
	Logs      activity.Repository
	Publisher shared.EventPublisher
	Clock     timeutil.Clock
	Logger    *slog.Logger
	Rand      *rand.Rand
}

// NewActivityGeneratorJob creates a new generator job.
func NewActivityGeneratorJob(deps ActivityGeneratorDeps) *ActivityGeneratorJob {
	if deps.Publisher == nil {
		deps.Publisher = shared.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &ActivityGeneratorJob{
		students:  deps.Students,
		logs:      deps.Logs,
		publisher: deps.Publisher,
		clock:     timeutil.OrSystem(deps.Clock),
		logger:    deps.Logger.With("job", "activity_generator"),
		templates: activity.SyntheticTemplates(),
		rnd:       deps.Rand,
	}
}

// Name returns the job name.
func (j *ActivityGeneratorJob) Name() string {
	return "activity_generator"
}

// Description returns a human-readable description.
func (j *ActivityGeneratorJob) Description() string {
	return "Emits a synthetic activity feed entry for the live dashboard"
}

// Run writes and publishes one entry.
func (j *ActivityGeneratorJob) Run(ctx context.Context) error {
	entry, err := j.Generate(ctx)
	if err != nil {
		return err
	}

	evt := shared.NewActivityGeneratedEvent(entry.StudentID, entry.ID, string(entry.Type), entry.Message, string(entry.Severity), entry.CreatedAt)
	if err := j.publisher.Publish(evt); err != nil {
		j.logger.Warn("failed to publish activity", "activity_id", entry.ID, "error", err)
	}
	return nil
}

// Generate builds and saves one entry without publishing it. Entries are
// system-wide when there are no students.
func (j *ActivityGeneratorJob) Generate(ctx context.Context) (*activity.Log, error) {
	tpl := j.templates[j.intN(len(j.templates))]

	studentID, err := j.pickStudent(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := activity.NewLog(uuid.New().String(), studentID, tpl.Type, tpl.Severity, tpl.Message, j.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := j.logs.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("save activity: %w", err)
	}
	metrics.ActivityGeneratedTotal.WithLabelValues(string(entry.Type)).Inc()
	return entry, nil
}

func (j *ActivityGeneratorJob) pickStudent(ctx context.Context) (string, error) {
	sum, err := j.students.Summary(ctx)
	if err != nil {
		return "", fmt.Errorf("count students: %w", err)
	}
	if sum.TotalStudents == 0 {
		return "", nil
	}

	opts := student.DefaultListOptions().WithOffset(j.intN(sum.TotalStudents)).WithLimit(1)
	page, err := j.students.List(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("pick student: %w", err)
	}
	if len(page) == 0 {
		return "", nil
	}
	return page[0].ID, nil
}

func (j *ActivityGeneratorJob) intN(n int) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rnd.IntN(n)
}
