// Package jobs contains the scheduled jobs of SPECTRUM.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alem-hub/spectrum/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// Sweeper runs one security sweep.
type Sweeper interface {
	Run(ctx context.Context) (*command.SweepResult, error)
}

// Locker hands out short-lived cross-instance locks. ok=false means another
// instance holds the lock.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// SecuritySweepConfig contains configuration for the sweep job.
type SecuritySweepConfig struct {
	// Timeout is the maximum duration of one sweep.
	Timeout time.Duration

	// LockTTL bounds how long the cross-instance lock is held.
	LockTTL time.Duration
}

// DefaultSecuritySweepConfig returns sensible defaults.
func DefaultSecuritySweepConfig() SecuritySweepConfig {
	return SecuritySweepConfig{
		Timeout: 5 * time.Minute,
		LockTTL: 5 * time.Minute,
	}
}

// SecuritySweepJob runs the security sweep on a schedule. With a Locker
// only one instance sweeps at a time; the others skip the run.
type SecuritySweepJob struct {
	sweeper Sweeper
	locker  Locker
	logger  *slog.Logger
	config  SecuritySweepConfig

	lastResult atomic.Pointer[command.SweepResult]
	skipped    atomic.Int64
}

// NewSecuritySweepJob creates a new sweep job. locker may be nil.
func NewSecuritySweepJob(sweeper Sweeper, locker Locker, logger *slog.Logger, config SecuritySweepConfig) *SecuritySweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecuritySweepJob{
		sweeper: sweeper,
		locker:  locker,
		logger:  logger.With("job", "security_sweep"),
		config:  config,
	}
}

// Name returns the job name.
func (j *SecuritySweepJob) Name() string {
	return "security_sweep"
}

// Description returns a human-readable description.
func (j *SecuritySweepJob) Description() string {
	return "Classifies student risk, raises deduplicated alerts and grants achievements"
}

// Run executes one sweep.
func (j *SecuritySweepJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	if j.locker != nil {
		release, ok, err := j.locker.TryLock(ctx, j.Name(), j.config.LockTTL)
		if err != nil {
			// Alerts and grants are deduplicated by the store.
			j.logger.Warn("sweep lock unavailable, sweeping anyway", "error", err)
		} else if !ok {
			j.skipped.Add(1)
			j.logger.Info("sweep skipped, another instance holds the lock")
			return nil
		} else {
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					j.logger.Warn("failed to release sweep lock", "error", err)
				}
			}()
		}
	}

	result, err := j.sweeper.Run(ctx)
	if result != nil {
		j.lastResult.Store(result)
	}
	if err != nil {
		return fmt.Errorf("security sweep: %w", err)
	}
	if n := len(result.Failures); n > 0 {
		j.logger.Warn("security sweep finished with failures", "failures", n)
	}
	return nil
}

// LastResult returns the last sweep summary, or nil before the first run.
func (j *SecuritySweepJob) LastResult() *command.SweepResult {
	return j.lastResult.Load()
}

// Skipped returns how many runs were skipped because of the lock.
func (j *SecuritySweepJob) Skipped() int64 {
	return j.skipped.Load()
}
