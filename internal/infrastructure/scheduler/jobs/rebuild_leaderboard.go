package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// Rebuilder reloads the rating board from the system of record.
type Rebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// RebuildStats describes the last rebuild.
type RebuildStats struct {
	Entries   int           `json:"entries"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// RebuildLeaderboardJob resynchronises the sorted rating board with stored
// ratings. Incremental updates keep it current between runs.
type RebuildLeaderboardJob struct {
	rebuilder Rebuilder
	timeout   time.Duration
	logger    *slog.Logger

	last atomic.Pointer[RebuildStats]
}

// NewRebuildLeaderboardJob creates a new rebuild job. A zero timeout means
// five minutes.
func NewRebuildLeaderboardJob(rebuilder Rebuilder, timeout time.Duration, logger *slog.Logger) *RebuildLeaderboardJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RebuildLeaderboardJob{
		rebuilder: rebuilder,
		timeout:   timeout,
		logger:    logger.With("job", "rebuild_leaderboard"),
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Reloads the rating leaderboard from stored ratings"
}

// Run executes the rebuild.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	started := time.Now()
	n, err := j.rebuilder.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}

	stats := &RebuildStats{Entries: n, StartedAt: started, Duration: time.Since(started)}
	j.last.Store(stats)
	j.logger.Info("leaderboard rebuilt", "entries", n, "duration", stats.Duration)
	return nil
}

// LastStats returns the last successful rebuild, or nil.
func (j *RebuildLeaderboardJob) LastStats() *RebuildStats {
	return j.last.Load()
}
