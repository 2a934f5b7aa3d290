// Package main - одноразовые задачи SPECTRUM для запуска из cron или CI:
// миграции схемы, проверка безопасности и перестройка таблицы лидеров.
//
// Использование:
//
//	worker migrate
//	worker rollback
//	worker sweep
//	worker rebuild-leaderboard
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/spectrum/config"
	"github.com/alem-hub/spectrum/internal/application/command"
	"github.com/alem-hub/spectrum/internal/application/eventhandler"
	"github.com/alem-hub/spectrum/internal/domain/achievement"
	"github.com/alem-hub/spectrum/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/spectrum/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/spectrum/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/spectrum/pkg/logger"
	"github.com/alem-hub/spectrum/pkg/retry"
	"github.com/alem-hub/spectrum/pkg/timeutil"
)

const usage = `usage: worker <task>

tasks:
  migrate              apply pending database migrations
  rollback             roll back the last applied migration
  sweep                run one security sweep
  rebuild-leaderboard  rebuild the Redis leaderboard from the database
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, task string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(logger.Options{
		Level:   logger.ParseLevel(cfg.Observability.LogLevel),
		Format:  logger.Format(cfg.Observability.LogFormat),
		Service: cfg.App.Name + "-worker",
		Env:     string(cfg.App.Environment),
	}).With("task", task)
	slog.SetDefault(log)

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	policy := retry.DefaultPolicy()
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("database not ready, retrying", "attempt", attempt, "delay", delay, "error", err)
	}
	dbConn, err := retry.DoWithData(ctx, policy, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, postgres.Config{
			URL:            cfg.Database.URL,
			MaxConns:       4,
			MinConns:       1,
			ConnectTimeout: cfg.Database.ConnectTimeout,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	switch task {
	case "migrate":
		applied, err := postgres.NewMigrator(dbConn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed", "applied", applied)
		return nil

	case "rollback":
		if err := postgres.NewMigrator(dbConn).Rollback(ctx); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		log.Info("last migration rolled back")
		return nil

	case "sweep":
		repo := postgres.NewStudentRepository(dbConn)
		clock := timeutil.SystemClock{}
		achievements := command.NewAchievementScanner(command.AchievementScannerDeps{
			Students:  repo,
			Grades:    repo,
			Grants:    postgres.NewAchievementRepository(dbConn),
			Evaluator: achievement.NewEvaluator(cfg.Achievement.Thresholds()),
			Clock:     clock,
			Logger:    log,
		})
		scanner := command.NewSecurityScanner(command.SecurityScannerDeps{
			Students:     repo,
			Grades:       repo,
			Alerts:       postgres.NewAlertRepository(dbConn),
			Achievements: achievements,
			Clock:        clock,
			Logger:       log,
		})

		var lock jobs.Locker
		if cfg.Redis.Enabled {
			cache, err := newCache(cfg)
			if err != nil {
				return err
			}
			defer cache.Close()
			lock = cache
		}

		sweepConfig := jobs.DefaultSecuritySweepConfig()
		sweepConfig.Timeout = cfg.Scheduler.SweepTimeout
		job := jobs.NewSecuritySweepJob(scanner, lock, log, sweepConfig)
		if err := job.Run(ctx); err != nil {
			return err
		}
		if res := job.LastResult(); res != nil {
			log.Info("sweep completed",
				"students", res.StudentsScanned,
				"alerts", res.AlertsCreated,
				"failures", len(res.Failures),
			)
		}
		return nil

	case "rebuild-leaderboard":
		if !cfg.Redis.Enabled {
			return errors.New("REDIS_ENABLED is required to rebuild the leaderboard")
		}
		cache, err := newCache(cfg)
		if err != nil {
			return err
		}
		defer cache.Close()

		rebuilder := eventhandler.NewOnRatingChangedHandler(postgres.NewStudentRepository(dbConn), redis.NewRatingBoard(cache), log)
		return jobs.NewRebuildLeaderboardJob(rebuilder, 0, log).Run(ctx)

	default:
		flag.Usage()
		return fmt.Errorf("unknown task %q", task)
	}
}

func newCache(cfg *config.Config) (*redis.Cache, error) {
	rc := redis.DefaultConfig()
	rc.URL = cfg.Redis.URL
	rc.Addr = cfg.Redis.Addr
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	cache, err := redis.NewCache(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return cache, nil
}
