// Package main - точка входа SPECTRUM: HTTP API, поток событий по
// WebSocket и фоновые задачи в одном процессе.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alem-hub/spectrum/config"
	"github.com/alem-hub/spectrum/internal/application/command"
	"github.com/alem-hub/spectrum/internal/application/eventhandler"
	"github.com/alem-hub/spectrum/internal/application/query"
	"github.com/alem-hub/spectrum/internal/domain/achievement"
	"github.com/alem-hub/spectrum/internal/domain/activity"
	"github.com/alem-hub/spectrum/internal/domain/security"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/internal/infrastructure/messaging"
	"github.com/alem-hub/spectrum/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/spectrum/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/spectrum/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/spectrum/internal/infrastructure/scheduler"
	"github.com/alem-hub/spectrum/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/spectrum/internal/infrastructure/tracing"
	httpserver "github.com/alem-hub/spectrum/internal/interface/http"
	"github.com/alem-hub/spectrum/internal/interface/realtime"
	"github.com/alem-hub/spectrum/pkg/logger"
	"github.com/alem-hub/spectrum/pkg/retry"
	"github.com/alem-hub/spectrum/pkg/syncutil"
	"github.com/alem-hub/spectrum/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// stores - репозитории, выбранные по конфигурации.
type stores struct {
	students     student.Repository
	ratings      student.RatingStore
	grades       student.GradeRepository
	achievements achievement.Repository
	alerts       security.AlertRepository
	logs         activity.Repository
}

// eventBus - шина событий с закрытием.
type eventBus interface {
	shared.EventBus
	Close() error
}

// connectPolicy повторяет подключение, пока зависимость поднимается.
func connectPolicy(log *slog.Logger, target string) retry.Policy {
	p := retry.ConnectPolicy()
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("connection attempt failed", "target", target, "attempt", attempt, "retry_in", delay.String(), "error", err)
	}
	return p
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	format := logger.FormatJSON
	if strings.EqualFold(cfg.Observability.LogFormat, string(logger.FormatText)) {
		format = logger.FormatText
	}
	log := logger.New(logger.Options{
		Level:   logger.ParseLevel(cfg.Observability.LogLevel),
		Format:  format,
		Service: cfg.App.Name,
		Env:     string(cfg.App.Environment),
	})
	slog.SetDefault(log)
	log.Info("starting SPECTRUM", "version", cfg.App.Version, "timezone", cfg.App.Timezone)

	loc, err := timeutil.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.App.Timezone, err)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.App.Name, cfg.App.Version, cfg.Observability.OTLPEndpoint, log)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	health := httpserver.NewHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	var st stores
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL is empty, using in-memory store")
		mem := memory.NewStore()
		st = stores{mem, mem, mem, mem, mem, mem}
	} else {
		log.Info("connecting to database...")
		dbConfig := postgres.Config{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			ConnectTimeout:  cfg.Database.ConnectTimeout,
		}
		dbConn, err := retry.DoWithData(ctx, connectPolicy(log, "postgres"), func(ctx context.Context) (*postgres.Connection, error) {
			return postgres.NewConnection(ctx, dbConfig)
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()

		if cfg.Database.Migrate {
			applied, err := postgres.NewMigrator(dbConn).Migrate(ctx)
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("migrations completed", "applied", applied)
		}

		repo := postgres.NewStudentRepository(dbConn)
		st = stores{
			students:     repo,
			ratings:      repo,
			grades:       repo,
			achievements: postgres.NewAchievementRepository(dbConn),
			alerts:       postgres.NewAlertRepository(dbConn),
			logs:         postgres.NewActivityRepository(dbConn),
		}
		health.AddCheck("postgres", httpserver.PingCheck(dbConn))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cache *redis.Cache
		board student.RatingBoard
		stats query.Cache
		lock  jobs.Locker
	)
	if cfg.Redis.Enabled {
		log.Info("connecting to Redis...")
		redisConfig := redis.Config{
			URL:          cfg.Redis.URL,
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   redis.DefaultConfig().MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}
		cache, err = retry.DoWithData(ctx, connectPolicy(log, "redis"), func(context.Context) (*redis.Cache, error) {
			return redis.NewCache(redisConfig)
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer cache.Close()

		board = redis.NewRatingBoard(cache)
		stats = cache
		lock = cache
		health.AddCheck("redis", httpserver.PingCheck(cache))
		log.Info("Redis connection established")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	var bus eventBus
	if cfg.Redis.EventBus {
		bus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(cache.Client()),
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
	} else {
		bus = messaging.NewInMemoryEventBus(busConfig)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{}

	achievements := command.NewAchievementScanner(command.AchievementScannerDeps{
		Students:  st.students,
		Grades:    st.grades,
		Grants:    st.achievements,
		Evaluator: achievement.NewEvaluator(cfg.Achievement.Thresholds()),
		Publisher: bus,
		Clock:     clock,
		Logger:    log,
	})
	ledger := command.NewLedger(command.LedgerDeps{
		Store:     st.ratings,
		Locks:     syncutil.NewKeyedMutex(0),
		Publisher: bus,
		Evaluator: achievements,
		Clock:     clock,
		Logger:    log,
	}, command.LedgerConfig{
		EvaluateOnEvent: cfg.Rating.EvaluateOnEvent,
		LockTimeout:     cfg.Rating.LockTimeout,
	})
	securityScanner := command.NewSecurityScanner(command.SecurityScannerDeps{
		Students:     st.students,
		Grades:       st.grades,
		Alerts:       st.alerts,
		Achievements: achievements,
		Publisher:    bus,
		Clock:        clock,
		Logger:       log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT HANDLERS И REALTIME
	// ─────────────────────────────────────────────────────────────────────────
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := realtime.NewHub(realtime.Options{
		MaxClients:     cfg.HTTP.MaxWSClients,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, log)
	go hub.Run(hubCtx)

	if err := bus.SubscribeAll(hub.Handle); err != nil {
		return fmt.Errorf("subscribe realtime hub: %w", err)
	}
	recorder := eventhandler.NewActivityRecorder(st.logs, bus, log)
	if err := bus.SubscribeAll(recorder.Handle); err != nil {
		return fmt.Errorf("subscribe activity recorder: %w", err)
	}

	department := query.NewGetDepartmentStatsHandler(st.students, stats, cfg.Redis.StatsTTL, clock, log)
	if err := bus.SubscribeAll(department.HandleEvent); err != nil {
		return fmt.Errorf("subscribe department stats invalidation: %w", err)
	}

	var boardUpdater *eventhandler.OnRatingChangedHandler
	if board != nil {
		boardUpdater = eventhandler.NewOnRatingChangedHandler(st.students, board, log)
		if err := bus.Subscribe(shared.EventRatingChanged, boardUpdater.Handle); err != nil {
			return fmt.Errorf("subscribe leaderboard updater: %w", err)
		}
		if n, err := boardUpdater.Rebuild(ctx); err != nil {
			log.Warn("initial leaderboard rebuild failed", "error", err)
		} else {
			log.Info("leaderboard loaded", "entries", n)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		schedConfig := scheduler.DefaultSchedulerConfig()
		schedConfig.Logger = log
		sched = scheduler.NewScheduler(schedConfig)

		sweepConfig := jobs.DefaultSecuritySweepConfig()
		sweepConfig.Timeout = cfg.Scheduler.SweepTimeout
		if err := sched.Register(
			jobs.NewSecuritySweepJob(securityScanner, lock, log, sweepConfig),
			scheduler.NewIntervalSchedule(cfg.Scheduler.SweepInterval),
			scheduler.RunOnStart(),
		); err != nil {
			return fmt.Errorf("register security sweep: %w", err)
		}

		if cfg.Scheduler.ActivityEnabled {
			generator := jobs.NewActivityGeneratorJob(jobs.ActivityGeneratorDeps{
				Students:  st.students,
				Logs:      st.logs,
				Publisher: bus,
				Clock:     clock,
				Logger:    log,
			})
			if err := sched.Register(generator,
				scheduler.NewJitterSchedule(cfg.Scheduler.ActivityMinDelay, cfg.Scheduler.ActivityMaxDelay, nil),
			); err != nil {
				return fmt.Errorf("register activity generator: %w", err)
			}
		}

		if boardUpdater != nil {
			if err := sched.Register(
				jobs.NewRebuildLeaderboardJob(boardUpdater, 0, log),
				scheduler.NewIntervalSchedule(cfg.Scheduler.LeaderboardInterval),
			); err != nil {
				return fmt.Errorf("register leaderboard rebuild: %w", err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
				log.Warn("scheduler stop failed", "error", err)
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpServer := httpserver.NewServer(httpserver.Config{
		Addr:           cfg.HTTP.Addr,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: httpserver.DefaultConfig().MaxHeaderBytes,
		Release:        cfg.IsProduction(),
	}, httpserver.Dependencies{
		Onboard:      command.NewOnboardStudentHandler(st.students, bus, clock, log),
		Adjust:       command.NewAdjustStudentHandler(st.students, achievements, bus, clock, log),
		Ledger:       ledger,
		Achievements: achievements,
		Security:     securityScanner,
		ResolveAlert: command.NewResolveAlertHandler(st.alerts, bus, clock),

		Profile:     query.NewGetStudentProfileHandler(st.students, st.grades, st.achievements),
		Search:      query.NewSearchStudentsHandler(st.students),
		History:     query.NewGetRatingHistoryHandler(st.students, st.ratings),
		Leaderboard: query.NewGetLeaderboardHandler(st.students, board, clock, log),
		Department:  department,
		AtRisk:      query.NewListAtRiskHandler(st.students, st.grades),
		TopByGPA:    query.NewTopByGPAHandler(st.students, st.grades),
		Alerts:      query.NewListAlertsHandler(st.alerts),
		Activity:    query.NewListActivityHandler(st.logs, loc),

		Hub:       hub,
		Scheduler: sched,
		Health:    health,
		Logger:    log,
	})
	httpErr := httpServer.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-httpErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
	}
	stopHub()

	log.Info("shutdown completed")
	return nil
}
