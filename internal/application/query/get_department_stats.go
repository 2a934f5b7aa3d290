package query

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/security"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DEPARTMENT STATS QUERY
// Сводка для заведующего кафедрой: число студентов, средний риск и
// состояние кафедры.
// ══════════════════════════════════════════════════════════════════════════════

// Состояние кафедры.
const (
	HealthStable  = "Stable"
	HealthWarning = "Warning"
)

// departmentStatsKey - ключ кеша сводки.
const departmentStatsKey = "department"

// DepartmentStatsDTO - сводка по кафедре.
type DepartmentStatsDTO struct {
	TotalStudents    int       `json:"total_students"`
	AverageRiskScore float64   `json:"average_risk_score"`
	DepartmentHealth string    `json:"department_health"`
	LastUpdate       time.Time `json:"last_update"`
}

// Cache - кеш агрегатов. Любая ошибка Get считается промахом.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// invalidateTimeout ограничивает сброс кеша из обработчика событий.
const invalidateTimeout = 2 * time.Second

// GetDepartmentStatsHandler считает сводку по кафедре.
type GetDepartmentStatsHandler struct {
	students student.Repository
	cache    Cache
	cacheTTL time.Duration
	clock    timeutil.Clock
	logger   *slog.Logger
}

// NewGetDepartmentStatsHandler создаёт новый обработчик. cache может быть nil.
func NewGetDepartmentStatsHandler(students student.Repository, cache Cache, cacheTTL time.Duration, clock timeutil.Clock, logger *slog.Logger) *GetDepartmentStatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetDepartmentStatsHandler{
		students: students,
		cache:    cache,
		cacheTTL: cacheTTL,
		clock:    timeutil.OrSystem(clock),
		logger:   logger,
	}
}

// Handle возвращает сводку.
func (h *GetDepartmentStatsHandler) Handle(ctx context.Context) (*DepartmentStatsDTO, error) {
	if h.cache != nil {
		var cached DepartmentStatsDTO
		if err := h.cache.Get(ctx, departmentStatsKey, &cached); err == nil {
			return &cached, nil
		}
	}

	sum, err := h.students.Summary(ctx)
	if err != nil {
		return nil, err
	}

	dto := &DepartmentStatsDTO{
		TotalStudents:    sum.TotalStudents,
		AverageRiskScore: math.Round(sum.AverageRiskScore*100) / 100,
		DepartmentHealth: DepartmentHealth(sum.AverageRiskScore),
		LastUpdate:       h.clock.Now(),
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, departmentStatsKey, dto, h.cacheTTL); err != nil {
			h.logger.Warn("department stats cache write failed", "error", err)
		}
	}
	return dto, nil
}

// Invalidate сбрасывает закешированную сводку.
func (h *GetDepartmentStatsHandler) Invalidate(ctx context.Context) error {
	if h.cache == nil {
		return nil
	}
	return h.cache.Delete(ctx, departmentStatsKey)
}

// HandleEvent реализует shared.EventHandler: сводка сбрасывается, когда
// меняются риск или состав студентов.
func (h *GetDepartmentStatsHandler) HandleEvent(event shared.Event) error {
	switch event.EventType() {
	case shared.EventSweepFinished, shared.EventStudentStatsAdjusted, shared.EventStudentOnboarded:
	default:
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()
	if err := h.Invalidate(ctx); err != nil {
		h.logger.Warn("department stats cache invalidation failed", "event", event.EventType(), "error", err)
		return err
	}
	return nil
}

// DepartmentHealth: "Stable", если средний риск ниже порога среднего
// класса, иначе "Warning".
func DepartmentHealth(avgRisk float64) string {
	if avgRisk < security.MediumRiskFrom {
		return HealthStable
	}
	return HealthWarning
}
