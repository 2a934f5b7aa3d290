package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Топ-N студентов по рейтингу. Сначала читается быстрая таблица в Redis;
// если она недоступна или пуста, запрос идёт в хранилище.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int
}

// LeaderboardEntryDTO - запись лидерборда.
type LeaderboardEntryDTO struct {
	Rank      int    `json:"rank"`
	StudentID string `json:"student_id"`
	FullName  string `json:"full_name"`
	GroupName string `json:"group_name,omitempty"`
	Rating    int    `json:"rating"`
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	Entries []LeaderboardEntryDTO `json:"entries"`

	// Source - откуда прочитаны данные: "cache" или "store".
	Source string `json:"source"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	students student.Repository
	board    student.RatingBoard
	clock    timeutil.Clock
	logger   *slog.Logger
}

// NewGetLeaderboardHandler создаёт новый обработчик. board может быть nil.
func NewGetLeaderboardHandler(students student.Repository, board student.RatingBoard, clock timeutil.Clock, logger *slog.Logger) *GetLeaderboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLeaderboardHandler{
		students: students,
		board:    board,
		clock:    timeutil.OrSystem(clock),
		logger:   logger,
	}
}

// Handle выполняет запрос на получение лидерборда.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	limit := clampLimit(q.Limit, 20, 100)

	if h.board != nil {
		standings, err := h.board.Top(ctx, limit)
		if err == nil && len(standings) > 0 {
			return h.result(standings, "cache"), nil
		}
		if err != nil {
			// Кеш не критичен: логируем и читаем из хранилища.
			h.logger.Warn("leaderboard cache read failed", "error", err)
		}
	}

	top, err := h.students.List(ctx, student.ListOptions{Limit: limit, SortBy: student.SortByRating, SortDesc: true})
	if err != nil {
		return nil, err
	}

	standings := make([]student.Standing, 0, len(top))
	for i, st := range top {
		s := student.StandingOf(st)
		s.Rank = i + 1
		standings = append(standings, s)
	}
	return h.result(standings, "store"), nil
}

func (h *GetLeaderboardHandler) result(standings []student.Standing, source string) *GetLeaderboardResult {
	entries := make([]LeaderboardEntryDTO, 0, len(standings))
	for _, s := range standings {
		entries = append(entries, LeaderboardEntryDTO{
			Rank:      s.Rank,
			StudentID: s.StudentID,
			FullName:  s.FullName,
			GroupName: s.GroupName,
			Rating:    s.Rating,
		})
	}
	return &GetLeaderboardResult{Entries: entries, Source: source, GeneratedAt: h.clock.Now()}
}
