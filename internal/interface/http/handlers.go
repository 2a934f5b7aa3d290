package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/alem-hub/spectrum/internal/application/command"
	"github.com/alem-hub/spectrum/internal/application/query"
	"github.com/alem-hub/spectrum/internal/domain/rating"
	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/alem-hub/spectrum/internal/infrastructure/scheduler"
)

// Search parameters of the student lookup box.
const (
	minSearchLength = 2
	searchLimit     = 10
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(c *gin.Context) {
	status := s.deps.Health.Check(c.Request.Context())
	if !status.Healthy {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

type onboardRequest struct {
	Ticket    string `json:"ticket" binding:"required"`
	FullName  string `json:"full_name" binding:"required"`
	GroupName string `json:"group_name"`
}

func (s *Server) handleOnboard(c *gin.Context) {
	var req onboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", "ticket and full_name are required"))
		return
	}

	st, err := s.deps.Onboard.Handle(c.Request.Context(), command.OnboardStudentCommand{
		Ticket:    req.Ticket,
		FullName:  req.FullName,
		GroupName: req.GroupName,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	profile, err := s.deps.Profile.Handle(c.Request.Context(), st.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (s *Server) handleSearch(c *gin.Context) {
	text := strings.TrimSpace(c.Query("q"))
	if utf8.RuneCountInString(text) < minSearchLength {
		c.JSON(http.StatusOK, []query.StudentSummaryDTO{})
		return
	}

	found, err := s.deps.Search.Handle(c.Request.Context(), query.SearchStudentsQuery{Text: text, Limit: searchLimit})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) handleProfile(c *gin.Context) {
	profile, err := s.deps.Profile.Handle(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleRatingHistory(c *gin.Context) {
	history, err := s.deps.History.Handle(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// eventRequest is the wire form of an evaluation event. Only the fields of
// the given kind are read.
type eventRequest struct {
	Kind string `json:"kind" binding:"required"`

	// EXAM, TEST, HOMEWORK
	Grade   int    `json:"grade"`
	Subject string `json:"subject"`

	// COMPETITION
	Placement    int `json:"placement"`
	Participants int `json:"participants"`

	// KUDOS
	Bonus int `json:"bonus"`

	// MANUAL
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (r eventRequest) event() (rating.Event, error) {
	switch kind := rating.Kind(strings.ToUpper(strings.TrimSpace(r.Kind))); kind {
	case rating.KindExam, rating.KindTest, rating.KindHomework:
		return rating.Academic{Type: kind, Grade: r.Grade, Subject: r.Subject}, nil
	case rating.KindCompetition:
		return rating.Competition{Placement: r.Placement, Participants: r.Participants}, nil
	case rating.KindKudos:
		return rating.Kudos{Bonus: r.Bonus}, nil
	case rating.KindManual:
		return rating.Manual{Delta: r.Delta, Reason: r.Reason}, nil
	default:
		return nil, shared.ErrUnknownEventKind
	}
}

func (s *Server) handleApplyEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", "kind is required"))
		return
	}
	ev, err := req.event()
	if err != nil {
		s.writeError(c, err)
		return
	}

	res, err := s.deps.Ledger.Handle(c.Request.Context(), command.ApplyEventCommand{
		StudentID:     c.Param("id"),
		Event:         ev,
		CorrelationID: c.GetString(requestIDKey),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	granted := make([]string, 0, len(res.NewAchievements))
	for _, code := range res.NewAchievements {
		granted = append(granted, string(code))
	}
	c.JSON(http.StatusOK, gin.H{
		"student_id":       res.StudentID,
		"kind":             res.Kind,
		"prev_rating":      res.PrevRating,
		"new_rating":       res.NewRating,
		"delta":            res.Delta,
		"reason":           res.Record.Reason,
		"record_id":        res.Record.ID,
		"new_achievements": granted,
	})
}

type xpRequest struct {
	Amount *int `json:"amount" binding:"required"`
}

func (s *Server) handleGrantXP(c *gin.Context) {
	var req xpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", "amount is required"))
		return
	}

	st, err := s.deps.Adjust.Handle(c.Request.Context(), command.AdjustStudentCommand{
		StudentID: c.Param("id"),
		XP:        *req.Amount,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"student_id": st.ID,
		"xp_added":   *req.Amount,
		"stats": query.StatsDTO{
			Aptitude:    st.Stats.Aptitude,
			Resilience:  st.Stats.Resilience,
			Sociability: st.Stats.Sociability,
		},
	})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) handleChangeStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", "status is required"))
		return
	}
	next := student.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !next.IsValid() {
		c.JSON(http.StatusBadRequest, errorBody("validation_error", "unknown status "+strconv.Quote(req.Status)))
		return
	}

	st, err := s.deps.Adjust.ChangeStatus(c.Request.Context(), command.ChangeStatusCommand{
		StudentID: c.Param("id"),
		Status:    next,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": st.ID, "status": st.Status})
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	res, err := s.deps.Leaderboard.Handle(c.Request.Context(), query.GetLeaderboardQuery{Limit: limit})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN
// ══════════════════════════════════════════════════════════════════════════════

type achievementScanRequest struct {
	StudentID string `json:"student_id"`
}

func (s *Server) handleAchievementScan(c *gin.Context) {
	var req achievementScanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody("invalid_request", "malformed body"))
			return
		}
	}
	target := strings.TrimSpace(req.StudentID)
	if target == "" {
		target = command.AllStudents
	}

	res, err := s.deps.Achievements.Handle(c.Request.Context(), command.RunAchievementScanCommand{StudentID: target})
	if err != nil {
		s.writeError(c, err)
		return
	}

	granted := make(map[string][]string, len(res.Granted))
	for id, codes := range res.Granted {
		for _, code := range codes {
			granted[id] = append(granted[id], string(code))
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"students_scanned": res.StudentsScanned,
		"total_granted":    res.TotalGranted(),
		"granted":          granted,
		"failures":         failureIDs(res.Failures),
	})
}

func (s *Server) handleSecurityScan(c *gin.Context) {
	res, err := s.deps.Security.Run(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sweep_id":             res.SweepID,
		"students_scanned":     res.StudentsScanned,
		"alerts_created":       res.AlertsCreated,
		"achievements_granted": res.AchievementsGranted,
		"risk_classes":         res.RiskClasses,
		"failures":             failureIDs(res.Failures),
		"started_at":           res.StartedAt,
		"duration_ms":          res.Duration.Milliseconds(),
	})
}

func (s *Server) handleListAlerts(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	alerts, err := s.deps.Alerts.Handle(c.Request.Context(), query.ListAlertsQuery{
		UnresolvedOnly: c.Query("unresolved") == "true",
		Limit:          limit,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (s *Server) handleResolveAlert(c *gin.Context) {
	id := c.Param("id")
	if err := s.deps.ResolveAlert.Handle(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_resolved": true})
}

func (s *Server) handleDepartmentStats(c *gin.Context) {
	stats, err := s.deps.Department.Handle(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleAtRisk(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	profiles, err := s.deps.AtRisk.Handle(c.Request.Context(), query.ListAtRiskQuery{Limit: limit})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

func (s *Server) handleTopByGPA(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	entries, err := s.deps.TopByGPA.Handle(c.Request.Context(), query.TopByGPAQuery{Limit: limit})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleActivity(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	logs, err := s.deps.Activity.Handle(c.Request.Context(), query.ListActivityQuery{
		Type:  strings.ToUpper(c.Query("type")),
		Limit: limit,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (s *Server) handleJobs(c *gin.Context) {
	if s.deps.Scheduler == nil {
		c.JSON(http.StatusOK, []scheduler.JobInfo{})
		return
	}
	c.JSON(http.StatusOK, s.deps.Scheduler.ListJobs())
}

func (s *Server) handleRunJob(c *gin.Context) {
	if s.deps.Scheduler == nil {
		c.JSON(http.StatusNotFound, errorBody("not_found", "scheduler disabled"))
		return
	}

	res, err := s.deps.Scheduler.RunNow(c.Request.Context(), c.Param("name"))
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		c.JSON(http.StatusNotFound, errorBody("not_found", err.Error()))
	case errors.Is(err, scheduler.ErrJobBusy):
		c.JSON(http.StatusConflict, errorBody("job_busy", err.Error()))
	case err != nil:
		s.logger.Error("manual job run failed", "job", c.Param("name"), "error", err)
		c.JSON(http.StatusInternalServerError, errorBody("job_failed", err.Error()))
	default:
		c.JSON(http.StatusOK, gin.H{
			"job":         res.JobName,
			"success":     res.Success,
			"duration_ms": res.Duration.Milliseconds(),
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func errorBody(code, message string) gin.H {
	return gin.H{"error": code, "message": message}
}

// statusFor maps domain error kinds onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrStateTransition):
		return http.StatusConflict, "invalid_transition"
	case shared.IsInvalidEvent(err):
		return http.StatusBadRequest, "invalid_event"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case shared.IsStoreUnavailable(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)

	message := "An unexpected error occurred"
	var de *shared.DomainError
	switch {
	case status == http.StatusServiceUnavailable:
		message = "Service temporarily unavailable"
	case errors.As(err, &de):
		message = de.Message
	case status < http.StatusInternalServerError:
		message = err.Error()
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", c.FullPath(),
			"status", status,
			"request_id", c.GetString(requestIDKey),
			"error", err,
		)
	}
	c.JSON(status, errorBody(code, message))
}

// queryInt reads an optional non-negative integer parameter. It writes a 400
// and returns false on bad input.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", key+" must be a non-negative integer"))
		return 0, false
	}
	return v, true
}

func failureIDs(failures []command.EntityFailure) []string {
	ids := make([]string, 0, len(failures))
	for _, f := range failures {
		ids = append(ids, f.StudentID)
	}
	return ids
}
