package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/application/query"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
	"github.com/toeic-hub/toeic-daily-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves a minimal service banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Endpoint not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "toeic-daily-bot",
		"status":  "running",
		"uptime":  s.Uptime().Round(time.Second).String(),
	})
}

// handleHealth runs all dependency probes and reports the aggregate.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"healthy": true})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// handleReady reports readiness: healthy dependencies mean ready to serve.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ready": true})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", "Service dependencies are unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ready": true})
}

// handleLive is a pure liveness probe. If we can answer, we are alive.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"alive": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS API HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// progressRowDTO is the wire representation of one daily progress row.
type progressRowDTO struct {
	Date               string              `json:"date"`
	QuestionsAttempted int                 `json:"questions_attempted"`
	QuestionsCorrect   int                 `json:"questions_correct"`
	AccuracyPct        float64             `json:"accuracy_pct"`
	EstimatedScore     int                 `json:"estimated_score"`
	StreakDays         int                 `json:"streak_days"`
	WeakAreas          []progress.WeakArea `json:"weak_areas,omitempty"`
}

func toProgressRowDTO(p *progress.DailyProgress) progressRowDTO {
	return progressRowDTO{
		Date:               p.Date.Format("2006-01-02"),
		QuestionsAttempted: p.QuestionsAttempted,
		QuestionsCorrect:   p.QuestionsCorrect,
		AccuracyPct:        p.AccuracyPct,
		EstimatedScore:     int(p.EstimatedScore),
		StreakDays:         p.StreakDays,
		WeakAreas:          p.WeakAreas,
	}
}

// learnerDTO is the wire representation of a learner's public profile.
type learnerDTO struct {
	TelegramID     int64  `json:"telegram_id"`
	FirstName      string `json:"first_name"`
	TargetScore    int    `json:"target_score"`
	EstimatedScore int    `json:"estimated_score"`
	Difficulty     string `json:"difficulty"`
	DeliveryTime   string `json:"delivery_time"`
	Timezone       string `json:"timezone"`
	Active         bool   `json:"active"`
}

func toLearnerDTO(l *learner.Learner) learnerDTO {
	return learnerDTO{
		TelegramID:     int64(l.TelegramID),
		FirstName:      l.FirstName,
		TargetScore:    int(l.Preferences.TargetScore),
		EstimatedScore: int(l.CurrentEstimatedScore),
		Difficulty:     string(l.Preferences.Difficulty),
		DeliveryTime:   string(l.Preferences.DeliveryTime),
		Timezone:       l.Preferences.Timezone,
		Active:         l.IsActive,
	}
}

// handleGetProgress returns today's progress snapshot for a learner.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := s.telegramIDFromPath(w, r)
	if !ok {
		return
	}

	summary, err := s.deps.GetProgressSummaryHandler.Handle(r.Context(), telegramID)
	if err != nil {
		s.writeQueryError(r.Context(), w, "get progress", err)
		return
	}

	payload := map[string]interface{}{
		"learner":     toLearnerDTO(summary.Learner),
		"streak_days": summary.StreakDays,
		"weak_areas":  summary.WeakAreas,
	}
	if summary.Today != nil {
		payload["today"] = toProgressRowDTO(summary.Today)
	}

	writeJSON(w, http.StatusOK, payload)
}

// handleGetProgressHistory returns recent daily rows, newest first.
// Supports ?limit=N up to the query-side cap.
func (s *Server) handleGetProgressHistory(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := s.telegramIDFromPath(w, r)
	if !ok {
		return
	}

	limit := getQueryParamInt(r, "limit", query.DefaultHistoryLimit)

	history, err := s.deps.GetProgressHistoryHandler.Handle(r.Context(), telegramID, limit)
	if err != nil {
		s.writeQueryError(r.Context(), w, "get progress history", err)
		return
	}

	rows := make([]progressRowDTO, 0, len(history.Rows))
	for _, row := range history.Rows {
		rows = append(rows, toProgressRowDTO(row))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"learner": toLearnerDTO(history.Learner),
		"rows":    rows,
	})
}

// telegramIDFromPath parses the {telegram_id} path segment.
func (s *Server) telegramIDFromPath(w http.ResponseWriter, r *http.Request) (learner.TelegramID, bool) {
	raw := r.PathValue("telegram_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_telegram_id", "telegram_id must be a positive integer")
		return 0, false
	}
	return learner.TelegramID(id), true
}

// writeQueryError maps domain errors to HTTP status codes.
func (s *Server) writeQueryError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", "Learner not found")
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.logger.Error("query failed",
			logger.String("op", op),
			logger.Err(err),
			logger.String("request_id", getRequestID(ctx)),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}
