// Package ipc provides the HTTP API for the Fogbreaker battle engine.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fogbreaker/engine/internal/battle"
	"github.com/fogbreaker/engine/internal/domain"
	"github.com/fogbreaker/engine/internal/guard"
	"github.com/fogbreaker/engine/internal/levels"
	"github.com/fogbreaker/engine/internal/progression"
	"github.com/fogbreaker/engine/internal/store"
)

// Caller identity headers. The auth layer in front of the server sets them.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

const recentSessionLimit = 5

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Engine      *battle.Engine
	Guard       *guard.Guard
	Ledger      *progression.Ledger
	Levels      *levels.Catalog
	Repo        store.Repository
	DefaultMode domain.Mode
	Logger      *zap.Logger

	// PollInterval is how often StreamEvents checks for new events.
	PollInterval time.Duration
}

// NewHandler wires a Handler around an engine. The guard, ledger, catalog
// and repository are taken from the engine and guard.
func NewHandler(eng *battle.Engine, g *guard.Guard, defaultMode domain.Mode, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Engine:       eng,
		Guard:        g,
		Ledger:       eng.Ledger,
		Levels:       eng.Levels,
		Repo:         eng.Repo,
		DefaultMode:  defaultMode,
		Logger:       logger,
		PollInterval: 2 * time.Second,
	}
}

// StartBattleRequest is the body for POST /api/v1/battle and
// POST /api/v1/battle/autoplay.
type StartBattleRequest struct {
	LevelID int    `json:"level_id"`
	Mode    string `json:"mode"`
}

// AdvanceRequest is the body for POST /api/v1/battle/{sessionID}/advance.
type AdvanceRequest struct {
	Mode string `json:"mode"`
}

// LevelView is a catalog entry annotated for the caller.
type LevelView struct {
	domain.Level
	Unlocked  bool `json:"unlocked"`
	BestScore *int `json:"best_score"`
}

// LevelsResponse is the response for GET /api/v1/levels.
type LevelsResponse struct {
	Levels   []LevelView          `json:"levels"`
	Progress *domain.UserProgress `json:"progress"`
}

// MeResponse is the response for GET /api/v1/me.
type MeResponse struct {
	User           *domain.UserProfile  `json:"user"`
	Progress       *domain.UserProgress `json:"progress"`
	RecentSessions []domain.Session     `json:"recent_sessions"`
}

// StartBattleResponse is the response for POST /api/v1/battle.
type StartBattleResponse struct {
	Mode    domain.Mode     `json:"mode"`
	Session *domain.Session `json:"session"`
	Level   domain.Level    `json:"level"`
}

// AdvanceResponse wraps an advance result with the mode used.
type AdvanceResponse struct {
	Mode domain.Mode `json:"mode"`
	*battle.AdvanceResult
}

// ReportResponse is the response for GET /api/v1/report/{sessionID}.
type ReportResponse struct {
	Session *domain.Session      `json:"session"`
	Level   domain.Level         `json:"level"`
	Report  *domain.BattleReport `json:"report"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListLevels handles GET /api/v1/levels.
func (h *Handler) ListLevels(w http.ResponseWriter, r *http.Request) {
	_, progress, err := h.caller(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	all := h.Levels.All()
	views := make([]LevelView, len(all))
	for i, lv := range all {
		views[i] = LevelView{Level: lv, Unlocked: progress.IsUnlocked(lv.ID)}
		if best, ok := progress.BestScores[lv.ID]; ok {
			views[i].BestScore = &best
		}
	}
	writeJSON(w, http.StatusOK, LevelsResponse{Levels: views, Progress: progress})
}

// GetMe handles GET /api/v1/me.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, progress, err := h.caller(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sessions, err := h.Repo.ListSessionsByUser(r.Context(), user.ID, recentSessionLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	writeJSON(w, http.StatusOK, MeResponse{User: user, Progress: progress, RecentSessions: sessions})
}

// ListNotes handles GET /api/v1/me/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.caller(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	notes, err := h.Repo.ListNotes(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if notes == nil {
		notes = []domain.StudyNote{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// StartBattle handles POST /api/v1/battle.
func (h *Handler) StartBattle(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.caller(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	req, ok := decodeStart(w, r)
	if !ok {
		return
	}

	mode, err := h.mode(req.Mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Guard.CheckStart(r.Context(), user.ID, req.LevelID); err != nil {
		h.writeError(w, err)
		return
	}
	level, err := h.Levels.Get(req.LevelID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	s, err := h.Engine.Open(r.Context(), user.ID, req.LevelID, mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Logger.Info("battle opened",
		zap.String("session_id", s.ID),
		zap.String("user_id", user.ID),
		zap.Int("level_id", level.ID),
		zap.String("mode", string(mode)))
	writeJSON(w, http.StatusCreated, StartBattleResponse{Mode: mode, Session: s, Level: level})
}

// AdvanceBattle handles POST /api/v1/battle/{sessionID}/advance.
func (h *Handler) AdvanceBattle(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.caller(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req AdvanceRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
			return
		}
	}

	mode, err := h.mode(req.Mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.ownedSession(r, user.ID); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.Engine.Advance(r.Context(), r.PathValue("sessionID"), mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if res.Completed && res.Reward != nil {
		h.Logger.Info("battle completed",
			zap.String("session_id", res.Session.ID),
			zap.String("user_id", user.ID),
			zap.Int("total_score", res.Report.TotalScore),
			zap.Bool("leveled_up", res.Reward.LeveledUp))
	}
	writeJSON(w, http.StatusOK, AdvanceResponse{Mode: mode, AdvanceResult: res})
}

// AutoPlay handles POST /api/v1/battle/autoplay.
func (h *Handler) AutoPlay(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.caller(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	req, ok := decodeStart(w, r)
	if !ok {
		return
	}

	mode, err := h.mode(req.Mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Guard.CheckStart(r.Context(), user.ID, req.LevelID); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.Engine.AutoRun(r.Context(), user.ID, req.LevelID, mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdvanceResponse{Mode: mode, AdvanceResult: res})
}

// GetBattle handles GET /api/v1/battle/{sessionID}.
func (h *Handler) GetBattle(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.caller(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	s, err := h.ownedSession(r, user.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetReport handles GET /api/v1/report/{sessionID}.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.caller(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	s, err := h.ownedSession(r, user.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	rep, err := h.Engine.Report(r.Context(), s.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	level, err := h.Levels.Get(s.LevelID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReportResponse{Session: s, Level: level, Report: rep})
}

// ListEvents handles GET /api/v1/battle/{sessionID}/events?since_seq=N.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.caller(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	s, err := h.ownedSession(r, user.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sinceSeq := int64(0)
	if v := r.URL.Query().Get("since_seq"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			sinceSeq = parsed
		}
	}

	events, err := h.Repo.ListEvents(r.Context(), s.ID, sinceSeq)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if events == nil {
		events = []domain.BattleEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// StreamEvents handles GET /api/v1/battle/{sessionID}/events/stream (SSE).
// The stream ends once the session_completed event has been sent.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.caller(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	s, err := h.ownedSession(r, user.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, APIError{Code: 500, Message: "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	lastSeq := int64(0)
	send := func() (done bool, err error) {
		events, err := h.Repo.ListEvents(ctx, s.ID, lastSeq)
		if err != nil {
			return false, err
		}
		for _, ev := range events {
			writeSSEEvent(w, flusher, ev)
			lastSeq = ev.SeqNo
			if ev.EventType == battle.EventSessionCompleted {
				done = true
			}
		}
		return done, nil
	}

	// Initial batch.
	done, err := send()
	if err != nil {
		writeSSEError(w, flusher, err)
		return
	}
	if done {
		return
	}

	interval := h.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			done, err := send()
			if err != nil || done {
				return
			}
		}
	}
}

// caller resolves the request's user, provisioning unknown users.
func (h *Handler) caller(r *http.Request) (*domain.UserProfile, *domain.UserProgress, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return nil, nil, domain.ErrUnauthenticated
	}
	return h.Ledger.Provision(r.Context(), userID, strings.TrimSpace(r.Header.Get(HeaderUserName)))
}

func (h *Handler) ownedSession(r *http.Request, userID string) (*domain.Session, error) {
	s, err := h.Engine.Get(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		return nil, err
	}
	if err := h.Guard.CheckOwner(s, userID); err != nil {
		return nil, err
	}
	return s, nil
}

// mode resolves the request's mode. Empty means the server default; any
// other value must name a known mode.
func (h *Handler) mode(raw string) (domain.Mode, error) {
	if strings.TrimSpace(raw) == "" {
		if h.DefaultMode == "" {
			return domain.ModeFast, nil
		}
		return h.DefaultMode, nil
	}
	return domain.LookupMode(raw)
}

func decodeStart(w http.ResponseWriter, r *http.Request) (StartBattleRequest, bool) {
	var req StartBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return req, false
	}
	if req.LevelID < 1 {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "请提供正确的关卡ID"})
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var engErr *domain.EngineError
	if errors.As(err, &engErr) {
		status := statusFor(engErr.Code)
		if status >= http.StatusInternalServerError {
			h.Logger.Error("request failed", zap.Int("code", engErr.Code), zap.Error(err))
		}
		writeJSON(w, status, APIError{Code: engErr.Code, Message: engErr.Message})
		return
	}
	h.Logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}

func statusFor(code int) int {
	switch code {
	case domain.ErrUnauthenticated.Code:
		return http.StatusUnauthorized
	case domain.ErrLevelNotFound.Code, domain.ErrSessionNotFound.Code,
		domain.ErrUserNotFound.Code, domain.ErrReportNotReady.Code:
		return http.StatusNotFound
	case domain.ErrLevelLocked.Code, domain.ErrForbidden.Code:
		return http.StatusForbidden
	case domain.ErrRateLimitExceeded.Code:
		return http.StatusTooManyRequests
	case domain.ErrOptimisticLock.Code:
		return http.StatusConflict
	case domain.ErrInvalidMode.Code:
		return http.StatusBadRequest
	case domain.ErrInvalidTransition.Code, domain.ErrNoOpponentLine.Code,
		domain.ErrAutoRunDidNotComplete.Code:
		return http.StatusUnprocessableEntity
	case domain.ErrCollaboratorFailed.Code:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeSSEEvent(w http.ResponseWriter, f http.Flusher, ev domain.BattleEvent) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.EventType, data)
	f.Flush()
}

func writeSSEError(w http.ResponseWriter, f http.Flusher, err error) {
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
	f.Flush()
}
