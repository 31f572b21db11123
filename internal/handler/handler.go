// Package handler exposes the grading engine over JSON/HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/langexam/grader/internal/model"
	"github.com/langexam/grader/internal/orchestrator"
	"github.com/langexam/grader/internal/store"
)

// Config holds the server-side grading defaults applied when a request
// leaves them unset.
type Config struct {
	MaxContextTokens  int
	ReservedTokens    int
	PreferredProvider string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	orch   *orchestrator.Orchestrator
	config Config
}

// New creates a new Handler.
func New(s *store.Store, o *orchestrator.Orchestrator, cfg Config) *Handler {
	return &Handler{store: s, orch: o, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/grade", h.handleGrade)
	r.Get("/api/grades/{sessionID}", h.handleGetGrade)
	r.Put("/api/admin/providers/{providerID}", h.handleSetProvider)
	r.Get("/api/admin/providers/{providerID}", h.handleGetProvider)
	r.Get("/healthz", h.handleHealth)
}

type gradeRequest struct {
	SessionID            string         `json:"session_id"`
	StudentName          string         `json:"student_name"`
	ExamTitle            string         `json:"exam_title"`
	ExamDescription      string         `json:"exam_description"`
	ExamType             string         `json:"exam_type"`
	Answers              []model.Answer `json:"answers"`
	CustomPromptTemplate string         `json:"custom_prompt_template"`
	MaxContextTokens     int            `json:"max_context_tokens"`
	ReservedTokens       int            `json:"reserved_tokens"`
	Provider             string         `json:"provider"`
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	var in gradeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if in.SessionID == "" {
		httpError(w, http.StatusBadRequest, errors.New("session_id is required"))
		return
	}
	examType, err := model.ParseExamType(in.ExamType)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	// Idempotency: a session already marked graded short-circuits before
	// the orchestrator is invoked again.
	if existing, found, err := h.store.GetOutcome(in.SessionID); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	} else if found {
		slog.Info("returning stored grade", "request_id", requestID, "session", in.SessionID)
		writeJSON(w, http.StatusOK, existing)
		return
	}

	req := model.GradingRequest{
		SessionID:            in.SessionID,
		StudentName:          in.StudentName,
		ExamTitle:            in.ExamTitle,
		ExamDescription:      in.ExamDescription,
		ExamType:             examType,
		Answers:              in.Answers,
		CustomPromptTemplate: in.CustomPromptTemplate,
		MaxContextTokens:     in.MaxContextTokens,
		ReservedTokens:       in.ReservedTokens,
		Provider:             in.Provider,
	}
	if req.MaxContextTokens <= 0 {
		req.MaxContextTokens = h.config.MaxContextTokens
	}
	if req.ReservedTokens <= 0 {
		req.ReservedTokens = h.config.ReservedTokens
	}
	if req.Provider == "" {
		req.Provider = h.config.PreferredProvider
	}

	slog.Info("grading session",
		"request_id", requestID,
		"session", req.SessionID,
		"exam_type", req.ExamType,
		"answers", len(req.Answers))

	outcome := h.orch.Grade(r.Context(), req)

	if err := h.store.SaveOutcome(req.SessionID, req, outcome); err != nil {
		// The evaluation itself succeeded; losing the record is the
		// caller's problem to retry, so still return the outcome.
		slog.Error("saving grade record", "request_id", requestID, "session", req.SessionID, "error", err)
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleGetGrade(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	outcome, found, err := h.store.GetOutcome(sessionID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		httpError(w, http.StatusNotFound, fmt.Errorf("no grade for session %s", sessionID))
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleSetProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "providerID")

	var cfg model.ProviderConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("decode provider config: %w", err))
		return
	}
	cfg.ID = id

	if err := h.store.SetProviderConfig(cfg); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	slog.Info("stored provider config", "provider", id, "model", cfg.Model)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "providerID")
	cfg, found, err := h.store.ProviderConfig(id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		httpError(w, http.StatusNotFound, fmt.Errorf("no stored config for provider %s", id))
		return
	}
	cfg.APIKey = "" // never echo credentials
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
