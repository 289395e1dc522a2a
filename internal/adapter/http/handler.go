// Package httpadapter exposes the agent over HTTP.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"github.com/rpw1134/web-automation-agent/internal/application/port/input"
	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
)

type Handler struct {
	executor     input.TaskExecutor
	systemPrompt string
	logger       output.LoggerPort
}

func NewHandler(executor input.TaskExecutor, systemPrompt string, logger output.LoggerPort) *Handler {
	return &Handler{
		executor:     executor,
		systemPrompt: systemPrompt,
		logger:       logger.Named("http"),
	}
}

type TaskRequest struct {
	Request string `json:"request"`
}

type TaskResponse struct {
	Status      string   `json:"status"`
	Steps       int      `json:"steps"`
	Observation string   `json:"observation,omitempty"`
	Plan        string   `json:"plan,omitempty"`
	Actions     []string `json:"actions,omitempty"`
	Message     string   `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter mounts the agent routes behind request logging and panic recovery.
func NewRouter(h *Handler, serviceName string, jsonLogs bool) http.Handler {
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(httplog.NewLogger(serviceName, httplog.Options{
		JSON:    jsonLogs,
		Concise: true,
	})))
	r.Use(middleware.Recoverer)

	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/agent", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/system-prompt", h.HandleSystemPrompt)
		r.Post("/task-completion", h.HandleTaskCompletion)
	})
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "Agent is running"})
}

func (h *Handler) HandleSystemPrompt(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"prompt": h.systemPrompt})
}

// HandleTaskCompletion runs one task to completion before responding.
func (h *Handler) HandleTaskCompletion(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Request) == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "request must not be empty"})
		return
	}

	res, err := h.executor.Execute(r.Context(), req.Request)
	if err != nil {
		h.logger.Error("Task failed", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		respondJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	out := TaskResponse{
		Status:  string(res.Status),
		Steps:   res.Steps,
		Message: res.Message,
	}
	if res.Plan != nil {
		out.Observation = res.Plan.Observation
		out.Plan = res.Plan.Plan
		out.Actions = res.Plan.Actions
	}
	respondJSON(w, http.StatusOK, out)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
