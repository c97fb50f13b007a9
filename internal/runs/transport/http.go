// Package transport provides HTTP handlers for validation runs.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/delegation-deployments/internal/runs/domain"
)

// Service defines the runs service interface for HTTP transport.
type Service interface {
	Trigger(ctx context.Context, version, triggeredBy string) (*domain.Run, error)
	Get(ctx context.Context, id string) (*domain.Run, error)
	List(ctx context.Context, filter domain.ListFilter, pagination domain.PaginationParams) (*domain.ListResult, error)
	Latest(ctx context.Context, version string) (*domain.Run, error)
}

// Handler handles HTTP requests for validation runs.
type Handler struct {
	svc Service
}

// NewHandler creates a new runs HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterReadRoutes registers read-only run routes (no auth required).
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/latest", h.handleLatest)
	r.Get("/{id}", h.handleGet)
}

// RegisterWriteRoutes registers routes that start validations (auth required).
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/", h.handleTrigger)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 20
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	filter := domain.ListFilter{Version: q.Get("version")}
	if p := q.Get("passed"); p != "" {
		passed, err := strconv.ParseBool(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "passed must be true or false")
			return
		}
		filter.Passed = &passed
	}

	result, err := h.svc.List(r.Context(), filter, domain.PaginationParams{
		Limit:  limit,
		Cursor: q.Get("cursor"),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCursor) {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid cursor")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list runs")
		return
	}

	data := make([]RunResponse, len(result.Runs))
	for i := range result.Runs {
		data[i] = ToResponse(&result.Runs[i])
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": data,
		"pagination": map[string]any{
			"limit":      limit,
			"hasMore":    result.HasMore,
			"nextCursor": result.NextCursor,
		},
	})
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Latest(r.Context(), r.URL.Query().Get("version"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No validation runs recorded")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get latest run")
		return
	}
	writeJSON(w, http.StatusOK, ToResponse(run))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, ToResponse(run))
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
			return
		}
	}

	run, err := h.svc.Trigger(r.Context(), req.Version, domain.TriggerAPI)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidVersion), errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		case errors.Is(err, domain.ErrRunInProgress):
			writeError(w, http.StatusConflict, "RUN_IN_PROGRESS", "A validation run is already in progress")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to run validation")
		}
		return
	}

	writeJSON(w, http.StatusCreated, ToResponse(run))
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
