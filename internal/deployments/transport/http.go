// Package transport provides HTTP handlers for the registry read API.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/delegation-deployments/internal/deployments/domain"
)

// Handler handles HTTP requests for versions and chains.
type Handler struct {
	svc domain.Service
}

// NewHandler creates a new deployments HTTP handler.
func NewHandler(svc domain.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterVersionRoutes registers the version routes.
func (h *Handler) RegisterVersionRoutes(r chi.Router) {
	r.Get("/", h.handleVersions)
	r.Get("/{version}", h.handleVersion)
	r.Get("/{version}/chains/{chain}", h.handleDeployment)
}

// RegisterChainRoutes registers the chain catalog routes.
func (h *Handler) RegisterChainRoutes(r chi.Router) {
	r.Get("/", h.handleChains)
	r.Get("/{chain}", h.handleChain)
}

func (h *Handler) handleVersions(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Versions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list versions")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Version(r.Context(), chi.URLParam(r, "version"))
	if err != nil {
		writeServiceError(w, err, "Version not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleDeployment(w http.ResponseWriter, r *http.Request) {
	dep, err := h.svc.Deployment(r.Context(), chi.URLParam(r, "version"), chi.URLParam(r, "chain"))
	if err != nil {
		writeServiceError(w, err, "Deployment not found")
		return
	}
	writeJSON(w, http.StatusOK, dep)
}

func (h *Handler) handleChains(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Chains(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list chains")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *Handler) handleChain(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Chain(r.Context(), chi.URLParam(r, "chain"))
	if err != nil {
		writeServiceError(w, err, "Chain not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func writeServiceError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", notFound)
	case errors.Is(err, domain.ErrInvalidVersion), errors.Is(err, domain.ErrInvalidChain):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	}
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
