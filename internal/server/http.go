// Package server exposes the public operation surface over HTTP for
// the UI/API layer.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/uxpulse/uxpulse/internal/consumer"
	"github.com/uxpulse/uxpulse/internal/loop"
	"github.com/uxpulse/uxpulse/internal/theme"
)

// Handler serves the public API backed by the controller.
type Handler struct {
	ctrl *loop.Controller
}

// NewHandler creates the handler.
func NewHandler(ctrl *loop.Controller) *Handler {
	return &Handler{ctrl: ctrl}
}

// Router builds the chi router for the public surface.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/health", handleHealth)
	r.Post("/v1/events/interaction", h.handleInteraction)
	r.Post("/v1/events/engagement", h.handleEngagement)
	r.Post("/v1/events/performance", h.handlePerformance)
	r.Get("/v1/status", h.handleStatus)
	r.Get("/v1/insights", h.handleInsights)
	r.Get("/v1/heatmap", h.handleHeatmap)
	r.Get("/v1/changes", h.handleChanges)
	r.Post("/v1/changes/{id}/rollback", h.handleRollback)
	r.Post("/v1/optimize", h.handleOptimize)
	r.Put("/v1/autonomy", h.handleAutonomy)
	r.Put("/v1/enabled", h.handleEnabled)
	r.Get("/v1/theme", h.handleTheme)
	r.Post("/v1/theme/personalized", h.handlePersonalizedTheme)

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	h.ctrl.RecordInteraction(consumer.ParseInteraction(raw))
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (h *Handler) handleEngagement(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	h.ctrl.RecordEngagement(consumer.ParseEngagement(raw))
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (h *Handler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	h.ctrl.RecordPerformance(consumer.ParsePerformance(raw))
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *Handler) handleInsights(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Insights())
}

func (h *Handler) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	page := r.URL.Query().Get("page")
	if page == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "page required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"page":   page,
		"points": h.ctrl.Heatmap(page),
	})
}

func (h *Handler) handleChanges(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"changes": h.ctrl.History(limit),
	})
}

func (h *Handler) handleRollback(w http.ResponseWriter, r *http.Request) {
	changeID := chi.URLParam(r, "id")
	result := h.ctrl.Rollback(changeID)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
		if result.Error == "change not found" {
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, result)
}

func (h *Handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	h.ctrl.ManualOptimize(r.Context())
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *Handler) handleAutonomy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level string `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := h.ctrl.SetAutonomyLevel(req.Level); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"level":   req.Level,
	})
}

func (h *Handler) handleEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	h.ctrl.SetEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (h *Handler) handleTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.CurrentTheme())
}

func (h *Handler) handlePersonalizedTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string            `json:"user_id"`
		Preferences theme.Preferences `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id required"})
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.PersonalizedTheme(req.UserID, req.Preferences))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
