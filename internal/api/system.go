package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nexuslabs/nexus-voice/internal/intent"
	"github.com/nexuslabs/nexus-voice/internal/workflow"
)

// supportedIntents is the command surface advertised at the root
// endpoint, in presentation order.
var supportedIntents = []intent.Intent{
	intent.GmailSummarize,
	intent.GmailReply,
	intent.GmailOpenUI,
	intent.MapsDistance,
	intent.MapsDirections,
	intent.MapsOpenUI,
	intent.SpotifyPlay,
	intent.SpotifyPause,
	intent.SpotifyOpenUI,
}

// SystemHandler serves health, status and memory debug endpoints.
type SystemHandler struct {
	*Handler
	workflows      *workflow.Trigger
	mapsConfigured bool
	voiceEnabled   bool
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(base *Handler, workflows *workflow.Trigger, mapsConfigured, voiceEnabled bool) *SystemHandler {
	return &SystemHandler{
		Handler:        base,
		workflows:      workflows,
		mapsConfigured: mapsConfigured,
		voiceEnabled:   voiceEnabled,
	}
}

// RegisterRoutes registers system routes.
func (h *SystemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Root)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/services/status", h.ServicesStatus)
		r.Get("/memory/summary", h.MemorySummary)
		r.Post("/memory/clear", h.ClearMemory)
	})
}

// Root identifies the service and advertises the supported commands.
func (h *SystemHandler) Root(w http.ResponseWriter, r *http.Request) {
	capabilities := make(map[string]string, len(supportedIntents))
	for _, i := range supportedIntents {
		capabilities[string(i)] = i.Description()
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"message":      "NEXUS - Voice-First Automation Platform",
		"status":       "online",
		"version":      "1.0.0",
		"capabilities": capabilities,
	})
}

// Health reports service and database health.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		Error(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "nexus-voice",
	})
}

// ServicesStatus reports which outbound integrations are usable. The
// automation engine check is a live round-trip; the rest is key
// presence.
func (h *SystemHandler) ServicesStatus(w http.ResponseWriter, r *http.Request) {
	engine := "disconnected"
	if h.workflows != nil && h.workflows.Healthy(r.Context()) {
		engine = "connected"
	}

	maps := "disconnected"
	if h.mapsConfigured {
		maps = "connected"
	}

	voice := "disconnected"
	if h.voiceEnabled {
		voice = "connected"
	}

	JSON(w, http.StatusOK, map[string]string{
		"automation_engine": engine,
		"maps":              maps,
		"voice":             voice,
	})
}

// MemorySummary exposes store totals for debugging.
func (h *SystemHandler) MemorySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.repo.MemorySummary(r.Context())
	if err != nil {
		slog.Error("Failed to build memory summary", "error", err)
		Error(w, http.StatusInternalServerError, "failed to build memory summary")
		return
	}

	JSON(w, http.StatusOK, summary)
}

// ClearMemory deletes all recorded interactions (demo reset). Stored
// context references are left alone; eviction handles those.
func (h *SystemHandler) ClearMemory(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.repo.ClearInteractions(r.Context())
	if err != nil {
		slog.Error("Failed to clear interactions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear memory")
		return
	}

	slog.Info("Interaction memory cleared", "deleted", deleted)
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":  "cleared",
		"deleted": deleted,
	})
}
