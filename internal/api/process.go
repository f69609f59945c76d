package api

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nexuslabs/nexus-voice/internal/executor"
	"github.com/nexuslabs/nexus-voice/internal/identity"
	"github.com/nexuslabs/nexus-voice/internal/voice"
)

// CommandHandler handles the text and voice command endpoints.
type CommandHandler struct {
	*Handler
	pipeline    *executor.Pipeline
	transcriber voice.Transcriber
}

// NewCommandHandler creates a command handler. The transcriber may be
// nil when no speech-to-text key is configured; voice requests then get
// a clean error instead of a broken pipeline.
func NewCommandHandler(base *Handler, pipeline *executor.Pipeline, transcriber voice.Transcriber) *CommandHandler {
	return &CommandHandler{
		Handler:     base,
		pipeline:    pipeline,
		transcriber: transcriber,
	}
}

// RegisterRoutes registers command processing routes.
func (h *CommandHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/text/process", h.ProcessText)
		r.Post("/voice/process", h.ProcessVoice)
	})
}

type textRequest struct {
	Text string `json:"text"`
}

type voiceRequest struct {
	Audio  string `json:"audio"`  // base64-encoded
	Format string `json:"format"` // mime type, defaults to audio/wav
}

// commandResponse is the executor result plus the transcript for voice
// requests.
type commandResponse struct {
	*executor.Result
	Transcript string `json:"transcript,omitempty"`
}

// ProcessText runs a typed (or already transcribed) command through the
// pipeline.
func (h *CommandHandler) ProcessText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	result, err := h.pipeline.Process(r.Context(), userID, "text_http", req.Text)
	if err != nil {
		slog.Error("Failed to process text command", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to process command")
		return
	}

	JSON(w, http.StatusOK, commandResponse{Result: result})
}

// ProcessVoice decodes and transcribes base64 audio, then runs the
// transcript through the same pipeline.
func (h *CommandHandler) ProcessVoice(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		Error(w, http.StatusServiceUnavailable, "voice transcription is not configured")
		return
	}

	var req voiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil || len(audio) == 0 {
		Error(w, http.StatusBadRequest, "audio must be base64-encoded")
		return
	}

	userID := identity.UserIDFromContext(r.Context())

	transcript, err := h.transcriber.Transcribe(r.Context(), audio, req.Format)
	if err != nil {
		slog.Error("Transcription failed", "error", err, "user_id", userID)
		Error(w, http.StatusBadGateway, "could not transcribe audio")
		return
	}
	if transcript == "" {
		Error(w, http.StatusUnprocessableEntity, "could not transcribe audio")
		return
	}

	slog.Info("Transcribed voice command", "user_id", userID, "transcript", transcript)

	result, err := h.pipeline.Process(r.Context(), userID, "voice_http", transcript)
	if err != nil {
		slog.Error("Failed to process voice command", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to process command")
		return
	}

	JSON(w, http.StatusOK, commandResponse{Result: result, Transcript: transcript})
}
