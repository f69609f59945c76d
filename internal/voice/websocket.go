package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/nexuslabs/nexus-voice/internal/executor"
	"github.com/nexuslabs/nexus-voice/internal/identity"
)

// Hard cap on buffered audio per stream; a stop frame or disconnect is
// expected well before this.
const maxStreamBytes = 10 << 20 // 10 MiB

// WebSocketHandler handles streamed voice capture: binary frames carry
// audio, a JSON "stop" frame flushes the buffer through transcription
// and the command pipeline.
type WebSocketHandler struct {
	pipeline      *executor.Pipeline
	transcriber   Transcriber
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new voice WebSocket handler.
func NewWebSocketHandler(pipeline *executor.Pipeline, transcriber Transcriber, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		pipeline:      pipeline,
		transcriber:   transcriber,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsMessage represents the JSON control frames exchanged with the client.
type wsMessage struct {
	Type   string `json:"type"`
	Format string `json:"format,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	streamID := uuid.NewString()
	slog.Info("Voice stream connection request", "user_id", userID, "stream_id", streamID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	if h.transcriber == nil {
		http.Error(w, "voice transcription is not configured", http.StatusServiceUnavailable)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.streamLoop(ctx, ws, userID, streamID)
	slog.Info("Voice stream ended", "user_id", userID, "stream_id", streamID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) streamLoop(ctx context.Context, ws *websocket.Conn, userID, streamID string) {
	var audio bytes.Buffer
	format := "audio/webm"

	for {
		msgType, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		if msgType == websocket.MessageBinary {
			if audio.Len()+len(message) > maxStreamBytes {
				h.writeError(ws, "audio stream too large")
				return
			}
			audio.Write(message)
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Debug("Ignoring malformed control frame", "user_id", userID)
			continue
		}

		switch msg.Type {
		case "start":
			audio.Reset()
			if msg.Format != "" {
				format = msg.Format
			}
		case "stop":
			if msg.Format != "" {
				format = msg.Format
			}
			h.flush(ctx, ws, userID, streamID, audio.Bytes(), format)
			audio.Reset()
		case "ping":
			if err := h.writeJSON(ws, map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		case "close":
			slog.Info("Voice stream close requested", "user_id", userID, "stream_id", streamID)
			return
		}
	}
}

// flush transcribes the buffered audio and runs the transcript through
// the command pipeline, replying with the transcript and the result.
func (h *WebSocketHandler) flush(ctx context.Context, ws *websocket.Conn, userID, streamID string, audio []byte, format string) {
	if len(audio) == 0 {
		h.writeError(ws, "no audio received")
		return
	}

	transcript, err := h.transcriber.Transcribe(ctx, audio, format)
	if err != nil {
		slog.Error("Stream transcription failed", "error", err, "user_id", userID, "stream_id", streamID)
		h.writeError(ws, "could not transcribe audio")
		return
	}
	if transcript == "" {
		h.writeError(ws, "could not transcribe audio")
		return
	}

	slog.Info("Transcribed voice stream", "user_id", userID, "stream_id", streamID, "transcript", transcript)

	result, err := h.pipeline.Process(ctx, userID, "voice_ws", transcript)
	if err != nil {
		slog.Error("Failed to process streamed command", "error", err, "user_id", userID)
		h.writeError(ws, "failed to process command")
		return
	}

	if err := h.writeJSON(ws, map[string]any{
		"type":       "result",
		"transcript": transcript,
		"result":     result,
	}); err != nil {
		slog.Debug("Failed to send stream result", "error", err, "user_id", userID)
	}
}

func (h *WebSocketHandler) writeError(ws *websocket.Conn, message string) {
	if err := h.writeJSON(ws, map[string]string{"type": "error", "error": message}); err != nil {
		slog.Debug("Failed to send stream error", "error", err)
	}
}

func (h *WebSocketHandler) writeJSON(ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(context.Background(), websocket.MessageText, data)
}
