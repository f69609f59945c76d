// Package workflow triggers n8n automation workflows over webhooks.
// The workflows own their service credentials; this client only carries
// the command payload and an optional engine API key.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Trigger calls n8n workflows by webhook path.
type Trigger struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewTrigger creates a workflow trigger for the given webhook base URL.
func NewTrigger(baseURL, apiKey string) *Trigger {
	return &Trigger{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// Run posts the payload to {base}/{workflow} and decodes the JSON reply.
// Transport faults, timeouts and non-2xx statuses are errors; the
// executor treats them as a failed action, never as a resolution fault.
func (t *Trigger) Run(ctx context.Context, workflow string, payload any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow payload: %w", err)
	}

	url := t.baseURL + "/" + workflow
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build workflow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trigger workflow %s: %w", workflow, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("workflow %s returned HTTP %d", workflow, resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode workflow %s response: %w", workflow, err)
	}
	return normalize(raw)
}

// normalize unwraps the single-element array n8n returns in
// response-node mode, so callers always see one object.
func normalize(raw json.RawMessage) (map[string]any, error) {
	var arr []map[string]any
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) == 0 {
			return map[string]any{}, nil
		}
		return arr[0], nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("unexpected workflow response shape: %w", err)
	}
	return obj, nil
}

// GmailSummarize runs the email summary workflow.
func (t *Trigger) GmailSummarize(ctx context.Context, maxResults int) (map[string]any, error) {
	return t.Run(ctx, "gmail-summarize", map[string]any{
		"max_results": maxResults,
	})
}

// GmailReply runs the email reply workflow.
func (t *Trigger) GmailReply(ctx context.Context, messageID, replyText string) (map[string]any, error) {
	return t.Run(ctx, "gmail-reply", map[string]any{
		"message_id": messageID,
		"reply_text": replyText,
	})
}

// SpotifyControl runs the playback workflow. Query is empty for
// actions like pause.
func (t *Trigger) SpotifyControl(ctx context.Context, action, query string) (map[string]any, error) {
	payload := map[string]any{"action": action}
	if query != "" {
		payload["query"] = query
	}
	return t.Run(ctx, "spotify-control", payload)
}

// Healthy reports whether the automation engine answers at all. Used by
// the services status endpoint; any successful round-trip counts.
func (t *Trigger) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := t.Run(ctx, "nexus-agent", map[string]any{
		"user_request": "health check",
		"context":      "",
	})
	return err == nil
}
