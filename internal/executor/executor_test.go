package executor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nexuslabs/nexus-voice/internal/domain"
	"github.com/nexuslabs/nexus-voice/internal/store"
	"github.com/nexuslabs/nexus-voice/internal/workflow"
)

func newTestRepo(t *testing.T) store.Repository {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// stubEngine fakes the automation engine with canned per-workflow
// responses.
func stubEngine(t *testing.T, responses map[string]any) *workflow.Trigger {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		resp, ok := responses[name]
		if !ok {
			http.Error(w, "no such workflow", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return workflow.NewTrigger(srv.URL, "")
}

func newTestPipeline(t *testing.T, repo store.Repository, responses map[string]any) *Pipeline {
	t.Helper()
	return NewPipeline(repo, stubEngine(t, responses), nil, nil, slog.Default())
}

func TestProcess_SpotifyPlayStoresTrackReference(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestPipeline(t, repo, map[string]any{
		"spotify-control": map[string]any{
			"track": map[string]any{
				"uri":    "spotify:track:abc",
				"name":   "So What",
				"artist": "Miles Davis",
			},
		},
	})

	res, err := p.Process(context.Background(), "u1", "text_http", "play some jazz")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Type != TypeAPIResponse {
		t.Fatalf("Type = %q, want %q", res.Type, TypeAPIResponse)
	}
	if res.VoiceResponse != "Now playing So What by Miles Davis" {
		t.Errorf("Unexpected voice response %q", res.VoiceResponse)
	}

	refs, err := repo.RecentReferences(context.Background(), domain.RefTypeTrack, 5)
	if err != nil {
		t.Fatalf("RecentReferences failed: %v", err)
	}
	if len(refs) != 1 || refs[0].RefID != "spotify:track:abc" {
		t.Fatalf("Expected stored track reference, got %+v", refs)
	}

	recs, err := repo.RecentInteractions(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("RecentInteractions failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Intent != "spotify_play" {
		t.Fatalf("Expected one spotify_play interaction, got %+v", recs)
	}
}

func TestProcess_ClarificationSkipsInteractionAppend(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestPipeline(t, repo, nil)

	res, err := p.Process(context.Background(), "u1", "text_http", "reply to that email")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Type != TypeClarification {
		t.Fatalf("Type = %q, want %q", res.Type, TypeClarification)
	}
	if res.Question == "" {
		t.Error("Expected a clarification question")
	}

	recs, err := repo.RecentInteractions(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("RecentInteractions failed: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("Clarification must not append an interaction, got %d", len(recs))
	}
}

func TestProcess_GmailSummarizeStoresFirstFiveEmails(t *testing.T) {
	repo := newTestRepo(t)

	emails := make([]map[string]any, 0, 6)
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5", "m6"} {
		emails = append(emails, map[string]any{
			"id":      id,
			"subject": "Update " + id,
			"from":    "Alice Smith <alice@example.com>",
		})
	}
	p := newTestPipeline(t, repo, map[string]any{
		"gmail-summarize": map[string]any{
			"text_summary": "You have 6 new emails.",
			"emails":       emails,
		},
	})

	res, err := p.Process(context.Background(), "u1", "text_http", "summarize my emails")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.VoiceResponse != "You have 6 new emails." {
		t.Errorf("Unexpected voice response %q", res.VoiceResponse)
	}

	refs, err := repo.RecentReferences(context.Background(), domain.RefTypeEmail, 10)
	if err != nil {
		t.Fatalf("RecentReferences failed: %v", err)
	}
	if len(refs) != 5 {
		t.Fatalf("Expected 5 stored email references, got %d", len(refs))
	}
	for _, ref := range refs {
		if !strings.HasSuffix(ref.RefName, "from Alice Smith") {
			t.Errorf("Unexpected reference name %q", ref.RefName)
		}
	}
}

func TestProcess_DirectionsResolvesStoredLocation(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.UpsertReference(context.Background(), domain.RefTypeLocation, "Central Park", "Central Park", nil); err != nil {
		t.Fatalf("UpsertReference failed: %v", err)
	}
	p := newTestPipeline(t, repo, nil)

	res, err := p.Process(context.Background(), "u1", "text_http", "take me there")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Type != TypeUIHandoff {
		t.Fatalf("Type = %q, want %q (%+v)", res.Type, TypeUIHandoff, res)
	}
	if !strings.Contains(res.URL, "Central+Park") {
		t.Errorf("URL %q should target Central Park", res.URL)
	}
	if res.Action != "open_url" {
		t.Errorf("Action = %q, want open_url", res.Action)
	}
}

func TestProcess_DirectionsWithExplicitDestination(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestPipeline(t, repo, nil)

	res, err := p.Process(context.Background(), "u1", "text_http", "directions to times square")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Type != TypeUIHandoff {
		t.Fatalf("Type = %q, want %q", res.Type, TypeUIHandoff)
	}
	if !strings.Contains(res.URL, "times+square") {
		t.Errorf("URL %q should target times square", res.URL)
	}

	// The destination becomes a location reference for later turns.
	refs, err := repo.RecentReferences(context.Background(), domain.RefTypeLocation, 1)
	if err != nil {
		t.Fatalf("RecentReferences failed: %v", err)
	}
	if len(refs) != 1 || refs[0].RefName != "times square" {
		t.Fatalf("Expected stored location reference, got %+v", refs)
	}
}

func TestProcess_PauseAndWorkflowFailure(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestPipeline(t, repo, map[string]any{
		"spotify-control": map[string]any{"status": "ok"},
	})

	res, err := p.Process(context.Background(), "u1", "text_http", "pause the music")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Type != TypeAPIResponse || res.VoiceResponse != "Paused." {
		t.Fatalf("Unexpected result %+v", res)
	}

	// No gmail-summarize stub: the workflow call fails, the command
	// still completes with an error outcome and is recorded.
	res, err = p.Process(context.Background(), "u1", "text_http", "summarize my emails")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Type != TypeError {
		t.Fatalf("Type = %q, want %q", res.Type, TypeError)
	}

	recs, err := repo.RecentInteractions(context.Background(), 5, "gmail_summarize")
	if err != nil {
		t.Fatalf("RecentInteractions failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Failed action should still be recorded, got %d records", len(recs))
	}
}

func TestProcess_UnknownCommand(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestPipeline(t, repo, nil)

	res, err := p.Process(context.Background(), "u1", "text_http", "make me a sandwich")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Type != TypeError {
		t.Fatalf("Type = %q, want %q", res.Type, TypeError)
	}
	if res.Intent != "unknown" {
		t.Errorf("Intent = %q, want unknown", res.Intent)
	}
}
