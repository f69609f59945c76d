package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/nexuslabs/nexus-voice/internal/domain"
)

func newSystemRouter(t *testing.T, responses map[string]any) (chi.Router, *SystemHandler) {
	t.Helper()
	repo := newTestStore(t)
	h := NewSystemHandler(NewHandler(repo, ""), stubEngine(t, responses), false, false)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, h
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRoot_AdvertisesCapabilities(t *testing.T) {
	router, _ := newSystemRouter(t, nil)

	rec := get(t, router, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	var resp struct {
		Status       string            `json:"status"`
		Capabilities map[string]string `json:"capabilities"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "online" {
		t.Errorf("status = %q", resp.Status)
	}
	if len(resp.Capabilities) != len(supportedIntents) {
		t.Fatalf("Expected %d capabilities, got %d", len(supportedIntents), len(resp.Capabilities))
	}
	if resp.Capabilities["gmail_summarize"] != "Summarize emails" {
		t.Errorf("gmail_summarize description = %q", resp.Capabilities["gmail_summarize"])
	}
}

func TestHealth(t *testing.T) {
	router, _ := newSystemRouter(t, nil)

	rec := get(t, router, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %q", resp["status"])
	}
}

func TestServicesStatus(t *testing.T) {
	// The health probe workflow exists, so the engine reports connected;
	// maps and voice have no keys configured.
	router, _ := newSystemRouter(t, map[string]any{
		"nexus-agent": map[string]any{"status": "ok"},
	})

	rec := get(t, router, "/api/services/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["automation_engine"] != "connected" {
		t.Errorf("automation_engine = %q", resp["automation_engine"])
	}
	if resp["maps"] != "disconnected" {
		t.Errorf("maps = %q", resp["maps"])
	}
	if resp["voice"] != "disconnected" {
		t.Errorf("voice = %q", resp["voice"])
	}
}

func TestMemorySummaryAndClear(t *testing.T) {
	router, h := newSystemRouter(t, nil)

	err := h.repo.AppendInteraction(context.Background(), &domain.Interaction{
		UserInput: "summarize my emails",
		Intent:    "gmail_summarize",
	})
	if err != nil {
		t.Fatalf("AppendInteraction failed: %v", err)
	}

	rec := get(t, router, "/api/memory/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	var summary domain.MemorySummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalInteractions != 1 {
		t.Errorf("TotalInteractions = %d, want 1", summary.TotalInteractions)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/memory/clear", nil)
	clearRec := httptest.NewRecorder()
	router.ServeHTTP(clearRec, req)
	if clearRec.Code != http.StatusOK {
		t.Fatalf("Clear status = %d", clearRec.Code)
	}

	rec = get(t, router, "/api/memory/summary")
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalInteractions != 0 {
		t.Errorf("TotalInteractions after clear = %d, want 0", summary.TotalInteractions)
	}
}
