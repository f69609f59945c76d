package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nexuslabs/nexus-voice/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	repo, err := NewSQLite(filepath.Join(t.TempDir(), "nexus.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return repo.(*SQLiteStore)
}

func TestUpsertReference_Uniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := s.UpsertReference(ctx, domain.RefTypeEmail, "msg-1", "Quarterly report", map[string]any{"from": "alice@example.com"})
		if err != nil {
			t.Fatalf("UpsertReference failed: %v", err)
		}
	}

	refs, err := s.RecentReferences(ctx, domain.RefTypeEmail, 10)
	if err != nil {
		t.Fatalf("RecentReferences failed: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("Expected exactly 1 reference, got %d", len(refs))
	}
	if refs[0].AccessCount != 3 {
		t.Errorf("Expected access_count 3, got %d", refs[0].AccessCount)
	}
}

func TestUpsertReference_ConcurrentSameKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Concurrent upserts for one key must collapse to a single row with
	// every access counted; the single-statement upsert plus the store
	// mutex make the operation atomic per key.
	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.UpsertReference(ctx, domain.RefTypeEmail, "msg-1", "Quarterly report", nil)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("UpsertReference failed: %v", err)
		}
	}

	refs, err := s.RecentReferences(ctx, domain.RefTypeEmail, 10)
	if err != nil {
		t.Fatalf("RecentReferences failed: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("Expected exactly 1 reference, got %d", len(refs))
	}
	if refs[0].AccessCount != workers {
		t.Errorf("Expected access_count %d, got %d", workers, refs[0].AccessCount)
	}
}

func TestUpsertReference_RefreshUpdatesNameAndMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertReference(ctx, domain.RefTypeTrack, "spotify:track:1", "Old Title", nil); err != nil {
		t.Fatalf("UpsertReference failed: %v", err)
	}
	if err := s.UpsertReference(ctx, domain.RefTypeTrack, "spotify:track:1", "New Title", map[string]any{"artist": "Miles Davis"}); err != nil {
		t.Fatalf("UpsertReference failed: %v", err)
	}

	refs, err := s.RecentReferences(ctx, domain.RefTypeTrack, 1)
	if err != nil {
		t.Fatalf("RecentReferences failed: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("Expected 1 reference, got %d", len(refs))
	}
	if refs[0].RefName != "New Title" {
		t.Errorf("Expected refreshed name, got %q", refs[0].RefName)
	}
	if refs[0].Metadata["artist"] != "Miles Davis" {
		t.Errorf("Expected refreshed metadata, got %v", refs[0].Metadata)
	}
}

func TestRecentReferences_Ordering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.UpsertReference(ctx, domain.RefTypeEmail, id, "email "+id, nil); err != nil {
			t.Fatalf("UpsertReference failed: %v", err)
		}
	}
	// Touching "a" again must move it to the front.
	if err := s.UpsertReference(ctx, domain.RefTypeEmail, "a", "email a", nil); err != nil {
		t.Fatalf("UpsertReference failed: %v", err)
	}

	refs, err := s.RecentReferences(ctx, domain.RefTypeEmail, 10)
	if err != nil {
		t.Fatalf("RecentReferences failed: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("Expected 3 references, got %d", len(refs))
	}
	if refs[0].RefID != "a" || refs[1].RefID != "c" || refs[2].RefID != "b" {
		t.Errorf("Unexpected order: %s, %s, %s", refs[0].RefID, refs[1].RefID, refs[2].RefID)
	}
	for i := 1; i < len(refs); i++ {
		if refs[i].LastAccessed.After(refs[i-1].LastAccessed) {
			t.Errorf("last_accessed not non-increasing at index %d", i)
		}
	}
}

func TestRecentReferences_EmptyIsNotAnError(t *testing.T) {
	s := newTestStore(t)

	refs, err := s.RecentReferences(context.Background(), domain.RefTypeLocation, 5)
	if err != nil {
		t.Fatalf("RecentReferences failed: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("Expected no references, got %d", len(refs))
	}
}

func TestEvictStaleReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertReference(ctx, domain.RefTypeEmail, "old", "old email", nil); err != nil {
		t.Fatalf("UpsertReference failed: %v", err)
	}
	if err := s.UpsertReference(ctx, domain.RefTypeEmail, "fresh", "fresh email", nil); err != nil {
		t.Fatalf("UpsertReference failed: %v", err)
	}

	// Backdate one reference past the eviction horizon.
	stale := time.Now().Add(-8 * 24 * time.Hour).UnixNano()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE context_references SET last_accessed = ? WHERE ref_id = ?`, stale, "old"); err != nil {
		t.Fatalf("backdate reference: %v", err)
	}

	deleted, err := s.EvictStaleReferences(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("EvictStaleReferences failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", deleted)
	}

	refs, err := s.RecentReferences(ctx, domain.RefTypeEmail, 10)
	if err != nil {
		t.Fatalf("RecentReferences failed: %v", err)
	}
	if len(refs) != 1 || refs[0].RefID != "fresh" {
		t.Errorf("Expected only the fresh reference to survive, got %v", refs)
	}
}

func TestAppendInteraction_AndRecentInteractions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inputs := []struct {
		text   string
		intent string
	}{
		{"summarize my emails", "gmail_summarize"},
		{"play some jazz", "spotify_play"},
		{"take me to the airport", "maps_directions"},
	}
	for _, in := range inputs {
		rec := &domain.Interaction{
			UserInput:     in.text,
			Intent:        in.intent,
			Entities:      map[string]any{"raw": in.text},
			ActionTaken:   "api",
			ResultSummary: "ok",
		}
		if err := s.AppendInteraction(ctx, rec); err != nil {
			t.Fatalf("AppendInteraction failed: %v", err)
		}
		if rec.ID == 0 {
			t.Error("Expected interaction ID to be assigned")
		}
	}

	recs, err := s.RecentInteractions(ctx, 10, "")
	if err != nil {
		t.Fatalf("RecentInteractions failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Expected 3 interactions, got %d", len(recs))
	}
	if recs[0].UserInput != "take me to the airport" {
		t.Errorf("Expected newest interaction first, got %q", recs[0].UserInput)
	}

	filtered, err := s.RecentInteractions(ctx, 10, "spotify_play")
	if err != nil {
		t.Fatalf("RecentInteractions with filter failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Intent != "spotify_play" {
		t.Errorf("Unexpected filtered result: %v", filtered)
	}
}

func TestClearInteractions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.AppendInteraction(ctx, &domain.Interaction{UserInput: "hi", Intent: "unknown"}); err != nil {
			t.Fatalf("AppendInteraction failed: %v", err)
		}
	}

	deleted, err := s.ClearInteractions(ctx)
	if err != nil {
		t.Fatalf("ClearInteractions failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}

	recs, err := s.RecentInteractions(ctx, 10, "")
	if err != nil {
		t.Fatalf("RecentInteractions failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("Expected empty log after clear, got %d records", len(recs))
	}
}

func TestMemorySummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendInteraction(ctx, &domain.Interaction{UserInput: "play jazz", Intent: "spotify_play"}); err != nil {
		t.Fatalf("AppendInteraction failed: %v", err)
	}
	if err := s.UpsertReference(ctx, domain.RefTypeTrack, "t1", "So What", nil); err != nil {
		t.Fatalf("UpsertReference failed: %v", err)
	}

	summary, err := s.MemorySummary(ctx)
	if err != nil {
		t.Fatalf("MemorySummary failed: %v", err)
	}
	if summary.TotalInteractions != 1 || summary.TotalReferences != 1 {
		t.Errorf("Unexpected totals: %+v", summary)
	}
	if len(summary.RecentIntents) != 1 || summary.RecentIntents[0] != "spotify_play" {
		t.Errorf("Unexpected recent intents: %v", summary.RecentIntents)
	}
}
