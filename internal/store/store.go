// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/nexuslabs/nexus-voice/internal/domain"
)

// Repository defines the interface for the interaction memory: an
// append-only log of user turns plus a recency index of context
// references. Lookup misses are nil results, not errors; only storage
// faults surface as errors.
type Repository interface {
	// AppendInteraction records one completed user turn.
	AppendInteraction(ctx context.Context, rec *domain.Interaction) error

	// UpsertReference creates or refreshes the reference identified by
	// (refType, refID). A refresh updates the display name, metadata and
	// last-accessed timestamp and increments the access count.
	UpsertReference(ctx context.Context, refType domain.RefType, refID, refName string, metadata map[string]any) error

	// RecentReferences returns up to limit references of the given type,
	// most recently accessed first. The slice is empty when none exist.
	RecentReferences(ctx context.Context, refType domain.RefType, limit int) ([]*domain.ContextReference, error)

	// RecentInteractions returns up to limit interaction records, newest
	// first, optionally filtered by intent tag (empty string = no filter).
	RecentInteractions(ctx context.Context, limit int, intentFilter string) ([]*domain.Interaction, error)

	// EvictStaleReferences deletes references whose last-accessed time is
	// older than maxAge and returns the number of rows removed.
	EvictStaleReferences(ctx context.Context, maxAge time.Duration) (int64, error)

	// ClearInteractions deletes all interaction records (demo reset).
	ClearInteractions(ctx context.Context) (int64, error)

	// MemorySummary returns store totals for the debug endpoint.
	MemorySummary(ctx context.Context) (*domain.MemorySummary, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
