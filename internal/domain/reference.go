package domain

import (
	"time"
)

// RefType categorizes a rememberable entity.
type RefType string

const (
	RefTypeEmail    RefType = "email"
	RefTypeLocation RefType = "location"
	RefTypeTrack    RefType = "track"
	RefTypePlaylist RefType = "playlist"
)

// ContextReference is a typed pointer to a previously surfaced entity
// (an email, a place, a track). The store keeps at most one row per
// (RefType, RefID) pair; re-storing the same pair refreshes the name,
// metadata and LastAccessed and increments AccessCount.
type ContextReference struct {
	ID           int64          `json:"id"`
	RefType      RefType        `json:"ref_type"`
	RefID        string         `json:"ref_id"`
	RefName      string         `json:"ref_name"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	LastAccessed time.Time      `json:"last_accessed"`
	AccessCount  int            `json:"access_count"`
}

// ResolvedEntity is the resolver's answer for a reference lookup.
type ResolvedEntity struct {
	Type     RefType        `json:"type"`
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Resolved converts a stored reference into the shape handed to callers.
func (r *ContextReference) Resolved() *ResolvedEntity {
	return &ResolvedEntity{
		Type:     r.RefType,
		ID:       r.RefID,
		Name:     r.RefName,
		Metadata: r.Metadata,
	}
}
