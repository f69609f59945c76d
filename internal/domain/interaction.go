// Package domain contains core domain types for the NEXUS voice backend.
package domain

import (
	"time"
)

// Interaction is one completed user turn: what was said, what the
// classifier made of it, and what happened. Records are append-only;
// they are never updated after being written.
type Interaction struct {
	ID            int64          `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	UserInput     string         `json:"user_input"`
	Intent        string         `json:"intent"`
	Entities      map[string]any `json:"entities,omitempty"`
	ActionTaken   string         `json:"action_taken"`
	ResultSummary string         `json:"result_summary"`
}

// MemorySummary reports store totals for the debug endpoint.
type MemorySummary struct {
	TotalInteractions int64    `json:"total_interactions"`
	TotalReferences   int64    `json:"total_references"`
	RecentIntents     []string `json:"recent_intents"`
}
