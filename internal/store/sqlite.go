package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nexuslabs/nexus-voice/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	refMu sync.Mutex // Serializes reference upserts to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		user_input TEXT NOT NULL,
		intent TEXT,
		entities_json TEXT,
		action_taken TEXT,
		result_summary TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_timestamp ON interactions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_interactions_intent ON interactions(intent);

	CREATE TABLE IF NOT EXISTS context_references (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ref_type TEXT NOT NULL,
		ref_id TEXT NOT NULL,
		ref_name TEXT NOT NULL,
		metadata_json TEXT,
		last_accessed INTEGER NOT NULL,
		access_count INTEGER NOT NULL DEFAULT 1,
		UNIQUE(ref_type, ref_id)
	);
	CREATE INDEX IF NOT EXISTS idx_references_recency ON context_references(ref_type, last_accessed);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendInteraction records one completed user turn.
func (s *SQLiteStore) AppendInteraction(ctx context.Context, rec *domain.Interaction) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	var entitiesJSON interface{}
	if len(rec.Entities) > 0 {
		data, err := json.Marshal(rec.Entities)
		if err != nil {
			return fmt.Errorf("marshal entities: %w", err)
		}
		entitiesJSON = string(data)
	}

	query := `
	INSERT INTO interactions (timestamp, user_input, intent, entities_json, action_taken, result_summary)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		rec.Timestamp.UnixNano(), rec.UserInput, rec.Intent,
		entitiesJSON, rec.ActionTaken, rec.ResultSummary,
	)
	if err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get interaction id: %w", err)
	}
	rec.ID = id
	return nil
}

// UpsertReference creates or refreshes the reference identified by
// (refType, refID). The statement is a single INSERT ... ON CONFLICT so
// concurrent upserts for the same key cannot produce duplicate rows or
// lose an access_count increment; refMu keeps the write path serialized
// to avoid SQLITE_BUSY under load.
func (s *SQLiteStore) UpsertReference(ctx context.Context, refType domain.RefType, refID, refName string, metadata map[string]any) error {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	var metadataJSON interface{}
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal reference metadata: %w", err)
		}
		metadataJSON = string(data)
	}

	// last_accessed is stored in nanoseconds so rapid successive upserts
	// keep a strict recency order.
	query := `
	INSERT INTO context_references (ref_type, ref_id, ref_name, metadata_json, last_accessed, access_count)
	VALUES (?, ?, ?, ?, ?, 1)
	ON CONFLICT(ref_type, ref_id) DO UPDATE SET
		ref_name = excluded.ref_name,
		metadata_json = COALESCE(excluded.metadata_json, context_references.metadata_json),
		last_accessed = excluded.last_accessed,
		access_count = context_references.access_count + 1`

	_, err := s.db.ExecContext(ctx, query,
		string(refType), refID, refName, metadataJSON, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert reference: %w", err)
	}
	return nil
}

// RecentReferences returns up to limit references of the given type,
// most recently accessed first.
func (s *SQLiteStore) RecentReferences(ctx context.Context, refType domain.RefType, limit int) ([]*domain.ContextReference, error) {
	query := `
		SELECT id, ref_type, ref_id, ref_name, metadata_json, last_accessed, access_count
		FROM context_references
		WHERE ref_type = ?
		ORDER BY last_accessed DESC, id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, string(refType), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent references: %w", err)
	}
	defer rows.Close()

	var refs []*domain.ContextReference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}

	return refs, nil
}

func scanReference(rows *sql.Rows) (*domain.ContextReference, error) {
	var ref domain.ContextReference
	var refType string
	var metadataJSON sql.NullString
	var lastAccessed int64

	if err := rows.Scan(
		&ref.ID, &refType, &ref.RefID, &ref.RefName,
		&metadataJSON, &lastAccessed, &ref.AccessCount,
	); err != nil {
		return nil, fmt.Errorf("scan reference row: %w", err)
	}

	ref.RefType = domain.RefType(refType)
	ref.LastAccessed = time.Unix(0, lastAccessed)

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &ref.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal reference metadata: %w", err)
		}
	}

	return &ref, nil
}

// RecentInteractions returns up to limit interaction records, newest first.
func (s *SQLiteStore) RecentInteractions(ctx context.Context, limit int, intentFilter string) ([]*domain.Interaction, error) {
	query := `
		SELECT id, timestamp, user_input, intent, entities_json, action_taken, result_summary
		FROM interactions`
	args := []interface{}{}

	if intentFilter != "" {
		query += ` WHERE intent = ?`
		args = append(args, intentFilter)
	}

	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent interactions: %w", err)
	}
	defer rows.Close()

	var recs []*domain.Interaction
	for rows.Next() {
		var rec domain.Interaction
		var timestamp int64
		var entitiesJSON sql.NullString

		if err := rows.Scan(
			&rec.ID, &timestamp, &rec.UserInput, &rec.Intent,
			&entitiesJSON, &rec.ActionTaken, &rec.ResultSummary,
		); err != nil {
			return nil, fmt.Errorf("scan interaction row: %w", err)
		}

		rec.Timestamp = time.Unix(0, timestamp)
		if entitiesJSON.Valid && entitiesJSON.String != "" {
			if err := json.Unmarshal([]byte(entitiesJSON.String), &rec.Entities); err != nil {
				return nil, fmt.Errorf("unmarshal interaction entities: %w", err)
			}
		}
		recs = append(recs, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}

	return recs, nil
}

// EvictStaleReferences deletes references not touched within maxAge.
func (s *SQLiteStore) EvictStaleReferences(ctx context.Context, maxAge time.Duration) (int64, error) {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	threshold := time.Now().Add(-maxAge).UnixNano()
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM context_references WHERE last_accessed < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("evict stale references: %w", err)
	}
	return result.RowsAffected()
}

// ClearInteractions deletes all interaction records.
func (s *SQLiteStore) ClearInteractions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM interactions`)
	if err != nil {
		return 0, fmt.Errorf("clear interactions: %w", err)
	}
	return result.RowsAffected()
}

// MemorySummary returns store totals for the debug endpoint.
func (s *SQLiteStore) MemorySummary(ctx context.Context) (*domain.MemorySummary, error) {
	var summary domain.MemorySummary

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interactions`).Scan(&summary.TotalInteractions); err != nil {
		return nil, fmt.Errorf("count interactions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM context_references`).Scan(&summary.TotalReferences); err != nil {
		return nil, fmt.Errorf("count references: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT intent FROM interactions ORDER BY timestamp DESC, id DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("query recent intents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var intent string
		if err := rows.Scan(&intent); err != nil {
			return nil, fmt.Errorf("scan intent row: %w", err)
		}
		summary.RecentIntents = append(summary.RecentIntents, intent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intents: %w", err)
	}

	return &summary, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
