// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     store
// Description: Persistent action queue and dispatch history
// Author:      Mike Stoffels
// Created:     2025-12-12
// License:     MIT
// ============================================================================

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/inboxpilot/voicepilot/internal/voice"
)

// ResultEntry is one recorded dispatch outcome
type ResultEntry struct {
	SessionID    string               `json:"session_id"`
	Key          string               `json:"key"`
	Action       voice.ActionKind     `json:"action"`
	Status       voice.DispatchStatus `json:"status"`
	Message      string               `json:"message,omitempty"`
	DispatchedAt time.Time            `json:"dispatched_at"`
}

// QueueStore extends voice.QueueStore with history and housekeeping
type QueueStore interface {
	voice.QueueStore

	Results(ctx context.Context, sessionID string, limit int) ([]ResultEntry, error)
	Sessions(ctx context.Context) ([]string, error)
	Statistics(ctx context.Context) (map[string]interface{}, error)
	Close() error
}

// SQLiteQueueStore implements QueueStore using SQLite
type SQLiteQueueStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// SQLiteQueueConfig holds configuration for the SQLite store
type SQLiteQueueConfig struct {
	Path string
}

// DefaultQueueConfig returns default configuration
func DefaultQueueConfig() SQLiteQueueConfig {
	return SQLiteQueueConfig{
		Path: "./data/queue.db",
	}
}

// NewSQLiteQueueStore opens (or creates) the queue database
func NewSQLiteQueueStore(cfg SQLiteQueueConfig) (*SQLiteQueueStore, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteQueueStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteQueueStore) initSchema() error {
	schema := `
	-- Pending actions, one row per queued command
	CREATE TABLE IF NOT EXISTS queue (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		msg_key TEXT NOT NULL,
		action TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, position)
	);

	-- Dispatch outcomes
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		msg_key TEXT NOT NULL,
		action TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		dispatched_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_session ON results(session_id, dispatched_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveQueue replaces the stored queue of a session
func (s *SQLiteQueueStore) SaveQueue(ctx context.Context, sessionID string, actions []voice.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO queue (session_id, position, msg_key, action, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i, a := range actions {
		if _, err := stmt.ExecContext(ctx, sessionID, i, a.Key, string(a.Action), a.Body, now); err != nil {
			return fmt.Errorf("failed to insert action: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit queue: %w", err)
	}
	return nil
}

// LoadQueue returns the stored queue of a session in insertion order
func (s *SQLiteQueueStore) LoadQueue(ctx context.Context, sessionID string) ([]voice.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT msg_key, action, body FROM queue
		WHERE session_id = ?
		ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	defer rows.Close()

	var actions []voice.ActionRecord
	for rows.Next() {
		var a voice.ActionRecord
		var action string
		if err := rows.Scan(&a.Key, &action, &a.Body); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.Action = voice.ActionKind(action)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// RecordResults appends dispatch outcomes to the history
func (s *SQLiteQueueStore) RecordResults(ctx context.Context, sessionID string, results []voice.DispatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, r := range results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO results (session_id, msg_key, action, status, message, dispatched_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, sessionID, r.Key, string(r.Action), string(r.Status), r.Message, now)
		if err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// Results returns the most recent outcomes of a session, newest first
func (s *SQLiteQueueStore) Results(ctx context.Context, sessionID string, limit int) ([]ResultEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, msg_key, action, status, message, dispatched_at FROM results
		WHERE session_id = ?
		ORDER BY dispatched_at DESC, id DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	defer rows.Close()

	var entries []ResultEntry
	for rows.Next() {
		var e ResultEntry
		var action, status string
		if err := rows.Scan(&e.SessionID, &e.Key, &action, &status, &e.Message, &e.DispatchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		e.Action = voice.ActionKind(action)
		e.Status = voice.DispatchStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sessions lists sessions that have a pending queue
func (s *SQLiteQueueStore) Sessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT session_id FROM queue ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database
func (s *SQLiteQueueStore) Close() error {
	return s.db.Close()
}

// Statistics returns store statistics
func (s *SQLiteQueueStore) Statistics(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]interface{})

	var queued int64
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue`).Scan(&queued)
	stats["queued_actions"] = queued

	var results int64
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&results)
	stats["recorded_results"] = results

	var failed int64
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE status = ?`, string(voice.StatusError)).Scan(&failed)
	stats["failed_results"] = failed

	return stats, nil
}

// MemoryQueueStore keeps the queue in memory; used when persistence is off
type MemoryQueueStore struct {
	mu      sync.RWMutex
	queues  map[string][]voice.ActionRecord
	results map[string][]ResultEntry
}

// NewMemoryQueueStore creates an empty in-memory store
func NewMemoryQueueStore() *MemoryQueueStore {
	return &MemoryQueueStore{
		queues:  make(map[string][]voice.ActionRecord),
		results: make(map[string][]ResultEntry),
	}
}

// SaveQueue replaces the queue of a session
func (m *MemoryQueueStore) SaveQueue(ctx context.Context, sessionID string, actions []voice.ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(actions) == 0 {
		delete(m.queues, sessionID)
		return nil
	}
	m.queues[sessionID] = append([]voice.ActionRecord(nil), actions...)
	return nil
}

// LoadQueue returns a copy of the queue of a session
func (m *MemoryQueueStore) LoadQueue(ctx context.Context, sessionID string) ([]voice.ActionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]voice.ActionRecord(nil), m.queues[sessionID]...), nil
}

// RecordResults appends outcomes to the history
func (m *MemoryQueueStore) RecordResults(ctx context.Context, sessionID string, results []voice.DispatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, r := range results {
		m.results[sessionID] = append(m.results[sessionID], ResultEntry{
			SessionID:    sessionID,
			Key:          r.Key,
			Action:       r.Action,
			Status:       r.Status,
			Message:      r.Message,
			DispatchedAt: now,
		})
	}
	return nil
}

// Results returns the most recent outcomes, newest first
func (m *MemoryQueueStore) Results(ctx context.Context, sessionID string, limit int) ([]ResultEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.results[sessionID]
	if limit <= 0 {
		limit = 50
	}
	out := make([]ResultEntry, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Sessions lists sessions that have a pending queue
func (m *MemoryQueueStore) Sessions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.queues))
	for id := range m.queues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Statistics returns store statistics
func (m *MemoryQueueStore) Statistics(ctx context.Context) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var queued, results, failed int64
	for _, q := range m.queues {
		queued += int64(len(q))
	}
	for _, rs := range m.results {
		for _, r := range rs {
			results++
			if r.Status == voice.StatusError {
				failed++
			}
		}
	}
	return map[string]interface{}{
		"queued_actions":   queued,
		"recorded_results": results,
		"failed_results":   failed,
	}, nil
}

// Close is a no-op
func (m *MemoryQueueStore) Close() error {
	return nil
}

var (
	_ QueueStore = (*SQLiteQueueStore)(nil)
	_ QueueStore = (*MemoryQueueStore)(nil)
)
