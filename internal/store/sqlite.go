// Package store persists bot-response records: the link between a posted
// bot message and the continuation token that was active when it was sent.
// Backends are interchangeable behind domain.TokenStore and must be treated
// as possibly unavailable at any call.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"askbridge/internal/domain"
)

// SQLiteStore implements domain.TokenStore on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bot_responses (
		tenant_id   TEXT NOT NULL,
		channel_id  TEXT NOT NULL,
		message_ts  TEXT NOT NULL,
		response_id TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tenant_id, message_ts)
	);
	CREATE INDEX IF NOT EXISTS idx_bot_responses_channel ON bot_responses(tenant_id, channel_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetContinuationToken returns the token recorded for a bot message, or ""
// when no record exists.
func (s *SQLiteStore) GetContinuationToken(ctx context.Context, tenantID, messageTS string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT response_id FROM bot_responses WHERE tenant_id = ? AND message_ts = ?`,
		tenantID, messageTS,
	).Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: sqlite lookup: %v", domain.ErrStorageUnavailable, err)
	}
	return token, nil
}

// StoreMessage records a posted bot message and its token. Re-recording the
// same message supersedes the earlier token.
func (s *SQLiteStore) StoreMessage(ctx context.Context, rec domain.BotResponseRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_responses (tenant_id, channel_id, message_ts, response_id, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id, message_ts) DO UPDATE SET response_id = excluded.response_id`,
		rec.TenantID, rec.ChannelID, rec.MessageTS, rec.Token, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("%w: sqlite insert: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
