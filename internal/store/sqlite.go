package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scanquest/orchestrator/internal/models"
)

// SQLiteStore persists session records as JSON blobs in a sqlite database
type SQLiteStore struct {
	db *sql.DB
}

var _ SessionStore = (*SQLiteStore)(nil)

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for an ephemeral store.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		data BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("migrate sessions table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Put writes the full session record, replacing any previous version
func (s *SQLiteStore) Put(ctx context.Context, session *models.Session) error {
	blob, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, status, data, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, status = excluded.status,
		 data = excluded.data, updated_at = excluded.updated_at`,
		session.ID, session.Name, string(session.Status), blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put session %s: %w", session.ID, err)
	}
	return nil
}

// Get returns the session with the given id, or ErrNotFound
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE id = ?`, sessionID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return decodeSession(blob)
}

// GetLatest returns the most recently written session record, or ErrNotFound
// when no session was ever persisted
func (s *SQLiteStore) GetLatest(ctx context.Context) (*models.Session, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM sessions ORDER BY updated_at DESC, id DESC LIMIT 1`).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest session: %w", err)
	}
	return decodeSession(blob)
}

func decodeSession(blob []byte) (*models.Session, error) {
	var session models.Session
	if err := json.Unmarshal(blob, &session); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	if session.Scores == nil {
		session.Scores = make(map[string]*models.TeamScore)
	}
	if session.Metadata.ScannedTokensByDevice == nil {
		session.Metadata.ScannedTokensByDevice = make(map[string][]string)
	}
	return &session, nil
}
