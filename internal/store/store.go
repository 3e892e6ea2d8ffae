// Package store persists session records for crash recovery. Writes are
// best-effort; in-memory state stays authoritative for the process lifetime.
package store

import (
	"context"
	"errors"

	"github.com/scanquest/orchestrator/internal/models"
)

// ErrNotFound is returned when no matching session record exists. It
// abstracts the underlying storage from the session manager.
var ErrNotFound = errors.New("session record not found")

// SessionStore is the durable put/get abstraction used for crash recovery
type SessionStore interface {
	Put(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	// GetLatest returns the most recently written session record
	GetLatest(ctx context.Context) (*models.Session, error)
	Close() error
}
