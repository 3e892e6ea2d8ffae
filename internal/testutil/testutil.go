package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/scanquest/orchestrator/internal/catalog"
	"github.com/scanquest/orchestrator/internal/logger"
	"github.com/scanquest/orchestrator/internal/models"
	"github.com/scanquest/orchestrator/internal/store"
)

// NewTestLogger returns a logger that discards everything below error
func NewTestLogger() logger.Logger {
	return logger.NewWithWriter(io.Discard, slog.LevelError)
}

// NewTestStore creates a fresh in-memory session store with migrations
// applied
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// NewTestCatalog builds a catalog covering the common scoring cases: a
// plain token, an informational-value token, and a three-member (x3) group.
func NewTestCatalog() *catalog.Catalog {
	return catalog.New([]models.Token{
		{ID: "tok001", ValueRating: 2, MemoryType: "Personal"},
		{ID: "tok002", ValueRating: 3, MemoryType: "Technical", MediaRefs: models.MediaRefs{Video: "tok002.mp4"}},
		{ID: "grp001", ValueRating: 4, MemoryType: "Business", GroupLabel: "Exposing the Truth (x3)"},
		{ID: "grp002", ValueRating: 4, MemoryType: "Business", GroupLabel: "Exposing the Truth (x3)"},
		{ID: "grp003", ValueRating: 4, MemoryType: "Business", GroupLabel: "Exposing the Truth (x3)", MediaRefs: models.MediaRefs{Video: "grp003.mp4"}},
	})
}
