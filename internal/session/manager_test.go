package session

import (
	"context"
	"testing"

	"github.com/scanquest/orchestrator/internal/errors"
	"github.com/scanquest/orchestrator/internal/events"
	"github.com/scanquest/orchestrator/internal/models"
	"github.com/scanquest/orchestrator/internal/testutil"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	return New(testutil.NewTestLogger(), testutil.NewTestStore(t), bus)
}

func TestCreate(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Create(context.Background(), "Friday Night", []string{"red", "blue"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if s.ID == "" {
		t.Error("session has no id")
	}
	if s.Status != models.SessionActive {
		t.Errorf("got status %s, want active", s.Status)
	}
	if len(s.Teams) != 2 {
		t.Errorf("got %d teams, want 2", len(s.Teams))
	}
	for _, teamID := range s.Teams {
		score, ok := s.Scores[teamID]
		if !ok {
			t.Fatalf("no score entry for team %s", teamID)
		}
		if score.CurrentScore != 0 {
			t.Errorf("team %s starts with score %d", teamID, score.CurrentScore)
		}
	}
}

func TestCreate_Validation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "", []string{"red"}); !errors.IsKind(err, errors.ErrValidation) {
		t.Errorf("empty name: got %v, want validation error", err)
	}
	if _, err := m.Create(ctx, "Game", nil); !errors.IsKind(err, errors.ErrValidation) {
		t.Errorf("no teams: got %v, want validation error", err)
	}
}

func TestCreate_SupersedesExisting(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.Create(ctx, "First", []string{"red"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Create(ctx, "Second", []string{"blue"})
	if err != nil {
		t.Fatalf("creating over an active session must supersede, got error: %v", err)
	}
	if second.ID == first.ID {
		t.Error("superseding session reused the old id")
	}

	cur := m.Current()
	if cur.ID != second.ID || cur.Status != models.SessionActive {
		t.Errorf("current session is %s/%s, want %s/active", cur.ID, cur.Status, second.ID)
	}
}

func TestTransitions(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "Game", []string{"red"}); err != nil {
		t.Fatal(err)
	}

	if err := m.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := m.Current().Status; got != models.SessionPaused {
		t.Errorf("after pause: %s", got)
	}

	// Pausing a paused session is invalid
	if err := m.Pause(ctx); !errors.IsKind(err, errors.ErrInvalidTransition) {
		t.Errorf("double pause: got %v, want invalid transition", err)
	}

	if err := m.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if got := m.Current().Status; got != models.SessionActive {
		t.Errorf("after resume: %s", got)
	}

	// Resuming an active session is invalid
	if err := m.Resume(ctx); !errors.IsKind(err, errors.ErrInvalidTransition) {
		t.Errorf("resume active: got %v, want invalid transition", err)
	}

	if err := m.End(ctx); err != nil {
		t.Fatalf("End: %v", err)
	}
	cur := m.Current()
	if cur.Status != models.SessionEnded {
		t.Errorf("after end: %s", cur.Status)
	}
	if cur.EndTime == nil {
		t.Error("ended session has no end time")
	}

	// Everything is invalid once ended
	if err := m.Pause(ctx); !errors.IsKind(err, errors.ErrInvalidTransition) {
		t.Errorf("pause ended: got %v", err)
	}
	if err := m.End(ctx); !errors.IsKind(err, errors.ErrInvalidTransition) {
		t.Errorf("double end: got %v", err)
	}
}

func TestTransitions_NoSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.Pause(ctx); !errors.IsKind(err, errors.ErrInvalidTransition) {
		t.Errorf("pause without session: got %v", err)
	}
	if err := m.End(ctx); !errors.IsKind(err, errors.ErrInvalidTransition) {
		t.Errorf("end without session: got %v", err)
	}
	if m.Current() != nil {
		t.Error("Current should be nil before any session exists")
	}
}

func TestEndPaused(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "Game", []string{"red"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.End(ctx); err != nil {
		t.Errorf("ending a paused session should work: %v", err)
	}
}

func TestRestore(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	st := testutil.NewTestStore(t)
	log := testutil.NewTestLogger()
	ctx := context.Background()

	m1 := New(log, st, bus)
	created, err := m1.Create(ctx, "Interrupted", []string{"red", "blue"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m1.Pause(ctx); err != nil {
		t.Fatal(err)
	}

	// A second manager over the same store simulates a restart
	m2 := New(log, st, bus)
	if err := m2.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	restored := m2.Current()
	if restored == nil {
		t.Fatal("nothing restored")
	}
	if restored.ID != created.ID {
		t.Errorf("restored %s, want %s", restored.ID, created.ID)
	}
	if restored.Status != models.SessionPaused {
		t.Errorf("restored status %s, want paused", restored.Status)
	}
	if len(restored.Teams) != 2 {
		t.Errorf("restored %d teams, want 2", len(restored.Teams))
	}
}

func TestRestore_SkipsEnded(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	st := testutil.NewTestStore(t)
	log := testutil.NewTestLogger()
	ctx := context.Background()

	m1 := New(log, st, bus)
	if _, err := m1.Create(ctx, "Done", []string{"red"}); err != nil {
		t.Fatal(err)
	}
	if err := m1.End(ctx); err != nil {
		t.Fatal(err)
	}

	m2 := New(log, st, bus)
	if err := m2.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if m2.Current() != nil {
		t.Error("ended session should not be restored as current")
	}
}

func TestRestore_EmptyStore(t *testing.T) {
	m := newTestManager(t)
	if err := m.Restore(context.Background()); err != nil {
		t.Errorf("Restore on empty store: %v", err)
	}
	if m.Current() != nil {
		t.Error("expected no current session")
	}
}

func TestMutate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "Game", []string{"red"}); err != nil {
		t.Fatal(err)
	}

	err := m.Mutate(ctx, func(s *models.Session) error {
		s.Scores["red"].BaseScore = 500
		s.Scores["red"].CurrentScore = 500
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if got := m.Current().Scores["red"].CurrentScore; got != 500 {
		t.Errorf("score %d, want 500", got)
	}
}

func TestCurrent_IsSnapshot(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "Game", []string{"red"}); err != nil {
		t.Fatal(err)
	}

	snap := m.Current()
	snap.Scores["red"].BaseScore = 99999
	snap.Teams[0] = "tampered"

	cur := m.Current()
	if cur.Scores["red"].BaseScore != 0 {
		t.Error("mutating a snapshot leaked into the live session")
	}
	if cur.Teams[0] != "red" {
		t.Error("mutating a snapshot's teams leaked into the live session")
	}
}

func TestNoStore(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	m := New(testutil.NewTestLogger(), nil, bus)
	ctx := context.Background()

	if err := m.Restore(ctx); err != nil {
		t.Fatalf("Restore without store: %v", err)
	}
	if _, err := m.Create(ctx, "Memory Only", []string{"red"}); err != nil {
		t.Fatalf("Create without store: %v", err)
	}
	if err := m.End(ctx); err != nil {
		t.Fatalf("End without store: %v", err)
	}
}
