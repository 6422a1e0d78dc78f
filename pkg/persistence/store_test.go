package persistence

import (
	"errors"
	"path/filepath"
	"testing"

	"tutor/pkg/continuity"
	"tutor/pkg/progression"
	"tutor/pkg/proto"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tutor.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return store
}

func TestContinuityRoundTrip(t *testing.T) {
	store := openTestStore(t)

	ctx := continuity.NewContext("s1")
	ctx.BeginTurn()
	ctx.ObserveProjectType("community_center", 0.8)
	ctx.RecordRoute(proto.RouteKnowledgeOnly, "daylight")

	if err := store.Save("s1", ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.TurnCount != 1 {
		t.Errorf("Expected turn count 1, got %d", loaded.TurnCount)
	}
	if loaded.ProjectType.Value != "community_center" {
		t.Errorf("Expected project type preserved, got %q", loaded.ProjectType.Value)
	}
	if len(loaded.RouteHistory) != 1 {
		t.Errorf("Expected one route entry, got %d", len(loaded.RouteHistory))
	}
}

func TestLoadMissingSession(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Load("missing")
	if !errors.Is(err, continuity.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestSaveOverwritesContinuity(t *testing.T) {
	store := openTestStore(t)

	ctx := continuity.NewContext("s1")
	if err := store.Save("s1", ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	ctx.BeginTurn()
	ctx.BeginTurn()
	if err := store.Save("s1", ctx); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.TurnCount != 2 {
		t.Errorf("Expected turn count 2 after upsert, got %d", loaded.TurnCount)
	}
}

func TestProgressRoundTripThroughMachine(t *testing.T) {
	store := openTestStore(t)

	m := progression.NewMachine("s1", store)
	m.ObserveTurn("hello, i want to work on my studio project", nil)
	m.ObserveTurn("i see, that makes sense now", nil)

	restored, err := progression.Restore("s1", store)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.Phase() != m.Phase() {
		t.Errorf("Restored phase %s, want %s", restored.Phase(), m.Phase())
	}
	if len(restored.Milestones()) != len(m.Milestones()) {
		t.Errorf("Restored %d milestones, want %d", len(restored.Milestones()), len(m.Milestones()))
	}
}

func TestLoadProgressMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.LoadProgress("missing")
	if !errors.Is(err, progression.ErrProgressNotFound) {
		t.Errorf("Expected ErrProgressNotFound, got %v", err)
	}

	// A session with continuity but no progress also reports not found.
	if err := store.Save("s1", continuity.NewContext("s1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	_, err = store.LoadProgress("s1")
	if !errors.Is(err, progression.ErrProgressNotFound) {
		t.Errorf("Expected ErrProgressNotFound for progress-less session, got %v", err)
	}
}

func TestRecordAndListTurns(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save("s1", continuity.NewContext("s1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	decision := &proto.RoutingDecision{
		Route:      proto.RouteBalancedGuidance,
		RuleID:     "design-guidance-balanced",
		Confidence: 0.75,
	}
	for _, utterance := range []string{"first turn", "second turn"} {
		if _, err := store.RecordTurn("s1", utterance, decision, "a reply"); err != nil {
			t.Fatalf("RecordTurn failed: %v", err)
		}
	}

	turns, err := store.Turns("s1")
	if err != nil {
		t.Fatalf("Turns failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	if turns[0].Utterance != "first turn" || turns[1].Utterance != "second turn" {
		t.Errorf("Expected turns oldest first, got %v", turns)
	}
	if turns[0].Route != string(proto.RouteBalancedGuidance) {
		t.Errorf("Expected route recorded, got %q", turns[0].Route)
	}
}

func TestListSessions(t *testing.T) {
	store := openTestStore(t)
	for _, id := range []string{"s1", "s2"} {
		if err := store.Save(id, continuity.NewContext(id)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	ids, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Expected 2 sessions, got %v", ids)
	}
}
