package continuity

import (
	"testing"

	"tutor/pkg/proto"
)

func TestStickyFactSettlingWindow(t *testing.T) {
	ctx := NewContext("s1")
	ctx.BeginTurn() // turn 1

	if !ctx.ObserveProjectType("community_center", 0.9) {
		t.Fatal("Expected first observation to be applied")
	}
	if ctx.ProjectType.Value != "community_center" {
		t.Errorf("Expected community_center, got %s", ctx.ProjectType.Value)
	}

	// Still inside the settling window: a lower-confidence detection may
	// replace the fact.
	ctx.BeginTurn() // turn 2
	if !ctx.ObserveProjectType("museum", 0.6) {
		t.Error("Expected settling-window observation to be applied")
	}

	// Re-establish the strong fact before the window closes.
	if !ctx.ObserveProjectType("community_center", 0.9) {
		t.Error("Expected re-observation inside window to be applied")
	}
}

func TestStickyFactStabilityAfterSettling(t *testing.T) {
	ctx := NewContext("s1")
	ctx.BeginTurn()
	ctx.ObserveProjectType("community_center", 0.9)

	// Advance past the settling window.
	for range 4 {
		ctx.BeginTurn()
	}

	// A noisy low-confidence detection on turn 5 must not move the fact.
	if ctx.ObserveProjectType("office", 0.3) {
		t.Error("Expected below-threshold observation to be rejected")
	}
	if ctx.ObserveProjectType("office", 0.7) {
		t.Error("Expected lower-confidence observation to be rejected after settling")
	}
	if ctx.ProjectType.Value != "community_center" {
		t.Errorf("Expected sticky fact to remain community_center, got %s", ctx.ProjectType.Value)
	}

	// Equal confidence is not enough: strictly greater is required.
	if ctx.ObserveProjectType("office", 0.9) {
		t.Error("Expected equal-confidence observation to be rejected")
	}

	// Strictly stronger evidence still wins.
	if !ctx.ObserveProjectType("office", 0.95) {
		t.Error("Expected strictly stronger observation to be applied")
	}
}

func TestObserveRejectsBelowThreshold(t *testing.T) {
	ctx := NewContext("s1")
	ctx.BeginTurn()

	if ctx.ObserveProjectType("museum", 0.2) {
		t.Error("Expected observation below StickyThreshold to be rejected")
	}
	if ctx.ProjectType.Set() {
		t.Error("Expected no fact to be set")
	}
	if ctx.ObserveLearningPhase(proto.PhaseExploration, 0.1) {
		t.Error("Expected phase observation below threshold to be rejected")
	}
}

func TestRecordRouteAppendOnly(t *testing.T) {
	ctx := NewContext("s1")
	ctx.BeginTurn()
	ctx.RecordRoute(proto.RouteKnowledgeOnly, "community_center")
	ctx.BeginTurn()
	ctx.RecordRoute(proto.RouteSocraticExploration, "daylighting")

	if len(ctx.RouteHistory) != 2 {
		t.Fatalf("Expected 2 routes, got %d", len(ctx.RouteHistory))
	}
	if ctx.RouteHistory[0] != proto.RouteKnowledgeOnly {
		t.Error("Expected earlier history entries to be preserved")
	}
	if ctx.LastRoute != proto.RouteSocraticExploration {
		t.Errorf("Expected last route socratic_exploration, got %s", ctx.LastRoute)
	}
	if ctx.CurrentTopic != "daylighting" {
		t.Errorf("Expected current topic daylighting, got %s", ctx.CurrentTopic)
	}
	if !ctx.IsContinuing {
		t.Error("Expected IsContinuing after second turn")
	}
}

func TestDetectProjectType(t *testing.T) {
	projectType, conf := DetectProjectType("I'm designing a community center for my neighborhood")
	if projectType != "community_center" {
		t.Errorf("Expected community_center, got %s", projectType)
	}
	if conf < StickyThreshold {
		t.Errorf("Expected confidence above threshold, got %f", conf)
	}

	if pt, c := DetectProjectType("nothing architectural here"); pt != "" || c != 0 {
		t.Errorf("Expected no detection, got %s/%f", pt, c)
	}
}

func TestDetectLearningPhase(t *testing.T) {
	phase, conf := DetectLearningPhase("I want to explore different approaches and compare options")
	if phase != proto.PhaseExploration {
		t.Errorf("Expected exploration, got %s", phase)
	}
	if conf <= 0 {
		t.Errorf("Expected positive confidence, got %f", conf)
	}

	reflect, _ := DetectLearningPhase("looking back, I realized how much I learned")
	if reflect != proto.PhaseReflection {
		t.Errorf("Expected reflection, got %s", reflect)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	if _, err := store.Load("missing"); err == nil {
		t.Error("Expected ErrSessionNotFound for unknown session")
	}

	ctx := NewContext("s1")
	ctx.BeginTurn()
	ctx.RecordRoute(proto.RouteBalancedGuidance, "massing")
	if err := store.Save("s1", ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LastRoute != proto.RouteBalancedGuidance {
		t.Errorf("Expected balanced_guidance, got %s", loaded.LastRoute)
	}

	// Mutating the loaded copy must not leak back into the store.
	loaded.RecordRoute(proto.RouteError, "oops")
	reloaded, _ := store.Load("s1")
	if len(reloaded.RouteHistory) != 1 {
		t.Error("Expected store snapshot to be isolated from caller mutation")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	ctx := NewContext("s9")
	ctx.BeginTurn()
	ctx.ObserveProjectType("museum", 0.8)
	ctx.RecordRoute(proto.RouteKnowledgeOnly, "museum")
	if err := store.Save("s9", ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load("s9")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ProjectType.Value != "museum" {
		t.Errorf("Expected museum fact, got %s", loaded.ProjectType.Value)
	}

	ids, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "s9" {
		t.Errorf("Expected [s9], got %v", ids)
	}

	if _, err := store.Load("absent"); err == nil {
		t.Error("Expected error loading absent session")
	}
}
