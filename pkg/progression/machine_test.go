package progression

import (
	"errors"
	"testing"

	"tutor/pkg/proto"
)

// advance drives the machine through utterances that complete Discovery and
// satisfy its readiness check, ending in Exploration.
var discoveryToExploration = []string{
	"hello, i want to work on my studio project",
	"i see, that makes sense now",
	"i am ready for the next step",
}

func TestNewMachineStartsInDiscovery(t *testing.T) {
	m := NewMachine("s1", nil)

	if m.Phase() != proto.PhaseDiscovery {
		t.Errorf("Expected discovery, got %s", m.Phase())
	}
	milestones := m.Milestones()
	if len(milestones) != 1 {
		t.Fatalf("Expected one seeded milestone, got %d", len(milestones))
	}
	if milestones[0].Type != proto.MilestonePhaseEntry {
		t.Errorf("Expected phase_entry milestone, got %s", milestones[0].Type)
	}
}

func TestMilestoneSequenceWithinDiscovery(t *testing.T) {
	m := NewMachine("s1", nil)

	// A substantial first message completes phase entry and opens
	// knowledge acquisition.
	info := m.ObserveTurn("hello, i want to work on my studio project", nil)
	if info.Phase != proto.PhaseDiscovery {
		t.Errorf("Expected discovery, got %s", info.Phase)
	}
	if info.Milestone != proto.MilestoneKnowledgeAcquisition {
		t.Errorf("Expected knowledge_acquisition opened, got %s", info.Milestone)
	}
}

func TestUnmetCriteriaHoldPhase(t *testing.T) {
	m := NewMachine("s1", nil)

	// Three turns that never demonstrate knowledge acquisition: the
	// milestone stays open and no transition fires even though the
	// phase's minimum message count is reached.
	m.ObserveTurn("hello, i want to work on my studio project", nil)
	m.ObserveTurn("what is adaptive reuse anyway?", nil)
	info := m.ObserveTurn("tell me more about the history", nil)

	if info.Phase != proto.PhaseDiscovery {
		t.Errorf("Expected to remain in discovery, got %s", info.Phase)
	}
	if info.Milestone != proto.MilestoneKnowledgeAcquisition {
		t.Errorf("Expected knowledge_acquisition still open, got %s", info.Milestone)
	}
	if len(m.Transitions()) != 0 {
		t.Errorf("Expected no transitions, got %d", len(m.Transitions()))
	}
}

func TestDiscoveryToExplorationTransition(t *testing.T) {
	m := NewMachine("s1", nil)
	for _, utterance := range discoveryToExploration {
		m.ObserveTurn(utterance, nil)
	}

	if m.Phase() != proto.PhaseExploration {
		t.Fatalf("Expected exploration, got %s", m.Phase())
	}
	transitions := m.Transitions()
	if len(transitions) != 1 {
		t.Fatalf("Expected one transition, got %d", len(transitions))
	}
	if transitions[0].FromPhase != proto.PhaseDiscovery || transitions[0].ToPhase != proto.PhaseExploration {
		t.Errorf("Unexpected transition %s -> %s", transitions[0].FromPhase, transitions[0].ToPhase)
	}

	// The new phase opens with its own entry milestone.
	milestones := m.Milestones()
	last := milestones[len(milestones)-1]
	if last.Phase != proto.PhaseExploration || last.Type != proto.MilestonePhaseEntry {
		t.Errorf("Expected exploration phase_entry milestone, got %s in %s", last.Type, last.Phase)
	}
}

func TestPhaseOrderNeverRegresses(t *testing.T) {
	m := NewMachine("s1", nil)
	utterances := []string{
		// Discovery
		"hello, i want to work on my studio project",
		"i see, that makes sense now",
		"i am ready for the next step",
		// Exploration
		"what about a courtyard in the middle?",
		"maybe an alternative is a covered atrium",
		"the atrium is better than the courtyard for light",
		"i'm ready to move on",
		// Synthesis
		"the roof shape matters a lot here",
		"it relates to the structure because the grid depends on it",
		"overall, as a whole these ideas work together",
		"let's move on",
		// Application
		"time to put this to work on the site",
		"i will apply this in my design",
		"i chose it because the reasoning holds",
		"ready for the next phase",
		// Reflection
		"looking back at the whole semester now",
		"i learned a lot and i realized my thinking changed",
		"i have grown and made real progress",
	}

	lastOrder := m.Phase().Order()
	for _, utterance := range utterances {
		info := m.ObserveTurn(utterance, nil)
		order := info.Phase.Order()
		if order < lastOrder {
			t.Fatalf("Phase regressed from order %d to %d on %q", lastOrder, order, utterance)
		}
		lastOrder = order
	}

	if m.Phase() != proto.PhaseReflection {
		t.Errorf("Expected the full arc to end in reflection, got %s", m.Phase())
	}
}

func TestMilestoneListIsAppendOnly(t *testing.T) {
	m := NewMachine("s1", nil)

	var seen []string
	record := func() {
		milestones := m.Milestones()
		for i, milestone := range milestones {
			if i < len(seen) {
				if milestone.ID != seen[i] {
					t.Fatalf("Milestone %d changed identity: %s -> %s", i, seen[i], milestone.ID)
				}
				continue
			}
			seen = append(seen, milestone.ID)
		}
		if len(milestones) < len(seen) {
			t.Fatalf("Milestone list shrank to %d entries", len(milestones))
		}
	}

	record()
	for _, utterance := range discoveryToExploration {
		m.ObserveTurn(utterance, nil)
		record()
	}
}

func TestUnknownMilestoneTypeHeldConservatively(t *testing.T) {
	m := NewMachine("s1", nil)
	m.milestones = append(m.milestones, proto.Milestone{
		ID:    proto.NewMilestoneID(),
		Phase: m.phase,
		Type:  proto.MilestoneType("bogus_milestone"),
	})
	before := len(m.Milestones())

	info := m.ObserveTurn("i see, that makes sense now", nil)

	if info.Phase != proto.PhaseDiscovery {
		t.Errorf("Expected unknown milestone to hold the phase, got %s", info.Phase)
	}
	if len(m.Milestones()) != before {
		t.Errorf("Expected no milestone created past an unknown type")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	store := NewMemoryStateStore()
	m := NewMachine("s1", store)
	for _, utterance := range discoveryToExploration {
		m.ObserveTurn(utterance, nil)
	}

	restored, err := Restore("s1", store)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.Phase() != m.Phase() {
		t.Errorf("Restored phase %s, want %s", restored.Phase(), m.Phase())
	}
	if len(restored.Milestones()) != len(m.Milestones()) {
		t.Errorf("Restored %d milestones, want %d", len(restored.Milestones()), len(m.Milestones()))
	}
	if len(restored.Transitions()) != len(m.Transitions()) {
		t.Errorf("Restored %d transitions, want %d", len(restored.Transitions()), len(m.Transitions()))
	}
}

func TestRestoreMissingSession(t *testing.T) {
	_, err := Restore("no-such-session", NewMemoryStateStore())
	if !errors.Is(err, ErrProgressNotFound) {
		t.Errorf("Expected ErrProgressNotFound, got %v", err)
	}
}

func TestPhaseChangeNotification(t *testing.T) {
	m := NewMachine("s1", nil)
	ch := make(chan *proto.PhaseChangeNotification, 1)
	m.SetNotificationChannel(ch)

	for _, utterance := range discoveryToExploration {
		m.ObserveTurn(utterance, nil)
	}

	select {
	case notification := <-ch:
		if notification.FromPhase != proto.PhaseDiscovery || notification.ToPhase != proto.PhaseExploration {
			t.Errorf("Unexpected notification %s -> %s", notification.FromPhase, notification.ToPhase)
		}
		if notification.SessionID != "s1" {
			t.Errorf("Expected session s1, got %s", notification.SessionID)
		}
	default:
		t.Fatal("Expected a phase-change notification")
	}
}

func TestCurrentGuidance(t *testing.T) {
	m := NewMachine("s1", nil)
	m.ObserveTurn("hello, i want to work on my studio project", nil)

	g := m.CurrentGuidance()
	if g.Phase != proto.PhaseDiscovery {
		t.Errorf("Expected discovery guidance, got %s", g.Phase)
	}
	if g.Milestone != proto.MilestoneKnowledgeAcquisition {
		t.Errorf("Expected knowledge_acquisition guidance, got %s", g.Milestone)
	}
	if g.NextPhase != proto.PhaseExploration {
		t.Errorf("Expected next phase exploration, got %s", g.NextPhase)
	}
	if len(g.RequiredActions) == 0 || len(g.SuccessCriteria) == 0 {
		t.Error("Expected guidance to carry actions and criteria")
	}
}
