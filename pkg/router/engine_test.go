package router

import (
	"testing"

	"tutor/pkg/classify"
	"tutor/pkg/continuity"
	"tutor/pkg/proto"
)

func decideFor(t *testing.T, utterance string, cont *continuity.Context) *proto.RoutingDecision {
	t.Helper()
	c := classify.New()
	cls := c.Classify(utterance, nil)
	return New().Decide(utterance, &cls, cont)
}

func TestDecideAlwaysValid(t *testing.T) {
	inputs := []string{
		"",
		"just tell me the answer",
		"obviously this is the best solution",
		"can you show me examples of adaptive reuse projects?",
		"i'm confused about the structural grid",
		"how does the hvac system work?",
		"what should i do next",
		"tell me about community centers",
		"random words with no pattern whatsoever",
	}
	for _, input := range inputs {
		cont := continuity.NewContext("s1")
		decision := decideFor(t, input, cont)
		if !decision.Route.Valid() {
			t.Errorf("Decide(%q) returned invalid route %q", input, decision.Route)
		}
		if decision.Confidence < 0 || decision.Confidence > 1 {
			t.Errorf("Decide(%q) confidence out of range: %f", input, decision.Confidence)
		}
		if decision.RuleID == "" {
			t.Errorf("Decide(%q) returned no rule ID", input)
		}
	}
}

func TestPureExampleFastPath(t *testing.T) {
	cont := continuity.NewContext("s1")
	decision := decideFor(t, "Can you show me examples of adaptive reuse projects?", cont)

	if decision.Route != proto.RouteKnowledgeOnly {
		t.Errorf("Expected knowledge_only, got %s", decision.Route)
	}
	if decision.RuleID != "fastpath-pure-example" {
		t.Errorf("Expected fast path rule, got %s", decision.RuleID)
	}
	if len(decision.Collaborators) != 1 || decision.Collaborators[0] != proto.CollabKnowledge {
		t.Errorf("Expected single knowledge collaborator, got %v", decision.Collaborators)
	}
}

func TestExampleWithImplementationGuardSkipsFastPath(t *testing.T) {
	cont := continuity.NewContext("s1")
	decision := decideFor(t, "show me examples and explain step by step how do i build this", cont)

	if decision.RuleID == "fastpath-pure-example" {
		t.Errorf("Expected implementation phrasing to disqualify the fast path, got rule %s", decision.RuleID)
	}
}

func TestOverconfidenceTriggerOverride(t *testing.T) {
	cont := continuity.NewContext("s1")
	decision := decideFor(t, "obviously this is the best solution", cont)

	if decision.Route != proto.RouteCognitiveChallenge {
		t.Errorf("Expected cognitive_challenge, got %s", decision.Route)
	}
	if decision.Classification == nil ||
		decision.Classification.Interaction != proto.InteractionOverconfidentStatement {
		t.Error("Expected overconfident_statement classification attached to decision")
	}
}

func TestCuriosityTriggerOverride(t *testing.T) {
	cont := continuity.NewContext("s1")
	cont.BeginTurn() // not the first turn
	decision := decideFor(t, "what if we flipped the section? i wonder what happens to the light", cont)

	if decision.Route != proto.RouteSocraticExploration {
		t.Errorf("Expected socratic_exploration, got %s", decision.Route)
	}
	found := false
	for _, tag := range decision.Triggers {
		if tag == proto.TriggerCuriosityAmplification {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected curiosity_amplification shaping tag, got %v", decision.Triggers)
	}
}

func TestOffloadingRoutesToIntervention(t *testing.T) {
	cont := continuity.NewContext("s1")
	cont.BeginTurn()
	cont.BeginTurn() // past first-turn rule

	decision := decideFor(t, "just tell me the answer already. whatever.", cont)
	if decision.Route != proto.RouteCognitiveIntervention && decision.Route != proto.RouteCognitiveChallenge {
		t.Errorf("Expected intervention or challenge for offloading, got %s", decision.Route)
	}
	if !decision.Offloading.Detected {
		t.Error("Expected offloading result carried on the decision")
	}
}

func TestFirstTurnOpening(t *testing.T) {
	cont := continuity.NewContext("s1")
	decision := decideFor(t, "i am starting a studio project on a community center", cont)

	if decision.Route != proto.RouteProgressiveOpening {
		t.Errorf("Expected progressive_opening on turn 1, got %s", decision.Route)
	}
	if decision.RuleID != "first-turn-opening" {
		t.Errorf("Expected first-turn-opening rule, got %s", decision.RuleID)
	}
}

func TestContinuitySideEffects(t *testing.T) {
	cont := continuity.NewContext("s1")
	decideFor(t, "i am designing a community center", cont)

	if cont.TurnCount != 1 {
		t.Errorf("Expected turn count 1, got %d", cont.TurnCount)
	}
	if len(cont.RouteHistory) != 1 {
		t.Fatalf("Expected one route recorded, got %d", len(cont.RouteHistory))
	}
	if cont.ProjectType.Value != "community_center" {
		t.Errorf("Expected community_center fact, got %q", cont.ProjectType.Value)
	}

	// Close the settling window with a second on-topic turn, then throw
	// noisy same-or-lower-confidence detections at the established fact.
	decideFor(t, "the community center needs a flexible hall", cont)
	for range 3 {
		decideFor(t, "hmm, maybe an office tower somewhere?", cont)
	}
	if cont.ProjectType.Value != "community_center" {
		t.Errorf("Expected sticky project type to survive, got %q", cont.ProjectType.Value)
	}
	if len(cont.RouteHistory) != 5 {
		t.Errorf("Expected 5 routes recorded, got %d", len(cont.RouteHistory))
	}
}

func TestClarificationRoutesToSocraticClarification(t *testing.T) {
	cont := continuity.NewContext("s1")
	cont.BeginTurn()
	cont.BeginTurn() // past first-turn rule
	decision := decideFor(t, "could you elaborate on that?", cont)

	if decision.Route != proto.RouteSocraticClarification {
		t.Errorf("Expected socratic_clarification, got %s", decision.Route)
	}
	if decision.RuleID != "clarification-socratic" {
		t.Errorf("Expected clarification-socratic rule, got %s", decision.RuleID)
	}
}

func TestUncertainToneScaffoldsWithoutLowUnderstanding(t *testing.T) {
	cont := continuity.NewContext("s1")
	cont.BeginTurn()
	cont.BeginTurn()
	decision := decideFor(t, "it seems like the courtyard might flood", cont)

	if decision.Route != proto.RouteSupportiveScaffolding {
		t.Errorf("Expected supportive_scaffolding, got %s", decision.Route)
	}
	if decision.RuleID != "uncertain-support" {
		t.Errorf("Expected uncertain-support rule, got %s", decision.RuleID)
	}
}

func TestMalformedContinuityYieldsErrorRoute(t *testing.T) {
	c := classify.New()
	cls := c.Classify("tell me about daylighting", nil)

	decision := New().Decide("tell me about daylighting", &cls, nil)
	if decision.Route != proto.RouteError {
		t.Errorf("Expected error route for nil continuity, got %s", decision.Route)
	}
	if decision.Classification == nil {
		t.Error("Expected original classification attached to error decision")
	}
}

func TestRuleTableIsTotalOrder(t *testing.T) {
	if err := validateRules(defaultRules()); err != nil {
		t.Fatalf("Built-in rule table invalid: %v", err)
	}

	dup := defaultRules()
	dup[1].Priority = dup[0].Priority
	if err := validateRules(dup); err == nil {
		t.Error("Expected duplicate priorities to be rejected")
	}
}

func TestDelegationUsesSuggestionMapping(t *testing.T) {
	// Build a table with only the delegation rule so it must fire.
	rules := []Rule{
		{
			ID:       "always-delegate",
			Priority: 1,
			Target:   "",
		},
	}
	engine, err := NewWithRules(rules)
	if err != nil {
		t.Fatalf("NewWithRules failed: %v", err)
	}

	c := classify.New()
	cont := continuity.NewContext("s1")
	cls := c.Classify("tell me about passive cooling strategies", nil)
	decision := engine.Decide("tell me about passive cooling strategies", &cls, cont)

	if decision.Route != proto.RouteKnowledgeOnly {
		t.Errorf("Expected suggestion mapping to pick knowledge_only, got %s", decision.Route)
	}
	if len(decision.Collaborators) == 0 {
		t.Error("Expected default collaborators for the suggested route")
	}
}
