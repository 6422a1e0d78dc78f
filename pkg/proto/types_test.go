package proto

import (
	"testing"
)

func TestRouteValid(t *testing.T) {
	for _, r := range AllRoutes {
		if !r.Valid() {
			t.Errorf("Expected route %s to be valid", r)
		}
	}

	if Route("made_up_route").Valid() {
		t.Error("Expected unknown route to be invalid")
	}
}

func TestRouteRequiresQuestion(t *testing.T) {
	questionRoutes := []Route{
		RouteSocraticExploration,
		RouteSocraticClarification,
		RouteMultiAgentComprehensive,
		RouteBalancedGuidance,
		RouteKnowledgeWithChallenge,
		RouteProgressiveOpening,
	}
	for _, r := range questionRoutes {
		if !r.RequiresQuestion() {
			t.Errorf("Expected route %s to require a question", r)
		}
	}

	if RouteCognitiveChallenge.RequiresQuestion() {
		t.Error("Expected cognitive_challenge not to require a trailing question")
	}
	if RouteError.RequiresQuestion() {
		t.Error("Expected error route not to require a trailing question")
	}
}

func TestPhaseOrdering(t *testing.T) {
	if PhaseDiscovery.Order() != 0 {
		t.Errorf("Expected discovery order 0, got %d", PhaseDiscovery.Order())
	}
	if PhaseReflection.Order() != 4 {
		t.Errorf("Expected reflection order 4, got %d", PhaseReflection.Order())
	}
	if Phase("bogus").Order() != -1 {
		t.Error("Expected unknown phase order -1")
	}

	next, ok := PhaseDiscovery.Next()
	if !ok || next != PhaseExploration {
		t.Errorf("Expected discovery -> exploration, got %s (ok=%v)", next, ok)
	}

	if _, ok := PhaseReflection.Next(); ok {
		t.Error("Expected reflection to be the final phase")
	}
}

func TestInteractionTypeLegitimateRequests(t *testing.T) {
	legit := []InteractionType{
		InteractionKnowledgeRequest,
		InteractionExampleRequest,
		InteractionTechnicalQuestion,
		InteractionFeedbackRequest,
		InteractionGeneralQuestion,
	}
	for _, it := range legit {
		if !it.IsLegitimateRequest() {
			t.Errorf("Expected %s to be a legitimate request category", it)
		}
	}

	if InteractionOverconfidentStatement.IsLegitimateRequest() {
		t.Error("Expected overconfident_statement not to be a legitimate request")
	}
	if InteractionCognitiveOffloading.IsLegitimateRequest() {
		t.Error("Expected cognitive_offloading not to be a legitimate request")
	}
}

func TestAgentResultEmpty(t *testing.T) {
	var nilResult *AgentResult
	if !nilResult.Empty() {
		t.Error("Expected nil result to be empty")
	}

	if !(&AgentResult{Name: CollabKnowledge}).Empty() {
		t.Error("Expected result without text to be empty")
	}

	full := &AgentResult{Name: CollabKnowledge, Text: "Adaptive reuse preserves embodied energy."}
	if full.Empty() {
		t.Error("Expected populated result to be non-empty")
	}
}
