// Package router maps a turn's classification plus conversation continuity to
// a routing decision: which route to take and which collaborators to invoke.
// The core is a priority-ordered declarative rule table with two explicit
// pre-table fast paths (pure-example requests and gamification triggers).
package router

import (
	"fmt"

	"tutor/pkg/proto"
)

// Field names a signal the condition language can test.
type Field string

const (
	FieldInteraction        Field = "interaction_type"
	FieldUnderstanding      Field = "understanding_level"
	FieldConfidenceLevel    Field = "confidence_level"
	FieldEngagement         Field = "engagement_level"
	FieldOffloadingDetected Field = "offloading_detected"
	FieldShowsConfusion     Field = "shows_confusion"
	FieldPureKnowledge      Field = "is_pure_knowledge_request"
	FieldTechnicalQuestion  Field = "is_technical_question"
	FieldFeedbackRequest    Field = "is_feedback_request"
	FieldIsContinuing       Field = "is_continuing"
	FieldTurnCount          Field = "turn_count"
	FieldContextConfidence  Field = "context_confidence"
)

// Op is a condition operator. Equality works for any field; the ordered
// operators apply to numeric fields only.
type Op string

const (
	OpEq Op = "eq"
	OpNe Op = "ne"
	OpGT Op = "gt"
	OpLT Op = "lt"
)

// Condition is one boolean predicate over the enriched signal record.
type Condition struct {
	Field Field
	Op    Op
	Value any
}

// Rule is one entry of the routing table. Rules are evaluated in ascending
// Priority order and the first rule whose every condition holds wins. An
// empty Target delegates to the suggestion mapping.
type Rule struct {
	ID            string
	Priority      int
	Conditions    []Condition
	Target        proto.Route
	Collaborators []string
	Reason        string
}

// defaultRules is the built-in routing table. Priorities are a total order;
// no two rules share one.
func defaultRules() []Rule {
	return []Rule{
		{
			ID:       "first-turn-opening",
			Priority: 10,
			Conditions: []Condition{
				{Field: FieldTurnCount, Op: OpLT, Value: 2},
				{Field: FieldOffloadingDetected, Op: OpEq, Value: false},
			},
			Target:        proto.RouteProgressiveOpening,
			Collaborators: []string{proto.CollabSocratic, proto.CollabKnowledge},
			Reason:        "first turn: open progressively before committing to a strategy",
		},
		{
			ID:       "topic-transition",
			Priority: 20,
			Conditions: []Condition{
				{Field: FieldInteraction, Op: OpEq, Value: proto.InteractionTopicTransition},
			},
			Target:        proto.RouteTopicTransition,
			Collaborators: []string{proto.CollabKnowledge, proto.CollabSocratic},
			Reason:        "explicit topic transition requested",
		},
		{
			ID:       "offloading-intervention",
			Priority: 30,
			Conditions: []Condition{
				{Field: FieldOffloadingDetected, Op: OpEq, Value: true},
			},
			Target:        proto.RouteCognitiveIntervention,
			Collaborators: []string{proto.CollabChallenge, proto.CollabSocratic},
			Reason:        "cognitive offloading detected: redirect toward reasoning",
		},
		{
			ID:       "overconfidence-challenge",
			Priority: 40,
			Conditions: []Condition{
				{Field: FieldInteraction, Op: OpEq, Value: proto.InteractionOverconfidentStatement},
			},
			Target:        proto.RouteCognitiveChallenge,
			Collaborators: []string{proto.CollabChallenge},
			Reason:        "overconfident claim: challenge the certainty",
		},
		{
			ID:       "confusion-clarification",
			Priority: 50,
			Conditions: []Condition{
				{Field: FieldShowsConfusion, Op: OpEq, Value: true},
			},
			Target:        proto.RouteSocraticClarification,
			Collaborators: []string{proto.CollabSocratic, proto.CollabKnowledge},
			Reason:        "confusion expressed: clarify through guided questions",
		},
		{
			ID:       "uncertain-scaffolding",
			Priority: 60,
			Conditions: []Condition{
				{Field: FieldConfidenceLevel, Op: OpEq, Value: proto.ConfidenceUncertain},
				{Field: FieldUnderstanding, Op: OpEq, Value: proto.LevelLow},
			},
			Target:        proto.RouteSupportiveScaffolding,
			Collaborators: []string{proto.CollabKnowledge, proto.CollabSocratic},
			Reason:        "uncertain and low understanding: scaffold supportively",
		},
		{
			ID:       "pure-knowledge",
			Priority: 70,
			Conditions: []Condition{
				{Field: FieldPureKnowledge, Op: OpEq, Value: true},
			},
			Target:        proto.RouteKnowledgeOnly,
			Collaborators: []string{proto.CollabKnowledge},
			Reason:        "pure information request: answer directly",
		},
		{
			ID:       "technical-with-challenge",
			Priority: 80,
			Conditions: []Condition{
				{Field: FieldTechnicalQuestion, Op: OpEq, Value: true},
			},
			Target:        proto.RouteKnowledgeWithChallenge,
			Collaborators: []string{proto.CollabKnowledge, proto.CollabChallenge},
			Reason:        "technical question: answer plus a stretch prompt",
		},
		{
			ID:       "feedback-comprehensive",
			Priority: 90,
			Conditions: []Condition{
				{Field: FieldFeedbackRequest, Op: OpEq, Value: true},
			},
			Target:        proto.RouteMultiAgentComprehensive,
			Collaborators: []string{proto.CollabKnowledge, proto.CollabSocratic, proto.CollabChallenge},
			Reason:        "feedback request: synthesize multiple perspectives",
		},
		{
			ID:       "evaluation-comprehensive",
			Priority: 100,
			Conditions: []Condition{
				{Field: FieldInteraction, Op: OpEq, Value: proto.InteractionEvaluationRequest},
			},
			Target:        proto.RouteMultiAgentComprehensive,
			Collaborators: []string{proto.CollabKnowledge, proto.CollabSocratic, proto.CollabChallenge},
			Reason:        "evaluation request: weigh the approach from several angles",
		},
		{
			ID:       "design-guidance-balanced",
			Priority: 110,
			Conditions: []Condition{
				{Field: FieldInteraction, Op: OpEq, Value: proto.InteractionDesignGuidance},
			},
			Target:        proto.RouteBalancedGuidance,
			Collaborators: []string{proto.CollabKnowledge, proto.CollabSocratic, proto.CollabChallenge},
			Reason:        "design guidance: balance information with exploration",
		},
		{
			ID:       "implementation-balanced",
			Priority: 120,
			Conditions: []Condition{
				{Field: FieldInteraction, Op: OpEq, Value: proto.InteractionImplementationRequest},
			},
			Target:        proto.RouteBalancedGuidance,
			Collaborators: []string{proto.CollabKnowledge, proto.CollabSocratic, proto.CollabChallenge},
			Reason:        "implementation request: guide without handing over the build",
		},
		{
			ID:       "improvement-comprehensive",
			Priority: 130,
			Conditions: []Condition{
				{Field: FieldInteraction, Op: OpEq, Value: proto.InteractionImprovementSeeking},
			},
			Target:        proto.RouteMultiAgentComprehensive,
			Collaborators: []string{proto.CollabKnowledge, proto.CollabSocratic, proto.CollabChallenge},
			Reason:        "improvement seeking: comprehensive critique",
		},
		{
			ID:       "low-understanding-foundation",
			Priority: 140,
			Conditions: []Condition{
				{Field: FieldUnderstanding, Op: OpEq, Value: proto.LevelLow},
			},
			Target:        proto.RouteFoundationalBuilding,
			Collaborators: []string{proto.CollabKnowledge, proto.CollabSocratic},
			Reason:        "low understanding: build foundations first",
		},
		{
			ID:       "established-context-delegate",
			Priority: 150,
			Conditions: []Condition{
				{Field: FieldContextConfidence, Op: OpGT, Value: 0.8},
				{Field: FieldIsContinuing, Op: OpEq, Value: true},
			},
			// Empty target: delegate to the suggestion mapping, which picks
			// a route from the interaction type alone.
			Target:        "",
			Collaborators: nil,
			Reason:        "established context: defer to the interaction-type suggestion",
		},
		{
			ID:       "clarification-socratic",
			Priority: 160,
			Conditions: []Condition{
				{Field: FieldInteraction, Op: OpEq, Value: proto.InteractionClarificationRequest},
			},
			Target:        proto.RouteSocraticClarification,
			Collaborators: []string{proto.CollabSocratic, proto.CollabKnowledge},
			Reason:        "clarification request without confusion markers: restate through questions",
		},
		{
			ID:       "overconfidence-backstop",
			Priority: 170,
			Conditions: []Condition{
				{Field: FieldConfidenceLevel, Op: OpEq, Value: proto.ConfidenceOverconfident},
			},
			Target:        proto.RouteCognitiveChallenge,
			Collaborators: []string{proto.CollabChallenge},
			Reason:        "overconfident tone without an explicit claim: challenge the certainty",
		},
		{
			ID:       "uncertain-support",
			Priority: 180,
			Conditions: []Condition{
				{Field: FieldConfidenceLevel, Op: OpEq, Value: proto.ConfidenceUncertain},
			},
			Target:        proto.RouteSupportiveScaffolding,
			Collaborators: []string{proto.CollabKnowledge, proto.CollabSocratic},
			Reason:        "uncertain tone: scaffold even when understanding is adequate",
		},
		{
			ID:       "high-engagement-exploration",
			Priority: 190,
			Conditions: []Condition{
				{Field: FieldEngagement, Op: OpEq, Value: proto.LevelHigh},
			},
			Target:        proto.RouteSocraticExploration,
			Collaborators: []string{proto.CollabSocratic},
			Reason:        "high engagement: lean into open exploration",
		},
	}
}

// suggestionRoutes is the external suggestion mapping consulted when a rule
// delegates (empty target). It maps interaction types to routes directly.
var suggestionRoutes = map[proto.InteractionType]proto.Route{
	proto.InteractionKnowledgeRequest:   proto.RouteKnowledgeOnly,
	proto.InteractionExampleRequest:     proto.RouteKnowledgeOnly,
	proto.InteractionTechnicalQuestion:  proto.RouteKnowledgeWithChallenge,
	proto.InteractionGeneralQuestion:    proto.RouteSocraticExploration,
	proto.InteractionGeneralStatement:   proto.RouteSocraticExploration,
	proto.InteractionDesignGuidance:     proto.RouteBalancedGuidance,
	proto.InteractionImprovementSeeking: proto.RouteMultiAgentComprehensive,
}

// routeCollaborators is the default collaborator set per route, used when a
// delegated or trigger-derived decision does not carry its own set.
var routeCollaborators = map[proto.Route][]string{
	proto.RouteProgressiveOpening:      {proto.CollabSocratic, proto.CollabKnowledge},
	proto.RouteTopicTransition:         {proto.CollabKnowledge, proto.CollabSocratic},
	proto.RouteKnowledgeOnly:           {proto.CollabKnowledge},
	proto.RouteSocraticExploration:     {proto.CollabSocratic},
	proto.RouteCognitiveChallenge:      {proto.CollabChallenge},
	proto.RouteMultiAgentComprehensive: {proto.CollabKnowledge, proto.CollabSocratic, proto.CollabChallenge},
	proto.RouteSocraticClarification:   {proto.CollabSocratic, proto.CollabKnowledge},
	proto.RouteSupportiveScaffolding:   {proto.CollabKnowledge, proto.CollabSocratic},
	proto.RouteFoundationalBuilding:    {proto.CollabKnowledge, proto.CollabSocratic},
	proto.RouteKnowledgeWithChallenge:  {proto.CollabKnowledge, proto.CollabChallenge},
	proto.RouteBalancedGuidance:        {proto.CollabKnowledge, proto.CollabSocratic, proto.CollabChallenge},
	proto.RouteCognitiveIntervention:   {proto.CollabChallenge, proto.CollabSocratic},
}

// triggerRoute maps a gamification trigger to its override route and any
// response-shaping tags attached to the decision. Triggers reflect the
// pedagogical state, not the literal content, so once detected they take
// precedence over the content-based table.
type triggerRoute struct {
	route  proto.Route
	shaped []proto.TriggerTag
}

var triggerOverrides = map[proto.TriggerTag]triggerRoute{
	proto.TriggerLowEngagement:    {route: proto.RouteCognitiveChallenge},
	proto.TriggerOverconfidence:   {route: proto.RouteCognitiveChallenge, shaped: []proto.TriggerTag{proto.TriggerRealityCheck}},
	proto.TriggerStuck:            {route: proto.RouteSupportiveScaffolding},
	proto.TriggerMastery:          {route: proto.RouteCognitiveChallenge},
	proto.TriggerCuriosity:        {route: proto.RouteSocraticExploration, shaped: []proto.TriggerTag{proto.TriggerCuriosityAmplification}},
	proto.TriggerNarrative:        {route: proto.RouteSocraticExploration},
	proto.TriggerComparison:       {route: proto.RouteMultiAgentComprehensive},
	proto.TriggerPerspectiveShift: {route: proto.RouteSocraticExploration},
}

// triggerPrecedence fixes which trigger wins when several are present.
var triggerPrecedence = []proto.TriggerTag{
	proto.TriggerLowEngagement,
	proto.TriggerOverconfidence,
	proto.TriggerStuck,
	proto.TriggerMastery,
	proto.TriggerCuriosity,
	proto.TriggerNarrative,
	proto.TriggerComparison,
	proto.TriggerPerspectiveShift,
}

// validateRules rejects tables with duplicate priorities or rule IDs; the
// table must remain a total order.
func validateRules(rules []Rule) error {
	seenPriority := make(map[int]string, len(rules))
	seenID := make(map[string]bool, len(rules))
	for i := range rules {
		r := &rules[i]
		if r.ID == "" {
			return fmt.Errorf("rule at index %d has no ID", i)
		}
		if seenID[r.ID] {
			return fmt.Errorf("duplicate rule ID %q", r.ID)
		}
		seenID[r.ID] = true
		if other, dup := seenPriority[r.Priority]; dup {
			return fmt.Errorf("rules %q and %q share priority %d", other, r.ID, r.Priority)
		}
		seenPriority[r.Priority] = r.ID
		if r.Target != "" && !r.Target.Valid() {
			return fmt.Errorf("rule %q targets unknown route %q", r.ID, r.Target)
		}
	}
	return nil
}
