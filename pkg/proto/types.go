// Package proto defines the shared vocabulary of the tutoring core: interaction
// types, routes, learning phases, and the record types passed between the
// classifier, router, progression machine, and synthesizer.
package proto

// InteractionType categorizes a single student utterance.
type InteractionType string

const (
	// InteractionKnowledgeRequest is a direct request for domain information.
	InteractionKnowledgeRequest InteractionType = "knowledge_request"

	// InteractionExampleRequest asks for examples, precedents, or case studies.
	InteractionExampleRequest InteractionType = "example_request"

	// InteractionTechnicalQuestion is a specific how-does-it-work question.
	InteractionTechnicalQuestion InteractionType = "technical_question"

	// InteractionFeedbackRequest asks for feedback on the student's own work.
	InteractionFeedbackRequest InteractionType = "feedback_request"

	// InteractionConfusionExpression signals the student is lost or confused.
	InteractionConfusionExpression InteractionType = "confusion_expression"

	// InteractionClarificationRequest asks to restate or explain a prior point.
	InteractionClarificationRequest InteractionType = "clarification_request"

	// InteractionDesignGuidance asks how to approach a design decision.
	InteractionDesignGuidance InteractionType = "design_guidance"

	// InteractionImprovementSeeking asks how to make existing work better.
	InteractionImprovementSeeking InteractionType = "improvement_seeking"

	// InteractionEvaluationRequest asks whether an approach is good or correct.
	InteractionEvaluationRequest InteractionType = "evaluation_request"

	// InteractionImplementationRequest asks how to actually build something.
	InteractionImplementationRequest InteractionType = "implementation_request"

	// InteractionOverconfidentStatement asserts certainty without support.
	InteractionOverconfidentStatement InteractionType = "overconfident_statement"

	// InteractionCognitiveOffloading seeks a ready-made answer instead of reasoning.
	InteractionCognitiveOffloading InteractionType = "cognitive_offloading"

	// InteractionTopicTransition explicitly moves to a new topic.
	InteractionTopicTransition InteractionType = "topic_transition"

	// InteractionGeneralStatement is the fallback for declarative input.
	InteractionGeneralStatement InteractionType = "general_statement"

	// InteractionGeneralQuestion is the fallback for interrogative input.
	InteractionGeneralQuestion InteractionType = "general_question"

	// InteractionUnknown is reserved for unclassifiable input.
	InteractionUnknown InteractionType = "unknown"
)

// legitimateRequests are interaction types that gate offloading detection:
// an utterance already classified as one of these is an ordinary request,
// not an attempt to offload reasoning.
var legitimateRequests = map[InteractionType]bool{
	InteractionKnowledgeRequest:  true,
	InteractionExampleRequest:    true,
	InteractionTechnicalQuestion: true,
	InteractionFeedbackRequest:   true,
	InteractionGeneralQuestion:   true,
}

// IsLegitimateRequest reports whether t is an ordinary request category that
// suppresses cognitive-offloading detection.
func (t InteractionType) IsLegitimateRequest() bool {
	return legitimateRequests[t]
}

// Level is a coarse three-tier signal strength used for understanding and
// engagement assessments.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// ConfidenceLevel describes how sure of themselves the student sounds.
type ConfidenceLevel string

const (
	ConfidenceUncertain     ConfidenceLevel = "uncertain"
	ConfidenceConfident     ConfidenceLevel = "confident"
	ConfidenceOverconfident ConfidenceLevel = "overconfident"
)

// OffloadingType categorizes a detected cognitive-offloading pattern.
type OffloadingType string

const (
	// OffloadingNone means no offloading pattern was detected.
	OffloadingNone OffloadingType = "none"

	// OffloadingSolutionRequest is a direct demand for the finished answer.
	OffloadingSolutionRequest OffloadingType = "solution_request"

	// OffloadingOverreliance is repeated dependence on the tutor for every step.
	OffloadingOverreliance OffloadingType = "overreliance"

	// OffloadingAvoidance is dodging the reasoning work ("I can't", "too hard").
	OffloadingAvoidance OffloadingType = "avoidance_pattern"
)

// OffloadingResult is the typed outcome of offloading detection, with the
// matched indicators kept for explainability.
type OffloadingResult struct {
	Detected   bool           `json:"detected"`
	Type       OffloadingType `json:"type"`
	Confidence float64        `json:"confidence"`
	Indicators []string       `json:"indicators,omitempty"`
}

// Classification is the structured signal set produced for one utterance.
// It is ephemeral: one instance per turn, never mutated after creation.
type Classification struct {
	Interaction   InteractionType  `json:"interaction_type"`
	Understanding Level            `json:"understanding_level"`
	Confidence    ConfidenceLevel  `json:"confidence_level"`
	Engagement    Level            `json:"engagement_level"`
	Offloading    OffloadingResult `json:"offloading"`

	// Boolean convenience flags derived alongside the interaction type.
	IsPureKnowledgeRequest bool `json:"is_pure_knowledge_request"`
	IsTechnicalQuestion    bool `json:"is_technical_question"`
	IsFeedbackRequest      bool `json:"is_feedback_request"`
	ShowsConfusion         bool `json:"shows_confusion"`
	RequestsHelp           bool `json:"requests_help"`

	// Indicators lists the matched phrases that justify the classification.
	Indicators []string `json:"indicators,omitempty"`
}

// Route identifies the response strategy chosen for a turn.
type Route string

const (
	RouteProgressiveOpening     Route = "progressive_opening"
	RouteTopicTransition        Route = "topic_transition"
	RouteKnowledgeOnly          Route = "knowledge_only"
	RouteSocraticExploration    Route = "socratic_exploration"
	RouteCognitiveChallenge     Route = "cognitive_challenge"
	RouteMultiAgentComprehensive Route = "multi_agent_comprehensive"
	RouteSocraticClarification  Route = "socratic_clarification"
	RouteSupportiveScaffolding  Route = "supportive_scaffolding"
	RouteFoundationalBuilding   Route = "foundational_building"
	RouteKnowledgeWithChallenge Route = "knowledge_with_challenge"
	RouteBalancedGuidance       Route = "balanced_guidance"
	RouteCognitiveIntervention  Route = "cognitive_intervention"
	RouteError                  Route = "error"
)

// AllRoutes enumerates every valid route kind.
var AllRoutes = []Route{
	RouteProgressiveOpening,
	RouteTopicTransition,
	RouteKnowledgeOnly,
	RouteSocraticExploration,
	RouteCognitiveChallenge,
	RouteMultiAgentComprehensive,
	RouteSocraticClarification,
	RouteSupportiveScaffolding,
	RouteFoundationalBuilding,
	RouteKnowledgeWithChallenge,
	RouteBalancedGuidance,
	RouteCognitiveIntervention,
	RouteError,
}

// Valid reports whether r is one of the enumerated route kinds.
func (r Route) Valid() bool {
	for _, known := range AllRoutes {
		if r == known {
			return true
		}
	}
	return false
}

// RequiresQuestion reports whether the route contract obliges the assembled
// reply to end with a question.
func (r Route) RequiresQuestion() bool {
	switch r {
	case RouteSocraticExploration, RouteSocraticClarification,
		RouteMultiAgentComprehensive, RouteBalancedGuidance,
		RouteKnowledgeWithChallenge, RouteProgressiveOpening:
		return true
	default:
		return false
	}
}

// TriggerTag marks a detected pedagogical-state signal that can override
// content-based routing, or shape the response after routing.
type TriggerTag string

const (
	TriggerLowEngagement    TriggerTag = "low_engagement"
	TriggerOverconfidence   TriggerTag = "overconfidence"
	TriggerCuriosity        TriggerTag = "curiosity"
	TriggerStuck            TriggerTag = "stuck"
	TriggerMastery          TriggerTag = "mastery"
	TriggerNarrative        TriggerTag = "narrative"
	TriggerComparison       TriggerTag = "comparison"
	TriggerPerspectiveShift TriggerTag = "perspective_shift"

	// Response-shaping tags attached to the decision, not used for routing.
	TriggerRealityCheck          TriggerTag = "reality_check"
	TriggerCuriosityAmplification TriggerTag = "curiosity_amplification"
)

// Collaborator names. The invoker and synthesizer address results by these
// names, never by arrival order.
const (
	CollabKnowledge = "knowledge"
	CollabSocratic  = "socratic"
	CollabChallenge = "challenge"
	CollabImage     = "image"
	CollabRetriever = "retriever"
)

// RoutingDecision is the router's output for one turn.
type RoutingDecision struct {
	Route         Route            `json:"route"`
	Reason        string           `json:"reason"`
	Confidence    float64          `json:"confidence"`
	RuleID        string           `json:"rule_id"`
	Collaborators []string         `json:"collaborators"`
	Offloading    OffloadingResult `json:"offloading"`
	Triggers      []TriggerTag     `json:"triggers,omitempty"`

	// Classification carries the originating classification so an error
	// route still lets the caller render a graceful fallback.
	Classification *Classification `json:"classification,omitempty"`
}

// AgentResult is the normalized output of one collaborator invocation.
// Owned by the invoker boundary; consumers read it, never mutate it.
type AgentResult struct {
	Name     string         `json:"name"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Err records a failed or timed-out invocation. A non-nil Err means
	// "no contribution", never a hard failure of the turn.
	Err error `json:"-"`
}

// Empty reports whether the result carries no usable text.
func (r *AgentResult) Empty() bool {
	return r == nil || r.Err != nil || r.Text == ""
}
