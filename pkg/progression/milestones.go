package progression

import (
	"strings"

	"tutor/pkg/proto"
)

// Criterion is one named completion check for a milestone. A criterion is
// met when at least MinMatches of its keywords appear in the utterance.
type Criterion struct {
	Name       string
	Keywords   []string
	MinMatches int
}

// CriterionResult pairs a met/unmet verdict with a confidence estimate.
type CriterionResult struct {
	Name       string
	Met        bool
	Confidence float64
}

// phaseStructure describes one phase: its ordered milestone sequence and the
// minimum number of messages before a transition out of it is considered.
type phaseStructure struct {
	sequence    []proto.MilestoneType
	minMessages int
}

// phaseStructures fixes the per-phase milestone sequences. Every phase opens
// with a phase-entry milestone; the rest are phase-specific.
var phaseStructures = map[proto.Phase]phaseStructure{
	proto.PhaseDiscovery: {
		sequence: []proto.MilestoneType{
			proto.MilestonePhaseEntry,
			proto.MilestoneKnowledgeAcquisition,
			proto.MilestoneReadinessAssessment,
		},
		minMessages: 3,
	},
	proto.PhaseExploration: {
		sequence: []proto.MilestoneType{
			proto.MilestonePhaseEntry,
			proto.MilestoneAlternativeGeneration,
			proto.MilestoneComparativeAnalysis,
		},
		minMessages: 4,
	},
	proto.PhaseSynthesis: {
		sequence: []proto.MilestoneType{
			proto.MilestonePhaseEntry,
			proto.MilestoneConnectionBuilding,
			proto.MilestoneIntegratedUnderstanding,
		},
		minMessages: 4,
	},
	proto.PhaseApplication: {
		sequence: []proto.MilestoneType{
			proto.MilestonePhaseEntry,
			proto.MilestoneDesignTranslation,
			proto.MilestoneDecisionJustification,
		},
		minMessages: 3,
	},
	proto.PhaseReflection: {
		sequence: []proto.MilestoneType{
			proto.MilestonePhaseEntry,
			proto.MilestoneLearningArticulation,
			proto.MilestoneGrowthRecognition,
		},
		minMessages: 3,
	},
}

// milestoneCriteria maps each milestone type to its required criteria. A
// milestone completes only when every listed criterion is met.
var milestoneCriteria = map[proto.MilestoneType][]Criterion{
	proto.MilestonePhaseEntry: {
		{Name: "engagement_shown", Keywords: nil, MinMatches: 0}, // met by any substantial message
	},
	proto.MilestoneKnowledgeAcquisition: {
		{Name: "new_knowledge_demonstrated", MinMatches: 1, Keywords: []string{
			"i learned", "i see", "that makes sense", "didn't know", "didnt know",
			"understand now", "i understand", "got it", "interesting, so",
		}},
	},
	proto.MilestoneReadinessAssessment: {
		{Name: "readiness_expressed", MinMatches: 1, Keywords: []string{
			"ready", "let's move", "lets move", "next step", "want to explore",
			"makes sense now", "move on",
		}},
	},
	proto.MilestoneAlternativeGeneration: {
		{Name: "alternatives_proposed", MinMatches: 1, Keywords: []string{
			"another option", "alternative", "could also", "instead we could",
			"what about", "other approach", "different way",
		}},
	},
	proto.MilestoneComparativeAnalysis: {
		{Name: "comparison_made", MinMatches: 1, Keywords: []string{
			"compare", "versus", "better than", "trade-off", "tradeoff",
			"pros and cons", "weigh", "on the other hand",
		}},
	},
	proto.MilestoneConnectionBuilding: {
		{Name: "connections_made", MinMatches: 1, Keywords: []string{
			"relates to", "connects", "relationship", "links", "ties together",
			"because", "depends on",
		}},
	},
	proto.MilestoneIntegratedUnderstanding: {
		{Name: "integration_demonstrated", MinMatches: 1, Keywords: []string{
			"overall", "as a whole", "together these", "big picture",
			"therefore", "all of this",
		}},
	},
	proto.MilestoneDesignTranslation: {
		{Name: "applied_to_design", MinMatches: 1, Keywords: []string{
			"my design", "my project", "i will use", "i'll use", "apply",
			"incorporate", "in my scheme",
		}},
	},
	proto.MilestoneDecisionJustification: {
		{Name: "decision_justified", MinMatches: 1, Keywords: []string{
			"because", "i chose", "i decided", "the reason", "justif", "reasoning",
		}},
	},
	proto.MilestoneLearningArticulation: {
		{Name: "learning_articulated", MinMatches: 1, Keywords: []string{
			"i learned", "i realized", "now i understand", "i used to think",
			"taught me",
		}},
	},
	proto.MilestoneGrowthRecognition: {
		{Name: "growth_recognized", MinMatches: 1, Keywords: []string{
			"grown", "improved", "progress", "further than", "more confident",
			"come a long way",
		}},
	},
}

// requiredActions suggests what the student still needs to do for a
// milestone; surfaced to collaborators as forward-looking guidance.
var requiredActions = map[proto.MilestoneType][]string{
	proto.MilestonePhaseEntry:            {"engage with the current phase"},
	proto.MilestoneKnowledgeAcquisition:  {"absorb and restate new domain knowledge"},
	proto.MilestoneReadinessAssessment:   {"signal readiness to explore alternatives"},
	proto.MilestoneAlternativeGeneration: {"propose at least one alternative approach"},
	proto.MilestoneComparativeAnalysis:   {"weigh alternatives against each other"},
	proto.MilestoneConnectionBuilding:    {"articulate relationships between concepts"},
	proto.MilestoneIntegratedUnderstanding: {"express an integrated view of the topic"},
	proto.MilestoneDesignTranslation:     {"translate concepts into the student's own design"},
	proto.MilestoneDecisionJustification: {"justify design decisions with reasoning"},
	proto.MilestoneLearningArticulation:  {"articulate what was learned"},
	proto.MilestoneGrowthRecognition:     {"recognize growth since the start"},
}

// Lexical depth indicators used by the phase-transition heuristics. Counting
// these in the utterance estimates which kind of thinking is happening.
var explorationIndicators = []string{"options", "alternatives", "explore", "compare", "different approaches", "what about"}

var synthesisIndicators = []string{"because", "therefore", "relationship", "connects", "integrate", "combine"}

var applicationIndicators = []string{"apply", "my design", "my project", "implement", "incorporate", "use this"}

var reflectionIndicators = []string{"learned", "realized", "looking back", "grew", "in retrospect"}

// Explicit readiness phrasing that can satisfy the lexical-evidence half of
// a transition check on its own.
var readinessPhrases = []string{
	"i'm ready", "im ready", "let's move on", "lets move on", "next phase",
	"ready for the next", "ready to move",
}

// nextPhaseIndicators returns the indicator list for evidence that the
// student is already operating in the given phase.
func nextPhaseIndicators(phase proto.Phase) []string {
	switch phase {
	case proto.PhaseExploration:
		return explorationIndicators
	case proto.PhaseSynthesis:
		return synthesisIndicators
	case proto.PhaseApplication:
		return applicationIndicators
	case proto.PhaseReflection:
		return reflectionIndicators
	default:
		return nil
	}
}

func countMatches(lower string, phrases []string) int {
	count := 0
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			count++
		}
	}
	return count
}

// assessCriterion evaluates one criterion against the utterance.
func assessCriterion(criterion *Criterion, lower string, wordCount int) CriterionResult {
	// The engagement criterion has no keywords: any substantial message
	// (three or more words) satisfies it.
	if len(criterion.Keywords) == 0 {
		met := wordCount >= 3
		conf := 0.5
		if met {
			conf = 0.7
		}
		return CriterionResult{Name: criterion.Name, Met: met, Confidence: conf}
	}

	matches := countMatches(lower, criterion.Keywords)
	met := matches >= criterion.MinMatches
	conf := 0.4 + 0.2*float64(matches)
	if conf > 0.95 {
		conf = 0.95
	}
	return CriterionResult{Name: criterion.Name, Met: met, Confidence: conf}
}
