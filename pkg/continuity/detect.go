package continuity

import (
	"strings"

	"tutor/pkg/proto"
)

// Project-type keyword tables. Detection is lexical: confidence grows with
// the number of distinct matches and is capped below certainty.
var projectTypeKeywords = map[string][]string{
	"community_center": {"community center", "community centre", "civic center", "neighborhood hub", "community space"},
	"adaptive_reuse":   {"adaptive reuse", "warehouse conversion", "repurpose", "existing building", "renovation"},
	"residential":      {"housing", "apartment", "residential", "dwelling", "co-living"},
	"museum":           {"museum", "gallery", "exhibition space", "curatorial"},
	"library":          {"library", "reading room", "archive"},
	"school":           {"school", "classroom", "campus", "kindergarten"},
	"office":           {"office", "workplace", "coworking"},
	"pavilion":         {"pavilion", "installation", "temporary structure"},
	"mixed_use":        {"mixed use", "mixed-use", "retail and housing"},
}

// Learning-phase indicator tables, used for the sticky phase fact. These are
// intentionally distinct from the progression machine's transition heuristics:
// the fact tracks what the student talks like, the machine tracks what they
// have demonstrated.
var phaseKeywords = map[proto.Phase][]string{
	proto.PhaseDiscovery:   {"start", "beginning", "first time", "new to", "what is"},
	proto.PhaseExploration: {"options", "alternatives", "explore", "compare", "different approaches"},
	proto.PhaseSynthesis:   {"combine", "integrate", "bring together", "relationship", "connect"},
	proto.PhaseApplication: {"apply", "my design", "my project", "implement", "incorporate"},
	proto.PhaseReflection:  {"learned", "realized", "looking back", "in retrospect", "grew"},
}

// DetectProjectType scans the utterance for project-type keywords. Returns
// the best-matching type and a confidence, or ("", 0) when nothing matches.
func DetectProjectType(text string) (string, float64) {
	lower := strings.ToLower(text)

	best := ""
	bestMatches := 0
	for projectType, keywords := range projectTypeKeywords {
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches > bestMatches || (matches == bestMatches && matches > 0 && projectType < best) {
			best = projectType
			bestMatches = matches
		}
	}

	if bestMatches == 0 {
		return "", 0
	}
	return best, matchConfidence(bestMatches)
}

// DetectLearningPhase scans the utterance for phase-indicator language.
func DetectLearningPhase(text string) (proto.Phase, float64) {
	lower := strings.ToLower(text)

	best := proto.Phase("")
	bestMatches := 0
	// Iterate in fixed phase order for determinism.
	for _, phase := range []proto.Phase{
		proto.PhaseDiscovery, proto.PhaseExploration, proto.PhaseSynthesis,
		proto.PhaseApplication, proto.PhaseReflection,
	} {
		matches := 0
		for _, kw := range phaseKeywords[phase] {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches > bestMatches {
			best = phase
			bestMatches = matches
		}
	}

	if bestMatches == 0 {
		return "", 0
	}
	return best, matchConfidence(bestMatches)
}

// DetectTopic extracts a coarse topic label for the history. The current
// heuristic reuses project-type vocabulary and falls back to the first few
// words of the utterance.
func DetectTopic(text string) string {
	if projectType, _ := DetectProjectType(text); projectType != "" {
		return projectType
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return ""
	}
	if len(words) > 4 {
		words = words[:4]
	}
	return strings.Join(words, " ")
}

func matchConfidence(matches int) float64 {
	conf := 0.5 + 0.2*float64(matches)
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}
