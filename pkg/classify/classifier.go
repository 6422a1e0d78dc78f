// Package classify turns a raw student utterance into the structured signal
// set consumed by the routing engine. Classification is deterministic and
// total: identical input always yields the identical result, and ambiguous
// input falls back to a general classification instead of erroring.
package classify

import (
	"strings"

	"tutor/pkg/logx"
	"tutor/pkg/proto"
)

// Classifier evaluates a fixed, ordered list of pattern groups against the
// lower-cased input. Group priority: offloading > overconfidence >
// topic-transition > specific intents by specificity > punctuation fallback.
type Classifier struct {
	logger *logx.Logger
}

// New creates a classifier.
func New() *Classifier {
	return &Classifier{logger: logx.NewLogger("classifier")}
}

// Classify produces the classification for one utterance. recentHistory is
// the last few student messages, oldest first; it only influences the
// overreliance variant of offloading detection.
func (c *Classifier) Classify(text string, recentHistory []string) proto.Classification {
	lower := strings.ToLower(strings.TrimSpace(text))
	words := strings.Fields(lower)

	interaction, indicators := c.detectInteraction(lower)

	cls := proto.Classification{
		Interaction:   interaction,
		Understanding: deriveUnderstanding(lower, words),
		Confidence:    deriveConfidence(lower),
		Engagement:    deriveEngagement(lower, words),
		Indicators:    indicators,
	}

	cls.IsTechnicalQuestion = interaction == proto.InteractionTechnicalQuestion
	cls.IsFeedbackRequest = interaction == proto.InteractionFeedbackRequest
	cls.ShowsConfusion = interaction == proto.InteractionConfusionExpression ||
		len(matchAll(lower, confusionPhrases)) > 0
	cls.RequestsHelp = strings.Contains(lower, "help") ||
		strings.Contains(lower, "can you") ||
		strings.Contains(lower, "could you")
	cls.IsPureKnowledgeRequest = isPureKnowledgeRequest(lower, interaction)

	cls.Offloading = c.detectOffloading(lower, recentHistory, interaction)

	c.logger.DebugDomain(logx.DomainClassifier,
		"classified as %s (understanding=%s confidence=%s engagement=%s offloading=%v)",
		cls.Interaction, cls.Understanding, cls.Confidence, cls.Engagement, cls.Offloading.Detected)

	return cls
}

// detectInteraction walks the pattern groups in fixed priority order and
// returns the first match plus the indicators that justify it.
func (c *Classifier) detectInteraction(lower string) (proto.InteractionType, []string) {
	// Group 1: cognitive-offloading phrasing outranks everything.
	if matched := matchAll(lower, offloadingSolutionPhrases); len(matched) > 0 {
		return proto.InteractionCognitiveOffloading, matched
	}
	if matched := matchAll(lower, offloadingAvoidancePhrases); len(matched) > 0 {
		return proto.InteractionCognitiveOffloading, matched
	}

	// Group 2: overconfidence markers.
	if matched := matchAll(lower, overconfidenceMarkers); len(matched) > 0 {
		return proto.InteractionOverconfidentStatement, matched
	}

	// Group 3: topic-transition phrasing.
	if matched := matchAll(lower, topicTransitionPhrases); len(matched) > 0 {
		return proto.InteractionTopicTransition, matched
	}

	// Group 4: specific intents. Order encodes disambiguation: design
	// guidance before confusion (a guidance request is not confusion),
	// clarification before generic knowledge, evaluation before feedback,
	// example before generic knowledge, improvement before exploration.
	specific := []struct {
		kind    proto.InteractionType
		phrases []string
	}{
		{proto.InteractionDesignGuidance, designGuidancePhrases},
		{proto.InteractionConfusionExpression, confusionPhrases},
		{proto.InteractionClarificationRequest, clarificationPhrases},
		{proto.InteractionEvaluationRequest, evaluationPhrases},
		{proto.InteractionFeedbackRequest, feedbackPhrases},
		{proto.InteractionExampleRequest, examplePhrases},
		{proto.InteractionTechnicalQuestion, technicalPhrases},
		{proto.InteractionImplementationRequest, implementationPhrases},
		{proto.InteractionImprovementSeeking, improvementPhrases},
		{proto.InteractionKnowledgeRequest, knowledgePhrases},
	}
	for _, group := range specific {
		if matched := matchAll(lower, group.phrases); len(matched) > 0 {
			return group.kind, matched
		}
	}

	// Group 5: contextual fallback by punctuation and interrogative cues.
	if strings.HasSuffix(lower, "?") {
		if hasInterrogativeCue(lower) {
			return proto.InteractionKnowledgeRequest, []string{"contextual:interrogative"}
		}
		return proto.InteractionGeneralQuestion, []string{"contextual:question_mark"}
	}
	return proto.InteractionGeneralStatement, nil
}

// detectOffloading runs only when the interaction type is not already a
// legitimate request category; flagging ordinary requests as offloading is
// the false positive this gate exists to prevent.
func (c *Classifier) detectOffloading(lower string, history []string, interaction proto.InteractionType) proto.OffloadingResult {
	none := proto.OffloadingResult{Detected: false, Type: proto.OffloadingNone}

	if interaction.IsLegitimateRequest() {
		return none
	}

	if matched := matchAll(lower, offloadingSolutionPhrases); len(matched) > 0 {
		return proto.OffloadingResult{
			Detected:   true,
			Type:       proto.OffloadingSolutionRequest,
			Confidence: scaledConfidence(0.7, len(matched)),
			Indicators: matched,
		}
	}

	if matched := matchAll(lower, offloadingAvoidancePhrases); len(matched) > 0 {
		return proto.OffloadingResult{
			Detected:   true,
			Type:       proto.OffloadingAvoidance,
			Confidence: scaledConfidence(0.6, len(matched)),
			Indicators: matched,
		}
	}

	if matched := matchAll(lower, offloadingOverreliancePhrases); len(matched) > 0 {
		return proto.OffloadingResult{
			Detected:   true,
			Type:       proto.OffloadingOverreliance,
			Confidence: scaledConfidence(0.55, len(matched)+historyRelianceCount(history)),
			Indicators: matched,
		}
	}

	// Overreliance can also emerge from the recent history alone: several
	// consecutive turns of next-step requests without new reasoning.
	if n := historyRelianceCount(history); n >= 2 {
		return proto.OffloadingResult{
			Detected:   true,
			Type:       proto.OffloadingOverreliance,
			Confidence: scaledConfidence(0.5, n),
			Indicators: []string{"history:repeated_reliance"},
		}
	}

	return none
}

// historyRelianceCount counts how many of the last three history entries
// carry overreliance phrasing.
func historyRelianceCount(history []string) int {
	start := 0
	if len(history) > 3 {
		start = len(history) - 3
	}
	count := 0
	for _, prior := range history[start:] {
		priorLower := strings.ToLower(prior)
		if len(matchAll(priorLower, offloadingOverreliancePhrases)) > 0 ||
			len(matchAll(priorLower, offloadingSolutionPhrases)) > 0 {
			count++
		}
	}
	return count
}

func deriveUnderstanding(lower string, words []string) proto.Level {
	high := len(matchTiered(lower, words, understandingHighWords))
	low := len(matchTiered(lower, words, understandingLowWords))

	switch {
	case low > 0:
		return proto.LevelLow
	case high >= 2:
		return proto.LevelHigh
	case high == 1:
		return proto.LevelMedium
	case len(words) < 5 && len(matchAll(lower, technicalPhrases)) == 0:
		// Very short, non-technical messages carry no depth signal.
		return proto.LevelLow
	default:
		return proto.LevelMedium
	}
}

func deriveConfidence(lower string) proto.ConfidenceLevel {
	if len(matchAll(lower, overconfidenceMarkers)) > 0 {
		return proto.ConfidenceOverconfident
	}

	words := strings.Fields(lower)
	uncertain := len(matchTiered(lower, words, uncertaintyWords))
	confident := len(matchTiered(lower, words, confidentWords))
	if uncertain > confident {
		return proto.ConfidenceUncertain
	}
	return proto.ConfidenceConfident
}

func deriveEngagement(lower string, words []string) proto.Level {
	high := len(matchTiered(lower, words, engagementHighWords))
	low := len(matchTiered(lower, words, engagementLowWords))

	switch {
	case high > 0 && low == 0:
		return proto.LevelHigh
	case low > 0 && high == 0:
		return proto.LevelLow
	case len(words) < 5:
		return proto.LevelLow
	case len(words) > 25:
		return proto.LevelHigh
	default:
		return proto.LevelMedium
	}
}

// isPureKnowledgeRequest reports whether the utterance is purely
// informational: a knowledge or example request with no implementation or
// design-guidance phrasing mixed in.
func isPureKnowledgeRequest(lower string, interaction proto.InteractionType) bool {
	if interaction != proto.InteractionKnowledgeRequest &&
		interaction != proto.InteractionExampleRequest {
		return false
	}
	if len(matchAll(lower, implementationPhrases)) > 0 {
		return false
	}
	if len(matchAll(lower, designGuidancePhrases)) > 0 {
		return false
	}
	return true
}

// DetectTriggers extracts gamification-trigger tags from the utterance and
// its classification. The router consumes these as pedagogical-state
// overrides; detection lives here so all lexical analysis stays in one place.
func DetectTriggers(text string, cls *proto.Classification) []proto.TriggerTag {
	lower := strings.ToLower(text)
	var tags []proto.TriggerTag

	if cls.Engagement == proto.LevelLow {
		tags = append(tags, proto.TriggerLowEngagement)
	}
	if cls.Confidence == proto.ConfidenceOverconfident ||
		cls.Interaction == proto.InteractionOverconfidentStatement {
		tags = append(tags, proto.TriggerOverconfidence)
	}
	if len(matchAll(lower, curiosityMarkers)) > 0 {
		tags = append(tags, proto.TriggerCuriosity)
	}
	if len(matchAll(lower, stuckMarkers)) > 0 {
		tags = append(tags, proto.TriggerStuck)
	}
	if len(matchAll(lower, masteryMarkers)) > 0 {
		tags = append(tags, proto.TriggerMastery)
	}
	if len(matchAll(lower, narrativeMarkers)) > 0 {
		tags = append(tags, proto.TriggerNarrative)
	}
	if len(matchAll(lower, comparisonMarkers)) > 0 {
		tags = append(tags, proto.TriggerComparison)
	}
	if len(matchAll(lower, perspectiveShiftMarkers)) > 0 {
		tags = append(tags, proto.TriggerPerspectiveShift)
	}
	return tags
}

// matchAll returns every phrase from the table found in the input.
func matchAll(lower string, phrases []string) []string {
	var matched []string
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			matched = append(matched, phrase)
		}
	}
	return matched
}

// matchTiered matches level-tier entries: multi-word entries by substring,
// single words by token equality so "lost" does not match inside "almost".
func matchTiered(lower string, words []string, phrases []string) []string {
	var matched []string
	for _, phrase := range phrases {
		if strings.Contains(phrase, " ") {
			if strings.Contains(lower, phrase) {
				matched = append(matched, phrase)
			}
			continue
		}
		for _, w := range words {
			if strings.Trim(w, "?,.!;:'\"") == phrase {
				matched = append(matched, phrase)
				break
			}
		}
	}
	return matched
}

func hasInterrogativeCue(lower string) bool {
	words := strings.Fields(lower)
	if len(words) == 0 {
		return false
	}
	first := strings.Trim(words[0], "?,.!")
	for _, cue := range interrogativeCues {
		if first == cue {
			return true
		}
	}
	return false
}

func scaledConfidence(base float64, matches int) float64 {
	conf := base + 0.1*float64(matches-1)
	if conf > 0.95 {
		conf = 0.95
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}
