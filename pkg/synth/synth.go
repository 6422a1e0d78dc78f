// Package synth assembles one coherent reply from the collaborator results of
// a turn. The synthesizer applies a route-specific template; the quality gate
// then repairs the assembled text in place. Neither ever rejects a turn.
package synth

import (
	"fmt"
	"strings"

	"tutor/pkg/logx"
	"tutor/pkg/proto"
)

// overlapThreshold is the lexical-overlap ratio above which two collaborator
// outputs are treated as near-duplicates and only one is kept.
const overlapThreshold = 0.7

// minSubstantialSentence is the character floor below which a sentence is
// skipped when picking the insight line.
const minSubstantialSentence = 20

// Synthesizer merges collaborator outputs per route template.
type Synthesizer struct {
	gate   *QualityGate
	logger *logx.Logger
}

// New creates a synthesizer with the given quality gate. A nil gate gets the
// default gate.
func New(gate *QualityGate) *Synthesizer {
	if gate == nil {
		gate = NewQualityGate(0)
	}
	return &Synthesizer{
		gate:   gate,
		logger: logx.NewLogger("synth"),
	}
}

// Synthesize assembles the reply for one turn. Results are addressed by
// collaborator name, never by arrival order, and any of them may be missing.
// Template failures fall back to the best available raw text; the quality
// gate then repairs whatever came out.
func (s *Synthesizer) Synthesize(decision *proto.RoutingDecision, results map[string]proto.AgentResult, utterance, projectType string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("synthesis panic recovered: %v", r)
			reply = s.gate.Apply(decision.Route, bestAvailable(results))
		}
	}()

	var text string
	switch decision.Route {
	case proto.RouteKnowledgeOnly:
		text = s.knowledgeOnly(results)
	case proto.RouteSocraticExploration, proto.RouteSocraticClarification:
		text = s.socratic(results)
	case proto.RouteCognitiveChallenge, proto.RouteCognitiveIntervention:
		text = s.challenge(decision.Route, results)
	case proto.RouteMultiAgentComprehensive, proto.RouteBalancedGuidance, proto.RouteKnowledgeWithChallenge:
		text = s.comprehensive(decision, results, projectType)
	case proto.RouteError:
		text = errorFallback(decision)
	default:
		// Opening, scaffolding, foundation, and transition routes carry a
		// single primary collaborator; use the best available text.
		text = bestAvailable(results)
	}

	if strings.TrimSpace(text) == "" {
		text = bestAvailable(results)
	}

	s.logger.DebugDomain(logx.DomainSynth, "route=%s assembled %d chars from %d results",
		decision.Route, len(text), len(results))

	return s.gate.Apply(decision.Route, text)
}

// knowledgeOnly prefers the knowledge collaborator verbatim, cleaned of list
// markup, with a follow-up question appended only when none is present.
func (s *Synthesizer) knowledgeOnly(results map[string]proto.AgentResult) string {
	text := resultText(results, proto.CollabKnowledge)
	if text == "" {
		text = resultText(results, proto.CollabSocratic)
	}
	if text == "" {
		return ""
	}
	text = cleanMarkdown(text)
	if !containsQuestion(text) {
		text += "\n\nWhat aspect of this would you like to dig into further?"
	}
	return text
}

// socratic requires a trailing question; a missing one gets a generic
// exploratory question appended rather than a fabricated specific one.
func (s *Synthesizer) socratic(results map[string]proto.AgentResult) string {
	text := resultText(results, proto.CollabSocratic)
	if text == "" {
		text = resultText(results, proto.CollabKnowledge)
	}
	if text == "" {
		return "Let's explore this together. What is your current thinking, and what led you there?"
	}
	if !endsWithQuestion(text) {
		text += " What do you think drives that?"
	}
	return text
}

// challenge prefers the challenge collaborator verbatim with a fixed
// fallback per route.
func (s *Synthesizer) challenge(route proto.Route, results map[string]proto.AgentResult) string {
	if text := resultText(results, proto.CollabChallenge); text != "" {
		return text
	}
	if route == proto.RouteCognitiveIntervention {
		return "Before I hand you an answer: walk me through what you've tried so far. " +
			"Working through the reasoning yourself is where the learning happens. " +
			"What's your first instinct here?"
	}
	return "Strong claim. What evidence would change your mind? " +
		"Try arguing the opposite position for a moment."
}

// comprehensive builds the three-line Insight/Direction/Watch synthesis plus
// exactly one closing question. Near-duplicate collaborator outputs are
// collapsed to a single source first.
func (s *Synthesizer) comprehensive(decision *proto.RoutingDecision, results map[string]proto.AgentResult, projectType string) string {
	kept := suppressDuplicates(results, s.logger)

	knowledge := resultText(kept, proto.CollabKnowledge)
	question := resultText(kept, proto.CollabSocratic)
	caution := resultText(kept, proto.CollabChallenge)

	if knowledge == "" && question == "" && caution == "" {
		return ""
	}

	var lines []string
	if insight := firstSubstantialSentence(stripMarkup(knowledge)); insight != "" {
		lines = append(lines, "**Insight**: "+insight)
	}
	if direction := toDirective(firstSentence(question)); direction != "" {
		lines = append(lines, "**Direction**: "+direction)
	}
	watch := firstSentence(caution)
	if watch == "" {
		watch = defaultCaution(projectType)
	}
	lines = append(lines, "**Watch**: "+watch)

	body := strings.Join(lines, "\n")
	return body + "\n\n" + closingQuestion(decision)
}

// errorFallback renders a graceful reply from the classification that the
// error decision still carries.
func errorFallback(decision *proto.RoutingDecision) string {
	if cls := decision.Classification; cls != nil && cls.Interaction != "" {
		return fmt.Sprintf("I hit a snag putting that together, but let's keep going with your %s. Could you rephrase or narrow it down a little?",
			strings.ReplaceAll(string(cls.Interaction), "_", " "))
	}
	return "I hit a snag putting that together. Could you rephrase or narrow it down a little?"
}

// bestAvailable returns the first non-empty result in fixed preference order.
func bestAvailable(results map[string]proto.AgentResult) string {
	for _, name := range []string{
		proto.CollabKnowledge, proto.CollabSocratic, proto.CollabChallenge,
		proto.CollabRetriever, proto.CollabImage,
	} {
		if text := resultText(results, name); text != "" {
			return text
		}
	}
	return "Let's take this one step at a time. Tell me a bit more about what you're working on."
}

func resultText(results map[string]proto.AgentResult, name string) string {
	result, ok := results[name]
	if !ok || result.Empty() {
		return ""
	}
	return strings.TrimSpace(result.Text)
}

// suppressDuplicates drops near-duplicate outputs, keeping the first of each
// pair in preference order so the knowledge text survives a tie.
func suppressDuplicates(results map[string]proto.AgentResult, logger *logx.Logger) map[string]proto.AgentResult {
	order := []string{
		proto.CollabKnowledge, proto.CollabSocratic, proto.CollabChallenge,
		proto.CollabRetriever, proto.CollabImage,
	}
	kept := make(map[string]proto.AgentResult, len(results))
	for _, name := range order {
		candidate := resultText(results, name)
		if candidate == "" {
			continue
		}
		duplicate := false
		for keptName := range kept {
			if lexicalOverlap(candidate, kept[keptName].Text) > overlapThreshold {
				logger.DebugDomain(logx.DomainSynth, "dropping %s: near-duplicate of %s", name, keptName)
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept[name] = results[name]
		}
	}
	return kept
}

// lexicalOverlap computes the token-set overlap ratio of two texts relative
// to the smaller set.
func lexicalOverlap(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}
	smaller, larger := tokensA, tokensB
	if len(tokensB) < len(tokensA) {
		smaller, larger = tokensB, tokensA
	}
	shared := 0
	for token := range smaller {
		if larger[token] {
			shared++
		}
	}
	return float64(shared) / float64(len(smaller))
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,!?;:*#()\"'")
		if token != "" {
			set[token] = true
		}
	}
	return set
}

// defaultCaution supplies the Watch line when no challenge collaborator
// contributed, specialized by project type where one is established.
func defaultCaution(projectType string) string {
	cautions := map[string]string{
		"community_center": "Community programs change; check that the plan still works when the main hall is empty.",
		"adaptive_reuse":   "Existing structure constrains more than drawings suggest; verify what actually carries load.",
		"residential":      "Daily routines stress a plan more than the big moves; walk through a typical morning.",
		"museum":           "Circulation and conservation requirements often fight the spatial concept.",
		"library":          "Acoustic separation between active and quiet zones is easy to underestimate.",
		"school":           "Supervision sightlines and egress will reshape an open plan quickly.",
		"office":           "Flexibility claims need a test fit; try two different occupiers on the same floor.",
		"pavilion":         "Temporary structures still meet permanent codes; check anchorage and egress early.",
		"mixed_use":        "Separate entrances and service paths per use before committing to the section.",
	}
	if caution, ok := cautions[projectType]; ok {
		return caution
	}
	return "Every approach has a failure mode; name the one most likely to bite this scheme."
}

// closingQuestion picks the single closing question for the comprehensive
// template from the decision's signals.
func closingQuestion(decision *proto.RoutingDecision) string {
	cls := decision.Classification
	if cls != nil {
		switch cls.Interaction {
		case proto.InteractionDesignGuidance:
			return "Which of these directions feels closest to your own instinct, and why?"
		case proto.InteractionEvaluationRequest:
			return "If you had to defend this scheme to a skeptical critic, what would you lead with?"
		case proto.InteractionImprovementSeeking:
			return "Which single change here would move your project the furthest?"
		case proto.InteractionFeedbackRequest:
			return "What part of the feedback surprises you most?"
		case proto.InteractionImplementationRequest:
			return "What's the first concrete step you'd take tomorrow?"
		}
		if cls.Understanding == proto.LevelLow {
			return "What part of this is still fuzzy for you?"
		}
	}
	return "How does this change your next move?"
}

// --- sentence and markup helpers ---

// firstSentence returns the first sentence of the text, terminator included.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			return strings.TrimSpace(text[:i+1])
		}
	}
	return text
}

// firstSubstantialSentence skips fragments shorter than the substantial
// floor, falling back to the first sentence when everything is short.
func firstSubstantialSentence(text string) string {
	remaining := strings.TrimSpace(text)
	first := ""
	for remaining != "" {
		sentence := firstSentence(remaining)
		if sentence == "" {
			break
		}
		if first == "" {
			first = sentence
		}
		if len(sentence) >= minSubstantialSentence {
			return sentence
		}
		remaining = strings.TrimSpace(remaining[len(sentence):])
	}
	return first
}

// toDirective rewrites a collaborator question as a directive line.
func toDirective(sentence string) string {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return ""
	}
	if !strings.HasSuffix(sentence, "?") {
		return sentence
	}
	body := strings.TrimSuffix(sentence, "?")
	// Drop a leading interrogative so the directive reads naturally.
	lower := strings.ToLower(body)
	for _, prefix := range []string{"what ", "how ", "why ", "which ", "where ", "when ", "have you considered ", "could ", "can ", "would ", "do ", "does "} {
		if strings.HasPrefix(lower, prefix) {
			body = body[len(prefix):]
			break
		}
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	return "Consider " + lowerFirst(body) + "."
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// cleanMarkdown strips leading list numbering and bullets per line while
// keeping the prose intact.
func cleanMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		trimmed = strings.TrimPrefix(trimmed, "- ")
		trimmed = strings.TrimPrefix(trimmed, "* ")
		trimmed = trimListNumber(trimmed)
		lines[i] = trimmed
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// trimListNumber removes a leading "1. " / "12) " style marker.
func trimListNumber(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return line
	}
	if line[i] == '.' || line[i] == ')' {
		rest := line[i+1:]
		if strings.HasPrefix(rest, " ") {
			return strings.TrimLeft(rest, " ")
		}
	}
	return line
}

// stripMarkup removes bold/italic/heading markers and list markup so the
// insight line reads as plain prose.
func stripMarkup(text string) string {
	text = cleanMarkdown(text)
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = strings.ReplaceAll(text, "*", "")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, "# ")
	}
	return strings.TrimSpace(strings.Join(lines, " "))
}

func containsQuestion(text string) bool {
	return strings.Contains(text, "?")
}

func endsWithQuestion(text string) bool {
	return strings.HasSuffix(strings.TrimSpace(text), "?")
}
