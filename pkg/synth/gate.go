package synth

import (
	"strings"
	"unicode/utf8"

	"tutor/pkg/logx"
	"tutor/pkg/proto"
)

// DefaultMaxReplyLength bounds replies when no limit is configured.
const DefaultMaxReplyLength = 2000

// emptyReply is the repair text for a reply that came out empty.
const emptyReply = "Let's keep going. Tell me a bit more about where you are with this."

// QualityGate enforces the output invariants on every assembled reply:
// non-empty, trailing question where the route requires one, well-formed
// markdown, bounded length. Violations are repaired in place, never rejected.
type QualityGate struct {
	maxLength int
	logger    *logx.Logger
}

// NewQualityGate creates a gate with the given maximum reply length.
// maxLength <= 0 selects the default.
func NewQualityGate(maxLength int) *QualityGate {
	if maxLength <= 0 {
		maxLength = DefaultMaxReplyLength
	}
	return &QualityGate{
		maxLength: maxLength,
		logger:    logx.NewLogger("gate"),
	}
}

// Apply runs every invariant check and repair in order. The returned text is
// always non-empty and within the length bound.
func (g *QualityGate) Apply(route proto.Route, text string) string {
	text = strings.TrimSpace(text)

	if text == "" {
		g.logger.DebugDomain(logx.DomainSynth, "gate: empty reply repaired for route %s", route)
		text = emptyReply
	}

	text = repairMarkdown(text)
	text = g.clampLength(text)

	if route.RequiresQuestion() && !endsWithQuestion(text) {
		text = appendQuestion(route, text)
		// Appending may have pushed past the bound; clamp again, keeping
		// the question intact by trimming from the front of the body.
		if len(text) > g.maxLength {
			text = g.clampKeepingTail(text)
		}
	}

	return text
}

// clampLength truncates at the last sentence boundary inside the bound, or
// at a word boundary when no sentence fits.
func (g *QualityGate) clampLength(text string) string {
	if len(text) <= g.maxLength {
		return text
	}
	g.logger.DebugDomain(logx.DomainSynth, "gate: clamping %d chars to %d", len(text), g.maxLength)

	cut := truncateAtRune(text, g.maxLength)
	if i := strings.LastIndexAny(cut, ".!?"); i > g.maxLength/2 {
		return strings.TrimSpace(cut[:i+1])
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		return strings.TrimSpace(cut[:i])
	}
	return cut
}

// clampKeepingTail trims sentences from the front so the trailing question
// survives the length bound.
func (g *QualityGate) clampKeepingTail(text string) string {
	for len(text) > g.maxLength {
		i := strings.IndexAny(text, ".!?")
		if i < 0 || i+1 >= len(text) {
			tail := text[len(text)-g.maxLength:]
			// Drop any partial rune the byte cut left at the front.
			for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
				tail = tail[1:]
			}
			return tail
		}
		text = strings.TrimSpace(text[i+1:])
	}
	return text
}

// truncateAtRune cuts text to at most max bytes without splitting a rune.
func truncateAtRune(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}

// appendQuestion adds the route's generic closing question.
func appendQuestion(route proto.Route, text string) string {
	question := "What do you think?"
	switch route {
	case proto.RouteSocraticExploration, proto.RouteSocraticClarification:
		question = "What's your read on that?"
	case proto.RouteProgressiveOpening:
		question = "Where would you like to start?"
	case proto.RouteMultiAgentComprehensive, proto.RouteBalancedGuidance,
		proto.RouteKnowledgeWithChallenge:
		question = "How does this change your next move?"
	}
	return text + " " + question
}

// repairMarkdown fixes unmatched bold/italic markers and heading spacing.
func repairMarkdown(text string) string {
	text = balanceMarker(text, "**")
	text = balanceMarker(text, "__")
	text = fixHeadings(text)
	return text
}

// balanceMarker strips the final occurrence of a paired marker when the
// count is odd, leaving the earlier pairs intact.
func balanceMarker(text, marker string) string {
	if strings.Count(text, marker)%2 == 0 {
		return text
	}
	i := strings.LastIndex(text, marker)
	return text[:i] + text[i+len(marker):]
}

// fixHeadings inserts the space ATX headings require after the # run.
func fixHeadings(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		j := 0
		for j < len(trimmed) && trimmed[j] == '#' {
			j++
		}
		if j < len(trimmed) && trimmed[j] != ' ' {
			indent := line[:len(line)-len(trimmed)]
			lines[i] = indent + trimmed[:j] + " " + trimmed[j:]
		}
	}
	return strings.Join(lines, "\n")
}
