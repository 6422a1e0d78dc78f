package synth

import (
	"strings"
	"testing"
	"unicode/utf8"

	"tutor/pkg/proto"
)

func TestGateRepairsEmptyReply(t *testing.T) {
	g := NewQualityGate(0)
	reply := g.Apply(proto.RouteKnowledgeOnly, "   ")
	if strings.TrimSpace(reply) == "" {
		t.Error("Expected non-empty repaired reply")
	}
}

func TestGateAppendsRequiredQuestion(t *testing.T) {
	g := NewQualityGate(0)
	reply := g.Apply(proto.RouteSocraticExploration, "The plan wants a courtyard.")
	if !strings.HasSuffix(reply, "?") {
		t.Errorf("Expected appended question, got %q", reply)
	}

	// Routes without the question contract are left alone.
	plain := g.Apply(proto.RouteKnowledgeOnly, "The plan wants a courtyard.")
	if strings.HasSuffix(plain, "?") {
		t.Errorf("Expected no appended question, got %q", plain)
	}
}

func TestGateBalancesBoldMarkers(t *testing.T) {
	g := NewQualityGate(0)
	reply := g.Apply(proto.RouteKnowledgeOnly, "A **bold claim about structure.")
	if strings.Count(reply, "**")%2 != 0 {
		t.Errorf("Expected balanced bold markers, got %q", reply)
	}

	// Already-balanced markers are untouched.
	kept := g.Apply(proto.RouteKnowledgeOnly, "A **bold** claim.")
	if kept != "A **bold** claim." {
		t.Errorf("Expected balanced markers kept, got %q", kept)
	}
}

func TestGateFixesHeadingSpacing(t *testing.T) {
	g := NewQualityGate(0)
	reply := g.Apply(proto.RouteKnowledgeOnly, "#Structure\nThe grid comes first.")
	if !strings.HasPrefix(reply, "# Structure") {
		t.Errorf("Expected heading space inserted, got %q", reply)
	}
}

func TestGateClampsAtSentenceBoundary(t *testing.T) {
	g := NewQualityGate(80)
	long := "The first sentence is here. The second sentence follows it. " +
		"And a third sentence makes the text run well past the configured bound."
	reply := g.Apply(proto.RouteKnowledgeOnly, long)

	if len(reply) > 80 {
		t.Errorf("Expected reply within 80 chars, got %d", len(reply))
	}
	if !strings.HasSuffix(reply, ".") {
		t.Errorf("Expected clamp at a sentence boundary, got %q", reply)
	}
}

func TestGateClampPreservesRuneBoundaries(t *testing.T) {
	g := NewQualityGate(40)

	// No spaces or sentence marks, so both clamps fall through to the raw
	// byte cut, which lands mid-rune at this length.
	long := strings.Repeat("構造", 30)
	reply := g.Apply(proto.RouteKnowledgeOnly, long)
	if len(reply) > 40 {
		t.Errorf("Expected reply within 40 bytes, got %d", len(reply))
	}
	if !utf8.ValidString(reply) {
		t.Errorf("Expected valid UTF-8 after clamp, got %q", reply)
	}

	// The tail clamp that protects an appended question must not keep a
	// partial rune at the front either.
	asked := g.Apply(proto.RouteSocraticExploration, long)
	if !utf8.ValidString(asked) {
		t.Errorf("Expected valid UTF-8 after tail clamp, got %q", asked)
	}
	if !strings.HasSuffix(asked, "?") {
		t.Errorf("Expected trailing question preserved, got %q", asked)
	}
}

func TestGateKeepsQuestionWhenClampForcesIt(t *testing.T) {
	g := NewQualityGate(60)
	long := "A fairly long first sentence about structural grids. Another long sentence about daylight."
	reply := g.Apply(proto.RouteSocraticExploration, long)

	if len(reply) > 60 {
		t.Errorf("Expected reply within 60 chars, got %d", len(reply))
	}
	if !strings.HasSuffix(reply, "?") {
		t.Errorf("Expected trailing question preserved, got %q", reply)
	}
}
