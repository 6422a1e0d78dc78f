package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsTurns(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordTurn("s1", "knowledge_only", "fastpath-pure-example")
	r.RecordTurn("s1", "knowledge_only", "fastpath-pure-example")
	r.RecordTurn("s2", "balanced_guidance", "default")

	got := testutil.ToFloat64(r.turnsTotal.WithLabelValues("s1", "knowledge_only", "fastpath-pure-example"))
	if got != 2 {
		t.Errorf("Expected 2 fast-path turns, got %f", got)
	}

	// Turn counts stay attributable per session.
	other := testutil.ToFloat64(r.turnsTotal.WithLabelValues("s2", "balanced_guidance", "default"))
	if other != 1 {
		t.Errorf("Expected 1 turn for the second session, got %f", other)
	}
}

func TestRecorderCollaboratorCalls(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordCollaboratorCall("knowledge", "ok", 120*time.Millisecond)
	r.RecordCollaboratorCall("knowledge", "error", 30*time.Millisecond)

	ok := testutil.ToFloat64(r.collabRequests.WithLabelValues("knowledge", "ok"))
	failed := testutil.ToFloat64(r.collabRequests.WithLabelValues("knowledge", "error"))
	if ok != 1 || failed != 1 {
		t.Errorf("Expected 1 ok and 1 error call, got %f and %f", ok, failed)
	}
}

func TestRecorderTokensAndTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordTokens("s1", 100, 40)
	r.RecordTokens("s1", 50, 10)
	r.RecordPhaseTransition("discovery", "exploration")
	r.RecordOffloading("solution_request")

	prompt := testutil.ToFloat64(r.tokensTotal.WithLabelValues("s1", "prompt"))
	if prompt != 150 {
		t.Errorf("Expected 150 prompt tokens, got %f", prompt)
	}
	transitions := testutil.ToFloat64(r.phaseTransitions.WithLabelValues("discovery", "exploration"))
	if transitions != 1 {
		t.Errorf("Expected 1 transition, got %f", transitions)
	}
}
