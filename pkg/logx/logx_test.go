package logx

import (
	"testing"
	"time"
)

func TestLoggerScope(t *testing.T) {
	logger := NewLogger("session-1")
	if logger.Scope() != "session-1" {
		t.Errorf("Expected scope session-1, got %s", logger.Scope())
	}

	rescoped := logger.WithScope("session-2")
	if rescoped.Scope() != "session-2" {
		t.Errorf("Expected scope session-2, got %s", rescoped.Scope())
	}
	// Original logger is unchanged.
	if logger.Scope() != "session-1" {
		t.Error("Expected WithScope to leave the original logger untouched")
	}
}

func TestDebugDomainFiltering(t *testing.T) {
	SetDebug(true, []string{DomainRouter})
	defer SetDebug(false, nil)

	if !DebugEnabledFor(DomainRouter) {
		t.Error("Expected router domain to be enabled")
	}
	if DebugEnabledFor(DomainSynth) {
		t.Error("Expected synth domain to be disabled")
	}

	// No domain filter means all domains.
	SetDebug(true, nil)
	if !DebugEnabledFor(DomainSynth) {
		t.Error("Expected all domains enabled when no filter is set")
	}
}

func TestRecentEntriesCapture(t *testing.T) {
	logger := NewLogger("capture-test")
	logger.Info("turn processed: route=%s", "knowledge_only")

	entries := RecentEntries("", time.Time{})
	found := false
	for i := range entries {
		if entries[i].Scope == "capture-test" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected logged entry to appear in the diagnostics buffer")
	}
}

func TestWrapNilError(t *testing.T) {
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("Expected nil for Wrap(nil), got %v", err)
	}
}
