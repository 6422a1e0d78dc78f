// Package continuity maintains the per-session conversational memory that
// survives across turns: the current topic, route history, and sticky
// confidence-scored facts like project type and learning phase.
package continuity

import (
	"time"

	"tutor/pkg/proto"
)

const (
	// StickyThreshold is the minimum detection confidence required before a
	// fact is persisted at all.
	StickyThreshold = 0.5

	// SettleTurns is the initial window during which facts may be freely
	// re-derived. After it closes, an established fact only changes when a
	// new detection is strictly more confident than the stored one.
	SettleTurns = 2
)

// Fact is a persisted, confidence-scored belief about the session.
type Fact struct {
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	SetAtTurn  int       `json:"set_at_turn"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Set reports whether the fact holds a value.
func (f *Fact) Set() bool {
	return f.Value != ""
}

// Context is the per-session continuity record. It is mutated in place by
// exactly one in-flight turn at a time; the engine serializes access.
type Context struct {
	SessionID    string        `json:"session_id"`
	TurnCount    int           `json:"turn_count"`
	CurrentTopic string        `json:"current_topic,omitempty"`
	LastRoute    proto.Route   `json:"last_route,omitempty"`
	TopicHistory []string      `json:"topic_history,omitempty"`
	RouteHistory []proto.Route `json:"route_history,omitempty"`

	ProjectType   Fact `json:"project_type"`
	LearningPhase Fact `json:"learning_phase"`

	IsContinuing bool `json:"is_continuing"`
}

// NewContext creates an empty continuity record for a session.
func NewContext(sessionID string) *Context {
	return &Context{SessionID: sessionID}
}

// BeginTurn advances the turn counter and refreshes the continuation flag.
// Call once at the start of each turn, before routing.
func (c *Context) BeginTurn() {
	c.TurnCount++
	c.IsContinuing = c.TurnCount > 1
}

// RecordRoute appends the decided route and topic to the histories. Both
// histories are append-only; nothing ever rewrites an earlier entry.
func (c *Context) RecordRoute(route proto.Route, topic string) {
	c.LastRoute = route
	c.RouteHistory = append(c.RouteHistory, route)
	if topic != "" {
		c.CurrentTopic = topic
		c.TopicHistory = append(c.TopicHistory, topic)
	}
}

// ObserveProjectType conditionally updates the sticky project-type fact.
// Returns true when the observation was applied.
func (c *Context) ObserveProjectType(value string, confidence float64) bool {
	return observe(&c.ProjectType, value, confidence, c.TurnCount)
}

// ObserveLearningPhase conditionally updates the sticky learning-phase fact.
func (c *Context) ObserveLearningPhase(phase proto.Phase, confidence float64) bool {
	return observe(&c.LearningPhase, string(phase), confidence, c.TurnCount)
}

// observe implements the sticky-fact update rule: below the confidence
// threshold nothing happens; during the settling window (or while no fact is
// set) the fact follows the detection; afterwards it only moves when the new
// detection is strictly more confident than the stored one. This keeps a
// single noisy turn from overwriting an established fact mid-conversation.
func observe(f *Fact, value string, confidence float64, turn int) bool {
	if value == "" || confidence < StickyThreshold {
		return false
	}

	settling := turn <= SettleTurns || !f.Set()
	if !settling && confidence <= f.Confidence {
		return false
	}

	f.Value = value
	f.Confidence = confidence
	f.SetAtTurn = turn
	f.UpdatedAt = time.Now().UTC()
	return true
}

// Clone returns a deep copy, used by stores that hand out snapshots.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	dup := *c
	dup.TopicHistory = append([]string(nil), c.TopicHistory...)
	dup.RouteHistory = append([]proto.Route(nil), c.RouteHistory...)
	return &dup
}

// RecentTopics returns up to n most recent topics, oldest first.
func (c *Context) RecentTopics(n int) []string {
	if len(c.TopicHistory) <= n {
		return append([]string(nil), c.TopicHistory...)
	}
	return append([]string(nil), c.TopicHistory[len(c.TopicHistory)-n:]...)
}
