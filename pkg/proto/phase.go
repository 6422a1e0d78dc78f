package proto

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Phase is one of the five ordered learning phases. Phase order is strictly
// linear: a session never skips a phase and never goes backward.
type Phase string

const (
	PhaseDiscovery   Phase = "discovery"
	PhaseExploration Phase = "exploration"
	PhaseSynthesis   Phase = "synthesis"
	PhaseApplication Phase = "application"
	PhaseReflection  Phase = "reflection"
)

// phaseOrder fixes the linear progression.
var phaseOrder = []Phase{
	PhaseDiscovery,
	PhaseExploration,
	PhaseSynthesis,
	PhaseApplication,
	PhaseReflection,
}

// Order returns the zero-based position of the phase, or -1 for an unknown phase.
func (p Phase) Order() int {
	for i, ph := range phaseOrder {
		if p == ph {
			return i
		}
	}
	return -1
}

// Valid reports whether p is one of the five learning phases.
func (p Phase) Valid() bool {
	return p.Order() >= 0
}

// Next returns the following phase. The second return is false when p is the
// final phase (or unknown).
func (p Phase) Next() (Phase, bool) {
	i := p.Order()
	if i < 0 || i+1 >= len(phaseOrder) {
		return p, false
	}
	return phaseOrder[i+1], true
}

// String implements fmt.Stringer.
func (p Phase) String() string {
	return string(p)
}

// MilestoneType identifies a milestone within a phase's fixed sequence.
type MilestoneType string

const (
	// Discovery sequence.
	MilestonePhaseEntry           MilestoneType = "phase_entry"
	MilestoneKnowledgeAcquisition MilestoneType = "knowledge_acquisition"
	MilestoneReadinessAssessment  MilestoneType = "readiness_assessment"

	// Exploration sequence (after entry).
	MilestoneAlternativeGeneration MilestoneType = "alternative_generation"
	MilestoneComparativeAnalysis   MilestoneType = "comparative_analysis"

	// Synthesis sequence (after entry).
	MilestoneConnectionBuilding  MilestoneType = "connection_building"
	MilestoneIntegratedUnderstanding MilestoneType = "integrated_understanding"

	// Application sequence (after entry).
	MilestoneDesignTranslation  MilestoneType = "design_translation"
	MilestoneDecisionJustification MilestoneType = "decision_justification"

	// Reflection sequence (after entry).
	MilestoneLearningArticulation MilestoneType = "learning_articulation"
	MilestoneGrowthRecognition    MilestoneType = "growth_recognition"
)

// Milestone is a discrete, criterion-gated unit of progress within a phase.
// Milestones are immutable after creation: completion is modeled by creating
// the next milestone, and a session's milestone list is append-only.
type Milestone struct {
	ID              string          `json:"id"`
	Phase           Phase           `json:"phase"`
	Type            MilestoneType   `json:"type"`
	Understanding   Level           `json:"understanding"`
	Confidence      ConfidenceLevel `json:"confidence"`
	Engagement      Level           `json:"engagement"`
	Progress        float64         `json:"progress"` // 0-100, phase-local
	RequiredActions []string        `json:"required_actions,omitempty"`
	SuccessCriteria []string        `json:"success_criteria,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewMilestoneID generates a unique milestone identifier.
func NewMilestoneID() string {
	return uuid.New().String()
}

// PhaseChangeNotification announces a phase transition to interested
// observers (delivered best-effort over a buffered channel).
type PhaseChangeNotification struct {
	SessionID string    `json:"session_id"`
	FromPhase Phase     `json:"from_phase"`
	ToPhase   Phase     `json:"to_phase"`
	Timestamp time.Time `json:"timestamp"`
}

// PhaseInfo is the progression summary returned to the caller per turn.
type PhaseInfo struct {
	Phase             Phase         `json:"phase"`
	Milestone         MilestoneType `json:"milestone"`
	MilestoneProgress float64       `json:"milestone_progress"`
}

func (n *PhaseChangeNotification) String() string {
	return fmt.Sprintf("%s: %s -> %s", n.SessionID, n.FromPhase, n.ToPhase)
}
