// Package progression tracks a session's movement through the five-phase
// learning model, independent of any single turn's route. Phases advance
// strictly forward; milestones within a phase form an append-only list where
// completion is modeled by creating the next milestone, never by mutating an
// existing one.
package progression

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tutor/pkg/logx"
	"tutor/pkg/proto"
)

// ErrInvalidTransition is returned when a phase change would skip ahead or
// move backward.
var ErrInvalidTransition = errors.New("invalid phase transition")

// TransitionTable lists the phases reachable from each phase. The learning
// model is strictly linear, so each phase reaches exactly its successor.
type TransitionTable map[proto.Phase][]proto.Phase

// linearTransitions is the only table the learning model uses.
var linearTransitions = TransitionTable{
	proto.PhaseDiscovery:   {proto.PhaseExploration},
	proto.PhaseExploration: {proto.PhaseSynthesis},
	proto.PhaseSynthesis:   {proto.PhaseApplication},
	proto.PhaseApplication: {proto.PhaseReflection},
	proto.PhaseReflection:  {},
}

// PhaseTransition records one phase change.
type PhaseTransition struct {
	FromPhase proto.Phase    `json:"from_phase"`
	ToPhase   proto.Phase    `json:"to_phase"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Snapshot is the machine's persistable state.
type Snapshot struct {
	Phase         proto.Phase       `json:"phase"`
	Milestones    []proto.Milestone `json:"milestones"`
	PhaseMessages int               `json:"phase_messages"`
	TotalMessages int               `json:"total_messages"`
	Transitions   []PhaseTransition `json:"transitions"`
}

// StateStore persists machine snapshots between process runs.
type StateStore interface {
	SaveProgress(sessionID string, snap *Snapshot) error
	LoadProgress(sessionID string) (*Snapshot, error)
}

// ErrProgressNotFound is returned by stores when no snapshot exists.
var ErrProgressNotFound = errors.New("progress not found")

// Guidance is the forward-looking summary injected into collaborator prompt
// context. The router never reads it; collaborators consume it
// opportunistically.
type Guidance struct {
	Phase           proto.Phase
	Milestone       proto.MilestoneType
	RequiredActions []string
	SuccessCriteria []string
	NextPhase       proto.Phase
}

// Machine is the per-session progression state machine.
type Machine struct {
	sessionID string

	mu            sync.Mutex
	phase         proto.Phase
	milestones    []proto.Milestone
	phaseMessages int
	totalMessages int
	transitions   []PhaseTransition

	table   TransitionTable
	store   StateStore
	notifCh chan<- *proto.PhaseChangeNotification
	logger  *logx.Logger
}

// NewMachine creates a machine starting in Discovery with its phase-entry
// milestone already created. store may be nil for ephemeral sessions.
func NewMachine(sessionID string, store StateStore) *Machine {
	m := &Machine{
		sessionID: sessionID,
		phase:     proto.PhaseDiscovery,
		table:     linearTransitions,
		store:     store,
		logger:    logx.NewLogger(sessionID),
	}
	m.milestones = append(m.milestones, m.newMilestoneWith(nil, proto.MilestonePhaseEntry))
	return m
}

// Restore rebuilds a machine from a persisted snapshot.
func Restore(sessionID string, store StateStore) (*Machine, error) {
	if store == nil {
		return nil, fmt.Errorf("restore requires a state store")
	}
	snap, err := store.LoadProgress(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress for %s: %w", sessionID, err)
	}

	m := NewMachine(sessionID, store)
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Phase.Valid() {
		m.phase = snap.Phase
	}
	if len(snap.Milestones) > 0 {
		m.milestones = snap.Milestones
	}
	m.phaseMessages = snap.PhaseMessages
	m.totalMessages = snap.TotalMessages
	m.transitions = snap.Transitions
	return m, nil
}

// SetNotificationChannel registers a channel for phase-change notifications.
// Delivery is non-blocking; a full channel drops the notification.
func (m *Machine) SetNotificationChannel(ch chan<- *proto.PhaseChangeNotification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifCh = ch
}

// Phase returns the current learning phase.
func (m *Machine) Phase() proto.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Milestones returns a copy of the append-only milestone list.
func (m *Machine) Milestones() []proto.Milestone {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]proto.Milestone(nil), m.milestones...)
}

// Transitions returns a copy of the phase-transition history.
func (m *Machine) Transitions() []PhaseTransition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PhaseTransition(nil), m.transitions...)
}

// Info returns the current phase summary for the turn result.
func (m *Machine) Info() proto.PhaseInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := proto.PhaseInfo{Phase: m.phase}
	if len(m.milestones) > 0 {
		current := &m.milestones[len(m.milestones)-1]
		info.Milestone = current.Type
		info.MilestoneProgress = current.Progress
	}
	return info
}

// CurrentGuidance summarizes what the student should demonstrate next.
func (m *Machine) CurrentGuidance() Guidance {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := Guidance{Phase: m.phase}
	if next, ok := m.phase.Next(); ok {
		g.NextPhase = next
	}
	if len(m.milestones) > 0 {
		current := &m.milestones[len(m.milestones)-1]
		g.Milestone = current.Type
		g.RequiredActions = append([]string(nil), current.RequiredActions...)
		g.SuccessCriteria = append([]string(nil), current.SuccessCriteria...)
	}
	return g
}

// ObserveTurn feeds one student utterance through the progression model:
// assess the current milestone, create the next one on completion, and
// attempt a phase transition when the sequence is exhausted or readiness is
// evident. Any lookup failure degrades to "incomplete, no advance".
func (m *Machine) ObserveTurn(utterance string, cls *proto.Classification) proto.PhaseInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalMessages++
	m.phaseMessages++

	lower := strings.ToLower(utterance)
	wordCount := len(strings.Fields(lower))

	if len(m.milestones) == 0 {
		// Defensive reseed; NewMachine always creates the entry milestone.
		m.milestones = append(m.milestones, m.newMilestoneWith(cls, proto.MilestonePhaseEntry))
	}

	current := m.milestones[len(m.milestones)-1]
	if m.assessCompletion(&current, lower, wordCount) {
		if nextType, ok := m.nextMilestoneType(current.Type); ok {
			m.milestones = append(m.milestones, m.newMilestoneWith(cls, nextType))
			m.logger.DebugDomain(logx.DomainProgression, "milestone %s complete, opened %s", current.Type, nextType)
		} else if m.shouldTransition(lower) {
			m.transition(cls)
		}
	} else if m.shouldTransition(lower) {
		// Explicit readiness can pull the session forward even when the
		// current milestone's criteria are lagging behind.
		m.transition(cls)
	}

	m.persist()

	info := proto.PhaseInfo{Phase: m.phase}
	latest := &m.milestones[len(m.milestones)-1]
	info.Milestone = latest.Type
	info.MilestoneProgress = latest.Progress
	return info
}

// assessCompletion checks every required criterion for the milestone.
// Unknown milestone types are treated as incomplete rather than an error.
func (m *Machine) assessCompletion(milestone *proto.Milestone, lower string, wordCount int) bool {
	criteria, ok := milestoneCriteria[milestone.Type]
	if !ok {
		m.logger.Warn("unknown milestone type %s, treating as incomplete", milestone.Type)
		return false
	}

	for i := range criteria {
		result := assessCriterion(&criteria[i], lower, wordCount)
		if !result.Met {
			return false
		}
	}
	return true
}

// AssessCriteria exposes the per-criterion results for diagnostics.
func (m *Machine) AssessCriteria(milestoneType proto.MilestoneType, utterance string) []CriterionResult {
	criteria, ok := milestoneCriteria[milestoneType]
	if !ok {
		return nil
	}
	lower := strings.ToLower(utterance)
	wordCount := len(strings.Fields(lower))

	results := make([]CriterionResult, 0, len(criteria))
	for i := range criteria {
		results = append(results, assessCriterion(&criteria[i], lower, wordCount))
	}
	return results
}

// shouldTransition evaluates the phase-specific heuristics: the phase's
// minimum message count plus lexical evidence that the student is already
// thinking in the next phase, or explicit readiness phrasing.
func (m *Machine) shouldTransition(lower string) bool {
	next, ok := m.phase.Next()
	if !ok {
		return false // Reflection is terminal.
	}

	structure, ok := phaseStructures[m.phase]
	if !ok {
		m.logger.Warn("missing phase structure for %s, holding phase", m.phase)
		return false
	}
	if m.phaseMessages < structure.minMessages {
		return false
	}

	if countMatches(lower, readinessPhrases) > 0 {
		return true
	}
	return countMatches(lower, nextPhaseIndicators(next)) >= 1 && m.sequenceExhausted()
}

// sequenceExhausted reports whether the current milestone is the last of the
// phase's sequence.
func (m *Machine) sequenceExhausted() bool {
	structure, ok := phaseStructures[m.phase]
	if !ok || len(m.milestones) == 0 {
		return false
	}
	current := m.milestones[len(m.milestones)-1].Type
	return current == structure.sequence[len(structure.sequence)-1]
}

// transition moves to the next phase, creates its entry milestone, and
// resets phase-local progress.
func (m *Machine) transition(cls *proto.Classification) {
	next, ok := m.phase.Next()
	if !ok {
		return
	}
	if !m.isValidTransition(m.phase, next) {
		m.logger.Warn("refused transition %s -> %s", m.phase, next)
		return
	}

	from := m.phase
	transition := PhaseTransition{
		FromPhase: from,
		ToPhase:   next,
		Timestamp: time.Now().UTC(),
	}
	m.transitions = append(m.transitions, transition)
	m.phase = next
	m.phaseMessages = 0
	m.milestones = append(m.milestones, m.newMilestoneWith(cls, proto.MilestonePhaseEntry))

	m.logger.Info("🔄 Phase transition: %s → %s", from, next)

	if m.notifCh != nil {
		notification := &proto.PhaseChangeNotification{
			SessionID: m.sessionID,
			FromPhase: from,
			ToPhase:   next,
			Timestamp: transition.Timestamp,
		}
		select {
		case m.notifCh <- notification:
		default:
			m.logger.Warn("phase notification channel full, dropping %s", notification)
		}
	}
}

func (m *Machine) isValidTransition(from, to proto.Phase) bool {
	for _, allowed := range m.table[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// nextMilestoneType returns the milestone following current in the phase's
// sequence, or false when the sequence is exhausted or unknown.
func (m *Machine) nextMilestoneType(current proto.MilestoneType) (proto.MilestoneType, bool) {
	structure, ok := phaseStructures[m.phase]
	if !ok {
		return "", false
	}
	for i, mt := range structure.sequence {
		if mt == current && i+1 < len(structure.sequence) {
			return structure.sequence[i+1], true
		}
	}
	return "", false
}

// newMilestoneWith builds an immutable milestone record, snapshotting the
// current signal levels and computing phase-local progress from the
// milestone's position in the sequence.
func (m *Machine) newMilestoneWith(cls *proto.Classification, milestoneType proto.MilestoneType) proto.Milestone {
	milestone := proto.Milestone{
		ID:              proto.NewMilestoneID(),
		Phase:           m.phase,
		Type:            milestoneType,
		Progress:        m.progressFor(milestoneType),
		RequiredActions: append([]string(nil), requiredActions[milestoneType]...),
		CreatedAt:       time.Now().UTC(),
	}
	for _, criterion := range milestoneCriteria[milestoneType] {
		milestone.SuccessCriteria = append(milestone.SuccessCriteria, criterion.Name)
	}
	if cls != nil {
		milestone.Understanding = cls.Understanding
		milestone.Confidence = cls.Confidence
		milestone.Engagement = cls.Engagement
	}
	return milestone
}

// progressFor computes phase-local progress from the milestone's index.
func (m *Machine) progressFor(milestoneType proto.MilestoneType) float64 {
	structure, ok := phaseStructures[m.phase]
	if !ok {
		return 0
	}
	for i, mt := range structure.sequence {
		if mt == milestoneType {
			return float64(i) / float64(len(structure.sequence)) * 100
		}
	}
	return 0
}

func (m *Machine) persist() {
	if m.store == nil {
		return
	}
	snap := &Snapshot{
		Phase:         m.phase,
		Milestones:    append([]proto.Milestone(nil), m.milestones...),
		PhaseMessages: m.phaseMessages,
		TotalMessages: m.totalMessages,
		Transitions:   append([]PhaseTransition(nil), m.transitions...),
	}
	if err := m.store.SaveProgress(m.sessionID, snap); err != nil {
		// Persistence failures are diagnostic only; progression state
		// remains authoritative in memory for the session.
		m.logger.Error("failed to persist progress: %v", err)
	}
}

// MemoryStateStore is an in-memory StateStore for tests and ephemeral runs.
type MemoryStateStore struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
}

// NewMemoryStateStore creates an empty in-memory progress store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{snaps: make(map[string]*Snapshot)}
}

// SaveProgress stores a snapshot.
func (s *MemoryStateStore) SaveProgress(sessionID string, snap *Snapshot) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[sessionID] = snap
	return nil
}

// LoadProgress retrieves a snapshot.
func (s *MemoryStateStore) LoadProgress(sessionID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProgressNotFound, sessionID)
	}
	return snap, nil
}
