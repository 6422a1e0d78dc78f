// Package tutor assembles the full per-turn pipeline: classify the
// utterance, route it, fan out to collaborators, synthesize the reply, and
// advance the session's continuity and phase progression. The engine is the
// single entry point callers use; everything below it is a library.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tutor/pkg/classify"
	"tutor/pkg/collab"
	"tutor/pkg/contextmgr"
	"tutor/pkg/continuity"
	"tutor/pkg/logx"
	"tutor/pkg/metrics"
	"tutor/pkg/progression"
	"tutor/pkg/proto"
	"tutor/pkg/router"
	"tutor/pkg/synth"
)

// recentHistoryTurns is how many prior student utterances feed the
// classifier's overreliance detection.
const recentHistoryTurns = 5

// promptHistoryMessages is how many conversation messages collaborators see.
const promptHistoryMessages = 6

// TurnLog persists completed turns for later review. Implemented by the
// persistence store; optional.
type TurnLog interface {
	RecordTurn(sessionID, utterance string, decision *proto.RoutingDecision, reply string) (string, error)
}

// TurnResult is everything one processed turn produces.
type TurnResult struct {
	Reply     string                 `json:"reply"`
	Decision  *proto.RoutingDecision `json:"decision"`
	PhaseInfo proto.PhaseInfo        `json:"phase_info"`
	TurnID    string                 `json:"turn_id,omitempty"`
}

// session holds the per-session serialization lock and the cached
// progression machine. Turns within one session are strictly ordered;
// different sessions proceed concurrently.
type session struct {
	mu      sync.Mutex
	machine *progression.Machine
}

// Engine wires the decision core together.
type Engine struct {
	classifier  *classify.Classifier
	router      *router.Engine
	invoker     *collab.Invoker
	synthesizer *synth.Synthesizer
	contextMgr  *contextmgr.Manager
	store       continuity.Store
	progress    progression.StateStore
	recorder    *metrics.Recorder
	turnLog     TurnLog
	counter     *contextmgr.TokenCounter
	logger      *logx.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithRouter replaces the built-in routing table, e.g. with one adjusted by
// a config rule-pack.
func WithRouter(r *router.Engine) Option {
	return func(e *Engine) { e.router = r }
}

// WithInvoker replaces the default invoker, e.g. to adjust timeout or
// concurrency bounds.
func WithInvoker(inv *collab.Invoker) Option {
	return func(e *Engine) { e.invoker = inv }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r *metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTurnLog attaches a turn log.
func WithTurnLog(log TurnLog) Option {
	return func(e *Engine) { e.turnLog = log }
}

// WithMaxReplyLength bounds synthesized replies.
func WithMaxReplyLength(n int) Option {
	return func(e *Engine) { e.synthesizer = synth.New(synth.NewQualityGate(n)) }
}

// WithContextBudget sets the per-session conversation token budget.
func WithContextBudget(tokens int) Option {
	return func(e *Engine) { e.contextMgr = contextmgr.NewManager(tokens) }
}

// NewEngine creates an engine over the given completion client and stores.
// Either store may be a memory implementation; the SQLite store satisfies
// both interfaces.
func NewEngine(client collab.LLMClient, store continuity.Store, progress progression.StateStore, opts ...Option) *Engine {
	e := &Engine{
		classifier:  classify.New(),
		router:      router.New(),
		invoker:     collab.NewInvoker(collab.DefaultSet(client)),
		synthesizer: synth.New(synth.NewQualityGate(0)),
		contextMgr:  contextmgr.NewManager(0),
		store:       store,
		progress:    progress,
		logger:      logx.NewLogger("tutor"),
		sessions:    make(map[string]*session),
	}
	if counter, err := contextmgr.NewTokenCounter(); err == nil {
		e.counter = counter
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessTurn runs one student utterance through the pipeline and returns
// the assembled reply. State updates are at-least-once: a turn that fails
// after partial persistence leaves the session consistent enough to
// continue, never rolled back.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, utterance string) (*TurnResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID must not be empty")
	}

	sess := e.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	cont, err := e.loadContinuity(sessionID)
	if err != nil {
		return nil, err
	}
	machine, err := e.loadMachine(sess, sessionID)
	if err != nil {
		return nil, err
	}

	history := e.contextMgr.RecentUtterances(sessionID, recentHistoryTurns)
	cls := e.classifier.Classify(utterance, history)
	decision := e.router.Decide(utterance, &cls, cont)

	pctx := &collab.PromptContext{
		SessionID:      sessionID,
		Utterance:      utterance,
		ProjectType:    cont.ProjectType.Value,
		Topic:          continuity.DetectTopic(utterance),
		RecentHistory:  e.contextMgr.PromptHistory(sessionID, promptHistoryMessages),
		Triggers:       decision.Triggers,
		Classification: decision.Classification,
		Guidance:       machine.CurrentGuidance(),
	}
	results := e.invoker.Invoke(ctx, decision.Collaborators, pctx)

	reply := e.synthesizer.Synthesize(decision, results, utterance, cont.ProjectType.Value)

	phaseBefore := machine.Phase()
	phaseInfo := machine.ObserveTurn(utterance, decision.Classification)

	e.contextMgr.AddTurn(sessionID, utterance, reply)
	if err := e.store.Save(sessionID, cont); err != nil {
		// The reply is already assembled; losing one continuity save
		// degrades the next turn's context, not this one's answer.
		e.logger.Error("continuity save failed for %s: %v", sessionID, err)
	}

	e.record(sessionID, utterance, reply, decision, phaseBefore, phaseInfo.Phase)

	result := &TurnResult{
		Reply:     reply,
		Decision:  decision,
		PhaseInfo: phaseInfo,
	}
	if e.turnLog != nil {
		turnID, err := e.turnLog.RecordTurn(sessionID, utterance, decision, reply)
		if err != nil {
			e.logger.Error("turn log failed for %s: %v", sessionID, err)
		} else {
			result.TurnID = turnID
		}
	}

	return result, nil
}

// PhaseInfo returns the current progression summary without processing a
// turn.
func (e *Engine) PhaseInfo(sessionID string) (proto.PhaseInfo, error) {
	sess := e.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	machine, err := e.loadMachine(sess, sessionID)
	if err != nil {
		return proto.PhaseInfo{}, err
	}
	return machine.Info(), nil
}

// SessionSummary returns a compact description of the session's
// conversation state.
func (e *Engine) SessionSummary(sessionID string) string {
	return e.contextMgr.Summary(sessionID)
}

// SetPhaseNotifications forwards phase change notifications for the given
// session to ch. Delivery is best-effort.
func (e *Engine) SetPhaseNotifications(sessionID string, ch chan<- *proto.PhaseChangeNotification) error {
	sess := e.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	machine, err := e.loadMachine(sess, sessionID)
	if err != nil {
		return err
	}
	machine.SetNotificationChannel(ch)
	return nil
}

func (e *Engine) session(sessionID string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[sessionID]
	if !ok {
		sess = &session{}
		e.sessions[sessionID] = sess
	}
	return sess
}

// loadContinuity returns the persisted continuity record, or a fresh one for
// an unknown session.
func (e *Engine) loadContinuity(sessionID string) (*continuity.Context, error) {
	cont, err := e.store.Load(sessionID)
	if errors.Is(err, continuity.ErrSessionNotFound) {
		return continuity.NewContext(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return cont, nil
}

// loadMachine returns the session's cached progression machine, restoring it
// from the state store on first use.
func (e *Engine) loadMachine(sess *session, sessionID string) (*progression.Machine, error) {
	if sess.machine != nil {
		return sess.machine, nil
	}

	machine, err := progression.Restore(sessionID, e.progress)
	if errors.Is(err, progression.ErrProgressNotFound) {
		machine = progression.NewMachine(sessionID, e.progress)
	} else if err != nil {
		return nil, fmt.Errorf("failed to restore progress for %s: %w", sessionID, err)
	}
	sess.machine = machine
	return machine, nil
}

func (e *Engine) record(sessionID, utterance, reply string, decision *proto.RoutingDecision, before, after proto.Phase) {
	if e.recorder == nil {
		return
	}

	e.recorder.RecordTurn(sessionID, string(decision.Route), decision.RuleID)
	if decision.Offloading.Detected {
		e.recorder.RecordOffloading(string(decision.Offloading.Type))
	}
	if before != after {
		e.recorder.RecordPhaseTransition(string(before), string(after))
	}
	if e.counter != nil {
		e.recorder.RecordTokens(sessionID,
			e.counter.CountTokens(utterance), e.counter.CountTokens(reply))
	}
}
