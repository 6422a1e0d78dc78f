package router

import (
	"fmt"
	"sort"
	"strings"

	"tutor/pkg/classify"
	"tutor/pkg/continuity"
	"tutor/pkg/logx"
	"tutor/pkg/proto"
)

// Engine evaluates the routing table for one turn. Decide never returns an
// invalid decision and never panics across the package boundary: internal
// failures degrade to an explicit error route carrying the classification.
type Engine struct {
	rules  []Rule
	logger *logx.Logger
}

// New creates an engine with the built-in rule table.
func New() *Engine {
	engine, err := NewWithRules(defaultRules())
	if err != nil {
		// The built-in table is validated by tests; reaching this means a
		// programming error in defaultRules.
		panic(fmt.Sprintf("router: invalid built-in rule table: %v", err))
	}
	return engine
}

// NewWithRules creates an engine with a custom rule table, e.g. one adjusted
// by a config rule-pack. The table must be a total priority order.
func NewWithRules(rules []Rule) (*Engine, error) {
	if err := validateRules(rules); err != nil {
		return nil, err
	}
	sorted := append([]Rule(nil), rules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &Engine{
		rules:  sorted,
		logger: logx.NewLogger("router"),
	}, nil
}

// Rules returns the engine's table in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// signals is the enriched record the condition language evaluates against.
type signals struct {
	cls               *proto.Classification
	cont              *continuity.Context
	contextConfidence float64
}

// Decide maps one turn's classification and continuity snapshot to a routing
// decision. Side effect: the continuity record is advanced exactly once
// (turn counter, route/topic history, and sticky facts).
func (e *Engine) Decide(utterance string, cls *proto.Classification, cont *continuity.Context) (decision *proto.RoutingDecision) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("routing panic recovered: %v", r)
			decision = &proto.RoutingDecision{
				Route:          proto.RouteError,
				Reason:         fmt.Sprintf("internal routing failure: %v", r),
				Confidence:     0,
				RuleID:         "error",
				Classification: cls,
			}
		}
	}()

	cont.BeginTurn()

	triggers := classify.DetectTriggers(utterance, cls)
	lower := strings.ToLower(utterance)

	decision = e.decideRoute(lower, cls, cont, triggers)
	decision.Classification = cls
	decision.Offloading = cls.Offloading
	decision.Confidence = clamp01(decision.Confidence)

	e.applyContinuity(utterance, cont, decision)

	e.logger.DebugDomain(logx.DomainRouter, "turn %d: rule=%s route=%s collaborators=%v conf=%.2f",
		cont.TurnCount, decision.RuleID, decision.Route, decision.Collaborators, decision.Confidence)

	return decision
}

// decideRoute runs the two fast paths and then the generic table.
//
// The pure-example fast path is evaluated before the gamification override
// on purpose: that is the order the behavior was designed around, though in
// rare phrasing both can match the same utterance.
func (e *Engine) decideRoute(lower string, cls *proto.Classification, cont *continuity.Context, triggers []proto.TriggerTag) *proto.RoutingDecision {
	// Fast path 1: pure example/project requests. Common and unambiguous
	// enough to bypass the table with a single collaborator.
	if isPureExampleRequest(lower, cls) {
		return &proto.RoutingDecision{
			Route:         proto.RouteKnowledgeOnly,
			Reason:        "pure example request: answer directly from knowledge",
			Confidence:    averageConfidence(cls, cont, 0.9),
			RuleID:        "fastpath-pure-example",
			Collaborators: append([]string(nil), routeCollaborators[proto.RouteKnowledgeOnly]...),
		}
	}

	// Fast path 2: gamification triggers reflect the pedagogical state
	// rather than the literal content, so they override the table.
	if route, tag, shaped, ok := resolveTrigger(triggers); ok {
		return &proto.RoutingDecision{
			Route:         route,
			Reason:        fmt.Sprintf("pedagogical trigger %s overrides content routing", tag),
			Confidence:    averageConfidence(cls, cont, 0.8),
			RuleID:        "trigger-" + string(tag),
			Collaborators: append([]string(nil), routeCollaborators[route]...),
			Triggers:      append(append([]proto.TriggerTag(nil), triggers...), shaped...),
		}
	}

	// Generic table: ascending priority, first full match wins.
	sig := &signals{
		cls:               cls,
		cont:              cont,
		contextConfidence: contextConfidence(cont),
	}
	for i := range e.rules {
		rule := &e.rules[i]
		if !matchRule(rule, sig) {
			continue
		}

		route := rule.Target
		collaborators := rule.Collaborators
		if route == "" {
			// Delegation: the rule defers to the suggestion mapping.
			suggested, ok := suggestionRoutes[cls.Interaction]
			if !ok {
				suggested = proto.RouteBalancedGuidance
			}
			route = suggested
			collaborators = routeCollaborators[route]
		}

		return &proto.RoutingDecision{
			Route:         route,
			Reason:        rule.Reason,
			Confidence:    averageConfidence(cls, cont, 0.75),
			RuleID:        rule.ID,
			Collaborators: append([]string(nil), collaborators...),
			Triggers:      triggers,
		}
	}

	// Table miss: not an error, just the default route.
	return &proto.RoutingDecision{
		Route:         proto.RouteBalancedGuidance,
		Reason:        "no rule matched: default balanced guidance",
		Confidence:    averageConfidence(cls, cont, 0.5),
		RuleID:        "default",
		Collaborators: append([]string(nil), routeCollaborators[proto.RouteBalancedGuidance]...),
		Triggers:      triggers,
	}
}

// applyContinuity performs the per-turn continuity mutation: history append
// plus conditional sticky-fact updates from the utterance.
func (e *Engine) applyContinuity(utterance string, cont *continuity.Context, decision *proto.RoutingDecision) {
	topic := continuity.DetectTopic(utterance)
	cont.RecordRoute(decision.Route, topic)

	if projectType, conf := continuity.DetectProjectType(utterance); projectType != "" {
		if cont.ObserveProjectType(projectType, conf) {
			e.logger.DebugDomain(logx.DomainRouter, "project type fact: %s (%.2f)", projectType, conf)
		}
	}
	if phase, conf := continuity.DetectLearningPhase(utterance); phase != "" {
		if cont.ObserveLearningPhase(phase, conf) {
			e.logger.DebugDomain(logx.DomainRouter, "learning phase fact: %s (%.2f)", phase, conf)
		}
	}
}

// Pure-example fast-path vocabulary. Implementation-guidance phrasing
// disqualifies the fast path even when example words are present, and the
// classifier must already have read the utterance as a pure request, since
// "project" alone appears in far too many ordinary statements.
var pureExampleWords = []string{"example", "examples", "project", "projects", "precedent", "precedents", "case study", "case studies"}

var implementationGuards = []string{"how do i build", "how do i implement", "step by step", "how should i approach", "implement this"}

func isPureExampleRequest(lower string, cls *proto.Classification) bool {
	if !cls.IsPureKnowledgeRequest && cls.Interaction != proto.InteractionExampleRequest {
		return false
	}
	matched := false
	for _, word := range pureExampleWords {
		if strings.Contains(lower, word) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, guard := range implementationGuards {
		if strings.Contains(lower, guard) {
			return false
		}
	}
	return true
}

// resolveTrigger picks the winning trigger by fixed precedence.
func resolveTrigger(triggers []proto.TriggerTag) (proto.Route, proto.TriggerTag, []proto.TriggerTag, bool) {
	present := make(map[proto.TriggerTag]bool, len(triggers))
	for _, tag := range triggers {
		present[tag] = true
	}
	for _, tag := range triggerPrecedence {
		if !present[tag] {
			continue
		}
		override, ok := triggerOverrides[tag]
		if !ok {
			continue
		}
		return override.route, tag, override.shaped, true
	}
	return "", "", nil, false
}

func matchRule(rule *Rule, sig *signals) bool {
	for i := range rule.Conditions {
		if !evalCondition(&rule.Conditions[i], sig) {
			return false
		}
	}
	return true
}

func evalCondition(cond *Condition, sig *signals) bool {
	actual := fieldValue(cond.Field, sig)

	switch cond.Op {
	case OpEq:
		return equals(actual, cond.Value)
	case OpNe:
		return !equals(actual, cond.Value)
	case OpGT, OpLT:
		got, ok1 := toFloat(actual)
		want, ok2 := toFloat(cond.Value)
		if !ok1 || !ok2 {
			return false
		}
		if cond.Op == OpGT {
			return got > want
		}
		return got < want
	default:
		return false
	}
}

func fieldValue(field Field, sig *signals) any {
	switch field {
	case FieldInteraction:
		return sig.cls.Interaction
	case FieldUnderstanding:
		return sig.cls.Understanding
	case FieldConfidenceLevel:
		return sig.cls.Confidence
	case FieldEngagement:
		return sig.cls.Engagement
	case FieldOffloadingDetected:
		return sig.cls.Offloading.Detected
	case FieldShowsConfusion:
		return sig.cls.ShowsConfusion
	case FieldPureKnowledge:
		return sig.cls.IsPureKnowledgeRequest
	case FieldTechnicalQuestion:
		return sig.cls.IsTechnicalQuestion
	case FieldFeedbackRequest:
		return sig.cls.IsFeedbackRequest
	case FieldIsContinuing:
		return sig.cont.IsContinuing
	case FieldTurnCount:
		return sig.cont.TurnCount
	case FieldContextConfidence:
		return sig.contextConfidence
	default:
		return nil
	}
}

func equals(a, b any) bool {
	// Normalize string-kinded enums so conditions can use either plain
	// strings or the typed constants.
	as, aok := toString(a)
	bs, bok := toString(b)
	if aok && bok {
		return as == bs
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case proto.InteractionType:
		return string(s), true
	case proto.Route:
		return string(s), true
	case proto.Level:
		return string(s), true
	case proto.ConfidenceLevel:
		return string(s), true
	default:
		return "", false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// contextConfidence averages the confidences of whichever sticky facts are
// set; zero when none are.
func contextConfidence(cont *continuity.Context) float64 {
	var sum float64
	var n int
	if cont.ProjectType.Set() {
		sum += cont.ProjectType.Confidence
		n++
	}
	if cont.LearningPhase.Set() {
		sum += cont.LearningPhase.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// averageConfidence averages whichever signal confidences are available:
// the rule's base confidence, offloading detection, and the sticky facts.
func averageConfidence(cls *proto.Classification, cont *continuity.Context, base float64) float64 {
	values := []float64{base}
	if cls.Offloading.Detected {
		values = append(values, cls.Offloading.Confidence)
	}
	if cont.ProjectType.Set() {
		values = append(values, cont.ProjectType.Confidence)
	}
	if cont.LearningPhase.Set() {
		values = append(values, cont.LearningPhase.Confidence)
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return clamp01(sum / float64(len(values)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
