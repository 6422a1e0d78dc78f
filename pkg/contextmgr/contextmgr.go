// Package contextmgr keeps per-session conversation history with token-aware
// compaction, feeding recent utterances to the classifier and prompt history
// to the collaborators.
package contextmgr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"tutor/pkg/logx"
)

// DefaultTokenBudget bounds a session's retained history when no budget is
// configured.
const DefaultTokenBudget = 8000

// Message is a single role/content pair in a session's history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles used in session history.
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
)

// TokenCounter provides token counting for prompt budgets. Claude and Gemini
// tokenize similarly enough that GPT-4 encoding is a usable approximation
// for all configured providers.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a counter with GPT-4 encoding.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the token count of text, estimating 4 chars per token
// when the codec is unavailable.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

type conversation struct {
	messages []Message
}

// Manager keeps one conversation per session.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*conversation
	counter  *TokenCounter
	budget   int
	logger   *logx.Logger
}

// NewManager creates a manager with the given token budget per session.
// budget <= 0 selects the default. Tokenizer initialization failure degrades
// to character-based estimation rather than failing construction.
func NewManager(budget int) *Manager {
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	logger := logx.NewLogger("contextmgr")
	counter, err := NewTokenCounter()
	if err != nil {
		logger.Warn("tokenizer unavailable, using character estimation: %v", err)
		counter = nil
	}
	return &Manager{
		sessions: make(map[string]*conversation),
		counter:  counter,
		budget:   budget,
		logger:   logger,
	}
}

// AddTurn appends one student utterance and the tutor's reply, compacting
// the session afterwards if the budget is exceeded.
func (m *Manager) AddTurn(sessionID, utterance, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv := m.session(sessionID)
	conv.messages = append(conv.messages,
		Message{Role: RoleStudent, Content: utterance},
		Message{Role: RoleTutor, Content: reply},
	)
	m.compactLocked(sessionID, conv)
}

// RecentUtterances returns the last n student utterances, oldest first, for
// the classifier's reliance-history check.
func (m *Manager) RecentUtterances(sessionID string, n int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	var utterances []string
	for _, msg := range conv.messages {
		if msg.Role == RoleStudent {
			utterances = append(utterances, msg.Content)
		}
	}
	if len(utterances) > n {
		utterances = utterances[len(utterances)-n:]
	}
	return utterances
}

// PromptHistory returns up to n most recent messages as alternating content
// strings, oldest first, for collaborator prompt assembly.
func (m *Manager) PromptHistory(sessionID string, n int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	messages := conv.messages
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	// Keep the student/tutor alternation intact: start on a student message.
	if len(messages) > 0 && messages[0].Role != RoleStudent {
		messages = messages[1:]
	}
	history := make([]string, 0, len(messages))
	for _, msg := range messages {
		history = append(history, msg.Content)
	}
	return history
}

// TokenCount returns the session's current history size in tokens.
func (m *Manager) TokenCount(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.sessions[sessionID]
	if !ok {
		return 0
	}
	return m.countLocked(conv)
}

// MessageCount returns the number of retained messages for a session.
func (m *Manager) MessageCount(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.sessions[sessionID]
	if !ok {
		return 0
	}
	return len(conv.messages)
}

// Clear drops a session's history.
func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Summary renders a one-line description of the session's context state.
func (m *Manager) Summary(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.sessions[sessionID]
	if !ok || len(conv.messages) == 0 {
		return "empty context"
	}
	roleCounts := make(map[string]int)
	for _, msg := range conv.messages {
		roleCounts[msg.Role]++
	}
	var parts []string
	for _, role := range []string{RoleStudent, RoleTutor} {
		if roleCounts[role] > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", role, roleCounts[role]))
		}
	}
	return fmt.Sprintf("%d messages (%d tokens) - %s",
		len(conv.messages), m.countLocked(conv), strings.Join(parts, ", "))
}

func (m *Manager) session(sessionID string) *conversation {
	conv, ok := m.sessions[sessionID]
	if !ok {
		conv = &conversation{}
		m.sessions[sessionID] = conv
	}
	return conv
}

func (m *Manager) countLocked(conv *conversation) int {
	total := 0
	for _, msg := range conv.messages {
		total += m.counter.CountTokens(msg.Content)
	}
	return total
}

// compactLocked drops the oldest turn pair until the session fits the
// budget. Whole pairs are dropped so the alternation survives.
func (m *Manager) compactLocked(sessionID string, conv *conversation) {
	dropped := 0
	for m.countLocked(conv) > m.budget && len(conv.messages) > 2 {
		conv.messages = conv.messages[2:]
		dropped += 2
	}
	if dropped > 0 {
		m.logger.DebugDomain(logx.DomainStore, "session %s: compacted %d messages, %d retained",
			sessionID, dropped, len(conv.messages))
	}
}
