package collab

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutor/pkg/progression"
	"tutor/pkg/proto"
)

func TestDefaultSetCoversAllNames(t *testing.T) {
	set := DefaultSet(NewMockClient())
	for _, name := range []string{
		proto.CollabKnowledge, proto.CollabSocratic, proto.CollabChallenge,
		proto.CollabImage, proto.CollabRetriever,
	} {
		require.Contains(t, set, name)
		assert.Equal(t, name, set[name].Name)
	}
}

func TestCollaboratorBuildsPromptFromContext(t *testing.T) {
	mock := NewMockClient()
	c := NewCollaborator(proto.CollabSocratic, mock)

	pctx := &PromptContext{
		SessionID:   "s1",
		Utterance:   "how should i organize the plan?",
		ProjectType: "community_center",
		Topic:       "circulation",
		Guidance: progression.Guidance{
			Phase:           proto.PhaseExploration,
			RequiredActions: []string{"propose at least one alternative approach"},
		},
		RecentHistory: []string{"i am designing a community center", "What draws you to that program?"},
	}
	result := c.Invoke(context.Background(), pctx)
	require.NoError(t, result.Err)
	assert.NotEmpty(t, result.Text)

	requests := mock.Requests()
	require.Len(t, requests, 1)
	messages := requests[0].Messages

	require.GreaterOrEqual(t, len(messages), 4)
	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Contains(t, messages[0].Content, "socratic")

	assert.Equal(t, RoleSystem, messages[1].Role)
	assert.Contains(t, messages[1].Content, "community center")
	assert.Contains(t, messages[1].Content, "exploration")

	last := messages[len(messages)-1]
	assert.Equal(t, RoleUser, last.Role)
	assert.Equal(t, pctx.Utterance, last.Content)
}

func TestCollaboratorFailureCarriedInResult(t *testing.T) {
	mock := NewMockClient().WithError(errors.New("service down"))
	c := NewCollaborator(proto.CollabKnowledge, mock)

	result := c.Invoke(context.Background(), &PromptContext{Utterance: "hello"})
	require.Error(t, result.Err)
	assert.True(t, result.Empty())
	assert.Equal(t, proto.CollabKnowledge, result.Name)
}

func TestInvokerCollectsResultsByName(t *testing.T) {
	mock := NewMockClient().WithFallback("steady reply")
	inv := NewInvoker(DefaultSet(mock))

	names := []string{proto.CollabKnowledge, proto.CollabSocratic, proto.CollabChallenge}
	results := inv.Invoke(context.Background(), names, &PromptContext{Utterance: "hi"})

	require.Len(t, results, len(names))
	for _, name := range names {
		require.Contains(t, results, name)
		assert.NoError(t, results[name].Err)
		assert.Equal(t, "steady reply", results[name].Text)
	}
}

func TestInvokerUnknownCollaborator(t *testing.T) {
	inv := NewInvoker(DefaultSet(NewMockClient()))
	results := inv.Invoke(context.Background(), []string{"nonexistent"}, &PromptContext{Utterance: "hi"})

	require.Contains(t, results, "nonexistent")
	assert.Error(t, results["nonexistent"].Err)
}

func TestInvokerTimeoutBecomesMissingContribution(t *testing.T) {
	mock := NewMockClient().WithDelay(200 * time.Millisecond)
	inv := NewInvoker(DefaultSet(mock), WithTimeout(20*time.Millisecond))

	results := inv.Invoke(context.Background(), []string{proto.CollabKnowledge}, &PromptContext{Utterance: "hi"})

	require.Contains(t, results, proto.CollabKnowledge)
	result := results[proto.CollabKnowledge]
	assert.Error(t, result.Err)
	assert.True(t, result.Empty())
}

func TestInvokerPartialFailureKeepsOtherResults(t *testing.T) {
	healthy := NewMockClient().WithFallback("useful text")
	broken := NewMockClient().WithError(errors.New("boom"))

	collaborators := map[string]*Collaborator{
		proto.CollabKnowledge: NewCollaborator(proto.CollabKnowledge, healthy),
		proto.CollabChallenge: NewCollaborator(proto.CollabChallenge, broken),
	}
	inv := NewInvoker(collaborators)

	results := inv.Invoke(context.Background(),
		[]string{proto.CollabKnowledge, proto.CollabChallenge},
		&PromptContext{Utterance: "hi"})

	assert.NoError(t, results[proto.CollabKnowledge].Err)
	assert.Equal(t, "useful text", results[proto.CollabKnowledge].Text)
	assert.Error(t, results[proto.CollabChallenge].Err)
}

func TestInvokerCancellation(t *testing.T) {
	mock := NewMockClient().WithDelay(time.Second)
	inv := NewInvoker(DefaultSet(mock))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := inv.Invoke(ctx, []string{proto.CollabKnowledge}, &PromptContext{Utterance: "hi"})
	assert.Error(t, results[proto.CollabKnowledge].Err)
}

type countingObserver struct {
	calls []string
}

func (c *countingObserver) RecordCollaboratorCall(name, status string, _ time.Duration) {
	c.calls = append(c.calls, name+":"+status)
}

func TestInvokerRecordsObservations(t *testing.T) {
	observer := &countingObserver{}
	inv := NewInvoker(DefaultSet(NewMockClient()),
		WithObserver(observer), WithMaxConcurrent(1))

	inv.Invoke(context.Background(),
		[]string{proto.CollabKnowledge, proto.CollabSocratic},
		&PromptContext{Utterance: "hi"})

	assert.Len(t, observer.calls, 2)
	for _, call := range observer.calls {
		assert.Contains(t, call, ":ok")
	}
}

func TestPrepareMessagesAlternation(t *testing.T) {
	system, merged, err := prepareMessages([]CompletionMessage{
		NewSystemMessage("stance"),
		NewSystemMessage("framing"),
		NewUserMessage("first"),
		NewUserMessage("second"),
		{Role: RoleAssistant, Content: "reply"},
		NewUserMessage("third"),
	})
	require.NoError(t, err)
	assert.Equal(t, "stance\n\nframing", system)
	require.Len(t, merged, 3)
	assert.Equal(t, "first\n\nsecond", merged[0].Content)
	assert.Equal(t, RoleAssistant, merged[1].Role)
	assert.Equal(t, RoleUser, merged[2].Role)

	_, _, err = prepareMessages(nil)
	assert.Error(t, err)
}

func TestClientConstructorsDefaultModel(t *testing.T) {
	claude := NewClaudeClientWithModel("key", "").(*ClaudeClient)
	assert.Equal(t, defaultClaudeModel, string(claude.model))

	oai := NewOpenAIClientWithModel("key", "").(*OpenAIClient)
	assert.Equal(t, defaultOpenAIModel, oai.model)

	gemini := NewGeminiClientWithModel("key", "").(*GeminiClient)
	assert.Equal(t, defaultGeminiModel, gemini.model)

	ollama := NewOllamaClientWithModel("", "").(*OllamaClient)
	assert.Equal(t, defaultOllamaModel, ollama.model)

	// A configured model is never overridden.
	custom := NewClaudeClientWithModel("key", "claude-opus-4-1").(*ClaudeClient)
	assert.Equal(t, "claude-opus-4-1", string(custom.model))
}
