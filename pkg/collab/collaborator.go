package collab

import (
	"context"
	"fmt"
	"strings"

	"tutor/pkg/progression"
	"tutor/pkg/proto"
)

// PromptContext carries everything a collaborator may fold into its prompt.
// All fields except Utterance are optional; collaborators consume them
// opportunistically.
type PromptContext struct {
	SessionID      string
	Utterance      string
	ProjectType    string
	Topic          string
	RecentHistory  []string
	Triggers       []proto.TriggerTag
	Classification *proto.Classification
	Guidance       progression.Guidance
}

// Collaborator builds a prompt from a PromptContext and forwards it to a
// completion service. Each named collaborator differs only in its system
// prompt and sampling parameters.
type Collaborator struct {
	Name        string
	client      LLMClient
	system      string
	temperature float32
	maxTokens   int
}

// systemPrompts fixes the pedagogical stance of each collaborator.
var systemPrompts = map[string]string{
	proto.CollabKnowledge: "You are the knowledge collaborator of an architecture tutoring system. " +
		"Provide accurate, concrete domain information: precedents, principles, numbers. " +
		"Be direct and compact. Do not ask the student to figure it out themselves.",
	proto.CollabSocratic: "You are the socratic collaborator of an architecture tutoring system. " +
		"Never give answers. Respond with one or two probing questions that move the " +
		"student's own reasoning forward. Always end with a question.",
	proto.CollabChallenge: "You are the challenge collaborator of an architecture tutoring system. " +
		"Push back on the student's assumptions. Name the weakest point of their position " +
		"and ask what evidence would change their mind. Stay respectful, never dismissive.",
	proto.CollabImage: "You are the visual collaborator of an architecture tutoring system. " +
		"Describe a diagram or sketch the student should draw to test their idea. " +
		"Respond with a short drawing instruction, not prose analysis.",
	proto.CollabRetriever: "You are the retrieval collaborator of an architecture tutoring system. " +
		"Name specific built precedents and sources relevant to the student's topic, " +
		"one line each: project, architect, why it is relevant.",
}

// NewCollaborator creates one named collaborator over the given client.
// Unknown names get a neutral tutoring prompt.
func NewCollaborator(name string, client LLMClient) *Collaborator {
	system, ok := systemPrompts[name]
	if !ok {
		system = "You are a collaborator of an architecture tutoring system. Help the student reason about their design."
	}
	temperature := float32(0.7)
	if name == proto.CollabKnowledge || name == proto.CollabRetriever {
		// Factual collaborators sample colder.
		temperature = 0.3
	}
	return &Collaborator{
		Name:        name,
		client:      client,
		system:      system,
		temperature: temperature,
		maxTokens:   512,
	}
}

// DefaultSet creates the five standard collaborators sharing one client.
func DefaultSet(client LLMClient) map[string]*Collaborator {
	names := []string{
		proto.CollabKnowledge, proto.CollabSocratic, proto.CollabChallenge,
		proto.CollabImage, proto.CollabRetriever,
	}
	set := make(map[string]*Collaborator, len(names))
	for _, name := range names {
		set[name] = NewCollaborator(name, client)
	}
	return set
}

// Invoke builds the prompt and runs one completion. The error, if any, is
// carried inside the AgentResult; callers treat it as a missing contribution.
func (c *Collaborator) Invoke(ctx context.Context, pctx *PromptContext) proto.AgentResult {
	request := NewCompletionRequest(c.buildMessages(pctx))
	request.Temperature = c.temperature
	request.MaxTokens = c.maxTokens

	resp, err := c.client.Complete(ctx, request)
	if err != nil {
		return proto.AgentResult{
			Name: c.Name,
			Err:  fmt.Errorf("%s collaborator: %w", c.Name, err),
		}
	}

	return proto.AgentResult{
		Name: c.Name,
		Text: strings.TrimSpace(resp.Content),
		Metadata: map[string]any{
			"stop_reason": resp.StopReason,
		},
	}
}

// buildMessages assembles system + context + recent history + the utterance.
func (c *Collaborator) buildMessages(pctx *PromptContext) []CompletionMessage {
	messages := []CompletionMessage{NewSystemMessage(c.system)}

	if framing := buildFraming(pctx); framing != "" {
		messages = append(messages, NewSystemMessage(framing))
	}

	// Recent history alternates user/assistant, oldest first.
	for i, entry := range pctx.RecentHistory {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		messages = append(messages, CompletionMessage{Role: role, Content: entry})
	}

	messages = append(messages, NewUserMessage(pctx.Utterance))
	return messages
}

// buildFraming renders the session context block shared by all collaborators.
func buildFraming(pctx *PromptContext) string {
	var parts []string
	if pctx.ProjectType != "" {
		parts = append(parts, "Student project type: "+strings.ReplaceAll(pctx.ProjectType, "_", " ")+".")
	}
	if pctx.Topic != "" {
		parts = append(parts, "Current topic: "+pctx.Topic+".")
	}
	if pctx.Guidance.Phase != "" {
		parts = append(parts, "Learning phase: "+string(pctx.Guidance.Phase)+".")
		if len(pctx.Guidance.RequiredActions) > 0 {
			parts = append(parts, "The student still needs to: "+strings.Join(pctx.Guidance.RequiredActions, "; ")+".")
		}
	}
	for _, tag := range pctx.Triggers {
		switch tag {
		case proto.TriggerRealityCheck:
			parts = append(parts, "Ground the student's confidence against concrete evidence.")
		case proto.TriggerCuriosityAmplification:
			parts = append(parts, "The student is curious; widen the question rather than closing it.")
		}
	}
	return strings.Join(parts, " ")
}
