package collab

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// defaultOpenAIModel is used when no model is configured.
const defaultOpenAIModel = "gpt-4o"

// OpenAIClient wraps the official OpenAI Go client to implement LLMClient.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI client with the default model.
func NewOpenAIClient(apiKey string) LLMClient {
	return NewOpenAIClientWithModel(apiKey, defaultOpenAIModel)
}

// NewOpenAIClientWithModel creates an OpenAI client with a specific model.
// An empty model selects the default.
func NewOpenAIClientWithModel(apiKey, model string) LLMClient {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete implements LLMClient using the Responses API.
func (o *OpenAIClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	// The Responses API takes a single input string; flatten the message
	// list with role prefixes for non-user roles.
	var input string
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case RoleSystem:
			input += fmt.Sprintf("System: %s\n\n", msg.Content)
		case RoleAssistant:
			input += fmt.Sprintf("Assistant: %s\n\n", msg.Content)
		default:
			input += msg.Content + "\n\n"
		}
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("openai API call: %w", err)
	}
	if resp == nil {
		return CompletionResponse{}, fmt.Errorf("empty response from openai API")
	}

	return CompletionResponse{Content: resp.OutputText()}, nil
}

// Stream implements LLMClient by wrapping Complete.
func (o *OpenAIClient) Stream(ctx context.Context, in CompletionRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 2)
	go func() {
		defer close(ch)
		resp, err := o.Complete(ctx, in)
		if err != nil {
			ch <- StreamChunk{Error: err}
			return
		}
		ch <- StreamChunk{Content: resp.Content}
		ch <- StreamChunk{Done: true}
	}()
	return ch, nil
}

// GetModelName returns the model name for this client.
func (o *OpenAIClient) GetModelName() string {
	return o.model
}
