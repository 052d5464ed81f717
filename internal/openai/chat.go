package openai

import (
	"context"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel is used when no model is configured
const DefaultChatModel = openai.GPT4oMini

// ChatAPI defines the subset of the chat completions API the generator needs
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatClient sends prompts to an OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	api   ChatAPI
	model string
}

type ChatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func NewChatClient(cfg ChatConfig) *ChatClient {
	return newChatClient(newAPIClient(cfg.APIKey, cfg.BaseURL), cfg.Model)
}

func newChatClient(api ChatAPI, model string) *ChatClient {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{api: api, model: model}
}

// Complete sends prompt as a single user message.
func (c *ChatClient) Complete(ctx context.Context, prompt string) (domain.Completion, error) {
	if prompt == "" {
		return nil, ErrEmptyText
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, domain.Wrap(domain.ErrLLMRequestFailed, asRateLimited(err))
	}

	choices := make([]domain.Choice, 0, len(resp.Choices))
	for _, ch := range resp.Choices {
		choices = append(choices, domain.Choice{MessageContent: ch.Message.Content})
	}
	return domain.ChoicesCompletion{Choices: choices}, nil
}
