// Package dashscope calls the Alibaba Cloud DashScope text generation API (Qwen models).
package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/ratelimit"
)

const (
	DefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"
	DefaultModel   = "qwen-turbo"

	generationPath = "/services/aigc/text-generation/generation"
	maxErrorBody   = 4 << 10
)

var ErrEmptyPrompt = errors.New("prompt cannot be empty")

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client sends single-prompt generation requests.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    HTTPDoer
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return newClient(cfg, &http.Client{Timeout: timeout})
}

func newClient(cfg Config, doer HTTPDoer) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		http:    doer,
	}
}

type generationRequest struct {
	Model      string               `json:"model"`
	Input      generationInput      `json:"input"`
	Parameters generationParameters `json:"parameters"`
}

type generationInput struct {
	Prompt string `json:"prompt"`
}

type generationParameters struct {
	ResultFormat string `json:"result_format"`
}

// generationResponse covers both result formats: "text" fills Output.Text,
// "message" fills Output.Choices.
type generationResponse struct {
	Output *struct {
		Text    *string `json:"text"`
		Choices []struct {
			Text    string `json:"text"`
			Message *struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// Complete sends prompt to the generation endpoint and decodes the answer.
func (c *Client) Complete(ctx context.Context, prompt string) (domain.Completion, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if c.apiKey == "" {
		return nil, domain.ErrLLMNotConfigured
	}

	body, err := json.Marshal(generationRequest{
		Model:      c.model,
		Input:      generationInput{Prompt: prompt},
		Parameters: generationParameters{ResultFormat: "text"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generationPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLLMRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLLMRequestFailed, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.Wrap(domain.ErrLLMRequestFailed, &ratelimit.TooManyRequestsError{
			RetryAfter: ratelimit.ParseRetryAfter(resp.Header.Get("Retry-After")),
		})
	}
	if resp.StatusCode >= 300 {
		return nil, domain.Wrap(domain.ErrLLMRequestFailed, statusError(resp.StatusCode, raw))
	}

	return Decode(raw), nil
}

// Decode maps a generation response body onto a Completion. Bodies that are
// not JSON or match neither result format become UnknownCompletion.
func Decode(raw []byte) domain.Completion {
	var parsed generationResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Output == nil {
		return domain.UnknownCompletion{Raw: string(raw)}
	}

	out := parsed.Output
	if out.Text != nil {
		return domain.TextCompletion{Text: *out.Text}
	}
	if len(out.Choices) > 0 {
		choices := make([]domain.Choice, 0, len(out.Choices))
		for _, ch := range out.Choices {
			choice := domain.Choice{Text: ch.Text}
			if ch.Message != nil {
				choice.MessageContent = ch.Message.Content
			}
			choices = append(choices, choice)
		}
		return domain.ChoicesCompletion{Choices: choices}
	}
	return domain.UnknownCompletion{Raw: string(raw)}
}

func statusError(status int, raw []byte) error {
	var parsed generationResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Message != "" {
		return fmt.Errorf("status %d: %s: %s", status, parsed.Code, parsed.Message)
	}
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	return fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(raw)))
}
