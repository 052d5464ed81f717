// Package openai talks to OpenAI-compatible endpoints: embeddings for the
// chunk index and chat completions for answers.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloo-solutions/interviewqa/internal/ratelimit"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions matches the offline hashing embedder so an
	// index can switch providers without a schema change.
	DefaultEmbeddingDimensions = 384
	// MaxBatch is the number of inputs sent per embeddings request.
	MaxBatch = 64
)

var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// EmbeddingAPI embeds a batch of inputs, returning one vector per input in order.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
}

// Client embeds questions and chunks and checks every vector's size against
// the index dimension.
type Client struct {
	api        EmbeddingAPI
	dimensions int
}

func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Client{
		api:        &embeddingsEndpoint{client: newAPIClient(cfg.APIKey, cfg.BaseURL), model: model, dimensions: dimensions},
		dimensions: dimensions,
	}
}

// newAPIClient builds a go-openai client, honoring an OpenAI-compatible base URL.
func newAPIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func (c *Client) Dimensions() int {
	return c.dimensions
}

// GenerateEmbedding embeds a single text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vecs, err := c.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// GenerateEmbeddings embeds texts in requests of at most MaxBatch inputs.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatch {
		end := min(start+MaxBatch, len(texts))
		vecs, err := c.api.CreateEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding: %w", err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("failed to create embedding: got %d vectors for %d inputs", len(vecs), end-start)
		}
		for _, v := range vecs {
			if len(v) != c.dimensions {
				return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(v))
			}
			out = append(out, v)
		}
	}
	return out, nil
}

type embeddingsEndpoint struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func (e *embeddingsEndpoint) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{Input: inputs, Model: e.model}
	// ada-002 rejects the dimensions parameter
	if e.model != openai.AdaEmbeddingV2 {
		req.Dimensions = e.dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, asRateLimited(err)
	}

	vecs := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}
	return vecs, nil
}

// asRateLimited turns a 429 from the API into ratelimit.TooManyRequestsError.
func asRateLimited(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &ratelimit.TooManyRequestsError{}
	}
	return err
}
