package openai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/ratelimit"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingAPI is a mock for the OpenAI embeddings API
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	args := m.Called(ctx, inputs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func vectors(n, dims int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dims)
		out[i][0] = float32(i)
	}
	return out
}

// MockChatAPI is a mock for the OpenAI chat completions API
type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 384}

	ctx := context.Background()
	text := "What is the difference between HashMap and ConcurrentHashMap?"
	expected := vectors(1, 384)
	mockAPI.On("CreateEmbeddings", ctx, []string{text}).Return(expected, nil)

	embedding, err := client.GenerateEmbedding(ctx, text)

	require.NoError(t, err)
	assert.Equal(t, expected[0], embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	embedding, err := client.GenerateEmbedding(context.Background(), "")

	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 384}

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	embedding, err := client.GenerateEmbedding(context.Background(), "Test text")

	assert.Nil(t, embedding)
	assert.Contains(t, err.Error(), "failed to create embedding")
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 384}

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(vectors(1, 512), nil)

	embedding, err := client.GenerateEmbedding(context.Background(), "Test text")

	assert.Nil(t, embedding)
	assert.ErrorIs(t, err, ErrWrongDimensions)
	assert.Contains(t, err.Error(), "expected 384, got 512")
}

func TestClient_GenerateEmbeddings_SplitsIntoBatches(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 8}

	texts := make([]string, MaxBatch+6)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}
	mockAPI.On("CreateEmbeddings", mock.Anything, texts[:MaxBatch]).Return(vectors(MaxBatch, 8), nil).Once()
	mockAPI.On("CreateEmbeddings", mock.Anything, texts[MaxBatch:]).Return(vectors(6, 8), nil).Once()

	vecs, err := client.GenerateEmbeddings(context.Background(), texts)

	require.NoError(t, err)
	assert.Len(t, vecs, MaxBatch+6)
	assert.Equal(t, float32(5), vecs[MaxBatch+5][0])
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbeddings_ShortResponse(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 8}

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(vectors(1, 8), nil)

	_, err := client.GenerateEmbeddings(context.Background(), []string{"a", "b"})

	assert.ErrorContains(t, err, "got 1 vectors for 2 inputs")
}

func TestClient_GenerateEmbeddings_RejectsEmptyInput(t *testing.T) {
	client := &Client{api: new(MockEmbeddingAPI), dimensions: 8}

	_, err := client.GenerateEmbeddings(context.Background(), []string{"a", ""})

	assert.Equal(t, ErrEmptyText, err)
}

func TestNewClientWithConfig_Defaults(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "test-api-key", BaseURL: "http://localhost:1234/v1"})

	require.NotNil(t, client)
	assert.NotNil(t, client.api)
	assert.Equal(t, DefaultEmbeddingDimensions, client.Dimensions())
}

func TestAsRateLimited(t *testing.T) {
	var tooMany *ratelimit.TooManyRequestsError
	assert.ErrorAs(t, asRateLimited(&openai.APIError{HTTPStatusCode: 429}), &tooMany)

	plain := errors.New("boom")
	assert.Equal(t, plain, asRateLimited(plain))
}

func TestChatClient_Complete_ReturnsChoices(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := newChatClient(mockAPI, "")

	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "## 核心知识点"}},
		},
	}
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == DefaultChatModel && len(req.Messages) == 1 && req.Messages[0].Content == "prompt"
	})).Return(resp, nil)

	completion, err := client.Complete(context.Background(), "prompt")

	require.NoError(t, err)
	choices, ok := completion.(domain.ChoicesCompletion)
	require.True(t, ok)
	require.Len(t, choices.Choices, 1)
	assert.Equal(t, "## 核心知识点", domain.RenderCompletion(completion))
	mockAPI.AssertExpectations(t)
}

func TestChatClient_Complete_APIError(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := newChatClient(mockAPI, "qwen-turbo")

	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("connection refused"))

	completion, err := client.Complete(context.Background(), "prompt")

	assert.Nil(t, completion)
	assert.ErrorIs(t, err, domain.ErrLLMRequestFailed)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestChatClient_Complete_RateLimited(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := newChatClient(mockAPI, "")

	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: 429, Message: "slow down"})

	_, err := client.Complete(context.Background(), "prompt")

	var tooMany *ratelimit.TooManyRequestsError
	assert.ErrorAs(t, err, &tooMany)
	assert.ErrorIs(t, err, domain.ErrLLMRequestFailed)
}

func TestChatClient_Complete_EmptyPrompt(t *testing.T) {
	client := newChatClient(new(MockChatAPI), "")

	_, err := client.Complete(context.Background(), "")

	assert.Equal(t, ErrEmptyText, err)
}
