package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAnswerGenerator_RendersCompletion(t *testing.T) {
	llm := new(MockLLM)
	llm.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "• [jvm.pdf] heap") && strings.Contains(p, "问题：What is the heap?")
	})).Return(domain.TextCompletion{Text: "## 核心知识点\n堆"}, nil)

	answer, err := NewAnswerGenerator(llm, nil, 0).GenerateE(context.Background(), "• [jvm.pdf] heap", "What is the heap?")

	require.NoError(t, err)
	assert.Equal(t, "## 核心知识点\n堆", answer)
	llm.AssertExpectations(t)
}

func TestAnswerGenerator_EmptyContextStillAnswers(t *testing.T) {
	llm := new(MockLLM)
	llm.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, NoContextNotice)
	})).Return(domain.ChoicesCompletion{Choices: []domain.Choice{{MessageContent: "answer"}}}, nil)

	answer := NewAnswerGenerator(llm, nil, 0).Generate(context.Background(), "", "q")

	assert.Equal(t, "answer", answer)
}

func TestAnswerGenerator_FailuresBecomeText(t *testing.T) {
	llm := new(MockLLM)
	llm.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	gen := NewAnswerGenerator(llm, nil, 0)

	_, err := gen.GenerateE(context.Background(), "", "q")
	assert.Error(t, err)

	answer := gen.Generate(context.Background(), "", "q")
	assert.True(t, strings.HasPrefix(answer, "生成回答失败："))
	assert.Contains(t, answer, "boom")
}

func TestAnswerGenerator_NotConfigured(t *testing.T) {
	gen := NewAnswerGenerator(nil, nil, 0)

	_, err := gen.GenerateE(context.Background(), "ctx", "q")
	assert.ErrorIs(t, err, domain.ErrLLMNotConfigured)
	assert.NotEmpty(t, gen.Generate(context.Background(), "", "q"))
}

func TestAnswerGenerator_EmptyCompletion(t *testing.T) {
	llm := new(MockLLM)
	llm.On("Complete", mock.Anything, mock.Anything).Return(domain.UnknownCompletion{}, nil)

	_, err := NewAnswerGenerator(llm, nil, 0).GenerateE(context.Background(), "", "q")

	assert.ErrorIs(t, err, domain.ErrEmptyCompletion)
}

func TestAnswerGenerator_WebResultsEnrichPrompt(t *testing.T) {
	web := new(MockWebSearcher)
	web.On("Search", mock.Anything, "q").Return([]domain.WebResult{{URL: "https://docs.oracle.com", Content: "JLS"}}, nil)
	llm := new(MockLLM)
	llm.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "• [https://docs.oracle.com] JLS...")
	})).Return(domain.TextCompletion{Text: "ok"}, nil)

	answer, err := NewAnswerGenerator(llm, nil, 0).WithWebSearch(web).GenerateE(context.Background(), "", "q")

	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	web.AssertExpectations(t)
}

func TestAnswerGenerator_WebFailureIsIgnored(t *testing.T) {
	web := new(MockWebSearcher)
	web.On("Search", mock.Anything, "q").Return(nil, errors.New("quota"))
	llm := new(MockLLM)
	llm.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return !strings.Contains(p, "网络搜索结果")
	})).Return(domain.TextCompletion{Text: "ok"}, nil)

	answer, err := NewAnswerGenerator(llm, nil, 0).WithWebSearch(web).GenerateE(context.Background(), "", "q")

	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
}

func TestAnswerGenerator_RateLimitStartsBackoff(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{})
	llm := new(MockLLM)
	llm.On("Complete", mock.Anything, mock.Anything).
		Return(nil, domain.Wrap(domain.ErrLLMRequestFailed, &ratelimit.TooManyRequestsError{}))

	_, err := NewAnswerGenerator(llm, limiter, 0).GenerateE(context.Background(), "", "q")

	assert.ErrorIs(t, err, domain.ErrLLMRequestFailed)
	assert.False(t, limiter.Allow())
}
