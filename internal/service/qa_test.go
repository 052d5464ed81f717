package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type qaFixture struct {
	qa         *QAService
	ingest     *IngestService
	classifier *MockClassifier
	llm        *MockLLM
}

func newQAFixture(t *testing.T, text string) *qaFixture {
	t.Helper()
	store, _ := newTestStore(t)
	ingest, _ := newTestIngest(store, text)
	classifier := new(MockClassifier)
	llm := new(MockLLM)
	qa := NewQAService(
		newTestRegistry(store),
		NewIntentRouter(classifier, 0.5, 0),
		store,
		NewAnswerGenerator(llm, nil, 0),
		0,
	)
	return &qaFixture{qa: qa, ingest: ingest, classifier: classifier, llm: llm}
}

func TestQAService_EmptyQuestion(t *testing.T) {
	f := newQAFixture(t, "")

	_, err := f.qa.Ask(context.Background(), "   ")

	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
}

func TestQAService_AnswersFromMatchedKnowledgeBase(t *testing.T) {
	ctx := context.Background()
	f := newQAFixture(t, threePageText())
	_, err := f.ingest.Ingest(ctx, "jvm.pdf", "java")
	require.NoError(t, err)

	f.classifier.On("Classify", mock.Anything, "How does the JVM heap work?", []string{"global", "java"}).
		Return(map[string]float64{"global": 0.2, "java": 0.9}, nil)
	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "• [jvm.pdf] ")
	})).Return(domain.TextCompletion{Text: "## 核心知识点\nheap"}, nil)

	res, err := f.qa.Ask(ctx, "How does the JVM heap work?")

	require.NoError(t, err)
	assert.Equal(t, "## 核心知识点\nheap", res.Answer)
	assert.Equal(t, []string{"java"}, res.MatchedKBs)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, DefaultTopK, res.ContextLength)
}

func TestQAService_FallsBackToGlobalWhenClassifierFails(t *testing.T) {
	ctx := context.Background()
	f := newQAFixture(t, sampleText(400))
	_, err := f.ingest.Ingest(ctx, "jvm.pdf", "java")
	require.NoError(t, err)

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("down"))
	f.llm.On("Complete", mock.Anything, mock.Anything).Return(domain.TextCompletion{Text: "answer"}, nil)

	res, err := f.qa.Ask(ctx, "What is a monitor?")

	require.NoError(t, err)
	assert.Equal(t, []string{"global"}, res.MatchedKBs)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, 1, res.ContextLength)
	assert.Equal(t, "answer", res.Answer)
}

func TestQAService_MirroredChunksCountOnce(t *testing.T) {
	ctx := context.Background()
	f := newQAFixture(t, sampleText(400))
	_, err := f.ingest.Ingest(ctx, "jvm.pdf", "java")
	require.NoError(t, err)

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]float64{"global": 0.7, "java": 0.8}, nil)
	f.llm.On("Complete", mock.Anything, mock.Anything).Return(domain.TextCompletion{Text: "answer"}, nil)

	res, err := f.qa.Ask(ctx, "heap generations")

	require.NoError(t, err)
	assert.Equal(t, []string{"java", "global"}, res.MatchedKBs)
	assert.Equal(t, 1, res.ContextLength)
}

func TestQAService_SameTextFromTwoPDFsIsKept(t *testing.T) {
	ctx := context.Background()
	f := newQAFixture(t, sampleText(400))
	_, err := f.ingest.Ingest(ctx, "jvm.pdf", "java")
	require.NoError(t, err)
	_, err = f.ingest.Ingest(ctx, "jvm-copy.pdf", "java")
	require.NoError(t, err)

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]float64{"global": 0.7, "java": 0.8}, nil)
	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "[jvm.pdf]") && strings.Contains(p, "[jvm-copy.pdf]")
	})).Return(domain.TextCompletion{Text: "answer"}, nil)

	res, err := f.qa.Ask(ctx, "heap generations")

	require.NoError(t, err)
	assert.Equal(t, []string{"java", "global"}, res.MatchedKBs)
	assert.Equal(t, 2, res.ContextLength)
	assert.Equal(t, "answer", res.Answer)
}

func TestQAService_EmptyStoreStillAnswers(t *testing.T) {
	f := newQAFixture(t, "")
	f.classifier.On("Classify", mock.Anything, mock.Anything, []string{"global"}).
		Return(map[string]float64{"global": 0.1}, nil)
	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, NoContextNotice)
	})).Return(nil, errors.New("no key"))

	res, err := f.qa.Ask(context.Background(), "What is CAS?")

	require.NoError(t, err)
	assert.Equal(t, 0, res.ContextLength)
	assert.Equal(t, []string{"global"}, res.MatchedKBs)
	assert.InDelta(t, 0.1, res.Confidence, 1e-9)
	assert.True(t, strings.HasPrefix(res.Answer, "生成回答失败："))
}

func TestQAService_AskInSkipsRouter(t *testing.T) {
	ctx := context.Background()
	f := newQAFixture(t, sampleText(400))
	_, err := f.ingest.Ingest(ctx, "jvm.pdf", "java")
	require.NoError(t, err)
	f.llm.On("Complete", mock.Anything, mock.Anything).Return(domain.TextCompletion{Text: "answer"}, nil)

	res, err := f.qa.AskIn(ctx, "heap", " JAVA ")

	require.NoError(t, err)
	assert.Equal(t, []string{"java"}, res.MatchedKBs)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, 1, res.ContextLength)
	f.classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything, mock.Anything)

	_, err = f.qa.AskIn(ctx, "heap", "missing")
	assert.ErrorIs(t, err, domain.ErrKnowledgeBaseNotFound)
}
