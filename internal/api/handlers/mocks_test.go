package handlers

import (
	"context"
	"io"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockQAService struct {
	mock.Mock
}

func (m *MockQAService) Ask(ctx context.Context, question string) (*service.AskResult, error) {
	args := m.Called(ctx, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AskResult), args.Error(1)
}

func (m *MockQAService) AskIn(ctx context.Context, question, kb string) (*service.AskResult, error) {
	args := m.Called(ctx, question, kb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AskResult), args.Error(1)
}

type MockIngestService struct {
	mock.Mock
	body []byte
}

func (m *MockIngestService) IngestReader(ctx context.Context, filename string, r io.Reader, kb string) (int, error) {
	m.body, _ = io.ReadAll(r)
	args := m.Called(ctx, filename, kb)
	return args.Int(0), args.Error(1)
}

type MockKnowledgeBaseService struct {
	mock.Mock
}

func (m *MockKnowledgeBaseService) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockKnowledgeBaseService) Create(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockKnowledgeBaseService) Delete(ctx context.Context, name string) (int, error) {
	args := m.Called(ctx, name)
	return args.Int(0), args.Error(1)
}

func (m *MockKnowledgeBaseService) Stats(ctx context.Context, name string) ([]domain.KnowledgeBaseStats, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.KnowledgeBaseStats), args.Error(1)
}

type MockArchiveBrowser struct {
	mock.Mock
}

func (m *MockArchiveBrowser) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockArchiveBrowser) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}
