package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestKnowledgeBaseHandler_List(t *testing.T) {
	svc := new(MockKnowledgeBaseService)
	svc.On("List", mock.Anything).Return([]string{"global", "java"}, nil)

	w := httptest.NewRecorder()
	NewKnowledgeBaseHandler(svc, nil).List(w, httptest.NewRequest(http.MethodGet, "/knowledge_bases", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","data":["global","java"]}`, w.Body.String())
}

func TestKnowledgeBaseHandler_ListError(t *testing.T) {
	svc := new(MockKnowledgeBaseService)
	svc.On("List", mock.Anything).Return(nil, domain.Wrap(domain.ErrStorageFailed, errors.New("closed")))

	w := httptest.NewRecorder()
	NewKnowledgeBaseHandler(svc, nil).List(w, httptest.NewRequest(http.MethodGet, "/knowledge_bases", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestKnowledgeBaseHandler_Stats(t *testing.T) {
	svc := new(MockKnowledgeBaseService)
	svc.On("Stats", mock.Anything, "java").Return([]domain.KnowledgeBaseStats{
		{Name: "java", DocumentCount: 3, SourceCount: 1, Sources: []string{"jvm.pdf"}},
	}, nil)
	svc.On("Stats", mock.Anything, "nope").Return(nil, domain.ErrKnowledgeBaseNotFound)
	h := NewKnowledgeBaseHandler(svc, nil)

	w := httptest.NewRecorder()
	h.Stats(w, httptest.NewRequest(http.MethodGet, "/knowledge_bases/stats?kb_name=java", nil))
	assert.JSONEq(t, `{"status":"success","data":[{"name":"java","document_count":3,"source_count":1,"sources":["jvm.pdf"]}]}`, w.Body.String())

	w = httptest.NewRecorder()
	h.Stats(w, httptest.NewRequest(http.MethodGet, "/knowledge_bases/stats?kb_name=nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKnowledgeBaseHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcName    string
		svcErr     error
		wantCode   int
		wantStatus string
	}{
		{"created", `{"name":"Java"}`, "java", nil, http.StatusOK, `"status":"success"`},
		{"already exists is a warning", `{"name":"java"}`, "java", domain.ErrKnowledgeBaseAlreadyExists, http.StatusOK, `"status":"warning"`},
		{"empty name", `{"name":"  "}`, "", domain.ErrInvalidKnowledgeBaseName, http.StatusBadRequest, `"status":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockKnowledgeBaseService)
			svc.On("Create", mock.Anything, mock.Anything).Return(tt.svcName, tt.svcErr)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/create_kb", bytes.NewBufferString(tt.body))
			NewKnowledgeBaseHandler(svc, nil).Create(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantStatus)
		})
	}
}

func TestKnowledgeBaseHandler_CreateInvalidBody(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/create_kb", bytes.NewBufferString("not json"))

	NewKnowledgeBaseHandler(new(MockKnowledgeBaseService), nil).Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKnowledgeBaseHandler_Delete(t *testing.T) {
	tests := []struct {
		name       string
		kb         string
		n          int
		svcErr     error
		wantCode   int
		wantStatus string
	}{
		{"deleted", "java", 12, nil, http.StatusOK, `"status":"success"`},
		{"nothing matched is a warning", "ghost", 0, domain.ErrKnowledgeBaseNotFound, http.StatusOK, `"status":"warning"`},
		{"protected", "GLOBAL", 0, domain.ErrProtectedKnowledgeBase, http.StatusForbidden, `"status":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockKnowledgeBaseService)
			svc.On("Delete", mock.Anything, tt.kb).Return(tt.n, tt.svcErr)

			w := httptest.NewRecorder()
			req := withURLParam(httptest.NewRequest(http.MethodDelete, "/delete_kb/"+tt.kb, nil), "kb_name", tt.kb)
			NewKnowledgeBaseHandler(svc, nil).Delete(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantStatus)
			svc.AssertExpectations(t)
		})
	}
}

func TestKnowledgeBaseHandler_Files(t *testing.T) {
	archive := new(MockArchiveBrowser)
	archive.On("ListKeys", mock.Anything, "java/").Return([]string{"java/jvm.pdf"}, nil)
	archive.On("GenerateDownloadURL", mock.Anything, "java/jvm.pdf").Return("https://s3.local/java/jvm.pdf?sig", nil)

	w := httptest.NewRecorder()
	NewKnowledgeBaseHandler(nil, archive).Files(w, httptest.NewRequest(http.MethodGet, "/knowledge_bases/files?kb_name=Java", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","data":[{"name":"jvm.pdf","key":"java/jvm.pdf","url":"https://s3.local/java/jvm.pdf?sig"}]}`, w.Body.String())
}

func TestKnowledgeBaseHandler_FilesWithoutArchive(t *testing.T) {
	w := httptest.NewRecorder()

	NewKnowledgeBaseHandler(nil, nil).Files(w, httptest.NewRequest(http.MethodGet, "/knowledge_bases/files?kb_name=java", nil))

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
