package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReader_ReportsProgress(t *testing.T) {
	data := []byte("hello world this is test data")
	reader := bytes.NewReader(data)

	var progressCalls []struct{ current, total int64 }
	pr := &progressReader{
		reader: reader,
		total:  int64(len(data)),
		onProgress: func(current, total int64) {
			progressCalls = append(progressCalls, struct{ current, total int64 }{current, total})
		},
	}

	result, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, result)

	// Progress should have been called at least once
	assert.NotEmpty(t, progressCalls)

	// Final progress should equal total
	lastCall := progressCalls[len(progressCalls)-1]
	assert.Equal(t, int64(len(data)), lastCall.current)
	assert.Equal(t, int64(len(data)), lastCall.total)
}

func TestProgressReader_NilCallback(t *testing.T) {
	data := []byte("hello world")
	reader := bytes.NewReader(data)

	pr := &progressReader{
		reader:     reader,
		total:      int64(len(data)),
		onProgress: nil, // No callback
	}

	result, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, result)
}

func TestProgressReader_SmallReads(t *testing.T) {
	data := []byte("hello world")
	reader := bytes.NewReader(data)

	var progressValues []int64
	pr := &progressReader{
		reader: reader,
		total:  int64(len(data)),
		onProgress: func(current, total int64) {
			progressValues = append(progressValues, current)
		},
	}

	// Read one byte at a time
	buf := make([]byte, 1)
	for {
		n, err := pr.Read(buf)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	// Progress should increase monotonically
	for i := 1; i < len(progressValues); i++ {
		assert.GreaterOrEqual(t, progressValues[i], progressValues[i-1])
	}
}

func TestAPIClient_Ask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ask/", r.URL.Path)
		assert.Equal(t, "what is GC?", r.URL.Query().Get("question"))
		assert.Equal(t, "jvm", r.URL.Query().Get("kb"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"## 核心知识点","confidence":1,"matched_kbs":["jvm"],"context_length":2}`))
	}))
	defer srv.Close()

	c := NewAPIClientWithConfig("", srv.URL+"/")
	result, err := c.Ask(context.Background(), "what is GC?", "jvm")

	require.NoError(t, err)
	assert.Equal(t, "## 核心知识点", result.Answer)
	assert.Equal(t, []string{"jvm"}, result.MatchedKBs)
	assert.Equal(t, 2, result.ContextLength)
}

func TestAPIClient_ErrorMessageFromEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"status":"error","message":"global knowledge base cannot be deleted"}`))
	}))
	defer srv.Close()

	c := NewAPIClientWithConfig("tok", srv.URL)
	_, err := c.DeleteKnowledgeBase(context.Background(), "global")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "global knowledge base cannot be deleted", apiErr.Message)
}

func TestAPIClient_ErrorWithPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig("", srv.URL).ListKnowledgeBases(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestAPIClient_ListAndStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/knowledge_bases/":
			_, _ = w.Write([]byte(`{"status":"success","data":["global","java"]}`))
		case "/knowledge_bases/stats":
			assert.Equal(t, "java", r.URL.Query().Get("kb_name"))
			_, _ = w.Write([]byte(`{"status":"success","data":[{"name":"java","document_count":4,"source_count":1,"sources":["jvm.pdf"]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewAPIClientWithConfig("", srv.URL)

	names, err := c.ListKnowledgeBases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"global", "java"}, names)

	stats, err := c.Stats(context.Background(), "java")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 4, stats[0].DocumentCount)
	assert.Equal(t, []string{"jvm.pdf"}, stats[0].Sources)
}

func TestAPIClient_CreateSendsTokenAndName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "Java", body["name"])
		_, _ = w.Write([]byte(`{"status":"warning","message":"知识库 java 已存在"}`))
	}))
	defer srv.Close()

	resp, err := NewAPIClientWithConfig("tok", srv.URL).CreateKnowledgeBase(context.Background(), "Java")

	require.NoError(t, err)
	assert.True(t, resp.IsWarning())
	assert.Equal(t, "知识库 java 已存在", resp.Message)
}

func TestAPIClient_UploadPDF(t *testing.T) {
	content := []byte("%PDF-1.4 test document")
	path := filepath.Join(t.TempDir(), "jvm.pdf")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	var (
		gotKB   string
		gotName string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload_pdf/", r.URL.Path)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotKB = r.FormValue("knowledge_base_name")
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotName = header.Filename
		gotBody, _ = io.ReadAll(file)
		_, _ = w.Write([]byte(`{"status":"success","message":"PDF已添加到jvm知识库（3个片段）"}`))
	}))
	defer srv.Close()

	var last int64
	resp, err := NewAPIClientWithConfig("tok", srv.URL).UploadPDF(context.Background(), path, "jvm", func(current, total int64) {
		last = current
	})

	require.NoError(t, err)
	assert.Equal(t, "PDF已添加到jvm知识库（3个片段）", resp.Message)
	assert.Equal(t, "jvm", gotKB)
	assert.Equal(t, "jvm.pdf", gotName)
	assert.Equal(t, content, gotBody)
	assert.Equal(t, int64(len(content)), last)
}

func TestAPIClient_UploadMissingFile(t *testing.T) {
	_, err := NewAPIClientWithConfig("", "http://127.0.0.1:1").UploadPDF(context.Background(), filepath.Join(t.TempDir(), "none.pdf"), "", nil)

	assert.ErrorContains(t, err, "failed to open file")
}
