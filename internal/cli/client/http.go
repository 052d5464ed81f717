package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envAPIToken = "INTERVIEWQA_API_TOKEN"
	envAPIURL   = "INTERVIEWQA_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

// Answers wait on the LLM, which the server allows a minute per call.
const requestTimeout = 2 * time.Minute

type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPIClientWithCmd resolves the URL and token from the --api-url and
// --token flags, then the environment, then config.json. A nil cmd skips flags.
func NewAPIClientWithCmd(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()

	var flagURL, flagToken string
	if cmd != nil {
		flagURL, _ = cmd.Flags().GetString("api-url")
		flagToken, _ = cmd.Flags().GetString("token")
	}

	s, err := ResolveSettings(flagURL, flagToken)
	if err != nil {
		return nil, err
	}
	return NewAPIClientWithConfig(s.APIToken, s.APIURL), nil
}

func NewAPIClientWithConfig(token, baseURL string) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// StatusResponse is the {status, message, data} envelope of the server.
type StatusResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// IsWarning reports whether the server accepted the request but changed nothing.
func (r *StatusResponse) IsWarning() bool {
	return r.Status == "warning"
}

// AskResult is the /ask response.
type AskResult struct {
	Answer        string   `json:"answer"`
	Confidence    float64  `json:"confidence"`
	MatchedKBs    []string `json:"matched_kbs"`
	ContextLength int      `json:"context_length"`
}

// ArchivedFile is one entry of /knowledge_bases/files.
type ArchivedFile struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	URL  string `json:"url"`
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Ask sends question to /ask. A non-empty kb skips routing.
func (c *APIClient) Ask(ctx context.Context, question, kb string) (*AskResult, error) {
	q := url.Values{"question": {question}}
	if kb != "" {
		q.Set("kb", kb)
	}

	var result AskResult
	if err := c.doJSON(ctx, http.MethodGet, "/ask/?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) ListKnowledgeBases(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.getData(ctx, "/knowledge_bases/", &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Stats describes kb, or every knowledge base when kb is empty.
func (c *APIClient) Stats(ctx context.Context, kb string) ([]domain.KnowledgeBaseStats, error) {
	path := "/knowledge_bases/stats"
	if kb != "" {
		path += "?" + url.Values{"kb_name": {kb}}.Encode()
	}

	var stats []domain.KnowledgeBaseStats
	if err := c.getData(ctx, path, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *APIClient) Files(ctx context.Context, kb string) ([]ArchivedFile, error) {
	var files []ArchivedFile
	path := "/knowledge_bases/files?" + url.Values{"kb_name": {kb}}.Encode()
	if err := c.getData(ctx, path, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *APIClient) CreateKnowledgeBase(ctx context.Context, name string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.doJSON(ctx, http.MethodPost, "/create_kb", map[string]string{"name": name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) DeleteKnowledgeBase(ctx context.Context, name string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/delete_kb/"+url.PathEscape(name), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) getData(ctx context.Context, path string, out interface{}) error {
	var resp StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return err
	}
	if len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// UploadPDF streams filePath to /upload_pdf/ as multipart form data.
func (c *APIClient) UploadPDF(ctx context.Context, filePath, kb string, onProgress ProgressFunc) (*StatusResponse, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUploadForm(mw, file, filepath.Base(filePath), kb, stat.Size(), onProgress)
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload_pdf/", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp StatusResponse
	if err := c.send(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func writeUploadForm(mw *multipart.Writer, file io.Reader, name, kb string, size int64, onProgress ProgressFunc) error {
	if kb != "" {
		if err := mw.WriteField("knowledge_base_name", kb); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, &progressReader{reader: file, total: size, onProgress: onProgress}); err != nil {
		return err
	}
	return mw.Close()
}

func (c *APIClient) send(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp StatusResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Message == "" {
			return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Message}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// ProgressFunc is a callback for reporting upload progress.
type ProgressFunc func(current, total int64)

// progressReader wraps an io.Reader and reports progress.
type progressReader struct {
	reader     io.Reader
	total      int64
	current    int64
	onProgress ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)
	if pr.onProgress != nil {
		pr.onProgress(pr.current, pr.total)
	}
	return n, err
}
