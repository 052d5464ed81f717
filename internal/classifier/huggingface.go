package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultZeroShotURL is the hosted bart-large-mnli zero-shot endpoint.
const DefaultZeroShotURL = "https://api-inference.huggingface.co/models/facebook/bart-large-mnli"

type HuggingFaceConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// HuggingFace calls a zero-shot-classification inference endpoint.
type HuggingFace struct {
	url    string
	token  string
	client *http.Client
}

func NewHuggingFace(cfg HuggingFaceConfig) *HuggingFace {
	url := cfg.URL
	if url == "" {
		url = DefaultZeroShotURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HuggingFace{
		url:    url,
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout},
	}
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

// Classify asks the endpoint to score text against labels with multi_label
// enabled, so scores do not compete with each other.
func (h *HuggingFace) Classify(ctx context.Context, text string, labels []string) (map[string]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}

	body, err := json.Marshal(zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels, MultiLabel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zero-shot request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read zero-shot response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("zero-shot endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return parseZeroShot(raw, labels)
}

// parseZeroShot accepts the pipeline shape {"labels":[...],"scores":[...]}
// and the list shape [{"label":...,"score":...}]. Labels the endpoint did not
// score are reported as 0.
func parseZeroShot(raw []byte, labels []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(labels))
	for _, l := range labels {
		scores[l] = 0
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []struct {
			Label string  `json:"label"`
			Score float64 `json:"score"`
		}
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to decode zero-shot response: %w", err)
		}
		for _, item := range list {
			if _, ok := scores[item.Label]; ok {
				scores[item.Label] = clamp(item.Score)
			}
		}
		return scores, nil
	}

	var out struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
		Error  string    `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("failed to decode zero-shot response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("zero-shot endpoint error: %s", out.Error)
	}
	if len(out.Labels) != len(out.Scores) {
		return nil, fmt.Errorf("zero-shot response has %d labels and %d scores", len(out.Labels), len(out.Scores))
	}
	for i, label := range out.Labels {
		if _, ok := scores[label]; ok {
			scores[label] = clamp(out.Scores[i])
		}
	}
	return scores, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
