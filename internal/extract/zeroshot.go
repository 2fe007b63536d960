package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/adveritas/internal/worker"
)

// ZeroShotClient calls a hosted zero-shot classification model through the
// Hugging Face inference API
type ZeroShotClient struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

type zeroShotResponse struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// NewZeroShotClient creates a classifier client
func NewZeroShotClient(baseURL, model, apiKey string, httpClient *http.Client) *ZeroShotClient {
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co"
	}
	if model == "" {
		model = "facebook/bart-large-mnli"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &ZeroShotClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Classify returns a probability per label. Labels the model did not score
// are absent from the map.
func (c *ZeroShotClient) Classify(ctx context.Context, text string, labels []string) (map[string]float64, error) {
	body, err := json.Marshal(zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	status, respBody, err := worker.DoWithRetry(ctx, 3, time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return 0, nil, worker.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("execute request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		data, err := io.ReadAll(resp.Body)
		return resp.StatusCode, data, err
	})
	if err != nil {
		return nil, fmt.Errorf("zero-shot classify: %w", err)
	}
	if err := worker.CheckStatus(status, respBody); err != nil {
		return nil, fmt.Errorf("zero-shot classify: %w", err)
	}
	return parseZeroShot(respBody)
}

// parseZeroShot accepts both the {labels, scores} object and the
// [{label, score}] list shapes the inference API has served
func parseZeroShot(data []byte) (map[string]float64, error) {
	out := make(map[string]float64)

	var obj zeroShotResponse
	if err := json.Unmarshal(data, &obj); err == nil && len(obj.Labels) > 0 {
		if len(obj.Labels) != len(obj.Scores) {
			return nil, fmt.Errorf("malformed response: %d labels, %d scores", len(obj.Labels), len(obj.Scores))
		}
		for i, l := range obj.Labels {
			out[l] = obj.Scores[i]
		}
		return out, nil
	}

	var list []labelScore
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	for _, ls := range list {
		out[ls.Label] = ls.Score
	}
	return out, nil
}
