package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/adveritas/internal/worker"
)

// NewsAPI searches news articles through newsapi.org
type NewsAPI struct {
	baseURL    string
	apiKey     string
	topK       int
	snippetMax int
	userAgent  string
	httpClient *http.Client
	limiter    *worker.Limiter
}

type newsResponse struct {
	Status   string        `json:"status"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Articles []newsArticle `json:"articles"`
}

type newsArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// NewNewsAPI creates the source. It returns nil when no key is configured;
// callers must check before registering it.
func NewNewsAPI(baseURL, apiKey string, topK, snippetMax int, userAgent string, httpClient *http.Client, limiter *worker.Limiter) *NewsAPI {
	if apiKey == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = "https://newsapi.org"
	}
	if topK <= 0 {
		topK = 2
	}
	if snippetMax <= 0 {
		snippetMax = DefaultSnippetMax
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &NewsAPI{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		topK:       topK,
		snippetMax: snippetMax,
		userAgent:  userAgent,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

func (n *NewsAPI) Name() string { return "newsapi" }

func (n *NewsAPI) Search(ctx context.Context, query string) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("pageSize", strconv.Itoa(n.topK))
	params.Set("language", "en")
	params.Set("sortBy", "relevancy")
	apiURL := n.baseURL + "/v2/everything?" + params.Encode()

	if err := n.limiter.Wait(ctx, apiURL); err != nil {
		return nil, err
	}

	status, body, err := worker.DoWithRetry(ctx, 3, time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return 0, nil, worker.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("X-Api-Key", n.apiKey)
		if n.userAgent != "" {
			req.Header.Set("User-Agent", n.userAgent)
		}
		resp, err := n.httpClient.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("execute request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		data, err := io.ReadAll(resp.Body)
		return resp.StatusCode, data, err
	})
	if err != nil {
		return nil, err
	}
	if err := worker.CheckStatus(status, body); err != nil {
		return nil, err
	}

	var parsed newsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Status == "error" {
		return nil, worker.Permanent(fmt.Errorf("newsapi error: %s: %s", parsed.Code, parsed.Message))
	}

	var out []Candidate
	for _, a := range parsed.Articles {
		snippet := a.Description
		if strings.TrimSpace(snippet) == "" {
			snippet = a.Content
		}
		out = append(out, Candidate{
			Source:  n.Name(),
			Title:   a.Title,
			URL:     a.URL,
			Snippet: Truncate(StripHTML(snippet), n.snippetMax),
		})
		if len(out) == n.topK {
			break
		}
	}
	return out, nil
}
