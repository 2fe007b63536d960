package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/adveritas/internal/worker"
)

// Wikipedia searches the MediaWiki API and returns the lead extract of the
// best matching pages
type Wikipedia struct {
	baseURL    string
	topK       int
	snippetMax int
	userAgent  string
	httpClient *http.Client
	limiter    *worker.Limiter
}

type wikiResponse struct {
	Query struct {
		Pages []wikiPage `json:"pages"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error,omitempty"`
}

type wikiPage struct {
	PageID  int    `json:"pageid"`
	Title   string `json:"title"`
	Index   int    `json:"index"`
	Extract string `json:"extract"`
	FullURL string `json:"fullurl"`
	Missing bool   `json:"missing"`
}

// NewWikipedia creates the source. baseURL is the wiki root, e.g.
// https://en.wikipedia.org
func NewWikipedia(baseURL string, topK, snippetMax int, userAgent string, httpClient *http.Client, limiter *worker.Limiter) *Wikipedia {
	if baseURL == "" {
		baseURL = "https://en.wikipedia.org"
	}
	if topK <= 0 {
		topK = 3
	}
	if snippetMax <= 0 {
		snippetMax = DefaultSnippetMax
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Wikipedia{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		topK:       topK,
		snippetMax: snippetMax,
		userAgent:  userAgent,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

func (w *Wikipedia) Name() string { return "wikipedia" }

func (w *Wikipedia) Search(ctx context.Context, query string) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrlimit", strconv.Itoa(w.topK))
	params.Set("prop", "extracts|info")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("exlimit", strconv.Itoa(w.topK))
	params.Set("inprop", "url")
	params.Set("redirects", "1")
	apiURL := w.baseURL + "/w/api.php?" + params.Encode()

	if err := w.limiter.Wait(ctx, apiURL); err != nil {
		return nil, err
	}

	status, body, err := worker.DoWithRetry(ctx, 3, time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return 0, nil, worker.Permanent(fmt.Errorf("create request: %w", err))
		}
		if w.userAgent != "" {
			req.Header.Set("User-Agent", w.userAgent)
		}
		resp, err := w.httpClient.Do(req)
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

	var parsed wikiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, worker.Permanent(fmt.Errorf("wikipedia API error: %s: %s", parsed.Error.Code, parsed.Error.Info))
	}

	pages := parsed.Query.Pages
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	var out []Candidate
	for _, p := range pages {
		if p.Missing {
			continue
		}
		out = append(out, Candidate{
			Source:  w.Name(),
			Title:   p.Title,
			URL:     p.FullURL,
			Snippet: Truncate(StripHTML(p.Extract), w.snippetMax),
		})
		if len(out) == w.topK {
			break
		}
	}
	return out, nil
}
