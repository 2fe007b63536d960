package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/adveritas/internal/util"
	"github.com/ppiankov/adveritas/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids fetching the page
var ErrDisallowed = errors.New("disallowed by robots.txt")

// PageFetcher reads Open Graph metadata from a video's HTML page
type PageFetcher struct {
	httpClient *http.Client
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
	userAgent  string
	maxBytes   int64
}

// NewPageFetcher creates a fetcher. robots and limiter may be nil.
func NewPageFetcher(client *http.Client, userAgent string, maxBytes int64, robots *util.RobotsChecker, limiter *worker.Limiter) *PageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	return &PageFetcher{
		httpClient: &c,
		robots:     robots,
		limiter:    limiter,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
	}
}

// Metadata fetches rawURL and reads og:title, og:image and the <title>
func (f *PageFetcher) Metadata(ctx context.Context, rawURL string) (Metadata, error) {
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return Metadata{}, err
		}
		if !allowed {
			return Metadata{}, fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
		}
		if delay > 0 && f.limiter != nil {
			if u, err := url.Parse(rawURL); err == nil {
				f.limiter.SetHostRate(u.Host, 1/delay.Seconds(), 1)
			}
		}
	}
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return Metadata{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Metadata{}, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return Metadata{}, fmt.Errorf("parse html: %w", err)
	}
	return metadataFromDocument(doc, resp.Request.URL), nil
}

func metadataFromDocument(doc *goquery.Document, base *url.URL) Metadata {
	meta := func(selectors ...string) string {
		for _, sel := range selectors {
			if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	m := Metadata{
		Title:        meta(`meta[property="og:title"]`, `meta[name="twitter:title"]`),
		ThumbnailURL: meta(`meta[property="og:image"]`, `meta[name="twitter:image"]`),
	}
	if m.Title == "" {
		m.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if m.ThumbnailURL != "" && base != nil {
		if ref, err := url.Parse(m.ThumbnailURL); err == nil {
			m.ThumbnailURL = base.ResolveReference(ref).String()
		}
	}
	return m
}
