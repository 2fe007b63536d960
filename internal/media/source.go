package media

import (
	"context"

	"github.com/ppiankov/adveritas/internal/logger"
)

// Source gathers metadata and audio for URL ingests
type Source struct {
	downloader *Downloader
	page       *PageFetcher
	log        *logger.Logger
}

// NewSource combines the downloader with an optional page fallback
func NewSource(downloader *Downloader, page *PageFetcher, log *logger.Logger) *Source {
	return &Source{downloader: downloader, page: page, log: logger.OrNop(log)}
}

// Metadata asks yt-dlp first and falls back to the page's Open Graph tags.
// Failures are logged and yield empty metadata.
func (s *Source) Metadata(ctx context.Context, sourceURL string) Metadata {
	m, err := s.downloader.Metadata(ctx, sourceURL)
	if err == nil && !m.Empty() {
		return m
	}
	if err != nil {
		s.log.Warn("yt-dlp metadata failed", "url", sourceURL, "error", err)
	}
	if s.page == nil {
		return m
	}

	pm, err := s.page.Metadata(ctx, sourceURL)
	if err != nil {
		s.log.Warn("page metadata failed", "url", sourceURL, "error", err)
		return m
	}
	return pm
}

// FetchAudio downloads and normalizes the audio track
func (s *Source) FetchAudio(ctx context.Context, sourceURL string) ([]byte, error) {
	return s.downloader.FetchAudio(ctx, sourceURL)
}
