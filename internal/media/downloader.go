package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/adveritas/internal/logger"
)

// Metadata is what can be learned about a video without downloading it
type Metadata struct {
	Title        string
	ThumbnailURL string
	Duration     *float64
}

// Empty reports whether nothing was found
func (m Metadata) Empty() bool {
	return m.Title == "" && m.ThumbnailURL == "" && m.Duration == nil
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w; stderr=%s", filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Downloader wraps the yt-dlp and ffmpeg binaries
type Downloader struct {
	ytdlpPath  string
	ffmpegPath string
	timeout    time.Duration
	run        runFunc
	log        *logger.Logger
}

// DefaultDownloadTimeout bounds one yt-dlp and ffmpeg run
const DefaultDownloadTimeout = 15 * time.Minute

// NewDownloader creates a downloader. Empty paths use the binaries on PATH.
func NewDownloader(ytdlpPath, ffmpegPath string, timeout time.Duration, log *logger.Logger) *Downloader {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	return &Downloader{
		ytdlpPath:  ytdlpPath,
		ffmpegPath: ffmpegPath,
		timeout:    timeout,
		run:        runCommand,
		log:        logger.OrNop(log).With("component", "media.downloader"),
	}
}

// AssertReady checks that both binaries are on PATH
func (d *Downloader) AssertReady() error {
	for _, bin := range []string{d.ytdlpPath, d.ffmpegPath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	return nil
}

type ytdlpInfo struct {
	Title     string   `json:"title"`
	Thumbnail string   `json:"thumbnail"`
	Duration  *float64 `json:"duration"`
}

// Metadata runs yt-dlp --dump-json without downloading
func (d *Downloader) Metadata(ctx context.Context, sourceURL string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	out, err := d.run(ctx, d.ytdlpPath, "--dump-json", "--no-download", "--no-playlist", "--", sourceURL)
	if err != nil {
		return Metadata{}, err
	}
	return parseYtdlpInfo(out)
}

func parseYtdlpInfo(out []byte) (Metadata, error) {
	var info ytdlpInfo
	// playlists print one object per line; the first entry is enough
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if err := json.Unmarshal([]byte(line), &info); err != nil {
		return Metadata{}, fmt.Errorf("decode yt-dlp output: %w", err)
	}
	return Metadata{
		Title:        strings.TrimSpace(info.Title),
		ThumbnailURL: info.Thumbnail,
		Duration:     info.Duration,
	}, nil
}

// FetchAudio downloads the best audio stream and converts it to mono
// 16 kHz mp3, returning the encoded bytes
func (d *Downloader) FetchAudio(ctx context.Context, sourceURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "adveritas-ingest-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	outTmpl := filepath.Join(dir, "input.%(ext)s")
	if _, err := d.run(ctx, d.ytdlpPath, "-f", "bestaudio/best", "--no-playlist", "-o", outTmpl, "--", sourceURL); err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(dir, "input.*"))
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("yt-dlp did not produce a file")
	}

	mp3 := filepath.Join(dir, "audio.mp3")
	if _, err := d.run(ctx, d.ffmpegPath, "-y", "-i", matches[0], "-ac", "1", "-ar", "16000", mp3); err != nil {
		return nil, err
	}
	d.log.Debug("audio converted", "url", sourceURL)
	return os.ReadFile(mp3)
}
