package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/adveritas/internal/llm"
)

// DefaultNoSpeechThreshold drops Whisper segments at or above this
// no-speech probability when VAD is on
const DefaultNoSpeechThreshold = 0.6

// WhisperEngine transcribes through an OpenAI-compatible audio endpoint
type WhisperEngine struct {
	client            *openai.Client
	model             string
	noSpeechThreshold float64
	timeout           time.Duration
}

// NewWhisperEngine creates an engine. baseURL may point at any server that
// implements /audio/transcriptions with verbose_json output.
func NewWhisperEngine(apiKey, baseURL, model string, noSpeechThreshold float64, timeout time.Duration, httpClient *http.Client) (*WhisperEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("whisper API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if model == "" {
		model = openai.Whisper1
	}
	if noSpeechThreshold <= 0 || noSpeechThreshold > 1 {
		noSpeechThreshold = DefaultNoSpeechThreshold
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &WhisperEngine{
		client:            openai.NewClientWithConfig(cfg),
		model:             model,
		noSpeechThreshold: noSpeechThreshold,
		timeout:           timeout,
	}, nil
}

func (e *WhisperEngine) Name() string {
	return "whisper/" + e.model
}

func (e *WhisperEngine) Transcribe(ctx context.Context, audio []byte, opts Options) ([]Segment, error) {
	if len(audio) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: "audio.mp3",
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", llm.ClassifyOpenAIError(err))
	}

	if len(resp.Segments) == 0 {
		if resp.Text == "" {
			return nil, nil
		}
		return []Segment{{Start: 0, End: resp.Duration, Text: resp.Text}}, nil
	}

	segs := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		if opts.VAD && s.NoSpeechProb >= e.noSpeechThreshold {
			continue
		}
		segs = append(segs, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return segs, nil
}
