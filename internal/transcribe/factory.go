package transcribe

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/adveritas/internal/model"
	"github.com/ppiankov/adveritas/internal/util"
)

// NewEngine builds the configured engine. An empty provider returns nil, nil.
func NewEngine(ctx context.Context, cfg model.TranscriptionConfig, httpCfg model.HTTPConfig) (Engine, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second

	switch cfg.Provider {
	case "":
		return nil, nil
	case "whisper", "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		client := util.NewHTTPClient(timeout, httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy)
		return NewWhisperEngine(apiKey, cfg.BaseURL, cfg.Model, cfg.NoSpeechThreshold, timeout, client)
	case "gcp", "google":
		return NewGCPEngine(ctx, cfg.LanguageCode, cfg.NoSpeechThreshold, timeout)
	default:
		return nil, fmt.Errorf("unknown transcription provider: %s (supported: whisper, gcp)", cfg.Provider)
	}
}
