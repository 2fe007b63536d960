package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/adveritas/internal/media"
	"github.com/ppiankov/adveritas/internal/model"
	"github.com/ppiankov/adveritas/internal/worker"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	if err := configure(v); err != nil {
		t.Fatalf("configure: %v", err)
	}
	return v
}

func TestDecodeConfig_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := decodeConfig(newTestViper(t))
	if err != nil {
		t.Fatalf("decodeConfig: %v", err)
	}
	want := model.DefaultConfig()

	if cfg.Queue != want.Queue {
		t.Errorf("queue = %+v, want %+v", cfg.Queue, want.Queue)
	}
	if cfg.Classifier.Threshold != want.Classifier.Threshold {
		t.Errorf("threshold = %v, want %v", cfg.Classifier.Threshold, want.Classifier.Threshold)
	}
	if cfg.Telemetry.SampleRatio != want.Telemetry.SampleRatio {
		t.Errorf("sample ratio = %v, want %v", cfg.Telemetry.SampleRatio, want.Telemetry.SampleRatio)
	}
	if cfg.HTTP.MaxBodyBytes != want.HTTP.MaxBodyBytes {
		t.Errorf("max body = %d, want %d", cfg.HTTP.MaxBodyBytes, want.HTTP.MaxBodyBytes)
	}
	if cfg.LLM.APIKey != "" {
		t.Errorf("llm api key = %q, want empty", cfg.LLM.APIKey)
	}
}

func TestDecodeConfig_Environment(t *testing.T) {
	t.Setenv("ADVERITAS_QUEUE_BACKEND", "redis")
	t.Setenv("ADVERITAS_WORKERS_COUNT", "9")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NEWSAPI_KEY", "news-key")

	cfg, err := decodeConfig(newTestViper(t))
	if err != nil {
		t.Fatalf("decodeConfig: %v", err)
	}
	if cfg.Queue.Backend != "redis" {
		t.Errorf("backend = %q, want redis", cfg.Queue.Backend)
	}
	if cfg.Workers.Count != 9 {
		t.Errorf("workers = %d, want 9", cfg.Workers.Count)
	}
	if cfg.Queue.RedisURL != "redis://cache:6379/1" {
		t.Errorf("redis url = %q", cfg.Queue.RedisURL)
	}
	if cfg.Transcription.APIKey != "sk-test" {
		t.Errorf("transcription key = %q", cfg.Transcription.APIKey)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("llm key = %q, want fallback to OPENAI_API_KEY", cfg.LLM.APIKey)
	}
	if cfg.Evidence.NewsAPIKey != "news-key" {
		t.Errorf("newsapi key = %q", cfg.Evidence.NewsAPIKey)
	}
}

func TestDecodeConfig_PrefixedVariableWinsOverAlias(t *testing.T) {
	t.Setenv("ADVERITAS_QUEUE_REDIS_URL", "redis://primary:6379/0")
	t.Setenv("REDIS_URL", "redis://alias:6379/0")

	cfg, err := decodeConfig(newTestViper(t))
	if err != nil {
		t.Fatalf("decodeConfig: %v", err)
	}
	if cfg.Queue.RedisURL != "redis://primary:6379/0" {
		t.Errorf("redis url = %q, want the ADVERITAS_ value", cfg.Queue.RedisURL)
	}
}

func TestDecodeConfig_FileMergesWithDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")

	v := newTestViper(t)
	v.SetConfigType("yaml")
	file := `
queue:
  buffer: 3
llm:
  provider: anthropic
pipeline:
  auto_chain: true
`
	if err := v.ReadConfig(strings.NewReader(file)); err != nil {
		t.Fatalf("read config: %v", err)
	}

	cfg, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("decodeConfig: %v", err)
	}
	if cfg.Queue.Buffer != 3 {
		t.Errorf("buffer = %d, want 3", cfg.Queue.Buffer)
	}
	if cfg.Queue.Stream != model.DefaultConfig().Queue.Stream {
		t.Errorf("stream = %q, want default kept", cfg.Queue.Stream)
	}
	if !cfg.Pipeline.AutoChain {
		t.Error("auto_chain should be enabled by the file")
	}
	if cfg.LLM.APIKey != "ak-test" {
		t.Errorf("llm key = %q, want fallback to ANTHROPIC_API_KEY", cfg.LLM.APIKey)
	}
}

func TestJobTimeout(t *testing.T) {
	cfg := model.DefaultConfig()
	if got := jobTimeout(cfg); got != 900*time.Second {
		t.Errorf("jobTimeout = %v, want the stage timeout", got)
	}
	if idle := worker.ReclaimIdleFor(jobTimeout(cfg)); idle <= seconds(cfg.Transcription.Timeout) {
		t.Errorf("reclaim idle %v must exceed the transcription timeout", idle)
	}

	cfg.Pipeline.StageTimeout = 0
	want := media.DefaultDownloadTimeout + seconds(cfg.Transcription.Timeout)
	if got := jobTimeout(cfg); got != want {
		t.Errorf("jobTimeout without stage bound = %v, want %v", got, want)
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Errorf("parseID(42) = %d, %v", id, err)
	}
	for _, raw := range []string{"", "0", "-1", "abc"} {
		if _, err := parseID(raw); err == nil {
			t.Errorf("parseID(%q) should fail", raw)
		}
	}
}
