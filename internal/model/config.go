package model

// Config is the complete adveritas configuration
type Config struct {
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Queue         QueueConfig         `yaml:"queue" mapstructure:"queue"`
	Workers       WorkersConfig       `yaml:"workers" mapstructure:"workers"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Media         MediaConfig         `yaml:"media" mapstructure:"media"`
	Transcription TranscriptionConfig `yaml:"transcription" mapstructure:"transcription"`
	Classifier    ClassifierConfig    `yaml:"classifier" mapstructure:"classifier"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Evidence      EvidenceConfig      `yaml:"evidence" mapstructure:"evidence"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Verdict       VerdictConfig       `yaml:"verdict" mapstructure:"verdict"`
	HTTP          HTTPConfig          `yaml:"http" mapstructure:"http"`
	Telemetry     TelemetryConfig     `yaml:"telemetry" mapstructure:"telemetry"`
	Pipeline      PipelineConfig      `yaml:"pipeline" mapstructure:"pipeline"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Mode  string `yaml:"mode" mapstructure:"mode"`   // dev or prod
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// DatabaseConfig selects the relational store
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// QueueConfig selects the job queue backend
type QueueConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"` // memory or redis
	RedisURL    string `yaml:"redis_url" mapstructure:"redis_url"`
	Stream      string `yaml:"stream" mapstructure:"stream"`
	Group       string `yaml:"group" mapstructure:"group"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	Buffer      int    `yaml:"buffer" mapstructure:"buffer"`
}

// WorkersConfig sizes the job runner
type WorkersConfig struct {
	Count int `yaml:"count" mapstructure:"count"`
}

// StorageConfig selects where media objects live
type StorageConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // local or gcs
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Bucket  string `yaml:"bucket" mapstructure:"bucket"`
}

// MediaConfig locates the external audio tools
type MediaConfig struct {
	YtDlpPath  string `yaml:"ytdlp_path" mapstructure:"ytdlp_path"`
	FFmpegPath string `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
}

// TranscriptionConfig configures the speech-to-text engine
type TranscriptionConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // whisper, gcp or empty
	Model             string  `yaml:"model" mapstructure:"model"`
	APIKey            string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	NoSpeechThreshold float64 `yaml:"no_speech_threshold" mapstructure:"no_speech_threshold"`
	LanguageCode      string  `yaml:"language_code" mapstructure:"language_code"`
	Timeout           int     `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// ClassifierConfig configures the zero-shot sentence classifier
type ClassifierConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Model     string  `yaml:"model" mapstructure:"model"`
	APIKey    string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	Timeout   int     `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// EmbeddingConfig configures the embedding backend
type EmbeddingConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // ollama or openai
	Model    string `yaml:"model" mapstructure:"model"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
	CacheTTL int    `yaml:"cache_ttl" mapstructure:"cache_ttl"` // seconds
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"`     // seconds
}

// EvidenceConfig configures candidate retrieval
type EvidenceConfig struct {
	WikipediaURL      string  `yaml:"wikipedia_url" mapstructure:"wikipedia_url"`
	WikipediaTopK     int     `yaml:"wikipedia_topk" mapstructure:"wikipedia_topk"`
	NewsAPIURL        string  `yaml:"newsapi_url" mapstructure:"newsapi_url"`
	NewsAPIKey        string  `yaml:"newsapi_key,omitempty" mapstructure:"newsapi_key"`
	NewsAPITopK       int     `yaml:"newsapi_topk" mapstructure:"newsapi_topk"`
	CorpusPath        string  `yaml:"corpus_path,omitempty" mapstructure:"corpus_path"`
	CorpusTopK        int     `yaml:"corpus_topk" mapstructure:"corpus_topk"`
	SnippetMax        int     `yaml:"snippet_max" mapstructure:"snippet_max"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Timeout           int     `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// LLMConfig contains generative backend settings
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, or empty
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// VerdictConfig controls verdict synthesis
type VerdictConfig struct {
	TopK          int `yaml:"top_k" mapstructure:"top_k"`
	EvidenceLimit int `yaml:"evidence_limit" mapstructure:"evidence_limit"`
}

// HTTPConfig contains HTTP server and client settings
type HTTPConfig struct {
	Addr         string `yaml:"addr" mapstructure:"addr"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout      int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// TelemetryConfig controls tracing
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	ServiceName string  `yaml:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio"`
	Exporter    string  `yaml:"exporter" mapstructure:"exporter"` // stdout or otlp
	Endpoint    string  `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
}

// PipelineConfig controls stage chaining
type PipelineConfig struct {
	AutoChain    bool `yaml:"auto_chain" mapstructure:"auto_chain"`
	StageTimeout int  `yaml:"stage_timeout" mapstructure:"stage_timeout"` // seconds
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Mode: "dev", Level: "info"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "adveritas.db",
		},
		Queue: QueueConfig{
			Backend:     "memory",
			RedisURL:    "redis://localhost:6379/0",
			Stream:      "adveritas:jobs",
			Group:       "adveritas-workers",
			MaxAttempts: 5,
			Buffer:      64,
		},
		Workers: WorkersConfig{Count: 4},
		Storage: StorageConfig{
			Backend: "local",
			Dir:     "data/media",
		},
		Media: MediaConfig{
			YtDlpPath:  "yt-dlp",
			FFmpegPath: "ffmpeg",
		},
		Transcription: TranscriptionConfig{
			Provider:          "whisper",
			Model:             "whisper-1",
			NoSpeechThreshold: 0.6,
			LanguageCode:      "en-US",
			Timeout:           600,
		},
		Classifier: ClassifierConfig{
			BaseURL:   "https://api-inference.huggingface.co",
			Model:     "facebook/bart-large-mnli",
			Threshold: 0.55,
			Timeout:   60,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Model:    "all-minilm",
			CacheDir: "~/.adveritas/cache/embeddings",
			CacheTTL: 86400,
			Timeout:  60,
		},
		Evidence: EvidenceConfig{
			WikipediaURL:      "https://en.wikipedia.org",
			WikipediaTopK:     3,
			NewsAPIURL:        "https://newsapi.org",
			NewsAPITopK:       2,
			CorpusTopK:        3,
			SnippetMax:        600,
			RequestsPerSecond: 2,
			Timeout:           15,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Timeout:     60,
			MaxTokens:   512,
			Temperature: 0.1,
		},
		Verdict: VerdictConfig{
			TopK:          5,
			EvidenceLimit: 10,
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			UserAgent:    "adveritas/0.1 (+https://github.com/ppiankov/adveritas)",
			Timeout:      15,
			MaxBodyBytes: 2 << 20,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "adveritas",
			SampleRatio: 1.0,
			Exporter:    "stdout",
		},
		Pipeline: PipelineConfig{
			AutoChain:    false,
			StageTimeout: 900,
		},
	}
}
