package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/adveritas/internal/model"
)

// version is overridden at build time with -ldflags "-X ...cli.version=..."
var version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "adveritas",
	Short: "Adveritas - asynchronous claim verification for spoken media",
	Long: `Adveritas transcribes audio from uploaded files or media URLs, extracts
check-worthy factual claims from the transcript, retrieves evidence for each
claim, and synthesizes a verdict with a confidence score and citations.

Every stage runs as a queued job and can be re-run independently.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of Adveritas.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("adveritas v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.adveritas/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.adveritas")
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := configure(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering config defaults: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// envAliases are conventional variables honoured alongside ADVERITAS_*
var envAliases = map[string][]string{
	"database.dsn":           {"DATABASE_URL"},
	"queue.redis_url":        {"REDIS_URL"},
	"transcription.api_key":  {"OPENAI_API_KEY"},
	"transcription.base_url": nil,
	"classifier.api_key":     {"HF_TOKEN"},
	"embedding.api_key":      nil,
	"embedding.base_url":     {"OLLAMA_BASE_URL"},
	"evidence.newsapi_key":   {"NEWSAPI_KEY"},
	"evidence.corpus_path":   nil,
	"llm.api_key":            nil,
	"llm.base_url":           nil,
	"http.http_proxy":        {"HTTP_PROXY"},
	"http.https_proxy":       {"HTTPS_PROXY"},
	"http.no_proxy":          {"NO_PROXY"},
	"telemetry.endpoint":     {"OTEL_EXPORTER_OTLP_ENDPOINT"},
}

// configure registers every default key on v and binds ADVERITAS_* env
// variables, e.g. ADVERITAS_QUEUE_BACKEND for queue.backend
func configure(v *viper.Viper) error {
	raw, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return err
	}
	setDefaults(v, "", tree)

	v.SetEnvPrefix("ADVERITAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// keys omitted from the defaults are unknown to AutomaticEnv
	for key, aliases := range envAliases {
		names := append([]string{"ADVERITAS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// decodeConfig builds the effective configuration from v
func decodeConfig(v *viper.Viper) (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if v.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// loadConfig returns the configuration assembled by initConfig
func loadConfig() (model.Config, error) {
	return decodeConfig(viper.GetViper())
}
