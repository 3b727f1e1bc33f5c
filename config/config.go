package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the assistant
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address    string        `mapstructure:"address"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// LLMConfig configures the model service.
type LLMConfig struct {
	Provider       string        `mapstructure:"provider"` // openai, ollama
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	AnswerModel    LLMModel      `mapstructure:"answer_model"`
	LiteModel      LLMModel      `mapstructure:"lite_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name        string  `mapstructure:"name"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

func (c LLMConfig) Normalize() LLMConfig {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Provider == "ollama" && c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434/v1"
	}
	if c.AnswerModel.Name == "" {
		c.AnswerModel.Name = "gpt-4o"
	}
	if c.LiteModel.Name == "" {
		c.LiteModel.Name = c.AnswerModel.Name
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "text-embedding-3-small"
	}
	return c
}

func (c LLMConfig) Validate() error {
	switch c.Provider {
	case "openai":
		if strings.TrimSpace(c.APIKey) == "" && c.BaseURL == "" {
			return fmt.Errorf("llm.api_key required for the openai provider")
		}
	case "ollama":
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.Provider)
	}
	if c.AnswerModel.Temperature < 0 || c.LiteModel.Temperature < 0 {
		return fmt.Errorf("llm temperatures cannot be negative")
	}
	return nil
}

// SearchConfig selects and configures the search backend.
type SearchConfig struct {
	Mode         string        `mapstructure:"mode"`     // api, scrape
	Provider     string        `mapstructure:"provider"` // serper, brave (api mode)
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// MaxSearchResults is the hard cap on URLs taken from one search.
const MaxSearchResults = 7

func (c SearchConfig) Normalize() SearchConfig {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Mode == "" {
		c.Mode = "api"
	}
	if c.Provider == "" {
		c.Provider = "serper"
	}
	if c.MaxResults <= 0 || c.MaxResults > MaxSearchResults {
		c.MaxResults = MaxSearchResults
	}
	return c
}

func (c SearchConfig) Validate() error {
	switch c.Mode {
	case "scrape":
		return nil
	case "api":
	default:
		return fmt.Errorf("search.mode must be api or scrape, got %q", c.Mode)
	}
	switch c.Provider {
	case "serper":
		if c.SerperAPIKey == "" {
			return fmt.Errorf("search.serper_api_key required in api mode")
		}
	case "brave":
		if c.BraveAPIKey == "" {
			return fmt.Errorf("search.brave_api_key required in api mode")
		}
	default:
		return fmt.Errorf("search.provider %q is not supported", c.Provider)
	}
	return nil
}

// FetchConfig configures page extraction.
type FetchConfig struct {
	Backend string `mapstructure:"backend"` // http, chromedp
	// Timeout bounds each page; zero leaves extraction unbounded.
	Timeout   time.Duration `mapstructure:"timeout"`
	Workers   int           `mapstructure:"workers"`
	UserAgent string        `mapstructure:"user_agent"`
	MaxChars  int           `mapstructure:"max_chars"`
}

func (c FetchConfig) Normalize() FetchConfig {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = "http"
	}
	if c.Workers <= 0 {
		c.Workers = 6
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; intelliweb/1.0)"
	}
	return c
}

func (c FetchConfig) Validate() error {
	if c.Backend != "http" && c.Backend != "chromedp" {
		return fmt.Errorf("fetch.backend must be http or chromedp, got %q", c.Backend)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("fetch.timeout cannot be negative")
	}
	return nil
}

// RetrievalConfig configures chunking and the per-answer index.
type RetrievalConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	TopK         int    `mapstructure:"top_k"`
	Embedder     string `mapstructure:"embedder"` // provider, tfidf
}

func (c RetrievalConfig) Normalize() RetrievalConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1024
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.Embedder == "" {
		c.Embedder = "provider"
	}
	return c
}

func (c RetrievalConfig) Validate() error {
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap (%d) must be smaller than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.Embedder != "provider" && c.Embedder != "tfidf" {
		return fmt.Errorf("retrieval.embedder must be provider or tfidf, got %q", c.Embedder)
	}
	return nil
}

// PipelineConfig holds the per-turn retry budgets.
type PipelineConfig struct {
	ReframeWindow    int           `mapstructure:"reframe_window"`
	ReframeAttempts  int           `mapstructure:"reframe_attempts"`
	FollowUpAttempts int           `mapstructure:"followup_attempts"`
	FollowUpBackoff  time.Duration `mapstructure:"followup_backoff"`
}

func (c PipelineConfig) Normalize() PipelineConfig {
	if c.ReframeWindow <= 0 {
		c.ReframeWindow = 5
	}
	if c.ReframeAttempts <= 0 {
		c.ReframeAttempts = 4
	}
	if c.FollowUpAttempts <= 0 {
		c.FollowUpAttempts = 3
	}
	if c.FollowUpBackoff <= 0 {
		c.FollowUpBackoff = 200 * time.Millisecond
	}
	return c
}

// StorageConfig selects where session transcripts live
type StorageConfig struct {
	Backend string      `mapstructure:"backend"` // inmemory, redis
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case "", "inmemory":
		return nil
	case "redis":
		return s.Redis.Validate()
	default:
		return fmt.Errorf("storage.backend %q is not supported", s.Backend)
	}
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MetricsPort  int    `mapstructure:"metrics_port"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":10001")
	v.SetDefault("server.session_ttl", 2*time.Hour)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.answer_model.name", "gpt-4o")
	v.SetDefault("llm.answer_model.temperature", 0.8)
	v.SetDefault("llm.lite_model.name", "gpt-4o")
	v.SetDefault("llm.lite_model.temperature", 0)
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("search.mode", "api")
	v.SetDefault("search.provider", "serper")
	v.SetDefault("search.max_results", MaxSearchResults)
	v.SetDefault("search.timeout", 15*time.Second)
	v.SetDefault("fetch.backend", "http")
	v.SetDefault("fetch.timeout", 0)
	v.SetDefault("fetch.workers", 6)
	v.SetDefault("retrieval.chunk_size", 1024)
	v.SetDefault("retrieval.chunk_overlap", 10)
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.embedder", "provider")
	v.SetDefault("pipeline.reframe_window", 5)
	v.SetDefault("pipeline.reframe_attempts", 4)
	v.SetDefault("pipeline.followup_attempts", 3)
	v.SetDefault("pipeline.followup_backoff", 200*time.Millisecond)
	v.SetDefault("storage.backend", "inmemory")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("telemetry.metrics_port", 9090)

	// bind every key so env-only deployments work without a config file
	for _, key := range []string{
		"llm.api_key", "llm.base_url", "search.serper_api_key", "search.brave_api_key",
		"storage.redis.password", "storage.redis.db", "telemetry.enabled", "telemetry.otlp_endpoint",
		"general.debug", "general.log_level", "fetch.user_agent", "fetch.max_chars",
		"llm.answer_model.max_tokens", "llm.lite_model.max_tokens",
	} {
		_ = v.BindEnv(key)
	}
}

// Load reads configuration from path (or the default search paths when empty)
// and the INTELLIWEB_* environment. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config") // path to look for the config file in
		v.AddConfigPath(".")        // optionally look for config in the working directory
		if exe, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(exe))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("INTELLIWEB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match (INTELLIWEB_*)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM = cfg.LLM.Normalize()
	cfg.Search = cfg.Search.Normalize()
	cfg.Fetch = cfg.Fetch.Normalize()
	cfg.Retrieval = cfg.Retrieval.Normalize()
	cfg.Pipeline = cfg.Pipeline.Normalize()
	if cfg.Server.SessionTTL <= 0 {
		cfg.Server.SessionTTL = 2 * time.Hour
	}

	for _, validate := range []func() error{
		cfg.LLM.Validate,
		cfg.Search.Validate,
		cfg.Fetch.Validate,
		cfg.Retrieval.Validate,
		cfg.Storage.Validate,
		cfg.Telemetry.Validate,
	} {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LoadConfig loads config from file and panics when it is unusable
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}
