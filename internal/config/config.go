package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port          string `yaml:"port"`
	PublicBaseURL string `yaml:"public_base_url"`
	BodyLimitMB   int    `yaml:"body_limit_mb"`
	Environment   string `yaml:"environment"`
	LogLevel      string `yaml:"log_level"`
	ToolRatePerS  int    `yaml:"tool_rate_per_second"`
}

// VoiceConfig holds configuration for the voice-AI session provider.
type VoiceConfig struct {
	APIURL           string  `yaml:"api_url"`
	APIKeyEnv        string  `yaml:"api_key_env"`
	Model            string  `yaml:"model"`
	Voice            string  `yaml:"voice"`
	Temperature      float64 `yaml:"temperature"`
	SystemPromptFile string  `yaml:"system_prompt_file"`
	ConnectTimeout   int     `yaml:"connect_timeout_secs"`
	ReadTimeout      int     `yaml:"read_timeout_secs"`
	WriteTimeout     int     `yaml:"write_timeout_secs"`
}

// GenerationConfig holds configuration for the OpenAI-compatible text generator.
type GenerationConfig struct {
	BaseURL         string `yaml:"base_url"`
	APIKeyEnv       string `yaml:"api_key_env"`
	Model           string `yaml:"model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	TimeoutSecs     int    `yaml:"timeout_secs"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into passages.
type ChunkerConfig struct {
	Size      int `yaml:"size"`
	Overlap   int `yaml:"overlap"`
	Lookback  int `yaml:"lookback"`
	MinChars  int `yaml:"min_chars"`
	MaxChunks int `yaml:"max_chunks"`
}

// RetrievalConfig configures the retrieval answerer.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	// SimilarityThreshold of 0 selects 0.7; a negative value disables it.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	CacheTTLSecs        int     `yaml:"cache_ttl_secs"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SummaryStoreConfig selects where summary records are persisted.
type SummaryStoreConfig struct {
	Type     string `yaml:"type"`
	MongoURI string `yaml:"mongo_uri"`
	Database string `yaml:"database"`
}

// SummarizerConfig configures post-call summarization.
type SummarizerConfig struct {
	StructuredOutput bool `yaml:"structured_output"`
	TimeoutSecs      int  `yaml:"timeout_secs"`
	PreviewSentences int  `yaml:"preview_sentences"`
}

// DispatcherConfig selects how summarization jobs are queued.
type DispatcherConfig struct {
	Type      string `yaml:"type"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
	RedisURL  string `yaml:"redis_url"`
	RedisKey  string `yaml:"redis_key"`
}

// SweeperConfig configures the stale-session sweeper.
type SweeperConfig struct {
	Enabled       bool `yaml:"enabled"`
	IntervalSecs  int  `yaml:"interval_secs"`
	MaxAgeMinutes int  `yaml:"max_age_minutes"`
}

// IngestConfig bounds document ingestion.
type IngestConfig struct {
	BatchSize   int `yaml:"batch_size"`
	MaxUploadMB int `yaml:"max_upload_mb"`
	MaxPDFPages int `yaml:"max_pdf_pages"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Voice        VoiceConfig        `yaml:"voice"`
	Generation   GenerationConfig   `yaml:"generation"`
	Embedder     EmbedderConfig     `yaml:"embedder"`
	Chunker      ChunkerConfig      `yaml:"chunker"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store"`
	SummaryStore SummaryStoreConfig `yaml:"summary_store"`
	Summarizer   SummarizerConfig   `yaml:"summarizer"`
	Dispatcher   DispatcherConfig   `yaml:"dispatcher"`
	Sweeper      SweeperConfig      `yaml:"sweeper"`
	Ingest       IngestConfig       `yaml:"ingest"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/voicetutor/config.yaml.
// If neither exists, it writes defaults to ~/.config/voicetutor/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Secret resolves the value of the environment variable named by envName.
func Secret(envName string) string {
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "voicetutor", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:     EmbedderConfig{Type: "openai"},
		VectorStore:  VectorStoreConfig{Type: "memory"},
		SummaryStore: SummaryStoreConfig{Type: "memory"},
		Dispatcher:   DispatcherConfig{Type: "local"},
		Sweeper:      SweeperConfig{Enabled: true},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.BodyLimitMB == 0 {
		cfg.Server.BodyLimitMB = 50
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = "development"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.ToolRatePerS == 0 {
		cfg.Server.ToolRatePerS = 20
	}

	if cfg.Voice.APIURL == "" {
		cfg.Voice.APIURL = "https://api.ultravox.ai/api"
	}
	if cfg.Voice.APIKeyEnv == "" {
		cfg.Voice.APIKeyEnv = "ULTRAVOX_API_KEY"
	}
	if cfg.Voice.Model == "" {
		cfg.Voice.Model = "fixie-ai/ultravox"
	}
	if cfg.Voice.Voice == "" {
		cfg.Voice.Voice = "Mark"
	}
	if cfg.Voice.Temperature == 0 {
		cfg.Voice.Temperature = 0.3
	}
	if cfg.Voice.ConnectTimeout == 0 {
		cfg.Voice.ConnectTimeout = 30
	}
	if cfg.Voice.ReadTimeout == 0 {
		cfg.Voice.ReadTimeout = 60
	}
	if cfg.Voice.WriteTimeout == 0 {
		cfg.Voice.WriteTimeout = 60
	}

	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}
	if cfg.Generation.MaxOutputTokens == 0 {
		cfg.Generation.MaxOutputTokens = 1024
	}
	if cfg.Generation.TimeoutSecs == 0 {
		cfg.Generation.TimeoutSecs = 60
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}

	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 200
	}
	if cfg.Chunker.Lookback == 0 {
		cfg.Chunker.Lookback = 100
	}
	if cfg.Chunker.MinChars == 0 {
		cfg.Chunker.MinChars = 50
	}
	if cfg.Chunker.MaxChunks == 0 {
		cfg.Chunker.MaxChunks = 10000
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.SimilarityThreshold == 0 {
		cfg.Retrieval.SimilarityThreshold = 0.7
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "textbook_passages"
		}
		if cfg.VectorStore.Qdrant.APIKeyEnv == "" {
			cfg.VectorStore.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}

	if cfg.SummaryStore.Type == "" {
		cfg.SummaryStore.Type = "memory"
	}
	if cfg.SummaryStore.Database == "" {
		cfg.SummaryStore.Database = "voicetutor"
	}

	if cfg.Summarizer.TimeoutSecs == 0 {
		cfg.Summarizer.TimeoutSecs = 120
	}
	if cfg.Summarizer.PreviewSentences == 0 {
		cfg.Summarizer.PreviewSentences = 3
	}

	if cfg.Dispatcher.Type == "" {
		cfg.Dispatcher.Type = "local"
	}
	if cfg.Dispatcher.Workers == 0 {
		cfg.Dispatcher.Workers = 4
	}
	if cfg.Dispatcher.QueueSize == 0 {
		cfg.Dispatcher.QueueSize = 64
	}
	if cfg.Dispatcher.RedisKey == "" {
		cfg.Dispatcher.RedisKey = "voicetutor:summaries"
	}

	if cfg.Sweeper.IntervalSecs == 0 {
		cfg.Sweeper.IntervalSecs = 300
	}
	if cfg.Sweeper.MaxAgeMinutes == 0 {
		cfg.Sweeper.MaxAgeMinutes = 120
	}

	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 50
	}
	if cfg.Ingest.MaxUploadMB == 0 {
		cfg.Ingest.MaxUploadMB = 25
	}
	if cfg.Ingest.MaxPDFPages == 0 {
		cfg.Ingest.MaxPDFPages = 1000
	}
}

// applyEnvOverrides lets deployment environments override the values that
// differ per host without editing the YAML file.
func applyEnvOverrides(cfg *AppConfig) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.PublicBaseURL = getEnv("PUBLIC_BASE_URL", cfg.Server.PublicBaseURL)
	cfg.Server.Environment = getEnv("ENVIRONMENT", cfg.Server.Environment)
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", cfg.Server.LogLevel)
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		cfg.SummaryStore.Type = "mongo"
		cfg.SummaryStore.MongoURI = uri
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Dispatcher.Type = "redis"
		cfg.Dispatcher.RedisURL = url
	}
	cfg.Dispatcher.Workers = getIntEnv("SUMMARY_WORKERS", cfg.Dispatcher.Workers)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
