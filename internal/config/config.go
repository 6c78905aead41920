// Package config loads the application configuration from YAML or TOML.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"hybridrag/internal/domain"
	"hybridrag/internal/errors"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	Model       string `yaml:"model" toml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size" toml:"batch_size"`
	MaxRetries  int    `yaml:"max_retries" toml:"max_retries"`
	// RequestsPerSecond throttles embedding requests; 0 disables it.
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type string `yaml:"type" toml:"type"`
	// Dimension of the hash embedder.
	Dimension int `yaml:"dimension,omitempty" toml:"dimension,omitempty"`
	// CacheSize of the LRU embedding cache; 0 disables caching.
	CacheSize int                   `yaml:"cache_size" toml:"cache_size"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty" toml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
//
// Type "strategy" picks a strategy per document (Strategies in order, then
// Default); "sentence" groups whole sentences.
type ChunkerConfig struct {
	Type              string                    `yaml:"type" toml:"type"`
	SentencesPerChunk int                       `yaml:"sentences_per_chunk,omitempty" toml:"sentences_per_chunk,omitempty"`
	OverlapSentences  int                       `yaml:"overlap_sentences,omitempty" toml:"overlap_sentences,omitempty"`
	UseBuiltins       bool                      `yaml:"use_builtins" toml:"use_builtins"`
	Default           *domain.ChunkingStrategy  `yaml:"default,omitempty" toml:"default,omitempty"`
	Strategies        []domain.ChunkingStrategy `yaml:"strategies,omitempty" toml:"strategies,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type" toml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty" toml:"qdrant,omitempty"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty" toml:"sqlite,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL                 string `yaml:"url" toml:"url"`
	APIKey              string `yaml:"api_key" toml:"api_key"`
	APIKeyEnv           string `yaml:"api_key_env,omitempty" toml:"api_key_env,omitempty"`
	Collection          string `yaml:"collection" toml:"collection"`
	TimeoutSecs         int    `yaml:"timeout_secs" toml:"timeout_secs"`
	CandidateMultiplier int    `yaml:"candidate_multiplier,omitempty" toml:"candidate_multiplier,omitempty"`
}

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// IngestConfig tunes the embedding stage of ingestion.
type IngestConfig struct {
	EmbedTimeoutSecs int `yaml:"embed_timeout_secs" toml:"embed_timeout_secs"`
	Concurrency      int `yaml:"concurrency" toml:"concurrency"`
	BatchSize        int `yaml:"batch_size" toml:"batch_size"`
}

// EmbedTimeout returns the per-call embedding timeout.
func (c IngestConfig) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutSecs) * time.Second
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type" toml:"type"`
	MaxSentences int    `yaml:"max_sentences" toml:"max_sentences"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig      `yaml:"embedder" toml:"embedder"`
	Chunker     ChunkerConfig       `yaml:"chunker" toml:"chunker"`
	VectorStore VectorStoreConfig   `yaml:"vector_store" toml:"vector_store"`
	Search      domain.HybridConfig `yaml:"search" toml:"search"`
	Ingest      IngestConfig        `yaml:"ingest" toml:"ingest"`
	Summarizer  SummarizerConfig    `yaml:"summarizer" toml:"summarizer"`
	Logging     LoggingConfig       `yaml:"logging" toml:"logging"`
}

// Load reads a config from path, decoding TOML for a .toml extension and
// YAML otherwise. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, errors.New(errors.ErrCodeConfigInvalid, "read config "+path, err)
	}
	if isTOML(path) {
		return ParseTOML(data)
	}
	return Parse(data)
}

// Parse decodes YAML, fills defaults for omitted fields and validates.
func Parse(data []byte) (*AppConfig, error) {
	return parse(data, yaml.Unmarshal)
}

// ParseTOML is Parse for TOML documents.
func ParseTOML(data []byte) (*AppConfig, error) {
	return parse(data, toml.Unmarshal)
}

func parse(data []byte, unmarshal func([]byte, any) error) (*AppConfig, error) {
	cfg := Default()
	if err := unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "parse config", err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml and ./config.toml first, then
// ~/.config/hybridrag/config.yaml. If none exists, it writes defaults to the
// user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	for _, cwdPath := range []string{"config.yaml", "config.toml"} {
		if _, err := os.Stat(cwdPath); err == nil {
			cfg, err := Load(cwdPath)
			return cfg, cwdPath, err
		}
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
// The format follows the extension, as in Load.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	marshal := yaml.Marshal
	if isTOML(path) {
		marshal = toml.Marshal
	}
	data, err := marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "hybridrag", "config.yaml"), nil
}

// Default returns the built-in configuration: hash embeddings, strategy
// chunking with builtins, in-memory index.
func Default() *AppConfig {
	return &AppConfig{
		Embedder:    EmbedderConfig{Type: "hash", Dimension: 256, CacheSize: 1000},
		Chunker:     ChunkerConfig{Type: "strategy", UseBuiltins: true},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Search:      domain.DefaultHybridConfig(),
		Ingest:      IngestConfig{EmbedTimeoutSecs: 30, Concurrency: 4, BatchSize: 32},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Logging:     LoggingConfig{Level: "info", Format: "text"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.Type == "sentence" && cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Embedder.Type == "hash" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 256
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 32
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 5
		}
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		q := cfg.VectorStore.Qdrant
		if q.APIKey == "" && q.APIKeyEnv != "" {
			q.APIKey = os.Getenv(q.APIKeyEnv)
		}
		if q.Collection == "" {
			q.Collection = "hybridrag"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}
	if cfg.VectorStore.Type == "sqlite" && cfg.VectorStore.SQLite == nil {
		cfg.VectorStore.SQLite = &SQLiteConfig{Path: "hybridrag.db"}
	}
	if cfg.Ingest.Concurrency <= 0 {
		cfg.Ingest.Concurrency = 1
	}
	if cfg.Ingest.BatchSize <= 0 {
		cfg.Ingest.BatchSize = 32
	}
}

// Validate fails fast on settings that would break construction.
func (c *AppConfig) Validate() error {
	if err := c.Search.Validate(); err != nil {
		return errors.New(errors.ErrCodeConfigInvalid, "search: "+err.Error(), err)
	}
	if c.Ingest.EmbedTimeoutSecs < 0 {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("ingest.embed_timeout_secs must not be negative, got %d", c.Ingest.EmbedTimeoutSecs), nil)
	}
	if c.Chunker.Default != nil {
		if err := c.Chunker.Default.Validate(); err != nil {
			return errors.New(errors.ErrCodeConfigInvalid, "chunker.default: "+err.Error(), err)
		}
	}
	for i, s := range c.Chunker.Strategies {
		if err := s.Validate(); err != nil {
			return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("chunker.strategies[%d]: %v", i, err), err)
		}
	}
	if c.Embedder.Type == "openai" && c.Embedder.OpenAI == nil {
		return errors.New(errors.ErrCodeConfigInvalid, "openai embedder config missing", nil)
	}
	if c.VectorStore.Type == "qdrant" && c.VectorStore.Qdrant == nil {
		return errors.New(errors.ErrCodeConfigInvalid, "qdrant config missing", nil)
	}
	return nil
}
