package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"docqa/internal/chunker"
	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Provider presets for OpenAI-compatible endpoints.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderTFIDF  = "tfidf"
)

// DefaultTemperature is the generation temperature used when none is configured.
const DefaultTemperature = 0.3

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	K int `yaml:"k"`
}

// MemoryConfig caps how much conversation is rendered into prompts. Zero
// values mean unbounded.
type MemoryConfig struct {
	MaxExchanges    int `yaml:"max_exchanges"`
	MaxContextRunes int `yaml:"max_context_runes"`
}

// EmbedderConfig selects and configures the text embedder.
type EmbedderConfig struct {
	Type              string `yaml:"type"`
	BaseURL           string `yaml:"base_url,omitempty"`
	APIKeyEnv         string `yaml:"api_key_env,omitempty"`
	Model             string `yaml:"model,omitempty"`
	TimeoutSecs       int    `yaml:"timeout_secs,omitempty"`
	BatchSize         int    `yaml:"batch_size,omitempty"`
	RequestsPerMinute int    `yaml:"requests_per_minute,omitempty"`
	MaxRetries        int    `yaml:"max_retries,omitempty"`
}

// GeneratorConfig selects and configures the answer generator.
type GeneratorConfig struct {
	Type              string   `yaml:"type"`
	BaseURL           string   `yaml:"base_url,omitempty"`
	APIKeyEnv         string   `yaml:"api_key_env,omitempty"`
	Model             string   `yaml:"model,omitempty"`
	Temperature       *float64 `yaml:"temperature,omitempty"`
	MaxTokens         int      `yaml:"max_tokens,omitempty"`
	TimeoutSecs       int      `yaml:"timeout_secs,omitempty"`
	RequestsPerMinute int      `yaml:"requests_per_minute,omitempty"`
	MaxRetries        int      `yaml:"max_retries,omitempty"`
	CondenseQuestion  bool     `yaml:"condense_question"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store. Each
// session gets its own collection named CollectionPrefix + session id.
type QdrantConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	APIKeyEnv        string `yaml:"api_key_env,omitempty"`
	UseTLS           bool   `yaml:"use_tls"`
	CollectionPrefix string `yaml:"collection_prefix"`
}

// LoaderConfig configures document loading.
type LoaderConfig struct {
	// PDFLicenseKeyEnv names the env var holding a unipdf metered key. When it
	// is unset PDFs are read with the license-free extractor.
	PDFLicenseKeyEnv string `yaml:"pdf_license_key_env"`
}

// SummarizerConfig configures the upload summary.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// LogConfig configures logging.
type LogConfig struct {
	Debug bool   `yaml:"debug"`
	File  string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Memory      MemoryConfig      `yaml:"memory"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Loader      LoaderConfig      `yaml:"loader"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and fills defaults. Provider presets are applied after
// decoding so a configured provider type picks its own endpoint and models.
func Parse(data []byte) (*AppConfig, error) {
	cfg := base()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserPath("config.yaml")
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

// DefaultUserPath returns name inside ~/.config/docqa.
func DefaultUserPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", name), nil
}

// Default returns the built-in configuration: Gemini through its
// OpenAI-compatible endpoint and an in-memory vector store.
func Default() *AppConfig {
	cfg := base()
	applyConfigDefaults(cfg)
	return cfg
}

// base holds the provider-independent defaults.
func base() *AppConfig {
	return &AppConfig{
		Chunker:     ChunkerConfig{ChunkSize: chunker.DefaultChunkSize, ChunkOverlap: chunker.DefaultChunkOverlap},
		Retrieval:   RetrievalConfig{K: vectorstore.DefaultTopK},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Loader:      LoaderConfig{PDFLicenseKeyEnv: "UNIDOC_LICENSE_API_KEY"},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 3},
	}
}

type preset struct {
	baseURL    string
	apiKeyEnv  string
	embedModel string
	chatModel  string
}

var presets = map[string]preset{
	ProviderOpenAI: {
		baseURL:    "https://api.openai.com/v1",
		apiKeyEnv:  "OPENAI_API_KEY",
		embedModel: "text-embedding-3-small",
		chatModel:  "gpt-4o-mini",
	},
	ProviderGemini: {
		baseURL:    "https://generativelanguage.googleapis.com/v1beta/openai/",
		apiKeyEnv:  "GOOGLE_API_KEY",
		embedModel: "gemini-embedding-001",
		chatModel:  "gemini-2.5-flash",
	},
	ProviderOllama: {
		baseURL:    "http://localhost:11434/v1",
		embedModel: "nomic-embed-text",
		chatModel:  "llama3.2",
	},
}

// KeyOptional reports whether a provider runs without an API key.
func KeyOptional(provider string) bool { return provider == ProviderOllama }

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Retrieval.K <= 0 {
		cfg.Retrieval.K = vectorstore.DefaultTopK
	}

	e := &cfg.Embedder
	if e.Type == "" {
		e.Type = ProviderGemini
	}
	if p, ok := presets[e.Type]; ok {
		e.BaseURL = or(e.BaseURL, p.baseURL)
		e.APIKeyEnv = or(e.APIKeyEnv, p.apiKeyEnv)
		e.Model = or(e.Model, p.embedModel)
		if e.TimeoutSecs == 0 {
			e.TimeoutSecs = 30
		}
		if e.BatchSize == 0 {
			e.BatchSize = 32
		}
		if e.MaxRetries == 0 {
			e.MaxRetries = 3
		}
	}

	g := &cfg.Generator
	if g.Type == "" {
		g.Type = ProviderGemini
	}
	if p, ok := presets[g.Type]; ok {
		g.BaseURL = or(g.BaseURL, p.baseURL)
		g.APIKeyEnv = or(g.APIKeyEnv, p.apiKeyEnv)
		g.Model = or(g.Model, p.chatModel)
		if g.TimeoutSecs == 0 {
			g.TimeoutSecs = 120
		}
		if g.MaxRetries == 0 {
			g.MaxRetries = 3
		}
	}
	if g.Temperature == nil {
		temp := DefaultTemperature
		g.Temperature = &temp
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		q := cfg.VectorStore.Qdrant
		q.Host = or(q.Host, "localhost")
		if q.Port == 0 {
			q.Port = 6334
		}
		q.CollectionPrefix = or(q.CollectionPrefix, "docqa-")
	}

	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
}

// Validate rejects configurations that must never reach a provider.
func (c *AppConfig) Validate() error {
	if err := chunker.Validate(c.Chunker.ChunkSize, c.Chunker.ChunkOverlap); err != nil {
		return err
	}
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("%w: retrieval.k must be positive, got %d", domain.ErrInvalidConfig, c.Retrieval.K)
	}
	if c.Memory.MaxExchanges < 0 || c.Memory.MaxContextRunes < 0 {
		return fmt.Errorf("%w: memory limits must not be negative", domain.ErrInvalidConfig)
	}
	if t := c.Generator.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("%w: generator.temperature must be within [0, 2], got %g", domain.ErrInvalidConfig, *t)
	}
	switch c.Embedder.Type {
	case ProviderOpenAI, ProviderGemini, ProviderOllama, ProviderTFIDF:
	default:
		return fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidConfig, c.Embedder.Type)
	}
	if _, ok := presets[c.Generator.Type]; !ok {
		return fmt.Errorf("%w: unknown generator %q", domain.ErrInvalidConfig, c.Generator.Type)
	}
	switch c.VectorStore.Type {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("%w: unknown vector store %q", domain.ErrInvalidConfig, c.VectorStore.Type)
	}
	if c.Summarizer.Type != "frequency" && c.Summarizer.Type != "none" {
		return fmt.Errorf("%w: unknown summarizer %q", domain.ErrInvalidConfig, c.Summarizer.Type)
	}
	return nil
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
