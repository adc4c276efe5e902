// Package app assembles a session manager from configuration.
package app

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/conversation"
	"docqa/internal/domain"
	embedopenai "docqa/internal/embedding/openai"
	"docqa/internal/embedding/tfidf"
	genopenai "docqa/internal/generation/openai"
	"docqa/internal/loader"
	"docqa/internal/loader/pdf"
	"docqa/internal/loader/text"
	"docqa/internal/logger"
	"docqa/internal/service"
	"docqa/internal/session"
	"docqa/internal/summarizer"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/qdrant"
)

// NewManager validates cfg and wires every component of a session manager.
func NewManager(cfg *config.AppConfig, log *zap.Logger) (*session.Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = logger.OrNop(log)

	docs, err := NewLoader(cfg.Loader)
	if err != nil {
		return nil, err
	}
	ch, err := chunker.NewWindowChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	emb, err := NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	gen, err := NewGenerator(cfg.Generator)
	if err != nil {
		return nil, err
	}
	stores, err := NewStores(cfg.VectorStore)
	if err != nil {
		return nil, err
	}

	orch := service.New(gen,
		service.WithTopK(cfg.Retrieval.K),
		service.WithCondense(cfg.Generator.CondenseQuestion),
		service.WithLogger(log.Named("orchestrator")),
	)

	opts := []session.Option{
		session.WithStores(stores),
		session.WithTopK(cfg.Retrieval.K),
		session.WithPolicy(conversation.NewPolicy(cfg.Memory.MaxExchanges, cfg.Memory.MaxContextRunes)),
		session.WithLogger(log.Named("session")),
	}
	if cfg.Summarizer.Type == "frequency" {
		opts = append(opts, session.WithSummarizer(summarizer.NewFrequency(), cfg.Summarizer.MaxSentences))
	}

	log.Debug("assembled components",
		zap.String("embedder", emb.Name()),
		zap.String("generator", gen.Name()),
		zap.String("vector_store", cfg.VectorStore.Type),
	)
	return session.NewManager(docs, ch, emb, orch, opts...), nil
}

// NewLoader returns a loader accepting PDF and plain text.
func NewLoader(cfg config.LoaderConfig) (domain.Loader, error) {
	var key string
	if cfg.PDFLicenseKeyEnv != "" {
		key = os.Getenv(cfg.PDFLicenseKeyEnv)
	}
	p, err := pdf.New(key)
	if err != nil {
		return nil, err
	}
	return loader.Auto{PDF: p, Text: text.New()}, nil
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case config.ProviderTFIDF:
		return tfidf.New(), nil
	case config.ProviderOpenAI, config.ProviderGemini, config.ProviderOllama:
		c, err := embedopenai.NewClient(embedopenai.Config{
			BaseURL:           cfg.BaseURL,
			APIKeyEnv:         cfg.APIKeyEnv,
			Model:             cfg.Model,
			Timeout:           time.Duration(cfg.TimeoutSecs) * time.Second,
			BatchSize:         cfg.BatchSize,
			RequestsPerMinute: cfg.RequestsPerMinute,
			MaxRetries:        cfg.MaxRetries,
			KeyOptional:       config.KeyOptional(cfg.Type),
		})
		if err != nil {
			return nil, fmt.Errorf("%s embedder: %w", cfg.Type, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidConfig, cfg.Type)
	}
}

// NewGenerator builds the configured generator.
func NewGenerator(cfg config.GeneratorConfig) (domain.Generator, error) {
	temp := config.DefaultTemperature
	if cfg.Temperature != nil {
		temp = *cfg.Temperature
	}
	c, err := genopenai.NewClient(genopenai.Config{
		BaseURL:           cfg.BaseURL,
		APIKeyEnv:         cfg.APIKeyEnv,
		Model:             cfg.Model,
		Temperature:       temp,
		MaxTokens:         cfg.MaxTokens,
		Timeout:           time.Duration(cfg.TimeoutSecs) * time.Second,
		RequestsPerMinute: cfg.RequestsPerMinute,
		MaxRetries:        cfg.MaxRetries,
		KeyOptional:       config.KeyOptional(cfg.Type),
	})
	if err != nil {
		return nil, fmt.Errorf("%s generator: %w", cfg.Type, err)
	}
	return c, nil
}

// NewStores returns the per-session vector store factory.
func NewStores(cfg config.VectorStoreConfig) (session.StoreFactory, error) {
	switch cfg.Type {
	case "memory", "":
		return session.MemoryStores, nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("%w: qdrant config missing", domain.ErrInvalidConfig)
		}
		q := *cfg.Qdrant
		var apiKey string
		if q.APIKeyEnv != "" {
			apiKey = os.Getenv(q.APIKeyEnv)
		}
		return func(sessionID string) (vectorstore.Storage, error) {
			s, err := qdrant.NewStorage(qdrant.Config{
				Host:       q.Host,
				Port:       q.Port,
				APIKey:     apiKey,
				UseTLS:     q.UseTLS,
				Collection: q.CollectionPrefix + sessionID,
			})
			if err != nil {
				return nil, err
			}
			return s, nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", domain.ErrInvalidConfig, cfg.Type)
	}
}
