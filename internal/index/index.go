// Package index builds the per-document vector index and answers top-k
// similarity queries over it.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/vectorstore"
)

// Index is a read-only view over the embedded chunks of one document.
type Index struct {
	embedder  domain.Embedder
	store     vectorstore.Storage
	chunks    []domain.Chunk
	dimension int
	defaultK  int
	logger    *zap.Logger
}

// Option configures Build.
type Option func(*Index)

// WithLogger sets the logger used by the index.
func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) { ix.logger = logger.OrNop(l) }
}

// WithDefaultK sets the number of results Retrieve returns for k <= 0.
func WithDefaultK(k int) Option {
	return func(ix *Index) {
		if k > 0 {
			ix.defaultK = k
		}
	}
}

// Build embeds every chunk and loads the vectors into store. All embeddings are
// computed before store is touched, so a failed build leaves store as it was.
// Embedding failures wrap domain.ErrEmbeddingProvider.
func Build(ctx context.Context, chunks []domain.Chunk, embedder domain.Embedder, store vectorstore.Storage, opts ...Option) (*Index, error) {
	ix := &Index{
		embedder: embedder,
		store:    store,
		chunks:   append([]domain.Chunk(nil), chunks...),
		defaultK: vectorstore.DefaultTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if len(chunks) == 0 {
		ix.logger.Debug("built empty index")
		return ix, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	if f, ok := embedder.(domain.Fitter); ok {
		fitted, err := f.Fit(texts)
		if err != nil {
			return nil, fmt.Errorf("%w: fit %s: %w", domain.ErrEmbeddingProvider, embedder.Name(), err)
		}
		ix.embedder = fitted
	}

	vectors, err := embedAll(ctx, ix.embedder, texts)
	if err != nil {
		return nil, err
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: %s returned an empty vector", domain.ErrEmbeddingProvider, ix.embedder.Name())
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: chunk %d has dimension %d, want %d", domain.ErrEmbeddingProvider, i, len(v), dim)
		}
	}
	ix.dimension = dim

	if err := store.Init(ctx, dim); err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	if err := store.Upsert(ctx, ix.chunks, vectors); err != nil {
		_ = store.Clear(ctx)
		return nil, fmt.Errorf("upsert vectors: %w", err)
	}

	ix.logger.Debug("built index",
		zap.String("embedder", ix.embedder.Name()),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimension", dim),
	)
	return ix, nil
}

func embedAll(ctx context.Context, embedder domain.Embedder, texts []string) ([][]float32, error) {
	if b, ok := embedder.(domain.BatchEmbedder); ok {
		vectors, err := b.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingProvider, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbeddingProvider, len(vectors), len(texts))
		}
		return vectors, nil
	}

	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := embedder.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %w", domain.ErrEmbeddingProvider, i, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Retrieve returns the k chunks most similar to query, best first, with equal
// scores in chunk order. k <= 0 uses the default. An empty index returns no
// results without calling the embedder.
func (ix *Index) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if len(ix.chunks) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = ix.defaultK
	}
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrEmbeddingProvider, err)
	}
	if len(vec) != ix.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d", domain.ErrEmbeddingProvider, len(vec), ix.dimension)
	}
	results, err := ix.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}
	return results, nil
}

// Len reports the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Chunks returns a copy of the indexed chunks in order.
func (ix *Index) Chunks() []domain.Chunk {
	return append([]domain.Chunk(nil), ix.chunks...)
}

// Dimension is the vector dimension, or 0 for an empty index.
func (ix *Index) Dimension() int { return ix.dimension }

// EmbedderName names the embedder queries go through.
func (ix *Index) EmbedderName() string { return ix.embedder.Name() }

// Release drops the stored vectors and closes the store when it holds a
// connection. The index must not be used afterwards.
func (ix *Index) Release(ctx context.Context) error {
	var errs []error
	if ix.dimension > 0 {
		errs = append(errs, ix.store.Clear(ctx))
	}
	if c, ok := ix.store.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
