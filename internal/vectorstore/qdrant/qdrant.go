package qdrant

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/qdrant/go-client/qdrant"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

const upsertBatchSize = 256

// Storage keeps one index in a dedicated Qdrant collection using cosine distance.
// Each session gets its own collection so a failed rebuild never touches the live one.
type Storage struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection name is required")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Storage{client: client, collection: cfg.Collection}, nil
}

// Init recreates the collection with the given dimension.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrant collection exists %s: %w", s.collection, err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("qdrant delete %s: %w", s.collection, err)
		}
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create %s: %w", s.collection, err)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i := range chunks {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: want %d, got %d", s.dimension, len(vectors[i]))
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(chunks[i].Index)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: chunkPayload(chunks[i]),
		})
	}
	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points[start:end],
		})
		if err != nil {
			return fmt.Errorf("qdrant upsert %s: %w", s.collection, err)
		}
	}
	return nil
}

// tieWindow multiplies topK when querying so that equal scores at the k-th
// position can be re-ranked by chunk order before trimming.
const tieWindow = 2

// Search returns the topK nearest chunks. Ties at the cut-off are broken by
// chunk order among the topK*tieWindow points the server returns.
func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK * tieWindow)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query %s: %w", s.collection, err)
	}
	results := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, domain.SearchResult{
			Chunk: payloadChunk(p.GetPayload()),
			Score: float64(p.GetScore()),
		})
	}
	return rank(results, topK), nil
}

// rank orders by descending score, then chunk index, and keeps topK.
func rank(results []domain.SearchResult, topK int) []domain.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Clear drops the collection.
func (s *Storage) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("qdrant delete %s: %w", s.collection, err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func chunkPayload(c domain.Chunk) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		"index":       c.Index,
		"text":        c.Text,
		"size":        c.Size,
		"offset":      c.Offset,
		"source_page": c.SourcePage,
		"end_page":    c.EndPage,
		"overlap":     c.OverlapWithPrev,
	})
}

func payloadChunk(payload map[string]*qdrant.Value) domain.Chunk {
	integer := func(key string) int {
		if v, ok := payload[key]; ok {
			return int(v.GetIntegerValue())
		}
		return 0
	}
	var text string
	if v, ok := payload["text"]; ok {
		text = v.GetStringValue()
	}
	return domain.Chunk{
		Index:           integer("index"),
		Text:            text,
		Size:            integer("size"),
		Offset:          integer("offset"),
		SourcePage:      integer("source_page"),
		EndPage:         integer("end_page"),
		OverlapWithPrev: integer("overlap"),
	}
}
