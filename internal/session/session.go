// Package session owns the active document of one user: its index, its
// conversation and the atomic replacement of both on upload.
package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docqa/internal/conversation"
	"docqa/internal/domain"
	"docqa/internal/index"
	"docqa/internal/loader"
	"docqa/internal/logger"
	"docqa/internal/service"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
)

// Upload stages reported by IngestionError.
const (
	StageLoad      = "load"
	StageChunk     = "chunk"
	StageEmbed     = "embed"
	StageIndex     = "index"
	StageSummarize = "summarize"
)

// Session is the state built from one upload. Everything but Memory is
// immutable once the session is published.
type Session struct {
	ID        string
	Document  domain.Document
	Index     *index.Index
	Memory    *conversation.Memory
	Summary   string
	CreatedAt time.Time
}

// StoreFactory returns an empty vector store for a new session.
type StoreFactory func(sessionID string) (vectorstore.Storage, error)

// MemoryStores is the default StoreFactory.
func MemoryStores(string) (vectorstore.Storage, error) { return memory.NewStorage(), nil }

// Manager runs uploads and questions for one user. Turns are serialized; an
// upload builds its session off to the side and publishes it in one swap.
type Manager struct {
	docs         domain.Loader
	chunker      domain.Chunker
	embedder     domain.Embedder
	orchestrator *service.Orchestrator
	stores       StoreFactory
	summarizer   domain.Summarizer
	summaryLen   int
	policy       func() conversation.Policy
	topK         int
	now          func() time.Time
	logger       *zap.Logger

	turn    sync.Mutex
	mu      sync.RWMutex
	current *Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithStores sets where session vectors are kept. Defaults to MemoryStores.
func WithStores(f StoreFactory) Option {
	return func(m *Manager) { m.stores = f }
}

// WithSummarizer enables the upload summary.
func WithSummarizer(s domain.Summarizer, sentences int) Option {
	return func(m *Manager) {
		m.summarizer = s
		m.summaryLen = sentences
	}
}

// WithPolicy sets the context policy of every new conversation.
func WithPolicy(p conversation.Policy) Option {
	return func(m *Manager) { m.policy = func() conversation.Policy { return p } }
}

// WithTopK sets the default number of retrieved chunks.
func WithTopK(k int) Option {
	return func(m *Manager) { m.topK = k }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger.OrNop(l) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager wires the upload pipeline and the question orchestrator.
func NewManager(docs domain.Loader, chunker domain.Chunker, embedder domain.Embedder, orchestrator *service.Orchestrator, opts ...Option) *Manager {
	m := &Manager{
		docs:         docs,
		chunker:      chunker,
		embedder:     embedder,
		orchestrator: orchestrator,
		stores:       MemoryStores,
		policy:       func() conversation.Policy { return conversation.Unbounded{} },
		topK:         vectorstore.DefaultTopK,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Upload loads, chunks and indexes data and makes it the active session. On
// failure it returns an *IngestionError and the previous session stays active.
func (m *Manager) Upload(ctx context.Context, name string, data []byte) (*Session, error) {
	id := uuid.NewString()
	log := m.logger.With(zap.String("session", id), zap.String("document", name))

	pages, err := m.load(ctx, data)
	if err != nil {
		return nil, m.ingestFailed(log, StageLoad, err)
	}

	chunks, err := m.chunker.Chunk(pages)
	if err != nil {
		return nil, m.ingestFailed(log, StageChunk, err)
	}

	store, err := m.stores(id)
	if err != nil {
		return nil, m.ingestFailed(log, StageIndex, err)
	}
	ix, err := index.Build(ctx, chunks, m.embedder, store, index.WithDefaultK(m.topK), index.WithLogger(log))
	if err != nil {
		if c, ok := store.(io.Closer); ok {
			_ = c.Close()
		}
		stage := StageIndex
		if errors.Is(err, domain.ErrEmbeddingProvider) {
			stage = StageEmbed
		}
		return nil, m.ingestFailed(log, stage, err)
	}

	var summary string
	if m.summarizer != nil {
		summary, err = m.summarizer.Summarize(joinPages(pages), m.summaryLen)
		if err != nil {
			_ = ix.Release(ctx)
			return nil, m.ingestFailed(log, StageSummarize, err)
		}
	}

	sess := &Session{
		ID:        id,
		Document:  domain.Document{Name: name, Bytes: data, Pages: pages},
		Index:     ix,
		Memory:    conversation.New(m.policy()),
		Summary:   summary,
		CreatedAt: m.now(),
	}

	// Wait for an in-flight question before swapping so it never sees its
	// index released underneath it.
	m.turn.Lock()
	prev := m.publish(sess)
	m.turn.Unlock()

	if prev != nil {
		if err := prev.Index.Release(ctx); err != nil {
			log.Warn("failed to release previous session", zap.String("previous", prev.ID), zap.Error(err))
		}
	}
	log.Info("document ready", zap.Int("pages", len(pages)), zap.Int("chunks", ix.Len()))
	return sess, nil
}

func (m *Manager) load(ctx context.Context, data []byte) ([]domain.Page, error) {
	seq, err := m.docs.Load(ctx, data)
	if err != nil {
		return nil, err
	}
	return loader.Collect(seq)
}

func (m *Manager) ingestFailed(log *zap.Logger, stage string, err error) error {
	log.Error("upload failed", zap.String("stage", stage), zap.Error(err))
	return &domain.IngestionError{Stage: stage, Err: err}
}

func (m *Manager) publish(sess *Session) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.current
	m.current = sess
	return prev
}

// Ask answers question against the active session. Questions are answered one
// at a time. Without a session the answer carries domain.ErrNoSession.
func (m *Manager) Ask(ctx context.Context, question string) domain.Answer {
	m.turn.Lock()
	defer m.turn.Unlock()
	sess := m.Current()
	if sess == nil {
		return domain.Answer{Err: domain.ErrNoSession}
	}
	return m.orchestrator.Ask(ctx, sess.Index, sess.Memory, question)
}

// Current returns the active session, or nil before the first upload.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset starts a fresh conversation over the active document, keeping its
// index. It returns the new session, or nil when nothing is uploaded.
func (m *Manager) Reset() *Session {
	m.turn.Lock()
	defer m.turn.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	next := *m.current
	next.Memory = conversation.New(m.policy())
	m.current = &next
	return m.current
}

// Close releases the active session.
func (m *Manager) Close(ctx context.Context) error {
	m.turn.Lock()
	defer m.turn.Unlock()
	prev := m.publish(nil)
	if prev == nil {
		return nil
	}
	return prev.Index.Release(ctx)
}

func joinPages(pages []domain.Page) string {
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n")
}
