package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"docqa/internal/chunker"
	"docqa/internal/conversation"
	"docqa/internal/domain"
	"docqa/internal/loader"
	"docqa/internal/loader/text"
	"docqa/internal/service"
	"docqa/internal/summarizer"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
)

// --- Mock implementations ---

// mockEmbedder counts keyword occurrences over a fixed vocabulary. failAt makes
// the n-th call (1-based) fail.
type mockEmbedder struct {
	mu     sync.Mutex
	vocab  []string
	failAt int
	calls  int
}

func (m *mockEmbedder) Name() string { return "mock" }

func (m *mockEmbedder) Embed(_ context.Context, s string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAt > 0 && m.calls == m.failAt {
		return nil, errors.New("embedding quota exceeded")
	}
	lower := strings.ToLower(s)
	v := make([]float32, len(m.vocab))
	for i, w := range m.vocab {
		v[i] = float32(strings.Count(lower, w))
	}
	return v, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockGenerator fails on the calls listed in failOn (1-based) and records
// every prompt.
type mockGenerator struct {
	mu      sync.Mutex
	failOn  map[int]bool
	prompts []string
}

func (m *mockGenerator) Name() string { return "mock" }

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.failOn[len(m.prompts)] {
		return "", errors.New("model overloaded")
	}
	return "Refunds are issued within thirty days [page 2].", nil
}

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

var vocab = []string{"refund", "shipping", "welcome"}

const handbook = "Welcome to the Acme handbook for customers." + text.PageBreak +
	"Orders are packed carefully. Any refund is issued in thirty days." + text.PageBreak +
	"Shipping takes five business days."

func newManager(t *testing.T, emb domain.Embedder, gen domain.Generator, size, overlap int, opts ...Option) *Manager {
	t.Helper()
	ch, err := chunker.NewWindowChunker(size, overlap)
	require.NoError(t, err)
	docs := loader.Auto{Text: text.New()}
	orch := service.New(gen, service.WithLogger(zaptest.NewLogger(t)))
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewManager(docs, ch, emb, orch, opts...)
}

func TestUpload_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	emb := &mockEmbedder{vocab: vocab}
	gen := &mockGenerator{}
	m := newManager(t, emb, gen, 64, 8, WithSummarizer(summarizer.NewFrequency(), 2))

	sess, err := m.Upload(ctx, "handbook.txt", []byte(handbook))
	require.NoError(t, err)
	require.Len(t, sess.Document.Pages, 3)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.Summary)
	assert.Same(t, sess, m.Current())

	embedCalls := emb.callCount()
	ans := m.Ask(ctx, "who are you")
	require.NoError(t, ans.Err)
	assert.True(t, ans.SmallTalk)
	assert.Equal(t, "I'm your PDF AI Assistant. Upload a PDF and ask me anything about it.", ans.Text)
	assert.Equal(t, embedCalls, emb.callCount())
	assert.Zero(t, gen.callCount())

	ans = m.Ask(ctx, "What is the refund policy?")
	require.NoError(t, ans.Err)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, 2, ans.Sources[0].Page)
	assert.Equal(t, embedCalls+1, emb.callCount())

	var refundChunk domain.Chunk
	for _, c := range sess.Index.Chunks() {
		if strings.Contains(c.Text, "refund") {
			refundChunk = c
			break
		}
	}
	require.NotEmpty(t, refundChunk.Text)
	assert.Equal(t, 1, refundChunk.SourcePage)

	require.Equal(t, 1, gen.callCount())
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, refundChunk.Text)
	assert.Contains(t, prompt, "Human: who are you")

	turns := sess.Memory.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RoleBot, domain.RoleUser, domain.RoleBot},
		[]domain.Role{turns[0].Role, turns[1].Role, turns[2].Role, turns[3].Role})
}

func TestUpload_AtomicOnEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	emb := &mockEmbedder{vocab: vocab}
	gen := &mockGenerator{}
	m := newManager(t, emb, gen, 10, 0)

	first, err := m.Upload(ctx, "first.txt", []byte("refund within thirty days"))
	require.NoError(t, err)
	m.Ask(ctx, "refund?")

	// Five chunks; the third embedding fails.
	emb.mu.Lock()
	emb.failAt = emb.calls + 3
	emb.mu.Unlock()
	_, err = m.Upload(ctx, "second.txt", []byte(strings.Repeat("x", 50)))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIngestion)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	var ingestErr *domain.IngestionError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, StageEmbed, ingestErr.Stage)

	assert.Same(t, first, m.Current())
	ans := m.Ask(ctx, "What about refund timing?")
	require.NoError(t, ans.Err)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, 4, first.Memory.Len())
}

func TestUpload_ReplacesAndReleasesPreviousSession(t *testing.T) {
	ctx := context.Background()
	var stores []*memory.Storage
	factory := func(string) (vectorstore.Storage, error) {
		s := memory.NewStorage()
		stores = append(stores, s)
		return s, nil
	}
	m := newManager(t, &mockEmbedder{vocab: vocab}, &mockGenerator{}, 64, 8, WithStores(factory))

	first, err := m.Upload(ctx, "a.txt", []byte(handbook))
	require.NoError(t, err)
	m.Ask(ctx, "What is the refund policy?")

	second, err := m.Upload(ctx, "b.txt", []byte("Shipping is free."))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Same(t, second, m.Current())
	assert.Zero(t, second.Memory.Len())
	require.Len(t, stores, 2)
	assert.Zero(t, stores[0].Len())
	assert.Equal(t, 1, stores[1].Len())
}

func TestUpload_StageErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported document", func(t *testing.T) {
		m := newManager(t, &mockEmbedder{vocab: vocab}, &mockGenerator{}, 64, 8)
		_, err := m.Upload(ctx, "blob.bin", []byte{0xff, 0xfe, 0x00, 0x81})
		var ingestErr *domain.IngestionError
		require.ErrorAs(t, err, &ingestErr)
		assert.Equal(t, StageLoad, ingestErr.Stage)
		assert.ErrorIs(t, err, domain.ErrUnsupportedDocument)
		assert.Nil(t, m.Current())
	})

	t.Run("store factory", func(t *testing.T) {
		boom := errors.New("qdrant unreachable")
		m := newManager(t, &mockEmbedder{vocab: vocab}, &mockGenerator{}, 64, 8,
			WithStores(func(string) (vectorstore.Storage, error) { return nil, boom }))
		_, err := m.Upload(ctx, "a.txt", []byte(handbook))
		var ingestErr *domain.IngestionError
		require.ErrorAs(t, err, &ingestErr)
		assert.Equal(t, StageIndex, ingestErr.Stage)
		assert.ErrorIs(t, err, boom)
	})
}

func TestUpload_EmptyDocument(t *testing.T) {
	ctx := context.Background()
	emb := &mockEmbedder{vocab: vocab}
	gen := &mockGenerator{}
	m := newManager(t, emb, gen, 64, 8)

	sess, err := m.Upload(ctx, "empty.txt", []byte("  \n"))
	require.NoError(t, err)
	assert.Zero(t, sess.Index.Len())

	ans := m.Ask(ctx, "What is the refund policy?")
	require.NoError(t, ans.Err)
	assert.Empty(t, ans.Sources)
	assert.Zero(t, emb.callCount())
	assert.Equal(t, 1, gen.callCount())
}

func TestAsk_TurnScopedFailure(t *testing.T) {
	ctx := context.Background()
	gen := &mockGenerator{failOn: map[int]bool{2: true}}
	m := newManager(t, &mockEmbedder{vocab: vocab}, gen, 64, 8)
	sess, err := m.Upload(ctx, "handbook.txt", []byte(handbook))
	require.NoError(t, err)

	q1 := m.Ask(ctx, "What is the refund policy?")
	require.NoError(t, q1.Err)

	q2 := m.Ask(ctx, "How long does shipping take?")
	assert.True(t, q2.Failed)
	assert.ErrorIs(t, q2.Err, domain.ErrGenerationProvider)

	q3 := m.Ask(ctx, "Is there a welcome guide?")
	require.NoError(t, q3.Err)
	assert.False(t, q3.Failed)

	turns := sess.Memory.Turns()
	require.Len(t, turns, 6)
	assert.Equal(t, "What is the refund policy?", turns[0].Text)
	assert.False(t, turns[1].Failed)
	assert.Equal(t, "How long does shipping take?", turns[2].Text)
	assert.True(t, turns[3].Failed)
	assert.Equal(t, service.FailureNotice, turns[3].Text)

	assert.Contains(t, gen.prompts[2], "Human: What is the refund policy?")
	assert.NotContains(t, gen.prompts[2], "How long does shipping take?")
	assert.Equal(t, 3, sess.Index.Len())
}

func TestAsk_NoSession(t *testing.T) {
	gen := &mockGenerator{}
	m := newManager(t, &mockEmbedder{vocab: vocab}, gen, 64, 8)
	ans := m.Ask(context.Background(), "hi")
	assert.ErrorIs(t, ans.Err, domain.ErrNoSession)
	assert.Zero(t, gen.callCount())
}

func TestAsk_SerializesTurns(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, &mockEmbedder{vocab: vocab}, &mockGenerator{}, 64, 8)
	sess, err := m.Upload(ctx, "handbook.txt", []byte(handbook))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Ask(ctx, "What is the refund policy?")
		}()
	}
	wg.Wait()

	turns := sess.Memory.Turns()
	require.Len(t, turns, 16)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, domain.RoleUser, turns[i].Role)
		assert.Equal(t, domain.RoleBot, turns[i+1].Role)
	}
}

func TestReset_KeepsIndexClearsConversation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := newManager(t, &mockEmbedder{vocab: vocab}, &mockGenerator{}, 64, 8,
		WithClock(func() time.Time { return now }),
		WithPolicy(conversation.Window{Max: 2}))
	assert.Nil(t, m.Reset())

	sess, err := m.Upload(ctx, "handbook.txt", []byte(handbook))
	require.NoError(t, err)
	assert.Equal(t, now, sess.CreatedAt)
	m.Ask(ctx, "hi")

	reset := m.Reset()
	require.NotNil(t, reset)
	assert.Equal(t, sess.ID, reset.ID)
	assert.Same(t, sess.Index, reset.Index)
	assert.Zero(t, reset.Memory.Len())
	assert.Equal(t, 2, sess.Memory.Len())

	require.NoError(t, m.Close(ctx))
	assert.Nil(t, m.Current())
}
