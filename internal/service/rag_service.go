// Package service answers questions against an indexed document, combining
// small-talk handling, retrieval and generation.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/conversation"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/smalltalk"
)

// FailureNotice is the bot turn recorded when a provider fails.
const FailureNotice = "⚠️ Sorry, I couldn't answer that right now. Please try again."

// State is a step of answering one question.
type State int

const (
	Idle State = iota
	Classifying
	SmallTalkAnswered
	Retrieving
	Generating
	Answered
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Classifying:
		return "classifying"
	case SmallTalkAnswered:
		return "small-talk-answered"
	case Retrieving:
		return "retrieving"
	case Generating:
		return "generating"
	case Answered:
		return "answered"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Retriever returns the chunks most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}

// Orchestrator answers questions. It holds no per-session state; the index and
// memory are passed to every Ask.
type Orchestrator struct {
	generator   domain.Generator
	topK        int
	condense    bool
	instruction string
	observe     func(State)
	logger      *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTopK sets how many chunks are retrieved per question.
func WithTopK(k int) Option {
	return func(o *Orchestrator) { o.topK = k }
}

// WithCondense rewrites follow-up questions into standalone ones before
// retrieval, at the cost of one extra generation call.
func WithCondense(enabled bool) Option {
	return func(o *Orchestrator) { o.condense = enabled }
}

// WithInstruction replaces DefaultInstruction.
func WithInstruction(s string) Option {
	return func(o *Orchestrator) {
		if s != "" {
			o.instruction = s
		}
	}
}

// WithStateObserver is called on every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger.OrNop(l) }
}

// New creates an orchestrator around the generation provider.
func New(generator domain.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		generator:   generator,
		instruction: DefaultInstruction,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ask answers one question and records it in mem. Provider failures never
// escape: they are recorded as a failed bot turn and reported through
// Answer.Failed and Answer.Err, leaving index and memory usable. Callers must
// not run two Asks on the same memory concurrently.
func (o *Orchestrator) Ask(ctx context.Context, ix Retriever, mem *conversation.Memory, question string) domain.Answer {
	q := strings.TrimSpace(question)
	if q == "" {
		return domain.Answer{Err: domain.ErrEmptyQuestion}
	}
	defer o.transition(Idle)

	history := mem.AsContext()
	mem.AppendUser(q)

	o.transition(Classifying)
	if reply, ok := smalltalk.Classify(q); ok {
		mem.AppendBot(reply.Text)
		o.transition(SmallTalkAnswered)
		o.logger.Debug("answered small talk", zap.String("category", string(reply.Category)))
		return domain.Answer{Text: reply.Text, SmallTalk: true}
	}

	o.transition(Retrieving)
	query := q
	if o.condense && history != "" {
		standalone, err := o.generator.Generate(ctx, CondensePrompt(history, q))
		if err != nil {
			return o.fail(mem, generationError(err))
		}
		if s := strings.TrimSpace(standalone); s != "" {
			query = s
		}
		o.logger.Debug("condensed question", zap.String("query", query))
	}

	results, err := ix.Retrieve(ctx, query, o.topK)
	if err != nil {
		return o.fail(mem, err)
	}

	o.transition(Generating)
	prompt := ComposePrompt(o.instruction, history, results, q)
	text, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return o.fail(mem, generationError(err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return o.fail(mem, fmt.Errorf("%w: empty answer", domain.ErrGenerationProvider))
	}

	mem.AppendBot(text)
	o.transition(Answered)
	o.logger.Debug("answered question",
		zap.Int("sources", len(results)),
		zap.String("generator", o.generator.Name()),
	)
	return domain.Answer{Text: text, Sources: sources(results, q)}
}

func (o *Orchestrator) fail(mem *conversation.Memory, err error) domain.Answer {
	mem.AppendFailure(FailureNotice)
	o.transition(Failed)
	o.logger.Warn("question failed", zap.Error(err))
	return domain.Answer{Text: FailureNotice, Failed: true, Err: err}
}

func (o *Orchestrator) transition(s State) {
	if o.observe != nil {
		o.observe(s)
	}
}

func generationError(err error) error {
	if errors.Is(err, domain.ErrGenerationProvider) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrGenerationProvider, err)
}

// sources attributes an answer to the pages of the retrieved chunks, keeping
// retrieval order.
func sources(results []domain.SearchResult, question string) []domain.Source {
	if len(results) == 0 {
		return nil
	}
	out := make([]domain.Source, 0, len(results))
	for _, r := range results {
		out = append(out, domain.Source{
			Page:    r.Chunk.SourcePage + 1,
			Excerpt: Excerpt(r.Chunk.Text, question, MaxExcerptRunes),
			Score:   r.Score,
		})
	}
	return out
}
