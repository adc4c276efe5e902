// Package conversation keeps the append-only transcript of a session and renders
// it into prompt context.
package conversation

import (
	"strings"
	"sync"

	"docqa/internal/domain"
)

// Exchange is a completed question/answer pair.
type Exchange struct {
	Question string
	Answer   string
}

// Memory is the ordered, append-only turn log of one session. Turns are never
// removed; Policy only decides how much of the log is rendered by AsContext.
type Memory struct {
	mu     sync.RWMutex
	turns  []domain.Turn
	policy Policy
}

// New creates an empty memory. A nil policy renders every exchange.
func New(policy Policy) *Memory {
	if policy == nil {
		policy = Unbounded{}
	}
	return &Memory{policy: policy}
}

// Append adds a question and its answer as a User turn followed by a Bot turn.
func (m *Memory) Append(question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(domain.RoleUser, question, false)
	m.add(domain.RoleBot, answer, false)
}

// AppendUser records a question as soon as it arrives.
func (m *Memory) AppendUser(question string) domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(domain.RoleUser, question, false)
}

// AppendBot records an answer.
func (m *Memory) AppendBot(answer string) domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(domain.RoleBot, answer, false)
}

// AppendFailure records a failure notice. The exchange it closes stays in the
// transcript but is left out of prompt context.
func (m *Memory) AppendFailure(notice string) domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(domain.RoleBot, notice, true)
}

func (m *Memory) add(role domain.Role, text string, failed bool) domain.Turn {
	t := domain.Turn{Seq: len(m.turns) + 1, Role: role, Text: text, Failed: failed}
	m.turns = append(m.turns, t)
	return t
}

// Turns returns a copy of the transcript.
func (m *Memory) Turns() []domain.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Len reports the number of turns.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Exchanges pairs each User turn with the Bot turn that follows it. Failed
// exchanges and a trailing unanswered question are skipped.
func (m *Memory) Exchanges() []Exchange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Exchange
	for i := 0; i+1 < len(m.turns); i++ {
		q, a := m.turns[i], m.turns[i+1]
		if q.Role != domain.RoleUser || a.Role != domain.RoleBot {
			continue
		}
		i++
		if a.Failed {
			continue
		}
		out = append(out, Exchange{Question: q.Text, Answer: a.Text})
	}
	return out
}

// AsContext renders the exchanges selected by the policy as prompt context.
func (m *Memory) AsContext() string {
	return Render(m.policy.Select(m.Exchanges()))
}

// Render formats exchanges as alternating Human/Assistant lines.
func Render(exchanges []Exchange) string {
	var b strings.Builder
	for i, ex := range exchanges {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Human: ")
		b.WriteString(ex.Question)
		b.WriteString("\nAssistant: ")
		b.WriteString(ex.Answer)
	}
	return b.String()
}
