package conversation

// Policy chooses which exchanges are rendered into prompt context. It never
// mutates the stored transcript.
type Policy interface {
	Select(exchanges []Exchange) []Exchange
}

// Unbounded renders every exchange.
type Unbounded struct{}

func (Unbounded) Select(exchanges []Exchange) []Exchange { return exchanges }

// Window renders the most recent Max exchanges.
type Window struct {
	Max int
}

func (w Window) Select(exchanges []Exchange) []Exchange {
	if w.Max <= 0 || len(exchanges) <= w.Max {
		return exchanges
	}
	return exchanges[len(exchanges)-w.Max:]
}

// Budget renders the newest exchanges whose combined question and answer
// length stays within Runes.
type Budget struct {
	Runes int
}

func (b Budget) Select(exchanges []Exchange) []Exchange {
	if b.Runes <= 0 {
		return exchanges
	}
	used := 0
	start := len(exchanges)
	for i := len(exchanges) - 1; i >= 0; i-- {
		n := len([]rune(exchanges[i].Question)) + len([]rune(exchanges[i].Answer))
		if used+n > b.Runes {
			break
		}
		used += n
		start = i
	}
	return exchanges[start:]
}

// NewPolicy maps configuration to a policy: a rune budget wins over an exchange
// window, and neither means unbounded.
func NewPolicy(maxExchanges, maxRunes int) Policy {
	switch {
	case maxRunes > 0:
		return Budget{Runes: maxRunes}
	case maxExchanges > 0:
		return Window{Max: maxExchanges}
	default:
		return Unbounded{}
	}
}
