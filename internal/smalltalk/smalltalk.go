// Package smalltalk answers greetings and other chit-chat without touching the
// document index or any provider.
package smalltalk

import "strings"

// Category names the kind of small talk recognized.
type Category string

const (
	Greeting  Category = "greeting"
	Farewell  Category = "farewell"
	Gratitude Category = "gratitude"
	Identity  Category = "identity"
	WellBeing Category = "well-being"
)

// Reply is a canned response for a recognized category.
type Reply struct {
	Category Category
	Text     string
}

type rule struct {
	category Category
	exact    []string
	contains []string
	response string
}

// Rules are checked in order; the first match wins.
var rules = []rule{
	{
		category: Greeting,
		exact:    []string{"hi", "hello", "hey"},
		response: "👋 Hello! I'm your AI assistant. How can I help you today?",
	},
	{
		category: Farewell,
		exact:    []string{"bye", "goodbye", "see you", "exit"},
		response: "👋 Goodbye! Have a great day ahead. 😊",
	},
	{
		category: Gratitude,
		contains: []string{"thank"},
		response: "You're welcome! 😊 Let me know if you need anything else.",
	},
	{
		category: Identity,
		contains: []string{"who are you"},
		response: "I'm your PDF AI Assistant. Upload a PDF and ask me anything about it.",
	},
	{
		category: WellBeing,
		contains: []string{"how are you"},
		response: "I'm always learning and ready to help you. 😊",
	},
}

// Classify returns the canned reply for query, or false when the query must go
// through retrieval and generation.
func Classify(query string) (Reply, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Reply{}, false
	}
	for _, r := range rules {
		for _, e := range r.exact {
			if q == e {
				return Reply{Category: r.category, Text: r.response}, true
			}
		}
		for _, c := range r.contains {
			if strings.Contains(q, c) {
				return Reply{Category: r.category, Text: r.response}, true
			}
		}
	}
	return Reply{}, false
}
