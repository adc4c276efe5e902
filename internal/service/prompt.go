package service

import (
	"fmt"
	"strings"

	"docqa/internal/domain"
)

// DefaultInstruction opens every answer prompt.
const DefaultInstruction = "You are a helpful assistant answering questions about an uploaded document. " +
	"Use only the context passages below. Cite pages as [page N]. " +
	"If the answer is not in the context, say you don't know."

// ComposePrompt assembles the answer prompt: instruction, prior conversation,
// retrieved passages tagged with their 1-based page, and the question.
func ComposePrompt(instruction, history string, results []domain.SearchResult, question string) string {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n")

	if history != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(history)
		b.WriteString("\n\n")
	}

	b.WriteString("Context:\n")
	if len(results) == 0 {
		b.WriteString("(no matching passages)\n")
	}
	for _, r := range results {
		fmt.Fprintf(&b, "[page %d]\n%s\n\n", r.Chunk.SourcePage+1, r.Chunk.Text)
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

// CondensePrompt asks the generator to rewrite a follow-up as a standalone
// question.
func CondensePrompt(history, question string) string {
	return "Given the following conversation and a follow up question, " +
		"rephrase the follow up question to be a standalone question, in its original language.\n\n" +
		"Chat History:\n" + history + "\n" +
		"Follow Up Input: " + question + "\n" +
		"Standalone question:"
}
