package rag

import (
	"context"
	"fmt"
)

const promptPreamble = "Answer the user's question using this context:\n"

// AssemblePrompt puts the retrieved context and the question into the fixed
// prompt template.
func AssemblePrompt(retrieved string, question string) string {
	return fmt.Sprintf("%s%s\n\nUser: %s\nAI:", promptPreamble, retrieved, question)
}

// Generator produces free-form text for a prompt using a hosted model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Preview shortens text to its first n characters followed by "...".
func Preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}

	return string(runes[:n]) + "..."
}
