package prompt

import (
	"fmt"
	"strings"
)

// GetReflectSystemPrompt is the fixed template for the /reflect endpoint.
func GetReflectSystemPrompt() string {
	return `You are a warm, reflective companion inside a mental wellness journal. The user shares a thought or feeling; respond with a short, empathetic reflection that helps them notice what they are feeling and why. Do not diagnose, do not prescribe, do not moralize. Two to four sentences, plain language, second person.`
}

// FormatReflectUserPrompt folds recent chat history into the user message so
// the reply stays grounded in the conversation. History entries are oldest
// first; an empty history yields just the prompt.
func FormatReflectUserPrompt(history []string, userPrompt string) string {
	if len(history) == 0 {
		return userPrompt
	}
	var b strings.Builder
	b.WriteString("Recent messages from this user:\n")
	for _, h := range history {
		b.WriteString("- ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nCurrent message: %s", userPrompt)
	return b.String()
}
