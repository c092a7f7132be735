// Package llm provides the provider-agnostic types and interfaces for text
// generation used by the memory engine.
package llm

import "strings"

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// NewMessage creates a message with the given role and content.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// Transcript renders messages as a plain "role: content" transcript,
// one message per line. This is the canonical textual form used for
// analysis prompts and chunk content.
func Transcript(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
