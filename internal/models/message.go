package models

import "time"

// Message represents an individual entry within a conversation transcript. It contains the participant's
// role, the text content, and the time the message was created. The ID is unique per message and is used
// to address streaming updates to the browser.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a prompt typed by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a response produced by the recommendation assistant.
	RoleAssistant Role = "assistant"
)

// Streaming states of an assistant message, as rendered by the web UI.
const (
	StreamingStateLoading   = "loading"
	StreamingStateStreaming = "streaming"
	StreamingStateEnded     = "ended"
)
