package model

// Role is the role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message sent to an LLM backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
