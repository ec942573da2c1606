package models

// Message roles. Ordering of messages is insertion order and is significant.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message. Messages are immutable once created.
type Message struct {
	// Role is RoleUser or RoleAssistant.
	Role string `json:"role"`

	// Text is the message content.
	Text string `json:"text"`

	// CreatedAt is the Unix timestamp when the message was created.
	CreatedAt int64 `json:"created_at"`
}

// ConversationContext is the ordered message history for one user's session.
//
// The only permitted mutation is appending a message at the end: no in-place
// edits, no deletions, no reordering.
type ConversationContext struct {
	// UserID is the user the session belongs to.
	UserID string `json:"user_id"`

	// Messages is the full history, oldest first.
	Messages []Message `json:"messages"`

	// CreatedAt is the Unix timestamp when the context was first created.
	CreatedAt int64 `json:"created_at"`
}
