// Package chat manages per-session conversation history: append-only message
// context, windowing for prompt construction, and durable persistence.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/opopescu/billchat/internal/models"
	"github.com/opopescu/billchat/internal/storage"
)

// DefaultWindow is how many trailing messages are handed to the completion
// service. The full history is always retained for persistence; only the
// windowed tail bounds the prompt.
const DefaultWindow = 10

// Append returns the context with msg inserted at the end. Appending is the
// only mutation: no reorder, no dedupe, no deletion of prior messages.
func Append(conv *models.ConversationContext, msg models.Message) *models.ConversationContext {
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().Unix()
	}
	conv.Messages = append(conv.Messages, msg)
	return conv
}

// Window returns the most recent max messages, oldest first.
// max <= 0 selects DefaultWindow.
func Window(msgs []models.Message, max int) []models.Message {
	if max <= 0 {
		max = DefaultWindow
	}
	if len(msgs) <= max {
		return msgs
	}
	return msgs[len(msgs)-max:]
}

// Manager loads and persists conversation contexts through a ContextStore.
//
// A context is reloaded from the store at the start of each turn and only the
// new tail is written back, so a failed turn never corrupts persisted history.
type Manager struct {
	store storage.ContextStore
}

// NewManager creates a context manager over the given store.
func NewManager(store storage.ContextStore) *Manager {
	return &Manager{store: store}
}

// Load restores the user's conversation history, or an empty context if none
// exists yet.
func (m *Manager) Load(ctx context.Context, userID string) (*models.ConversationContext, error) {
	conv, err := m.store.LoadContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load context for %s: %w", userID, err)
	}
	return conv, nil
}

// Persist durably appends msgs to the user's history. Messages already
// persisted in earlier turns are never rewritten.
func (m *Manager) Persist(ctx context.Context, userID string, msgs []models.Message) error {
	if err := m.store.AppendMessages(ctx, userID, msgs); err != nil {
		return fmt.Errorf("persist context for %s: %w", userID, err)
	}
	return nil
}
