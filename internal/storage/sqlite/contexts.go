package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/opopescu/billchat/internal/models"
	"github.com/opopescu/billchat/internal/storage"
)

// LoadContext restores the user's conversation history, oldest message first.
// Returns an empty context (not an error) if no history exists yet.
func (s *SQLiteStore) LoadContext(ctx context.Context, userID string) (*models.ConversationContext, error) {
	if err := checkScope(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT role, text, created_at FROM messages WHERE user_id = ? ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load context: %v", storage.ErrPersistence, err)
	}
	defer rows.Close()

	conv := &models.ConversationContext{UserID: userID}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.Role, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan message: %v", storage.ErrPersistence, err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate messages: %v", storage.ErrPersistence, err)
	}

	if len(conv.Messages) > 0 {
		conv.CreatedAt = conv.Messages[0].CreatedAt
	} else {
		conv.CreatedAt = time.Now().Unix()
	}
	return conv, nil
}

// AppendMessages durably appends messages to the user's history in one
// transaction. Prior messages are never touched: the autoincrement row ID
// preserves insertion order, and the only write is INSERT.
func (s *SQLiteStore) AppendMessages(ctx context.Context, userID string, msgs []models.Message) error {
	if err := checkScope(ctx, userID); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", storage.ErrPersistence, err)
	}
	defer tx.Rollback()

	for _, msg := range msgs {
		if msg.CreatedAt == 0 {
			msg.CreatedAt = time.Now().Unix()
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO messages (user_id, role, text, created_at) VALUES (?, ?, ?, ?)",
			userID, msg.Role, msg.Text, msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: failed to insert message: %v", storage.ErrPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", storage.ErrPersistence, err)
	}
	return nil
}
