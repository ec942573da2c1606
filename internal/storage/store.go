// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/opopescu/billchat/internal/models"
)

// Sentinel errors for the storage boundary. Callers match these with
// errors.Is; implementations wrap them with detail.
var (
	// ErrUnknownUser is returned when the user itself does not exist.
	// A known user with no bills is NOT an error (empty slice instead).
	ErrUnknownUser = errors.New("unknown user")

	// ErrAccessDenied is returned when the requested user ID does not match
	// the authenticated identity attached to the request context.
	ErrAccessDenied = errors.New("access denied: user scope mismatch")

	// ErrPersistence is returned when the backing store is unreachable or a
	// write cannot be completed. Never swallowed: stale profile or context
	// data must not leak into billing-scope decisions.
	ErrPersistence = errors.New("persistence failure")
)

// BillStore is a read-mostly accessor over a user's billing records.
//
// The user ID is the sole selector: there is deliberately no filter parameter
// that could widen a query to another user's records.
type BillStore interface {
	// GetBills returns the user's bills ordered most recent first
	// (period end descending). A known user with no billing history gets an
	// empty slice; an unknown user gets ErrUnknownUser. If the context
	// carries an authenticated identity different from userID, GetBills
	// fails with ErrAccessDenied before any lookup.
	GetBills(ctx context.Context, userID string) ([]models.Bill, error)

	// PutBills inserts issued bills for the user in one transaction.
	// Used by the import tool; bills are immutable once inserted.
	PutBills(ctx context.Context, userID string, bills []models.Bill) error
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	// LoadProfile returns the user's profile, creating a default one on
	// first access. Idempotent.
	LoadProfile(ctx context.Context, userID string) (*models.UserProfile, error)

	// SaveProfile persists the profile synchronously: once it returns nil,
	// the next LoadProfile for the same user observes the update.
	SaveProfile(ctx context.Context, profile *models.UserProfile) error
}

// ContextStore persists conversation history per user.
//
// Writes for a given user are serialized; distinct users never contend.
type ContextStore interface {
	// LoadContext restores the user's conversation history, oldest message
	// first. Returns an empty context (not an error) if none exists.
	LoadContext(ctx context.Context, userID string) (*models.ConversationContext, error)

	// AppendMessages durably appends messages to the user's history in one
	// transaction. Previously persisted messages are never rewritten.
	AppendMessages(ctx context.Context, userID string, msgs []models.Message) error
}

// Store combines all storage concerns behind one backend.
type Store interface {
	BillStore
	ProfileStore
	ContextStore

	// Close releases any resources held by the store.
	Close() error
}
