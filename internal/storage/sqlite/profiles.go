package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opopescu/billchat/internal/models"
	"github.com/opopescu/billchat/internal/storage"
)

// LoadProfile returns the user's profile, creating a default one on first
// access. Idempotent: concurrent first accesses resolve to the same row.
func (s *SQLiteStore) LoadProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if err := checkScope(ctx, userID); err != nil {
		return nil, err
	}

	profile, err := s.readProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("%w: failed to load profile: %v", storage.ErrPersistence, err)
	}

	// First contact: create a default profile.
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO profiles (user_id, display_name, account_ref, created_at) VALUES (?, ?, ?, ?) ON CONFLICT(user_id) DO NOTHING",
		userID, userID, "", time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create default profile: %v", storage.ErrPersistence, err)
	}

	profile, err = s.readProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to reload profile: %v", storage.ErrPersistence, err)
	}
	return profile, nil
}

func (s *SQLiteStore) readProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile := &models.UserProfile{}
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, display_name, account_ref, created_at FROM profiles WHERE user_id = ?",
		userID,
	).Scan(&profile.UserID, &profile.DisplayName, &profile.AccountRef, &profile.CreatedAt)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// SaveProfile persists the profile synchronously. Once it returns nil, the
// next LoadProfile for the same user observes the update.
func (s *SQLiteStore) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	if err := checkScope(ctx, profile.UserID); err != nil {
		return err
	}
	if profile.CreatedAt == 0 {
		profile.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, display_name, account_ref, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET display_name = excluded.display_name, account_ref = excluded.account_ref`,
		profile.UserID, profile.DisplayName, profile.AccountRef, profile.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to save profile: %v", storage.ErrPersistence, err)
	}
	return nil
}
