package models

// UserProfile holds the authenticated user's identity and account reference.
//
// A profile is created with defaults on first access and persists for the
// lifetime of the account. It is only changed by explicit profile updates,
// never as a side effect of a chat turn.
type UserProfile struct {
	// UserID is the unique, stable identifier for the user.
	UserID string `json:"user_id"`

	// DisplayName is the name shown in conversation.
	DisplayName string `json:"display_name"`

	// AccountRef is the telecom account reference the user's bills are
	// issued under.
	AccountRef string `json:"account_ref"`

	// CreatedAt is the Unix timestamp when the profile was first created.
	CreatedAt int64 `json:"created_at"`
}
