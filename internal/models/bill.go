package models

import "time"

// Bill represents one billing period's record for a single user.
// Bills are immutable once issued and owned exclusively by their UserID.
type Bill struct {
	// ID is the unique identifier for the bill (UUID format).
	ID string `json:"id"`

	// UserID is the owning user. Set at issue time and never changed.
	UserID string `json:"user_id"`

	// PeriodStart is the first day covered by this bill.
	PeriodStart time.Time `json:"period_start"`

	// PeriodEnd is the last day covered by this bill. Bills are ordered
	// by PeriodEnd when retrieved.
	PeriodEnd time.Time `json:"period_end"`

	// Amount is the total charged for the period.
	Amount float64 `json:"amount"`

	// LineItems are the individual charges on the bill, in statement order.
	LineItems []LineItem `json:"line_items,omitempty"`

	// CreatedAt is the Unix timestamp when the bill was imported.
	CreatedAt int64 `json:"created_at"`
}

// LineItem represents a single charge on a bill.
type LineItem struct {
	// Description is the charge label (e.g. "Subscription", "Roaming").
	Description string `json:"description"`

	// Amount is the charge amount.
	Amount float64 `json:"amount"`
}
