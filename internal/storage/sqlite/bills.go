package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opopescu/billchat/internal/models"
	"github.com/opopescu/billchat/internal/storage"
)

// GetBills returns the user's bills most recent first (period end descending),
// including line items. A known user with no billing history gets an empty
// slice; an unknown user gets storage.ErrUnknownUser.
func (s *SQLiteStore) GetBills(ctx context.Context, userID string) ([]models.Bill, error) {
	if err := checkScope(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, period_start, period_end, amount, created_at
		 FROM bills WHERE user_id = ? ORDER BY period_end DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get bills: %v", storage.ErrPersistence, err)
	}
	defer rows.Close()

	var bills []models.Bill
	for rows.Next() {
		var bill models.Bill
		var periodStart, periodEnd int64
		if err := rows.Scan(&bill.ID, &bill.UserID, &periodStart, &periodEnd, &bill.Amount, &bill.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan bill: %v", storage.ErrPersistence, err)
		}
		bill.PeriodStart = time.Unix(periodStart, 0).UTC()
		bill.PeriodEnd = time.Unix(periodEnd, 0).UTC()
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate bills: %v", storage.ErrPersistence, err)
	}

	if len(bills) == 0 {
		known, err := s.userKnown(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("%w: %s", storage.ErrUnknownUser, userID)
		}
		return []models.Bill{}, nil
	}

	for i := range bills {
		items, err := s.getLineItems(ctx, bills[i].ID)
		if err != nil {
			return nil, err
		}
		bills[i].LineItems = items
	}

	return bills, nil
}

func (s *SQLiteStore) getLineItems(ctx context.Context, billID string) ([]models.LineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT description, amount FROM line_items WHERE bill_id = ? ORDER BY position",
		billID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get line items: %v", storage.ErrPersistence, err)
	}
	defer rows.Close()

	var items []models.LineItem
	for rows.Next() {
		var item models.LineItem
		if err := rows.Scan(&item.Description, &item.Amount); err != nil {
			return nil, fmt.Errorf("%w: failed to scan line item: %v", storage.ErrPersistence, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate line items: %v", storage.ErrPersistence, err)
	}
	return items, nil
}

// PutBills inserts issued bills for the user in one transaction.
// Bill IDs and CreatedAt are generated when unset.
func (s *SQLiteStore) PutBills(ctx context.Context, userID string, bills []models.Bill) error {
	if err := checkScope(ctx, userID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", storage.ErrPersistence, err)
	}
	defer tx.Rollback()

	for i := range bills {
		bill := &bills[i]
		if bill.ID == "" {
			bill.ID = uuid.New().String()
		}
		if bill.CreatedAt == 0 {
			bill.CreatedAt = time.Now().Unix()
		}
		bill.UserID = userID

		_, err = tx.ExecContext(ctx,
			"INSERT INTO bills (id, user_id, period_start, period_end, amount, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			bill.ID, bill.UserID, bill.PeriodStart.Unix(), bill.PeriodEnd.Unix(), bill.Amount, bill.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: failed to insert bill: %v", storage.ErrPersistence, err)
		}

		for pos, item := range bill.LineItems {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO line_items (bill_id, position, description, amount) VALUES (?, ?, ?, ?)",
				bill.ID, pos, item.Description, item.Amount,
			)
			if err != nil {
				return fmt.Errorf("%w: failed to insert line item: %v", storage.ErrPersistence, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", storage.ErrPersistence, err)
	}
	return nil
}
