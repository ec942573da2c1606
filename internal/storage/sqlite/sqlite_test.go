package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/opopescu/billchat/internal/middleware"
	"github.com/opopescu/billchat/internal/models"
	"github.com/opopescu/billchat/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testBill(userID string, endYear int, endMonth time.Month, amount float64) models.Bill {
	end := time.Date(endYear, endMonth, 28, 0, 0, 0, 0, time.UTC)
	return models.Bill{
		UserID:      userID,
		PeriodStart: end.AddDate(0, -1, 1),
		PeriodEnd:   end,
		Amount:      amount,
		LineItems: []models.LineItem{
			{Description: "Subscription", Amount: amount * 0.8},
			{Description: "Usage", Amount: amount * 0.2},
		},
	}
}

func TestBills(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("PutBills generates IDs and GetBills orders newest first", func(t *testing.T) {
		bills := []models.Bill{
			testBill("u1", 2026, time.March, 80),
			testBill("u1", 2026, time.May, 120),
			testBill("u1", 2026, time.April, 100),
		}
		if err := store.PutBills(ctx, "u1", bills); err != nil {
			t.Fatalf("PutBills failed: %v", err)
		}

		got, err := store.GetBills(ctx, "u1")
		if err != nil {
			t.Fatalf("GetBills failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}

		wantAmounts := []float64{120, 100, 80}
		for i, bill := range got {
			if bill.Amount != wantAmounts[i] {
				t.Errorf("bill %d amount = %v, want %v", i, bill.Amount, wantAmounts[i])
			}
			if bill.ID == "" {
				t.Errorf("bill %d has no generated ID", i)
			}
			if bill.UserID != "u1" {
				t.Errorf("bill %d owner = %q, want u1", i, bill.UserID)
			}
			if len(bill.LineItems) != 2 {
				t.Errorf("bill %d line items = %d, want 2", i, len(bill.LineItems))
			}
		}
	})

	t.Run("unknown user fails with ErrUnknownUser", func(t *testing.T) {
		_, err := store.GetBills(ctx, "nobody")
		if !errors.Is(err, storage.ErrUnknownUser) {
			t.Errorf("err = %v, want ErrUnknownUser", err)
		}
	})

	t.Run("known user without bills gets an empty slice", func(t *testing.T) {
		if _, err := store.LoadProfile(ctx, "u-profile-only"); err != nil {
			t.Fatalf("LoadProfile failed: %v", err)
		}

		bills, err := store.GetBills(ctx, "u-profile-only")
		if err != nil {
			t.Fatalf("GetBills failed: %v", err)
		}
		if len(bills) != 0 {
			t.Errorf("len = %d, want 0", len(bills))
		}
	})

	t.Run("bills never cross user boundaries", func(t *testing.T) {
		if err := store.PutBills(ctx, "uA", []models.Bill{testBill("uA", 2026, time.May, 10)}); err != nil {
			t.Fatalf("PutBills uA failed: %v", err)
		}
		if err := store.PutBills(ctx, "uB", []models.Bill{testBill("uB", 2026, time.May, 99)}); err != nil {
			t.Fatalf("PutBills uB failed: %v", err)
		}

		billsA, err := store.GetBills(ctx, "uA")
		if err != nil {
			t.Fatalf("GetBills uA failed: %v", err)
		}
		for _, bill := range billsA {
			if bill.UserID != "uA" {
				t.Errorf("GetBills(uA) returned bill owned by %q", bill.UserID)
			}
			if bill.Amount == 99 {
				t.Error("GetBills(uA) leaked uB's bill")
			}
		}
	})

	t.Run("scope mismatch fails before any lookup", func(t *testing.T) {
		authedCtx := middleware.WithUserID(ctx, "uA")

		_, err := store.GetBills(authedCtx, "uB")
		if !errors.Is(err, storage.ErrAccessDenied) {
			t.Errorf("GetBills err = %v, want ErrAccessDenied", err)
		}
		_, err = store.LoadContext(authedCtx, "uB")
		if !errors.Is(err, storage.ErrAccessDenied) {
			t.Errorf("LoadContext err = %v, want ErrAccessDenied", err)
		}
		_, err = store.LoadProfile(authedCtx, "uB")
		if !errors.Is(err, storage.ErrAccessDenied) {
			t.Errorf("LoadProfile err = %v, want ErrAccessDenied", err)
		}

		// Matching identity passes.
		if _, err := store.GetBills(authedCtx, "uA"); err != nil {
			t.Errorf("GetBills with matching identity failed: %v", err)
		}
	})
}

func TestProfiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("LoadProfile creates a default on first access", func(t *testing.T) {
		profile, err := store.LoadProfile(ctx, "u1")
		if err != nil {
			t.Fatalf("LoadProfile failed: %v", err)
		}
		if profile.UserID != "u1" {
			t.Errorf("UserID = %q, want u1", profile.UserID)
		}
		if profile.CreatedAt == 0 {
			t.Error("expected CreatedAt to be set")
		}

		// Idempotent: a second load returns the same profile.
		again, err := store.LoadProfile(ctx, "u1")
		if err != nil {
			t.Fatalf("second LoadProfile failed: %v", err)
		}
		if again.CreatedAt != profile.CreatedAt {
			t.Errorf("second load CreatedAt = %d, want %d", again.CreatedAt, profile.CreatedAt)
		}
	})

	t.Run("SaveProfile is read-your-writes", func(t *testing.T) {
		profile, err := store.LoadProfile(ctx, "u2")
		if err != nil {
			t.Fatalf("LoadProfile failed: %v", err)
		}

		profile.DisplayName = "Ana"
		profile.AccountRef = "RO-7781"
		if err := store.SaveProfile(ctx, profile); err != nil {
			t.Fatalf("SaveProfile failed: %v", err)
		}

		got, err := store.LoadProfile(ctx, "u2")
		if err != nil {
			t.Fatalf("LoadProfile after save failed: %v", err)
		}
		if got.DisplayName != "Ana" || got.AccountRef != "RO-7781" {
			t.Errorf("got %+v, want saved fields visible immediately", got)
		}
	})
}

func TestContexts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("LoadContext with no history is empty, not an error", func(t *testing.T) {
		conv, err := store.LoadContext(ctx, "u1")
		if err != nil {
			t.Fatalf("LoadContext failed: %v", err)
		}
		if len(conv.Messages) != 0 {
			t.Errorf("len = %d, want 0", len(conv.Messages))
		}
	})

	t.Run("AppendMessages preserves insertion order across turns", func(t *testing.T) {
		turn1 := []models.Message{
			{Role: models.RoleUser, Text: "how much was my last bill?", CreatedAt: 100},
			{Role: models.RoleAssistant, Text: "Your May bill was 120.00.", CreatedAt: 100},
		}
		turn2 := []models.Message{
			{Role: models.RoleUser, Text: "and the one before?", CreatedAt: 200},
			{Role: models.RoleAssistant, Text: "April was 100.00.", CreatedAt: 200},
		}
		if err := store.AppendMessages(ctx, "u1", turn1); err != nil {
			t.Fatalf("AppendMessages turn1 failed: %v", err)
		}
		if err := store.AppendMessages(ctx, "u1", turn2); err != nil {
			t.Fatalf("AppendMessages turn2 failed: %v", err)
		}

		conv, err := store.LoadContext(ctx, "u1")
		if err != nil {
			t.Fatalf("LoadContext failed: %v", err)
		}
		if len(conv.Messages) != 4 {
			t.Fatalf("len = %d, want 4", len(conv.Messages))
		}

		wantTexts := []string{
			"how much was my last bill?",
			"Your May bill was 120.00.",
			"and the one before?",
			"April was 100.00.",
		}
		for i, msg := range conv.Messages {
			if msg.Text != wantTexts[i] {
				t.Errorf("message %d = %q, want %q", i, msg.Text, wantTexts[i])
			}
		}
		if conv.CreatedAt != 100 {
			t.Errorf("CreatedAt = %d, want first message timestamp 100", conv.CreatedAt)
		}
	})

	t.Run("history is isolated per user", func(t *testing.T) {
		if err := store.AppendMessages(ctx, "u-other", []models.Message{
			{Role: models.RoleUser, Text: "secret question", CreatedAt: 300},
		}); err != nil {
			t.Fatalf("AppendMessages failed: %v", err)
		}

		conv, err := store.LoadContext(ctx, "u1")
		if err != nil {
			t.Fatalf("LoadContext failed: %v", err)
		}
		for _, msg := range conv.Messages {
			if msg.Text == "secret question" {
				t.Error("LoadContext(u1) leaked u-other's message")
			}
		}
	})
}
