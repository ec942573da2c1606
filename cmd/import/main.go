// Command import loads a user's bill history from a JSON file into the
// SQLite store. The file format matches the export produced by the billing
// extraction tooling: a list of bills with period dates, totals, and line
// items.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/opopescu/billchat/internal/models"
	"github.com/opopescu/billchat/internal/storage/sqlite"
	"github.com/opopescu/billchat/pkg/logging"
)

type billFile struct {
	UserID string     `json:"user_id"`
	Bills  []billJSON `json:"bills"`
}

type billJSON struct {
	PeriodStart string         `json:"period_start"` // YYYY-MM-DD
	PeriodEnd   string         `json:"period_end"`
	Amount      float64        `json:"amount"`
	LineItems   []lineItemJSON `json:"line_items"`
}

type lineItemJSON struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

func main() {
	logging.Setup()

	dbPath := flag.String("db", "./data/billchat.db", "path to the SQLite database")
	file := flag.String("file", "", "JSON bill-history file to import")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: import -file user_data.json [-db path]")
		os.Exit(2)
	}

	if err := run(*dbPath, *file); err != nil {
		slog.Error("Import failed", "error", err)
		os.Exit(1)
	}
}

func run(dbPath, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	var parsed billFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}
	if parsed.UserID == "" {
		return fmt.Errorf("%s: user_id is required", file)
	}

	bills := make([]models.Bill, 0, len(parsed.Bills))
	for i, b := range parsed.Bills {
		start, err := time.Parse("2006-01-02", b.PeriodStart)
		if err != nil {
			return fmt.Errorf("bill %d: invalid period_start: %w", i, err)
		}
		end, err := time.Parse("2006-01-02", b.PeriodEnd)
		if err != nil {
			return fmt.Errorf("bill %d: invalid period_end: %w", i, err)
		}

		items := make([]models.LineItem, 0, len(b.LineItems))
		for _, item := range b.LineItems {
			items = append(items, models.LineItem{Description: item.Description, Amount: item.Amount})
		}
		bills = append(bills, models.Bill{
			UserID:      parsed.UserID,
			PeriodStart: start,
			PeriodEnd:   end,
			Amount:      b.Amount,
			LineItems:   items,
		})
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := store.PutBills(context.Background(), parsed.UserID, bills); err != nil {
		return err
	}

	slog.Info("Import complete", "user_id", parsed.UserID, "bills", len(bills))
	return nil
}
