// Package comparison computes trend insights over a bounded window of a
// single user's most recent bills.
package comparison

import (
	"context"
	"fmt"

	"github.com/opopescu/billchat/internal/models"
	"github.com/opopescu/billchat/internal/storage"
)

const (
	// WindowSize is the maximum number of bills considered for comparison.
	WindowSize = 4

	// DefaultAnomalyThreshold flags a pair as anomalous when the absolute
	// percent change exceeds it. Configurable per engine.
	DefaultAnomalyThreshold = 0.25
)

// Flag values attached to deltas and to the result as a whole.
const (
	FlagIncrease = "increase"
	FlagDecrease = "decrease"
	FlagAnomaly  = "anomaly"
)

// Delta is the change between two adjacent bills in the comparison window.
type Delta struct {
	FromBillID    string   `json:"from_bill_id"`
	ToBillID      string   `json:"to_bill_id"`
	AmountDelta   float64  `json:"amount_delta"`
	PercentChange float64  `json:"percent_change"`
	Flags         []string `json:"flags,omitempty"`
}

// Result is a derived comparison over one user's most recent bills.
// It is recomputed on demand and never persisted.
type Result struct {
	UserID string `json:"user_id"`

	// Bills is the comparison window: the user's min(4, available) most
	// recent bills, period end descending.
	Bills []models.Bill `json:"bills_compared"`

	// Deltas holds one entry per adjacent pair in Bills.
	Deltas []Delta `json:"deltas,omitempty"`

	// Flags is the union of all delta flags.
	Flags []string `json:"flags,omitempty"`
}

// Engine produces comparison results for a single user at a time. It is
// handed one user ID per call and has no way to aggregate across users.
type Engine struct {
	bills            storage.BillStore
	anomalyThreshold float64
}

// NewEngine creates a comparison engine over the given bill store.
// threshold <= 0 selects DefaultAnomalyThreshold.
func NewEngine(bills storage.BillStore, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}
	return &Engine{bills: bills, anomalyThreshold: threshold}
}

// Compare fetches the user's bills and compares the most recent window.
// Zero bills is a valid empty result, not an error. One bill yields the bill
// with no deltas.
func (e *Engine) Compare(ctx context.Context, userID string) (*Result, error) {
	bills, err := e.bills.GetBills(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("compare bills for %s: %w", userID, err)
	}
	return CompareBills(userID, bills, e.anomalyThreshold), nil
}

// CompareBills computes the comparison over bills already ordered most recent
// first. Exposed separately so callers holding bills can reuse the math.
func CompareBills(userID string, bills []models.Bill, threshold float64) *Result {
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}

	window := bills
	if len(window) > WindowSize {
		window = window[:WindowSize]
	}

	result := &Result{UserID: userID, Bills: window}
	seen := make(map[string]bool)

	for i := 0; i+1 < len(window); i++ {
		current := window[i]
		next := window[i+1]

		delta := next.Amount - current.Amount
		percent := 0.0
		if current.Amount != 0 {
			percent = delta / current.Amount
		}

		d := Delta{
			FromBillID:    current.ID,
			ToBillID:      next.ID,
			AmountDelta:   delta,
			PercentChange: percent,
		}
		if percent > 0 {
			d.Flags = append(d.Flags, FlagIncrease)
		} else if percent < 0 {
			d.Flags = append(d.Flags, FlagDecrease)
		}
		if percent > threshold || percent < -threshold {
			d.Flags = append(d.Flags, FlagAnomaly)
		}

		for _, f := range d.Flags {
			if !seen[f] {
				seen[f] = true
				result.Flags = append(result.Flags, f)
			}
		}
		result.Deltas = append(result.Deltas, d)
	}

	return result
}
