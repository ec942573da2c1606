package conversation

import (
	"fmt"
	"strings"

	"github.com/opopescu/billchat/internal/comparison"
	"github.com/opopescu/billchat/internal/models"
)

const systemPreamble = "You are a billing assistant for a telecom provider. " +
	"Answer only from the billing data provided below. " +
	"The data belongs to the current user; never speculate about other accounts. " +
	"Amounts are in the account currency. Be concise."

// composePrompt builds the completion prompt from the windowed conversation
// history, the user's profile, the scoped billing data, and the utterance.
func composePrompt(profile *models.UserProfile, history []models.Message, data, utterance string) string {
	var b strings.Builder

	b.WriteString(systemPreamble)
	b.WriteString("\n\n")

	if profile.DisplayName != "" {
		fmt.Fprintf(&b, "Customer: %s", profile.DisplayName)
		if profile.AccountRef != "" {
			fmt.Fprintf(&b, " (account %s)", profile.AccountRef)
		}
		b.WriteString("\n\n")
	}

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString("Billing data:\n")
	b.WriteString(data)
	b.WriteString("\n")

	fmt.Fprintf(&b, "user: %s\nassistant:", utterance)
	return b.String()
}

// renderBills formats bills as structured text for the prompt, most recent
// first.
func renderBills(bills []models.Bill) string {
	if len(bills) == 0 {
		return "(no bills on record)\n"
	}

	var b strings.Builder
	for _, bill := range bills {
		fmt.Fprintf(&b, "- Bill %s to %s: total %.2f\n",
			bill.PeriodStart.Format("2006-01-02"), bill.PeriodEnd.Format("2006-01-02"), bill.Amount)
		for _, item := range bill.LineItems {
			fmt.Fprintf(&b, "    %s: %.2f\n", item.Description, item.Amount)
		}
	}
	return b.String()
}

// renderComparison formats a comparison result as structured text.
func renderComparison(result *comparison.Result) string {
	if len(result.Bills) == 0 {
		return "(no bills on record to compare)\n"
	}

	var b strings.Builder
	b.WriteString("Most recent bills (newest first):\n")
	b.WriteString(renderBills(result.Bills))

	if len(result.Deltas) == 0 {
		b.WriteString("Only one bill available; nothing to compare against.\n")
		return b.String()
	}

	b.WriteString("Pairwise changes:\n")
	for _, d := range result.Deltas {
		fmt.Fprintf(&b, "- delta %.2f (%.1f%%)", d.AmountDelta, d.PercentChange*100)
		if len(d.Flags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(d.Flags, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
