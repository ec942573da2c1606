// Package intent decides what kind of billing question a user utterance is.
//
// The classifier is an interface so the keyword heuristic can later be
// replaced by a proper intent model without touching the orchestrator.
package intent

import "strings"

// Kind is the classified query type.
type Kind int

const (
	// GeneralQuery asks about billing history or a specific period.
	GeneralQuery Kind = iota

	// ComparisonQuery asks how recent bills relate to each other.
	ComparisonQuery
)

func (k Kind) String() string {
	if k == ComparisonQuery {
		return "comparison"
	}
	return "general"
}

// Classifier maps a user utterance to a query kind.
type Classifier interface {
	Classify(utterance string) Kind
}

// KeywordClassifier is the default heuristic: an utterance containing any
// comparison term is a comparison query, everything else is general.
type KeywordClassifier struct{}

var comparisonTerms = []string{
	"compare", "comparison", "difference", "changed", "change",
	"higher", "lower", "increase", "decrease", "trend", "versus", " vs ",
	"more than last", "less than last",
}

// Classify inspects the utterance for comparison terms.
func (KeywordClassifier) Classify(utterance string) Kind {
	q := strings.ToLower(utterance)
	for _, term := range comparisonTerms {
		if strings.Contains(q, term) {
			return ComparisonQuery
		}
	}
	return GeneralQuery
}
