package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Period is an optional billing-period filter extracted from an utterance.
// Month may be zero, meaning the whole year.
type Period struct {
	Year  int
	Month time.Month
}

var yearRe = regexp.MustCompile(`\b(20\d{2})\b`)

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// ParsePeriod extracts a year and optional month from the utterance
// ("my bill for March 2025"). Returns nil when no period is mentioned.
// A month with no year assumes the current year.
func ParsePeriod(utterance string, now time.Time) *Period {
	q := strings.ToLower(utterance)

	var p Period
	if m := yearRe.FindString(q); m != "" {
		p.Year, _ = strconv.Atoi(m)
	}
	for name, month := range monthNames {
		if strings.Contains(q, name) {
			p.Month = month
			break
		}
	}

	if p.Year == 0 && p.Month == 0 {
		return nil
	}
	if p.Year == 0 {
		p.Year = now.Year()
	}
	return &p
}

// Covers reports whether a bill period ending at end falls inside p.
func (p *Period) Covers(end time.Time) bool {
	if end.Year() != p.Year {
		return false
	}
	return p.Month == 0 || end.Month() == p.Month
}
