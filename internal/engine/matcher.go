package engine

import (
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/okozyrev/extraction-review/internal/domain"
)

// MatchEmail classifies one email's transactions across the two runs.
// Exactly one of the return values is non-nil unless both sides are empty:
//
//   - 1:1 → a Comparison (match or different, decided by the differ)
//   - one transaction on exactly one side → an only_a/only_b Comparison
//   - more than one transaction on either side → a MultiTransactionEmail
func MatchEmail(emailID string, a, b []*domain.Transaction) (*domain.Comparison, *domain.MultiTransactionEmail) {
	switch {
	case len(a) == 0 && len(b) == 0:
		return nil, nil
	case len(a) == 1 && len(b) == 1:
		return Diff(emailID, a[0], b[0]), nil
	case len(b) == 0:
		if len(a) == 1 {
			return OnlyComparison(emailID, a[0], domain.SideA), nil
		}
		return nil, matchMulti(emailID, a, b)
	case len(a) == 0:
		if len(b) == 1 {
			return OnlyComparison(emailID, b[0], domain.SideB), nil
		}
		return nil, matchMulti(emailID, a, b)
	default:
		return nil, matchMulti(emailID, a, b)
	}
}

// matchMulti builds the multi-transaction record with greedy heuristic
// pairing. Both sides are sorted by transaction id first, which pins down
// the otherwise order-dependent tie-break: among equally matching B
// candidates the lowest id wins. The pairing is deliberately not globally
// optimal.
func matchMulti(emailID string, a, b []*domain.Transaction) *domain.MultiTransactionEmail {
	sortedA := sortByID(a)
	sortedB := sortByID(b)

	m := &domain.MultiTransactionEmail{
		EmailID: emailID,
		A:       sortedA,
		B:       sortedB,
	}

	used := make([]bool, len(sortedB))
	for _, txA := range sortedA {
		paired := false
		for i, txB := range sortedB {
			if used[i] || !equivalent(txA, txB) {
				continue
			}
			used[i] = true
			m.Pairs = append(m.Pairs, domain.TransactionPair{A: txA, B: txB})
			paired = true
			break
		}
		if !paired {
			m.UnmatchedA = append(m.UnmatchedA, txA)
		}
	}
	for i, txB := range sortedB {
		if !used[i] {
			m.UnmatchedB = append(m.UnmatchedB, txB)
		}
	}
	return m
}

// equivalent reports whether two transactions look like the same economic
// event: type, amount (string equality), symbol, and calendar day all agree.
func equivalent(a, b *domain.Transaction) bool {
	return a.Type == b.Type &&
		a.Amount == b.Amount &&
		a.Symbol == b.Symbol &&
		sameCalendarDay(a.Date, b.Date)
}

// sameCalendarDay compares two date strings truncated to the calendar day.
// When either side does not parse as a date the raw strings are compared
// instead, so malformed extractor output still matches itself.
func sameCalendarDay(a, b string) bool {
	dayA, okA := parseDay(a)
	dayB, okB := parseDay(b)
	if okA && okB {
		return dayA == dayB
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

var dayLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

func parseDay(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

func sortByID(txs []*domain.Transaction) []*domain.Transaction {
	out := append([]*domain.Transaction(nil), txs...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
