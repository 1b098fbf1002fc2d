package engine

import (
	"sort"

	"github.com/okozyrev/extraction-review/internal/domain"
)

// Diff compares a matched 1:1 pair field by field and produces the derived
// comparison record for the email.
//
// Tracked fields are compared by strict equality of their normalized values;
// null/undefined/empty all normalize to the absent sentinel (the empty
// string). There is no numeric coercion: "1.0" and "1" are different values.
// Confidence is never compared.
func Diff(emailID string, a, b *domain.Transaction) *domain.Comparison {
	c := &domain.Comparison{
		EmailID: emailID,
		A:       a,
		B:       b,
		Winner:  domain.NoWinner,
	}

	for _, field := range domain.TrackedFields {
		va := a.Field(field)
		vb := b.Field(field)
		if va == vb {
			continue
		}
		c.Differences = append(c.Differences, field)
		// A difference is only "real" when both extractors committed to a
		// value; an omission on either side is a different signal.
		if domain.NumericFields[field] && va != "" && vb != "" {
			c.RealNumericDiffs = append(c.RealNumericDiffs, field)
		}
	}

	// A matched email reports no differences of any kind; data-key diffs
	// are recorded only alongside tracked-field disagreements.
	if len(c.Differences) == 0 {
		c.Status = domain.StatusMatch
	} else {
		c.Status = domain.StatusDifferent
		c.DataKeyDifferences = diffDataKeys(a, b)
	}
	return c
}

// OnlyComparison builds the comparison record for an email present in
// exactly one run.
func OnlyComparison(emailID string, tx *domain.Transaction, side domain.RunSide) *domain.Comparison {
	c := &domain.Comparison{
		EmailID: emailID,
		Winner:  domain.NoWinner,
	}
	if side == domain.SideA {
		c.Status = domain.StatusOnlyA
		c.A = tx
	} else {
		c.Status = domain.StatusOnlyB
		c.B = tx
	}
	return c
}

// diffDataKeys flattens both sides' additional data and returns the sorted
// set of keys whose normalized values differ. Data-key differences never
// affect comparison status; they feed display and pattern grouping.
func diffDataKeys(a, b *domain.Transaction) []string {
	flatA := domain.FlattenAdditionalData(a.AdditionalData)
	flatB := domain.FlattenAdditionalData(b.AdditionalData)

	seen := make(map[string]bool, len(flatA)+len(flatB))
	var keys []string
	for k := range flatA {
		seen[k] = true
	}
	for k := range flatB {
		seen[k] = true
	}
	for k := range seen {
		if domain.NormalizeValue(flatA[k]) != domain.NormalizeValue(flatB[k]) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// exclusiveDataKeys returns the sorted additional-data keys present on
// exactly one side, the fingerprint input for pattern grouping.
func exclusiveDataKeys(a, b *domain.Transaction) (onlyA, onlyB []string) {
	var flatA, flatB map[string]any
	if a != nil {
		flatA = domain.FlattenAdditionalData(a.AdditionalData)
	}
	if b != nil {
		flatB = domain.FlattenAdditionalData(b.AdditionalData)
	}

	for k := range flatA {
		if _, ok := flatB[k]; !ok {
			onlyA = append(onlyA, k)
		}
	}
	for k := range flatB {
		if _, ok := flatA[k]; !ok {
			onlyB = append(onlyB, k)
		}
	}
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	return onlyA, onlyB
}
