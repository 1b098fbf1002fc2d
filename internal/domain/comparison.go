package domain

import "fmt"

// PairKey identifies an ordered (runA, runB) pair. Decisions are scoped to
// it, so comparing the same runs in the other order is a separate review.
type PairKey struct {
	RunA string `json:"runA"`
	RunB string `json:"runB"`
}

// String renders the key for logs and storage.
func (k PairKey) String() string {
	return fmt.Sprintf("%s|%s", k.RunA, k.RunB)
}

// ComparisonStatus classifies one email's reconciliation outcome.
type ComparisonStatus string

const (
	StatusMatch     ComparisonStatus = "match"
	StatusDifferent ComparisonStatus = "different"
	StatusOnlyA     ComparisonStatus = "only_a"
	StatusOnlyB     ComparisonStatus = "only_b"
)

// Comparison is the derived reconciliation record for one email under a
// specific run pair. Status and the difference sets are pure functions of
// the two transactions and are recomputed on every load; only Winner and
// FieldOverrides come from the decision store.
type Comparison struct {
	EmailID string           `json:"emailId"`
	Status  ComparisonStatus `json:"status"`

	A *Transaction `json:"a,omitempty"`
	B *Transaction `json:"b,omitempty"`

	// Differences holds the tracked field names whose normalized values
	// disagree, in tracked-field order. Empty iff Status is match (for 1:1
	// emails).
	Differences []string `json:"differences,omitempty"`

	// DataKeyDifferences holds additional-data keys whose normalized values
	// disagree, sorted. Display/grouping only; never affects Status, and a
	// matched email reports none.
	DataKeyDifferences []string `json:"dataKeyDifferences,omitempty"`

	// RealNumericDiffs is the subset of Differences that are numeric fields
	// with both sides present.
	RealNumericDiffs []string `json:"realNumericDiffs,omitempty"`

	Winner         Winner            `json:"winner"`
	FieldOverrides map[string]string `json:"fieldOverrides,omitempty"`
}

// HasRealNumericDiff reports whether at least one difference is a genuine
// numeric disagreement rather than an extraction omission.
func (c *Comparison) HasRealNumericDiff() bool {
	return len(c.RealNumericDiffs) > 0
}

// Transaction returns the side holding the given transaction id, or nil.
func (c *Comparison) Transaction(id string) *Transaction {
	if c.A != nil && c.A.ID == id {
		return c.A
	}
	if c.B != nil && c.B.ID == id {
		return c.B
	}
	return nil
}

// GroupType is the transaction type the pattern grouper partitions on.
// When the two sides disagree on type, side A wins; B is the fallback for
// only_b emails.
func (c *Comparison) GroupType() string {
	if c.A != nil && c.A.Type != "" {
		return c.A.Type
	}
	if c.B != nil {
		return c.B.Type
	}
	return ""
}

// TransactionPair is one greedy-matched (A, B) suggestion inside a
// multi-transaction email.
type TransactionPair struct {
	A *Transaction `json:"a"`
	B *Transaction `json:"b"`
}

// MultiTransactionEmail is an email where either run produced more than one
// transaction. It bypasses the single-pair comparison model: the full lists
// from both sides stay visible, greedy pairing only suggests equivalences,
// and the decision's selection set drives synthesis.
type MultiTransactionEmail struct {
	EmailID string `json:"emailId"`

	A []*Transaction `json:"a"`
	B []*Transaction `json:"b"`

	// Pairs are heuristic equivalences (type, amount, symbol, and calendar
	// day all equal). Unmatched transactions remain listed for manual
	// selection.
	Pairs      []TransactionPair `json:"pairs,omitempty"`
	UnmatchedA []*Transaction    `json:"unmatchedA,omitempty"`
	UnmatchedB []*Transaction    `json:"unmatchedB,omitempty"`

	Decision *Decision `json:"decision,omitempty"`
}

// Transaction returns the transaction with the given id from either side.
func (m *MultiTransactionEmail) Transaction(id string) *Transaction {
	for _, tx := range m.A {
		if tx.ID == id {
			return tx
		}
	}
	for _, tx := range m.B {
		if tx.ID == id {
			return tx
		}
	}
	return nil
}

// Summary is the display roll-up over a comparison list. It is always
// recomputed from comparisons and decisions, never stored.
type Summary struct {
	Total             int `json:"total"`
	Matches           int `json:"matches"`
	Different         int `json:"different"`
	OnlyA             int `json:"onlyA"`
	OnlyB             int `json:"onlyB"`
	WinnersDesignated int `json:"winnersDesignated"`
	Excluded          int `json:"excluded"`
	AgreementRate     int `json:"agreementRate"`
}

// PatternGroup is one reviewable bucket of "different" comparisons sharing a
// transaction type, an exclusive-data-key fingerprint, and real-numeric-diff
// presence. Groups with two or more members carry bulk decision actions;
// singletons render standalone.
type PatternGroup struct {
	Type string `json:"type"`

	// OnlyAKeys/OnlyBKeys are the fingerprint: additional-data keys present
	// exclusively on one side, sorted.
	OnlyAKeys []string `json:"onlyAKeys"`
	OnlyBKeys []string `json:"onlyBKeys"`

	NumericDiff bool `json:"numericDiff"`

	Comparisons []*Comparison `json:"comparisons"`
	BulkActions bool          `json:"bulkActions"`
}
