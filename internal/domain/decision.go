package domain

import (
	"sort"
	"time"
)

// RunSide identifies which run of a pair a transaction belongs to.
type RunSide string

const (
	SideA RunSide = "a"
	SideB RunSide = "b"
)

// WinnerKind discriminates the Winner sum type.
type WinnerKind string

const (
	// WinnerNone means no decision has been recorded.
	WinnerNone WinnerKind = "none"
	// WinnerTransaction selects a concrete transaction from one side.
	WinnerTransaction WinnerKind = "transaction"
	// WinnerTie records that both sides are equally acceptable.
	WinnerTie WinnerKind = "tie"
	// WinnerExclude removes the email from synthesis output.
	WinnerExclude WinnerKind = "exclude"
	// WinnerDiscussion flags the email for team discussion.
	WinnerDiscussion WinnerKind = "discussion"
)

// Sentinel token values used on the wire and in storage.
const (
	TokenTie        = "tie"
	TokenExclude    = "exclude"
	TokenDiscussion = "discussion"
)

// Winner is the reviewer's designation for an email:
// None | Transaction(side, id) | Tie | Exclude | Discussion.
// Side is resolved from the comparison when the decision is validated; it is
// not part of the persisted token.
type Winner struct {
	Kind          WinnerKind `json:"kind"`
	Side          RunSide    `json:"side,omitempty"`
	TransactionID string     `json:"transactionId,omitempty"`
}

// NoWinner is the zero designation.
var NoWinner = Winner{Kind: WinnerNone}

// TransactionWinner builds a transaction-selecting Winner.
func TransactionWinner(side RunSide, transactionID string) Winner {
	return Winner{Kind: WinnerTransaction, Side: side, TransactionID: transactionID}
}

// ParseWinnerToken decodes a stored or wire token. Anything that is not a
// sentinel is treated as a transaction id; the side is left unresolved.
func ParseWinnerToken(token string) Winner {
	switch token {
	case "":
		return NoWinner
	case TokenTie:
		return Winner{Kind: WinnerTie}
	case TokenExclude:
		return Winner{Kind: WinnerExclude}
	case TokenDiscussion:
		return Winner{Kind: WinnerDiscussion}
	default:
		return Winner{Kind: WinnerTransaction, TransactionID: token}
	}
}

// Token encodes the winner for storage and transport. None encodes to the
// empty string.
func (w Winner) Token() string {
	switch w.Kind {
	case WinnerTransaction:
		return w.TransactionID
	case WinnerTie:
		return TokenTie
	case WinnerExclude:
		return TokenExclude
	case WinnerDiscussion:
		return TokenDiscussion
	default:
		return ""
	}
}

// IsNone reports whether no designation is recorded.
func (w Winner) IsNone() bool {
	return w.Kind == WinnerNone || w.Kind == ""
}

// IsSentinel reports whether the winner is tie, exclude, or discussion.
func (w Winner) IsSentinel() bool {
	switch w.Kind {
	case WinnerTie, WinnerExclude, WinnerDiscussion:
		return true
	}
	return false
}

// Equal compares winners by kind and transaction id. Side is derived state
// and intentionally excluded.
func (w Winner) Equal(o Winner) bool {
	if w.IsNone() && o.IsNone() {
		return true
	}
	return w.Kind == o.Kind && w.TransactionID == o.TransactionID
}

// Decision is the persisted reviewer state for one email under a specific
// run pair. Selected is a set with insertion order preserved; the single-pair
// model keeps at most one member, the multi-transaction model toggles
// membership freely (sentinels included).
type Decision struct {
	EmailID   string            `json:"emailId"`
	Selected  []Winner          `json:"selected,omitempty"`
	Overrides map[string]string `json:"overrides,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// NewDecision creates an empty decision for an email.
func NewDecision(emailID string) *Decision {
	return &Decision{EmailID: emailID}
}

// Winner returns the single-pair designation. Exclude dominates, then
// discussion, then tie, then the first selected transaction; this mirrors
// the badge convention for multi-transaction emails.
func (d *Decision) Winner() Winner {
	if d == nil {
		return NoWinner
	}
	for _, kind := range []WinnerKind{WinnerExclude, WinnerDiscussion, WinnerTie} {
		for _, w := range d.Selected {
			if w.Kind == kind {
				return w
			}
		}
	}
	for _, w := range d.Selected {
		if w.Kind == WinnerTransaction {
			return w
		}
	}
	return NoWinner
}

// Set replaces the whole selection with the given winner. A none winner
// clears the selection. Returns true when the stored state changed.
func (d *Decision) Set(w Winner) bool {
	if w.IsNone() {
		if len(d.Selected) == 0 {
			return false
		}
		d.Selected = nil
		return true
	}
	if len(d.Selected) == 1 && d.Selected[0].Equal(w) {
		return false
	}
	d.Selected = []Winner{w}
	return true
}

// Toggle flips membership of the given winner in the selection set. It
// always changes the stored state; toggling twice restores it.
func (d *Decision) Toggle(w Winner) bool {
	if w.IsNone() {
		return false
	}
	for i, existing := range d.Selected {
		if existing.Equal(w) {
			d.Selected = append(d.Selected[:i], d.Selected[i+1:]...)
			return true
		}
	}
	d.Selected = append(d.Selected, w)
	return true
}

// Contains reports membership of a winner in the selection set.
func (d *Decision) Contains(w Winner) bool {
	if d == nil {
		return false
	}
	for _, existing := range d.Selected {
		if existing.Equal(w) {
			return true
		}
	}
	return false
}

// SelectedTransactionIDs returns the selected transaction ids, sentinels
// excluded, sorted for deterministic synthesis output.
func (d *Decision) SelectedTransactionIDs() []string {
	if d == nil {
		return nil
	}
	var ids []string
	for _, w := range d.Selected {
		if w.Kind == WinnerTransaction {
			ids = append(ids, w.TransactionID)
		}
	}
	sort.Strings(ids)
	return ids
}

// SetOverride merges field overrides into the decision. A nil value clears
// the field's override (distinct from an empty string, which records an
// explicit absent override). Returns true when the stored state changed.
func (d *Decision) SetOverride(field string, value *string) bool {
	if value == nil {
		if _, ok := d.Overrides[field]; !ok {
			return false
		}
		delete(d.Overrides, field)
		return true
	}
	if existing, ok := d.Overrides[field]; ok && existing == *value {
		return false
	}
	if d.Overrides == nil {
		d.Overrides = make(map[string]string)
	}
	d.Overrides[field] = *value
	return true
}

// IsEmpty reports whether the decision carries no reviewer state at all.
func (d *Decision) IsEmpty() bool {
	return d == nil || (len(d.Selected) == 0 && len(d.Overrides) == 0)
}

// Clone returns an independent copy.
func (d *Decision) Clone() *Decision {
	if d == nil {
		return nil
	}
	cp := &Decision{EmailID: d.EmailID, UpdatedAt: d.UpdatedAt}
	if len(d.Selected) > 0 {
		cp.Selected = append([]Winner(nil), d.Selected...)
	}
	if len(d.Overrides) > 0 {
		cp.Overrides = make(map[string]string, len(d.Overrides))
		for k, v := range d.Overrides {
			cp.Overrides[k] = v
		}
	}
	return cp
}
