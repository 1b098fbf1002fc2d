package engine

import (
	"reflect"
	"testing"

	"github.com/okozyrev/extraction-review/internal/domain"
)

func TestDiff_Match(t *testing.T) {
	a := &domain.Transaction{ID: "a1", Type: "buy", Amount: "100", Symbol: "AAPL"}
	b := &domain.Transaction{ID: "b1", Type: "buy", Amount: "100", Symbol: "AAPL"}

	c := Diff("e1", a, b)

	if c.Status != domain.StatusMatch {
		t.Errorf("Status = %v, want match", c.Status)
	}
	if len(c.Differences) != 0 {
		t.Errorf("Expected no differences, got %v", c.Differences)
	}
	if !c.Winner.IsNone() {
		t.Error("Expected fresh comparison to carry no winner")
	}
}

func TestDiff_ConfidenceNeverCompared(t *testing.T) {
	a := &domain.Transaction{Type: "buy", Confidence: 0.9}
	b := &domain.Transaction{Type: "buy", Confidence: 0.1}

	if c := Diff("e1", a, b); c.Status != domain.StatusMatch {
		t.Errorf("Status = %v, want match despite confidence gap", c.Status)
	}
}

func TestDiff_NoNumericCoercion(t *testing.T) {
	a := &domain.Transaction{Type: "buy", Amount: "1.0"}
	b := &domain.Transaction{Type: "buy", Amount: "1"}

	c := Diff("e1", a, b)

	if c.Status != domain.StatusDifferent {
		t.Fatalf("Status = %v, want different: raw strings disagree", c.Status)
	}
	if !reflect.DeepEqual(c.Differences, []string{"amount"}) {
		t.Errorf("Differences = %v, want [amount]", c.Differences)
	}
	if !c.HasRealNumericDiff() {
		t.Error("Expected both-sides-present amount disagreement to be a real numeric diff")
	}
}

func TestDiff_OmissionIsNotRealNumericDiff(t *testing.T) {
	a := &domain.Transaction{Type: "buy", Amount: "100", Fees: "1.50"}
	b := &domain.Transaction{Type: "buy", Amount: "100"}

	c := Diff("e1", a, b)

	if c.Status != domain.StatusDifferent {
		t.Fatalf("Status = %v, want different", c.Status)
	}
	if !reflect.DeepEqual(c.Differences, []string{"fees"}) {
		t.Errorf("Differences = %v, want [fees]", c.Differences)
	}
	if c.HasRealNumericDiff() {
		t.Error("One-sided omission must not count as a real numeric diff")
	}
}

func TestDiff_NonNumericFieldNeverRealDiff(t *testing.T) {
	a := &domain.Transaction{Type: "buy", Description: "Order filled"}
	b := &domain.Transaction{Type: "buy", Description: "Order executed"}

	c := Diff("e1", a, b)
	if len(c.RealNumericDiffs) != 0 {
		t.Errorf("RealNumericDiffs = %v, want empty for description", c.RealNumericDiffs)
	}
}

func TestDiff_DifferencesFollowTrackedOrder(t *testing.T) {
	a := &domain.Transaction{Type: "buy", Amount: "1", Symbol: "A", Date: "2024-01-01"}
	b := &domain.Transaction{Type: "sell", Amount: "2", Symbol: "B", Date: "2024-01-02"}

	c := Diff("e1", a, b)
	want := []string{"type", "amount", "symbol", "date"}
	if !reflect.DeepEqual(c.Differences, want) {
		t.Errorf("Differences = %v, want %v", c.Differences, want)
	}
}

func TestDiff_DataKeyDifferences(t *testing.T) {
	a := &domain.Transaction{
		Type:        "buy",
		Description: "Order filled",
		AdditionalData: map[string]any{
			"account": "123",
			"shared":  "same",
			"onlyA":   "x",
		},
	}
	b := &domain.Transaction{
		Type:        "buy",
		Description: "Order executed",
		AdditionalData: []any{
			map[string]any{"key": "account", "value": "456"},
			map[string]any{"key": "shared", "value": "same"},
			map[string]any{"key": "onlyB", "value": "y"},
		},
	}

	c := Diff("e1", a, b)

	if c.Status != domain.StatusDifferent {
		t.Fatalf("Status = %v, want different", c.Status)
	}
	want := []string{"account", "onlyA", "onlyB"}
	if !reflect.DeepEqual(c.DataKeyDifferences, want) {
		t.Errorf("DataKeyDifferences = %v, want %v", c.DataKeyDifferences, want)
	}
}

func TestDiff_MatchReportsNoDataKeyDifferences(t *testing.T) {
	a := &domain.Transaction{
		Type:           "buy",
		Amount:         "100",
		AdditionalData: map[string]any{"account": "123"},
	}
	b := &domain.Transaction{
		Type:           "buy",
		Amount:         "100",
		AdditionalData: map[string]any{"account": "456"},
	}

	c := Diff("e1", a, b)

	if c.Status != domain.StatusMatch {
		t.Fatalf("Status = %v; additional data must not affect status", c.Status)
	}
	if len(c.Differences) != 0 || len(c.DataKeyDifferences) != 0 {
		t.Errorf("match carries differences=%v dataKeyDifferences=%v, want both empty",
			c.Differences, c.DataKeyDifferences)
	}
}

func TestOnlyComparison(t *testing.T) {
	tx := &domain.Transaction{ID: "a1", Type: "buy"}

	ca := OnlyComparison("e1", tx, domain.SideA)
	if ca.Status != domain.StatusOnlyA || ca.A != tx || ca.B != nil {
		t.Errorf("OnlyComparison side A misassembled: %+v", ca)
	}

	cb := OnlyComparison("e1", tx, domain.SideB)
	if cb.Status != domain.StatusOnlyB || cb.B != tx || cb.A != nil {
		t.Errorf("OnlyComparison side B misassembled: %+v", cb)
	}
}

func TestExclusiveDataKeys(t *testing.T) {
	a := &domain.Transaction{AdditionalData: map[string]any{"x": 1, "shared": 2, "z": 3}}
	b := &domain.Transaction{AdditionalData: map[string]any{"shared": 9, "y": 4}}

	onlyA, onlyB := exclusiveDataKeys(a, b)
	if !reflect.DeepEqual(onlyA, []string{"x", "z"}) {
		t.Errorf("onlyA = %v, want [x z]", onlyA)
	}
	if !reflect.DeepEqual(onlyB, []string{"y"}) {
		t.Errorf("onlyB = %v, want [y]", onlyB)
	}

	// Nil sides must not panic; everything on the present side is exclusive.
	onlyA, onlyB = exclusiveDataKeys(a, nil)
	if len(onlyA) != 3 || len(onlyB) != 0 {
		t.Errorf("nil side: onlyA = %v, onlyB = %v", onlyA, onlyB)
	}
}
