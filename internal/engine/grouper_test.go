package engine

import (
	"reflect"
	"testing"

	"github.com/okozyrev/extraction-review/internal/domain"
)

func differentComparison(emailID, typ string, dataA, dataB map[string]any, numeric bool) *domain.Comparison {
	a := &domain.Transaction{ID: emailID + "-a", Type: typ, AdditionalData: dataA}
	b := &domain.Transaction{ID: emailID + "-b", Type: typ, AdditionalData: dataB}
	c := &domain.Comparison{
		EmailID:     emailID,
		Status:      domain.StatusDifferent,
		A:           a,
		B:           b,
		Differences: []string{"description"},
	}
	if numeric {
		c.Differences = []string{"amount"}
		c.RealNumericDiffs = []string{"amount"}
	}
	return c
}

func TestGroupPatterns_Buckets(t *testing.T) {
	keysA := map[string]any{"orderRef": "x"}
	var keysB map[string]any

	comparisons := []*domain.Comparison{
		differentComparison("e3", "buy", keysA, keysB, false),
		differentComparison("e1", "buy", keysA, keysB, false),
		differentComparison("e2", "buy", nil, nil, true),
		differentComparison("e4", "sell", nil, nil, false),
		{EmailID: "e5", Status: domain.StatusMatch},
		{EmailID: "e6", Status: domain.StatusOnlyA, A: &domain.Transaction{Type: "buy"}},
	}

	groups := GroupPatterns(comparisons)

	if len(groups) != 3 {
		t.Fatalf("Expected 3 groups, got %d", len(groups))
	}

	// Types ascend; within "buy" the numeric group sorts first.
	if groups[0].Type != "buy" || !groups[0].NumericDiff {
		t.Errorf("Group 0 = {type=%s numeric=%t}, want buy numeric", groups[0].Type, groups[0].NumericDiff)
	}
	if groups[1].Type != "buy" || groups[1].NumericDiff {
		t.Errorf("Group 1 = {type=%s numeric=%t}, want buy non-numeric", groups[1].Type, groups[1].NumericDiff)
	}
	if groups[2].Type != "sell" {
		t.Errorf("Group 2 type = %s, want sell", groups[2].Type)
	}

	// Members sort by email id; two members enable bulk actions.
	fpGroup := groups[1]
	if got := []string{fpGroup.Comparisons[0].EmailID, fpGroup.Comparisons[1].EmailID}; !reflect.DeepEqual(got, []string{"e1", "e3"}) {
		t.Errorf("Group members = %v, want [e1 e3]", got)
	}
	if !fpGroup.BulkActions {
		t.Error("Expected group of 2 to carry bulk actions")
	}
	if !reflect.DeepEqual(fpGroup.OnlyAKeys, []string{"orderRef"}) {
		t.Errorf("OnlyAKeys = %v, want [orderRef]", fpGroup.OnlyAKeys)
	}

	// Singletons never carry bulk actions.
	if groups[0].BulkActions || groups[2].BulkActions {
		t.Error("Expected singleton groups to render standalone")
	}
}

func TestGroupPatterns_LargerGroupsFirst(t *testing.T) {
	big := []*domain.Comparison{
		differentComparison("e1", "buy", map[string]any{"x": 1}, nil, false),
		differentComparison("e2", "buy", map[string]any{"x": 1}, nil, false),
		differentComparison("e3", "buy", map[string]any{"x": 1}, nil, false),
	}
	small := []*domain.Comparison{
		differentComparison("e4", "buy", map[string]any{"y": 1}, nil, false),
	}

	groups := GroupPatterns(append(small, big...))
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].Comparisons) != 3 {
		t.Errorf("Expected the larger group first, got sizes %d, %d",
			len(groups[0].Comparisons), len(groups[1].Comparisons))
	}
}

func TestGroupPatterns_Deterministic(t *testing.T) {
	comparisons := []*domain.Comparison{
		differentComparison("e1", "buy", map[string]any{"a": 1}, nil, false),
		differentComparison("e2", "buy", map[string]any{"b": 1}, nil, false),
		differentComparison("e3", "sell", nil, map[string]any{"c": 1}, true),
	}

	first := GroupPatterns(comparisons)
	for i := 0; i < 10; i++ {
		if got := GroupPatterns(comparisons); !reflect.DeepEqual(got, first) {
			t.Fatal("Expected identical group output across repeated calls")
		}
	}
}

func TestGroupPatterns_Empty(t *testing.T) {
	if groups := GroupPatterns(nil); len(groups) != 0 {
		t.Errorf("Expected no groups for empty input, got %d", len(groups))
	}
}
