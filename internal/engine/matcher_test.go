package engine

import (
	"testing"

	"github.com/okozyrev/extraction-review/internal/domain"
)

func tx(id, typ, amount, symbol, date string) *domain.Transaction {
	return &domain.Transaction{ID: id, Type: typ, Amount: amount, Symbol: symbol, Date: date}
}

func TestMatchEmail_Classification(t *testing.T) {
	one := tx("a1", "buy", "100", "AAPL", "2024-01-01")
	two := tx("b1", "buy", "100", "AAPL", "2024-01-01")

	tests := []struct {
		name       string
		a, b       []*domain.Transaction
		wantSingle bool
		wantMulti  bool
		wantStatus domain.ComparisonStatus
	}{
		{"both empty", nil, nil, false, false, ""},
		{"one to one", []*domain.Transaction{one}, []*domain.Transaction{two}, true, false, domain.StatusMatch},
		{"only a", []*domain.Transaction{one}, nil, true, false, domain.StatusOnlyA},
		{"only b", nil, []*domain.Transaction{two}, true, false, domain.StatusOnlyB},
		{"two on a side", []*domain.Transaction{one, tx("a2", "sell", "5", "X", "")}, nil, false, true, ""},
		{"two vs one", []*domain.Transaction{one, tx("a2", "sell", "5", "X", "")}, []*domain.Transaction{two}, false, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m := MatchEmail("e1", tt.a, tt.b)
			if (c != nil) != tt.wantSingle {
				t.Fatalf("single = %v, want %v", c != nil, tt.wantSingle)
			}
			if (m != nil) != tt.wantMulti {
				t.Fatalf("multi = %v, want %v", m != nil, tt.wantMulti)
			}
			if c != nil && c.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", c.Status, tt.wantStatus)
			}
		})
	}
}

func TestMatchMulti_GreedyPairing(t *testing.T) {
	a1 := tx("a1", "buy", "100", "AAPL", "2024-01-01")
	a2 := tx("a2", "sell", "50", "MSFT", "2024-01-02")
	b1 := tx("b1", "buy", "100", "AAPL", "2024-01-01T15:30:00Z")
	b2 := tx("b2", "sell", "50", "GOOG", "2024-01-02")

	_, m := MatchEmail("e1", []*domain.Transaction{a2, a1}, []*domain.Transaction{b2, b1})
	if m == nil {
		t.Fatal("Expected a multi-transaction email")
	}

	if len(m.Pairs) != 1 {
		t.Fatalf("Pairs = %d, want 1", len(m.Pairs))
	}
	if m.Pairs[0].A.ID != "a1" || m.Pairs[0].B.ID != "b1" {
		t.Errorf("Paired %s with %s, want a1 with b1", m.Pairs[0].A.ID, m.Pairs[0].B.ID)
	}
	if len(m.UnmatchedA) != 1 || m.UnmatchedA[0].ID != "a2" {
		t.Errorf("UnmatchedA = %v, want [a2]", ids(m.UnmatchedA))
	}
	if len(m.UnmatchedB) != 1 || m.UnmatchedB[0].ID != "b2" {
		t.Errorf("UnmatchedB = %v, want [b2]", ids(m.UnmatchedB))
	}
}

func TestMatchMulti_LowestIDWinsTies(t *testing.T) {
	a1 := tx("a1", "buy", "100", "AAPL", "2024-01-01")
	// Two equally matching candidates on side B; the lower id must pair.
	b2 := tx("b2", "buy", "100", "AAPL", "2024-01-01")
	b1 := tx("b1", "buy", "100", "AAPL", "2024-01-01")

	_, m := MatchEmail("e1", []*domain.Transaction{a1}, []*domain.Transaction{b2, b1})
	if m == nil {
		t.Fatal("Expected a multi-transaction email")
	}
	if len(m.Pairs) != 1 || m.Pairs[0].B.ID != "b1" {
		t.Errorf("Expected a1 to pair with b1 (lowest id), got %+v", m.Pairs)
	}
}

func TestMatchMulti_DoesNotMutateInput(t *testing.T) {
	a := []*domain.Transaction{tx("a2", "buy", "1", "X", ""), tx("a1", "buy", "1", "X", "")}
	MatchEmail("e1", a, []*domain.Transaction{tx("b1", "buy", "1", "X", ""), tx("b2", "buy", "1", "X", "")})
	if a[0].ID != "a2" {
		t.Error("Input slice order must not change")
	}
}

func TestSameCalendarDay(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"same day different times", "2024-01-01T09:00:00Z", "2024-01-01T17:30:00Z", true},
		{"date only vs timestamp", "2024-01-01", "2024-01-01 15:04:05", true},
		{"us layout", "01/02/2024", "2024-01-02", true},
		{"different days", "2024-01-01", "2024-01-02", false},
		{"both unparseable equal", "next tuesday", "next tuesday", true},
		{"both unparseable differ", "next tuesday", "someday", false},
		{"unparseable vs parseable", "next tuesday", "2024-01-01", false},
		{"whitespace tolerated", " 2024-01-01 ", "2024-01-01", true},
		{"both empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameCalendarDay(tt.a, tt.b); got != tt.want {
				t.Errorf("sameCalendarDay(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func ids(txs []*domain.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}
