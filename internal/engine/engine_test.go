package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/okozyrev/extraction-review/internal/domain"
	"github.com/okozyrev/extraction-review/internal/engine"
	"github.com/okozyrev/extraction-review/internal/store/inmemory"
)

func newTestEngine(t *testing.T) (*engine.Engine, *inmemory.Store) {
	t.Helper()
	store := inmemory.NewStore()
	eng := engine.New(store, store, store, zerolog.Nop())
	return eng, store
}

func seedRuns(t *testing.T, store *inmemory.Store) {
	t.Helper()
	ctx := context.Background()
	runs := []*domain.Run{
		{ID: "run-a", Version: 1, ModelID: "model-x", Status: domain.RunStatusCompleted},
		{ID: "run-b", Version: 2, ModelID: "model-y", Status: domain.RunStatusCompleted},
	}
	for _, r := range runs {
		if err := store.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}
}

func seedTransactions(t *testing.T, store *inmemory.Store, txs ...*domain.Transaction) {
	t.Helper()
	if err := store.InsertTransactions(context.Background(), txs); err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}
}

func strPtr(s string) *string { return &s }

func TestGetComparison_Classification(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)
	seedTransactions(t, store,
		// e1 matches exactly.
		&domain.Transaction{ID: "a1", RunID: "run-a", SourceEmailID: "e1", Type: "buy", Amount: "100"},
		&domain.Transaction{ID: "b1", RunID: "run-b", SourceEmailID: "e1", Type: "buy", Amount: "100"},
		// e2 differs on amount.
		&domain.Transaction{ID: "a2", RunID: "run-a", SourceEmailID: "e2", Type: "buy", Amount: "50"},
		&domain.Transaction{ID: "b2", RunID: "run-b", SourceEmailID: "e2", Type: "buy", Amount: "55"},
		// e3 exists only in run A.
		&domain.Transaction{ID: "a3", RunID: "run-a", SourceEmailID: "e3", Type: "sell", Amount: "10"},
		// e4 is multi-transaction on side B.
		&domain.Transaction{ID: "a4", RunID: "run-a", SourceEmailID: "e4", Type: "buy", Amount: "1"},
		&domain.Transaction{ID: "b4", RunID: "run-b", SourceEmailID: "e4", Type: "buy", Amount: "1"},
		&domain.Transaction{ID: "b5", RunID: "run-b", SourceEmailID: "e4", Type: "sell", Amount: "2"},
	)

	result, err := eng.GetComparison(context.Background(), "run-a", "run-b")
	if err != nil {
		t.Fatalf("GetComparison: %v", err)
	}

	if len(result.Comparisons) != 3 {
		t.Fatalf("Comparisons = %d, want 3", len(result.Comparisons))
	}
	if len(result.MultiTransactionEmails) != 1 || result.MultiTransactionEmails[0].EmailID != "e4" {
		t.Fatalf("Expected e4 as the sole multi-transaction email, got %+v", result.MultiTransactionEmails)
	}

	byEmail := make(map[string]*domain.Comparison)
	for _, c := range result.Comparisons {
		byEmail[c.EmailID] = c
	}
	if byEmail["e1"].Status != domain.StatusMatch {
		t.Errorf("e1 status = %v, want match", byEmail["e1"].Status)
	}
	if byEmail["e2"].Status != domain.StatusDifferent {
		t.Errorf("e2 status = %v, want different", byEmail["e2"].Status)
	}
	if byEmail["e3"].Status != domain.StatusOnlyA {
		t.Errorf("e3 status = %v, want only_a", byEmail["e3"].Status)
	}

	if result.Summary.Total != 3 || result.Summary.Matches != 1 {
		t.Errorf("Summary = %+v, want total 3 with 1 match", result.Summary)
	}
	if len(result.PatternGroups) != 1 {
		t.Errorf("PatternGroups = %d, want 1 (e2 only)", len(result.PatternGroups))
	}
}

func TestGetComparison_AutoAssignsOneSided(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)
	seedTransactions(t, store,
		&domain.Transaction{ID: "a3", RunID: "run-a", SourceEmailID: "e3", Type: "sell"},
	)

	result, err := eng.GetComparison(context.Background(), "run-a", "run-b")
	if err != nil {
		t.Fatalf("GetComparison: %v", err)
	}

	c := result.Comparisons[0]
	if c.Winner.Kind != domain.WinnerTransaction || c.Winner.TransactionID != "a3" {
		t.Fatalf("Winner = %+v, want auto-assigned a3", c.Winner)
	}
	if c.Winner.Side != domain.SideA {
		t.Errorf("Winner side = %v, want a", c.Winner.Side)
	}

	// The assignment persisted.
	pair := domain.PairKey{RunA: "run-a", RunB: "run-b"}
	d, err := store.GetDecision(context.Background(), pair, "e3")
	if err != nil || d == nil {
		t.Fatalf("GetDecision after auto-assign: %v, %v", d, err)
	}
	if d.Winner().TransactionID != "a3" {
		t.Errorf("Persisted winner = %+v, want a3", d.Winner())
	}

	// Auto-assignment never overwrites a reviewer's later clearing.
	if err := eng.SetDecision(context.Background(), pair, "e3", nil, false); err != nil {
		t.Fatalf("SetDecision clear: %v", err)
	}
	result, err = eng.GetComparison(context.Background(), "run-a", "run-b")
	if err != nil {
		t.Fatalf("GetComparison: %v", err)
	}
	if !result.Comparisons[0].Winner.IsNone() {
		t.Error("Expected auto-assignment to run at most once per pair")
	}
}

func TestGetComparison_AutoAssignsOnlyBSide(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)
	seedTransactions(t, store,
		&domain.Transaction{ID: "b7", RunID: "run-b", SourceEmailID: "e7", Type: "dividend"},
	)

	result, err := eng.GetComparison(context.Background(), "run-a", "run-b")
	if err != nil {
		t.Fatalf("GetComparison: %v", err)
	}

	c := result.Comparisons[0]
	if c.Status != domain.StatusOnlyB {
		t.Fatalf("Status = %v, want only_b", c.Status)
	}
	if c.Winner.TransactionID != "b7" || c.Winner.Side != domain.SideB {
		t.Errorf("Winner = %+v, want auto-assigned b7 on side b", c.Winner)
	}
}

func TestBulkExclude_FlowsThroughSummaryAndSynthesis(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)
	seedTransactions(t, store,
		&domain.Transaction{ID: "a1", RunID: "run-a", SourceEmailID: "e1", Type: "buy", Amount: "1"},
		&domain.Transaction{ID: "b1", RunID: "run-b", SourceEmailID: "e1", Type: "buy", Amount: "2"},
		&domain.Transaction{ID: "a2", RunID: "run-a", SourceEmailID: "e2", Type: "buy", Amount: "3"},
		&domain.Transaction{ID: "b2", RunID: "run-b", SourceEmailID: "e2", Type: "buy", Amount: "4"},
		&domain.Transaction{ID: "a3", RunID: "run-a", SourceEmailID: "e3", Type: "buy", Amount: "5"},
		&domain.Transaction{ID: "b3", RunID: "run-b", SourceEmailID: "e3", Type: "buy", Amount: "6"},
	)
	ctx := context.Background()
	pair := domain.PairKey{RunA: "run-a", RunB: "run-b"}

	applied, err := eng.BulkSetDecision(ctx, pair, []engine.DecisionUpdate{
		{EmailID: "e1", Winner: strPtr("exclude")},
		{EmailID: "e2", Winner: strPtr("exclude")},
		{EmailID: "e3", Winner: strPtr("exclude")},
	})
	if err != nil || applied != 3 {
		t.Fatalf("BulkSetDecision = %d, %v; want 3 applied", applied, err)
	}

	result, err := eng.GetComparison(ctx, "run-a", "run-b")
	if err != nil {
		t.Fatalf("GetComparison: %v", err)
	}
	if result.Summary.Excluded != 3 {
		t.Errorf("Excluded = %d, want 3", result.Summary.Excluded)
	}

	run, err := eng.Synthesize(ctx, "run-a", "run-b", "run-a", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if run.TransactionsCreated != 0 {
		t.Errorf("TransactionsCreated = %d, want 0 with every email excluded", run.TransactionsCreated)
	}
}

func TestSetDecision(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)
	seedTransactions(t, store,
		&domain.Transaction{ID: "a1", RunID: "run-a", SourceEmailID: "e1", Type: "buy", Amount: "50"},
		&domain.Transaction{ID: "b1", RunID: "run-b", SourceEmailID: "e1", Type: "buy", Amount: "55"},
	)
	ctx := context.Background()
	pair := domain.PairKey{RunA: "run-a", RunB: "run-b"}

	if err := eng.SetDecision(ctx, pair, "e1", strPtr("b1"), false); err != nil {
		t.Fatalf("SetDecision: %v", err)
	}
	d, _ := store.GetDecision(ctx, pair, "e1")
	if d.Winner().TransactionID != "b1" {
		t.Fatalf("Winner = %+v, want b1", d.Winner())
	}

	// Replacing with a sentinel.
	if err := eng.SetDecision(ctx, pair, "e1", strPtr("exclude"), false); err != nil {
		t.Fatalf("SetDecision exclude: %v", err)
	}
	d, _ = store.GetDecision(ctx, pair, "e1")
	if d.Winner().Kind != domain.WinnerExclude {
		t.Errorf("Winner = %+v, want exclude", d.Winner())
	}

	// Unknown transaction id.
	err := eng.SetDecision(ctx, pair, "e1", strPtr("nope"), false)
	var nf *engine.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError for unknown transaction, got %v", err)
	}

	// Unknown email.
	err = eng.SetDecision(ctx, pair, "missing", strPtr("tie"), false)
	if !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError for unknown email, got %v", err)
	}

	// Self-comparison is invalid.
	err = eng.SetDecision(ctx, domain.PairKey{RunA: "run-a", RunB: "run-a"}, "e1", nil, false)
	var ve *engine.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for self pair, got %v", err)
	}
}

func TestSetDecision_Toggle(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)
	seedTransactions(t, store,
		&domain.Transaction{ID: "a1", RunID: "run-a", SourceEmailID: "e1", Type: "buy"},
		&domain.Transaction{ID: "a2", RunID: "run-a", SourceEmailID: "e1", Type: "sell"},
		&domain.Transaction{ID: "b1", RunID: "run-b", SourceEmailID: "e1", Type: "buy"},
	)
	ctx := context.Background()
	pair := domain.PairKey{RunA: "run-a", RunB: "run-b"}

	if err := eng.SetDecision(ctx, pair, "e1", strPtr("a1"), true); err != nil {
		t.Fatalf("toggle a1: %v", err)
	}
	if err := eng.SetDecision(ctx, pair, "e1", strPtr("b1"), true); err != nil {
		t.Fatalf("toggle b1: %v", err)
	}

	d, _ := store.GetDecision(ctx, pair, "e1")
	if got := d.SelectedTransactionIDs(); len(got) != 2 {
		t.Fatalf("Selected = %v, want 2 members", got)
	}

	// Toggling again removes membership.
	if err := eng.SetDecision(ctx, pair, "e1", strPtr("a1"), true); err != nil {
		t.Fatalf("toggle a1 off: %v", err)
	}
	d, _ = store.GetDecision(ctx, pair, "e1")
	if got := d.SelectedTransactionIDs(); len(got) != 1 || got[0] != "b1" {
		t.Errorf("Selected = %v, want [b1]", got)
	}
}

func TestBulkSetDecision_PartialFailure(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)
	seedTransactions(t, store,
		&domain.Transaction{ID: "a1", RunID: "run-a", SourceEmailID: "e1", Type: "buy"},
		&domain.Transaction{ID: "a2", RunID: "run-a", SourceEmailID: "e2", Type: "buy"},
	)
	ctx := context.Background()
	pair := domain.PairKey{RunA: "run-a", RunB: "run-b"}

	applied, err := eng.BulkSetDecision(ctx, pair, []engine.DecisionUpdate{
		{EmailID: "e1", Winner: strPtr("a1")},
		{EmailID: "missing", Winner: strPtr("tie")},
		{EmailID: "e2", Winner: strPtr("exclude")},
	})

	var partial *engine.PartialBatchError
	if !errors.As(err, &partial) {
		t.Fatalf("Expected PartialBatchError, got %v", err)
	}
	if applied != 2 || partial.Applied != 2 || partial.Failed != 1 {
		t.Errorf("applied=%d partial=%+v, want 2 applied 1 failed", applied, partial)
	}

	// Committed subset stays committed.
	d, _ := store.GetDecision(ctx, pair, "e1")
	if d == nil || d.Winner().TransactionID != "a1" {
		t.Error("Expected committed decision for e1 to survive the partial failure")
	}
	d, _ = store.GetDecision(ctx, pair, "e2")
	if d == nil || d.Winner().Kind != domain.WinnerExclude {
		t.Error("Expected committed decision for e2 to survive the partial failure")
	}
}

func TestBulkSetDecision_AllSucceed(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)
	seedTransactions(t, store,
		&domain.Transaction{ID: "a1", RunID: "run-a", SourceEmailID: "e1", Type: "buy"},
	)

	applied, err := eng.BulkSetDecision(context.Background(),
		domain.PairKey{RunA: "run-a", RunB: "run-b"},
		[]engine.DecisionUpdate{{EmailID: "e1", Winner: strPtr("tie")}})
	if err != nil {
		t.Fatalf("BulkSetDecision: %v", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
}

func TestSetFieldOverride_Validation(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)
	seedTransactions(t, store,
		&domain.Transaction{ID: "a1", RunID: "run-a", SourceEmailID: "e1", Type: "buy"},
	)
	ctx := context.Background()
	pair := domain.PairKey{RunA: "run-a", RunB: "run-b"}

	tests := []struct {
		name    string
		field   string
		wantErr bool
	}{
		{"tracked field", "amount", false},
		{"data key", "data.account", false},
		{"unknown field", "confidence", true},
		{"bare data prefix", "data.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eng.SetFieldOverride(ctx, pair, "e1", map[string]*string{tt.field: strPtr("x")})
			var ve *engine.ValidationError
			if tt.wantErr && !errors.As(err, &ve) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSetFieldOverride_MergeAndClear(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)
	seedTransactions(t, store,
		&domain.Transaction{ID: "a1", RunID: "run-a", SourceEmailID: "e1", Type: "buy"},
	)
	ctx := context.Background()
	pair := domain.PairKey{RunA: "run-a", RunB: "run-b"}

	if err := eng.SetFieldOverride(ctx, pair, "e1", map[string]*string{
		"amount": strPtr("10"),
		"symbol": strPtr("AAPL"),
	}); err != nil {
		t.Fatalf("SetFieldOverride: %v", err)
	}
	if err := eng.SetFieldOverride(ctx, pair, "e1", map[string]*string{
		"amount": strPtr("20"), // update
		"symbol": nil,          // clear
	}); err != nil {
		t.Fatalf("SetFieldOverride merge: %v", err)
	}

	d, _ := store.GetDecision(ctx, pair, "e1")
	if d.Overrides["amount"] != "20" {
		t.Errorf("amount override = %q, want 20", d.Overrides["amount"])
	}
	if _, ok := d.Overrides["symbol"]; ok {
		t.Error("Expected symbol override to be cleared")
	}
}

func TestSynthesize_EndToEnd(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)
	seedTransactions(t, store,
		&domain.Transaction{ID: "a1", RunID: "run-a", SourceEmailID: "e1", Type: "buy", Amount: "50"},
		&domain.Transaction{ID: "b1", RunID: "run-b", SourceEmailID: "e1", Type: "buy", Amount: "55"},
		&domain.Transaction{ID: "a2", RunID: "run-a", SourceEmailID: "e2", Type: "sell", Amount: "10"},
	)
	ctx := context.Background()
	pair := domain.PairKey{RunA: "run-a", RunB: "run-b"}

	if err := eng.SetDecision(ctx, pair, "e1", strPtr("b1"), false); err != nil {
		t.Fatalf("SetDecision: %v", err)
	}
	if err := eng.SetDecision(ctx, pair, "e2", strPtr("exclude"), false); err != nil {
		t.Fatalf("SetDecision: %v", err)
	}

	run, err := eng.Synthesize(ctx, "run-a", "run-b", "run-a", "reviewed merge")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if run.Name != "reviewed merge" {
		t.Errorf("Name = %q, want reviewed merge", run.Name)
	}
	if run.Version != 3 {
		t.Errorf("Version = %d, want 3 (one past the latest)", run.Version)
	}
	if run.ModelID != domain.SynthesizedModelID {
		t.Errorf("ModelID = %q, want synthesis marker", run.ModelID)
	}
	if run.TransactionsCreated != 1 {
		t.Errorf("TransactionsCreated = %d, want 1 (e2 excluded)", run.TransactionsCreated)
	}

	// The merged run and its transactions are persisted and queryable.
	stored, err := store.GetRun(ctx, run.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetRun(%s): %v, %v", run.ID, stored, err)
	}
	txs, err := store.ListTransactions(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Amount != "55" {
		t.Fatalf("Stored transactions = %+v, want the selected b1 copy", txs)
	}
	if txs[0].Provenance == nil || txs[0].Provenance.SourceTransactionID != "b1" {
		t.Errorf("Provenance = %+v, want source b1", txs[0].Provenance)
	}

	// The merged run can itself be compared against a source run.
	result, err := eng.GetComparison(ctx, run.ID, "run-a")
	if err != nil {
		t.Fatalf("GetComparison on merged run: %v", err)
	}
	if result.Summary.Total == 0 {
		t.Error("Expected the merged run to participate in comparisons")
	}
}

func TestSynthesize_Validation(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)
	ctx := context.Background()

	var ve *engine.ValidationError
	if _, err := eng.Synthesize(ctx, "run-a", "run-b", "run-c", ""); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for primary outside the pair, got %v", err)
	}
	if _, err := eng.Synthesize(ctx, "run-a", "run-a", "run-a", ""); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for self pair, got %v", err)
	}

	var nf *engine.NotFoundError
	if _, err := eng.Synthesize(ctx, "run-a", "ghost", "run-a", ""); !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError for unknown run, got %v", err)
	}
}

func TestGetComparison_UnknownRun(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)

	var nf *engine.NotFoundError
	if _, err := eng.GetComparison(context.Background(), "run-a", "ghost"); !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	eng, store := newTestEngine(t)
	seedRuns(t, store)

	runs, err := eng.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].Version < runs[1].Version {
		t.Error("Expected newest version first")
	}
}
