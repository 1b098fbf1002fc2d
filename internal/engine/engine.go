package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/okozyrev/extraction-review/internal/domain"
)

// Engine is the reconciliation, diffing, and synthesis engine. All
// operations are synchronous; the only session state it holds is the
// per-pair auto-assignment guard.
type Engine struct {
	runs      RunRepository
	txs       TransactionRepository
	decisions DecisionRepository
	log       zerolog.Logger

	mu           sync.Mutex
	assignStates map[domain.PairKey]assignPhase
}

// assignPhase is the explicit auto-assignment state machine for one pair.
type assignPhase int

const (
	assignNotStarted assignPhase = iota
	assignInFlight
	assignDone
)

// New creates an engine over the given repositories.
func New(runs RunRepository, txs TransactionRepository, decisions DecisionRepository, log zerolog.Logger) *Engine {
	return &Engine{
		runs:         runs,
		txs:          txs,
		decisions:    decisions,
		log:          log,
		assignStates: make(map[domain.PairKey]assignPhase),
	}
}

// ComparisonResult is the full reconciliation view for one run pair.
type ComparisonResult struct {
	RunA *domain.Run `json:"runA"`
	RunB *domain.Run `json:"runB"`

	Summary     domain.Summary       `json:"summary"`
	Comparisons []*domain.Comparison `json:"comparisons"`

	MultiTransactionEmails []*domain.MultiTransactionEmail `json:"multiTransactionEmails"`
	PatternGroups          []domain.PatternGroup           `json:"patternGroups"`
}

// DecisionUpdate is one item of a bulk decision call.
type DecisionUpdate struct {
	EmailID string  `json:"emailId"`
	Winner  *string `json:"winner"`
}

// GetComparison loads both runs' transactions, classifies every email, and
// attaches reviewer decisions. On the first load of a pair it also
// auto-assigns winners for only_a/only_b emails that lack a decision.
func (e *Engine) GetComparison(ctx context.Context, runAID, runBID string) (*ComparisonResult, error) {
	pair, err := e.validatePair(runAID, runBID)
	if err != nil {
		return nil, err
	}

	runA, err := e.getRun(ctx, runAID)
	if err != nil {
		return nil, err
	}
	runB, err := e.getRun(ctx, runBID)
	if err != nil {
		return nil, err
	}

	byEmailA, err := e.transactionsByEmail(ctx, runAID)
	if err != nil {
		return nil, err
	}
	byEmailB, err := e.transactionsByEmail(ctx, runBID)
	if err != nil {
		return nil, err
	}

	decisions, err := e.decisions.ListDecisions(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("GetComparison: list decisions: %w", err)
	}

	result := &ComparisonResult{RunA: runA, RunB: runB}
	for _, emailID := range unionEmails(byEmailA, byEmailB) {
		comparison, multi := MatchEmail(emailID, byEmailA[emailID], byEmailB[emailID])
		decision := decisions[emailID]
		switch {
		case comparison != nil:
			attachDecision(comparison, decision)
			result.Comparisons = append(result.Comparisons, comparison)
		case multi != nil:
			multi.Decision = decision
			result.MultiTransactionEmails = append(result.MultiTransactionEmails, multi)
		}
	}

	e.maybeAutoAssign(ctx, pair, result.Comparisons)

	result.Summary = Summarize(result.Comparisons)
	result.PatternGroups = GroupPatterns(result.Comparisons)
	return result, nil
}

// SetDecision records the reviewer's winner designation for one email. A
// nil winner clears it. With toggle set, membership of the value in the
// email's selection set is flipped instead (the multi-transaction model).
// Reapplying the same designation is a no-op.
func (e *Engine) SetDecision(ctx context.Context, pair domain.PairKey, emailID string, winner *string, toggle bool) error {
	if _, err := e.validatePair(pair.RunA, pair.RunB); err != nil {
		return err
	}
	if emailID == "" {
		return validationErrorf("email id is required")
	}

	w := domain.NoWinner
	if winner != nil {
		w = domain.ParseWinnerToken(*winner)
	}

	a, b, err := e.emailTransactions(ctx, pair, emailID)
	if err != nil {
		return err
	}
	if w.Kind == domain.WinnerTransaction {
		side, ok := sideOf(w.TransactionID, a, b)
		if !ok {
			return notFound("transaction", w.TransactionID)
		}
		w.Side = side
	}

	decision, err := e.loadDecision(ctx, pair, emailID)
	if err != nil {
		return err
	}

	var changed bool
	if toggle {
		changed = decision.Toggle(w)
	} else {
		changed = decision.Set(w)
	}
	if !changed {
		return nil
	}

	decision.UpdatedAt = time.Now()
	if err := e.decisions.UpsertDecision(ctx, pair, decision); err != nil {
		return fmt.Errorf("SetDecision: upsert: %w", err)
	}
	return nil
}

// BulkSetDecision applies independent setDecision upserts in one call.
// There is no atomicity across the batch: a partial failure leaves the
// committed subset in place and is reported as a PartialBatchError carrying
// aggregate counts only.
func (e *Engine) BulkSetDecision(ctx context.Context, pair domain.PairKey, updates []DecisionUpdate) (int, error) {
	if _, err := e.validatePair(pair.RunA, pair.RunB); err != nil {
		return 0, err
	}

	applied := 0
	failed := 0
	for _, u := range updates {
		if err := e.SetDecision(ctx, pair, u.EmailID, u.Winner, false); err != nil {
			failed++
			e.log.Warn().
				Err(err).
				Str("email_id", u.EmailID).
				Str("pair", pair.String()).
				Msg("Bulk decision item failed")
			continue
		}
		applied++
	}

	if failed > 0 {
		return applied, &PartialBatchError{Applied: applied, Failed: failed}
	}
	return applied, nil
}

// SetFieldOverride merges reviewer-supplied field overrides for one email.
// A nil value clears that field's override; an empty string records an
// explicit absent override. Overrides apply only at synthesis time and
// never alter stored transactions.
func (e *Engine) SetFieldOverride(ctx context.Context, pair domain.PairKey, emailID string, overrides map[string]*string) error {
	if _, err := e.validatePair(pair.RunA, pair.RunB); err != nil {
		return err
	}
	if emailID == "" {
		return validationErrorf("email id is required")
	}
	for field := range overrides {
		if !validOverrideField(field) {
			return validationErrorf("unknown override field %q", field)
		}
	}

	if _, _, err := e.emailTransactions(ctx, pair, emailID); err != nil {
		return err
	}

	decision, err := e.loadDecision(ctx, pair, emailID)
	if err != nil {
		return err
	}

	changed := false
	for field, value := range overrides {
		if decision.SetOverride(field, value) {
			changed = true
		}
	}
	if !changed {
		return nil
	}

	decision.UpdatedAt = time.Now()
	if err := e.decisions.UpsertDecision(ctx, pair, decision); err != nil {
		return fmt.Errorf("SetFieldOverride: upsert: %w", err)
	}
	return nil
}

// Synthesize produces and persists a new merged run from the pair's
// decisions and overrides. The read-then-write is a single batch with no
// partial-result support; callers wanting cancellation simply discard the
// run at the orchestration layer.
func (e *Engine) Synthesize(ctx context.Context, runAID, runBID, primaryRunID, name string) (*domain.Run, error) {
	pair, err := e.validatePair(runAID, runBID)
	if err != nil {
		return nil, err
	}
	if primaryRunID != runAID && primaryRunID != runBID {
		return nil, validationErrorf("primary run %q must be one of the compared runs", primaryRunID)
	}

	runA, err := e.getRun(ctx, runAID)
	if err != nil {
		return nil, err
	}
	runB, err := e.getRun(ctx, runBID)
	if err != nil {
		return nil, err
	}

	byEmailA, err := e.transactionsByEmail(ctx, runAID)
	if err != nil {
		return nil, err
	}
	byEmailB, err := e.transactionsByEmail(ctx, runBID)
	if err != nil {
		return nil, err
	}

	decisions, err := e.decisions.ListDecisions(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("Synthesize: list decisions: %w", err)
	}

	nextVersion, err := e.nextVersion(ctx)
	if err != nil {
		return nil, err
	}

	run, txs, err := BuildMergedRun(SynthesisInput{
		RunA:         runA,
		RunB:         runB,
		TxsA:         byEmailA,
		TxsB:         byEmailB,
		PrimaryRunID: primaryRunID,
		Decisions:    decisions,
		Name:         name,
		NextVersion:  nextVersion,
	})
	if err != nil {
		return nil, err
	}

	if err := e.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("Synthesize: create run: %w", err)
	}
	if err := e.txs.InsertTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("Synthesize: insert transactions: %w", err)
	}

	e.log.Info().
		Str("run_id", run.ID).
		Str("pair", pair.String()).
		Int("transactions_created", run.TransactionsCreated).
		Msg("Synthesized merged run")
	return run, nil
}

// ListRuns exposes the run store through the engine boundary.
func (e *Engine) ListRuns(ctx context.Context) ([]*domain.Run, error) {
	runs, err := e.runs.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: %w", err)
	}
	return runs, nil
}

// maybeAutoAssign assigns the sole available transaction as winner for every
// undecided only_a/only_b comparison, at most once per pair per session.
// Concurrent sessions racing here converge: the target assignment is
// deterministic, so repeated writes land on the same state. Failures are
// logged and swallowed; this is best-effort convenience, not a reviewer
// action, and must never block the view.
func (e *Engine) maybeAutoAssign(ctx context.Context, pair domain.PairKey, comparisons []*domain.Comparison) {
	e.mu.Lock()
	if e.assignStates[pair] != assignNotStarted {
		e.mu.Unlock()
		return
	}
	e.assignStates[pair] = assignInFlight
	e.mu.Unlock()

	assigned := 0
	for _, c := range comparisons {
		if !c.Winner.IsNone() {
			continue
		}

		var w domain.Winner
		switch c.Status {
		case domain.StatusOnlyA:
			w = domain.TransactionWinner(domain.SideA, c.A.ID)
		case domain.StatusOnlyB:
			w = domain.TransactionWinner(domain.SideB, c.B.ID)
		default:
			continue
		}

		decision, err := e.loadDecision(ctx, pair, c.EmailID)
		if err != nil {
			e.log.Warn().Err(err).Str("email_id", c.EmailID).Msg("Auto-assignment skipped")
			continue
		}
		if !decision.Set(w) {
			continue
		}
		decision.UpdatedAt = time.Now()
		if err := e.decisions.UpsertDecision(ctx, pair, decision); err != nil {
			e.log.Warn().Err(err).Str("email_id", c.EmailID).Msg("Auto-assignment upsert failed")
			continue
		}
		attachDecision(c, decision)
		assigned++
	}

	e.mu.Lock()
	e.assignStates[pair] = assignDone
	e.mu.Unlock()

	if assigned > 0 {
		e.log.Info().
			Str("pair", pair.String()).
			Int("assigned", assigned).
			Msg("Auto-assigned winners for one-sided emails")
	}
}

func (e *Engine) validatePair(runAID, runBID string) (domain.PairKey, error) {
	if runAID == "" || runBID == "" {
		return domain.PairKey{}, validationErrorf("both run ids are required")
	}
	if runAID == runBID {
		return domain.PairKey{}, validationErrorf("cannot compare run %q with itself", runAID)
	}
	return domain.PairKey{RunA: runAID, RunB: runBID}, nil
}

func (e *Engine) getRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("getRun %s: %w", runID, err)
	}
	if run == nil {
		return nil, notFound("run", runID)
	}
	return run, nil
}

func (e *Engine) transactionsByEmail(ctx context.Context, runID string) (map[string][]*domain.Transaction, error) {
	txs, err := e.txs.ListTransactions(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("transactionsByEmail %s: %w", runID, err)
	}
	byEmail := make(map[string][]*domain.Transaction)
	for _, tx := range txs {
		byEmail[tx.SourceEmailID] = append(byEmail[tx.SourceEmailID], tx)
	}
	return byEmail, nil
}

// emailTransactions loads one email's transactions from both runs and
// verifies the email exists in at least one of them.
func (e *Engine) emailTransactions(ctx context.Context, pair domain.PairKey, emailID string) ([]*domain.Transaction, []*domain.Transaction, error) {
	a, err := e.txs.ListTransactionsByEmail(ctx, pair.RunA, emailID)
	if err != nil {
		return nil, nil, fmt.Errorf("emailTransactions: run A: %w", err)
	}
	b, err := e.txs.ListTransactionsByEmail(ctx, pair.RunB, emailID)
	if err != nil {
		return nil, nil, fmt.Errorf("emailTransactions: run B: %w", err)
	}
	if len(a) == 0 && len(b) == 0 {
		return nil, nil, notFound("email", emailID)
	}
	return a, b, nil
}

func (e *Engine) loadDecision(ctx context.Context, pair domain.PairKey, emailID string) (*domain.Decision, error) {
	decision, err := e.decisions.GetDecision(ctx, pair, emailID)
	if err != nil {
		return nil, fmt.Errorf("loadDecision %s: %w", emailID, err)
	}
	if decision == nil {
		decision = domain.NewDecision(emailID)
	}
	return decision, nil
}

func (e *Engine) nextVersion(ctx context.Context) (int64, error) {
	runs, err := e.runs.ListRuns(ctx)
	if err != nil {
		return 0, fmt.Errorf("nextVersion: %w", err)
	}
	var latest int64
	for _, r := range runs {
		if r.Version > latest {
			latest = r.Version
		}
	}
	return latest + 1, nil
}

// attachDecision copies persisted reviewer state onto a derived comparison,
// resolving the winner's side against the transactions actually present.
func attachDecision(c *domain.Comparison, decision *domain.Decision) {
	if decision == nil {
		return
	}
	w := decision.Winner()
	if w.Kind == domain.WinnerTransaction {
		if c.A != nil && c.A.ID == w.TransactionID {
			w.Side = domain.SideA
		} else if c.B != nil && c.B.ID == w.TransactionID {
			w.Side = domain.SideB
		}
	}
	c.Winner = w
	if len(decision.Overrides) > 0 {
		c.FieldOverrides = make(map[string]string, len(decision.Overrides))
		for k, v := range decision.Overrides {
			c.FieldOverrides[k] = v
		}
	}
}

func sideOf(txID string, a, b []*domain.Transaction) (domain.RunSide, bool) {
	for _, tx := range a {
		if tx.ID == txID {
			return domain.SideA, true
		}
	}
	for _, tx := range b {
		if tx.ID == txID {
			return domain.SideB, true
		}
	}
	return "", false
}

func validOverrideField(field string) bool {
	if key, ok := strings.CutPrefix(field, "data."); ok {
		return key != ""
	}
	for _, f := range domain.TrackedFields {
		if f == field {
			return true
		}
	}
	return false
}
