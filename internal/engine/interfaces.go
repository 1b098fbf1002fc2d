package engine

import (
	"context"

	"github.com/okozyrev/extraction-review/internal/domain"
)

// RunRepository provides access to extraction runs. Implementations return
// (nil, nil) from GetRun when the id is unknown; the engine translates that
// into its NotFoundError.
type RunRepository interface {
	// ListRuns retrieves all runs, newest version first.
	ListRuns(ctx context.Context) ([]*domain.Run, error)

	// GetRun retrieves a single run by id, or nil when unknown.
	GetRun(ctx context.Context, runID string) (*domain.Run, error)

	// CreateRun persists a new run.
	CreateRun(ctx context.Context, run *domain.Run) error
}

// TransactionRepository provides access to the transactions a run produced.
type TransactionRepository interface {
	// ListTransactions retrieves every transaction of a run in creation
	// order.
	ListTransactions(ctx context.Context, runID string) ([]*domain.Transaction, error)

	// ListTransactionsByEmail retrieves a run's transactions for one source
	// email in creation order.
	ListTransactionsByEmail(ctx context.Context, runID, emailID string) ([]*domain.Transaction, error)

	// InsertTransactions persists a batch of transactions.
	InsertTransactions(ctx context.Context, txs []*domain.Transaction) error
}

// DecisionRepository persists reviewer decisions scoped to a run pair.
// Writes are idempotent upserts keyed by (pair, emailId).
type DecisionRepository interface {
	// ListDecisions retrieves all decisions for a pair keyed by email id.
	ListDecisions(ctx context.Context, pair domain.PairKey) (map[string]*domain.Decision, error)

	// GetDecision retrieves one email's decision, or nil when none is
	// recorded.
	GetDecision(ctx context.Context, pair domain.PairKey, emailID string) (*domain.Decision, error)

	// UpsertDecision inserts or replaces one email's decision.
	UpsertDecision(ctx context.Context, pair domain.PairKey, decision *domain.Decision) error
}
