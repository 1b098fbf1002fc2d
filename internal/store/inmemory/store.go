package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okozyrev/extraction-review/internal/domain"
	"github.com/okozyrev/extraction-review/internal/engine"
)

// Store is an in-memory implementation of the engine's repositories.
// It backs the engine tests and the CLI's fixture mode and is safe for
// concurrent use. Data is lost on restart - use the BigQuery repositories
// for persistence.
type Store struct {
	mu           sync.RWMutex
	runs         map[string]*domain.Run
	transactions map[string][]*domain.Transaction // keyed by run id
	decisions    map[string]map[string]*domain.Decision
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		runs:         make(map[string]*domain.Run),
		transactions: make(map[string][]*domain.Transaction),
		decisions:    make(map[string]map[string]*domain.Decision),
	}
}

// ListRuns implements engine.RunRepository. Runs come back newest version
// first.
func (s *Store) ListRuns(ctx context.Context) ([]*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*domain.Run, 0, len(s.runs))
	for _, run := range s.runs {
		cp := *run
		runs = append(runs, &cp)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Version > runs[j].Version })
	return runs, nil
}

// GetRun implements engine.RunRepository. Unknown ids return (nil, nil).
func (s *Store) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

// CreateRun implements engine.RunRepository.
func (s *Store) CreateRun(ctx context.Context, run *domain.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run already exists: %s", run.ID)
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

// ListTransactions implements engine.TransactionRepository.
func (s *Store) ListTransactions(ctx context.Context, runID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.transactions[runID]
	out := make([]*domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.Clone())
	}
	return out, nil
}

// ListTransactionsByEmail implements engine.TransactionRepository.
func (s *Store) ListTransactionsByEmail(ctx context.Context, runID, emailID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Transaction
	for _, tx := range s.transactions[runID] {
		if tx.SourceEmailID == emailID {
			out = append(out, tx.Clone())
		}
	}
	return out, nil
}

// InsertTransactions implements engine.TransactionRepository.
func (s *Store) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		if tx.ID == "" || tx.RunID == "" {
			return fmt.Errorf("transaction ID and run ID are required")
		}
		s.transactions[tx.RunID] = append(s.transactions[tx.RunID], tx.Clone())
	}
	return nil
}

// ListDecisions implements engine.DecisionRepository.
func (s *Store) ListDecisions(ctx context.Context, pair domain.PairKey) (map[string]*domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.Decision)
	for emailID, decision := range s.decisions[pair.String()] {
		out[emailID] = decision.Clone()
	}
	return out, nil
}

// GetDecision implements engine.DecisionRepository. Unrecorded emails
// return (nil, nil).
func (s *Store) GetDecision(ctx context.Context, pair domain.PairKey, emailID string) (*domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	decision, exists := s.decisions[pair.String()][emailID]
	if !exists {
		return nil, nil
	}
	return decision.Clone(), nil
}

// UpsertDecision implements engine.DecisionRepository.
func (s *Store) UpsertDecision(ctx context.Context, pair domain.PairKey, decision *domain.Decision) error {
	if decision == nil || decision.EmailID == "" {
		return fmt.Errorf("decision email ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair.String()
	if s.decisions[key] == nil {
		s.decisions[key] = make(map[string]*domain.Decision)
	}
	s.decisions[key][decision.EmailID] = decision.Clone()
	return nil
}

// Ensure Store implements the engine repositories.
var (
	_ engine.RunRepository         = (*Store)(nil)
	_ engine.TransactionRepository = (*Store)(nil)
	_ engine.DecisionRepository    = (*Store)(nil)
)
