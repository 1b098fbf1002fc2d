package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okozyrev/extraction-review/internal/domain"
)

// SynthesisInput is everything BuildMergedRun needs. TxsA/TxsB are the two
// runs' transactions grouped by source email id.
type SynthesisInput struct {
	RunA *domain.Run
	RunB *domain.Run

	TxsA map[string][]*domain.Transaction
	TxsB map[string][]*domain.Transaction

	// PrimaryRunID breaks ties: unresolved emails and tie/discussion
	// decisions take this side's transaction when present.
	PrimaryRunID string

	Decisions map[string]*domain.Decision

	Name        string
	NextVersion int64
}

// BuildMergedRun deterministically synthesizes a new run from two runs plus
// the reviewer's decisions and overrides. Identical inputs always produce
// identical field values; only ids and timestamps vary between calls.
//
// Source runs and their transactions are never mutated: templates are cloned
// before overrides are applied.
func BuildMergedRun(in SynthesisInput) (*domain.Run, []*domain.Transaction, error) {
	now := time.Now()
	run := &domain.Run{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Version:   in.NextVersion,
		ModelID:   domain.SynthesizedModelID,
		Status:    domain.RunStatusCompleted,
		StartedAt: now,
	}
	if run.Name == "" {
		run.Name = fmt.Sprintf("merge of %s and %s", in.RunA.ID, in.RunB.ID)
	}

	var out []*domain.Transaction
	for _, emailID := range unionEmails(in.TxsA, in.TxsB) {
		a := in.TxsA[emailID]
		b := in.TxsB[emailID]
		decision := in.Decisions[emailID]

		emitted, err := synthesizeEmail(emailID, a, b, decision, in)
		if err != nil {
			return nil, nil, fmt.Errorf("BuildMergedRun: email %s: %w", emailID, err)
		}
		for _, template := range emitted {
			tx := applyOverrides(template.tx, decision)
			tx.ID = uuid.NewString()
			tx.RunID = run.ID
			tx.SourceEmailID = emailID
			tx.CreatedAt = now
			tx.Provenance = &domain.Provenance{
				SourceTransactionID: template.tx.ID,
				SourceRunID:         template.tx.RunID,
				Decision:            template.decision,
			}
			out = append(out, tx)
		}
	}

	run.TransactionsCreated = len(out)
	return run, out, nil
}

// template pairs a source transaction with the decision label recorded in
// its provenance.
type template struct {
	tx       *domain.Transaction
	decision string
}

func synthesizeEmail(emailID string, a, b []*domain.Transaction, decision *domain.Decision, in SynthesisInput) ([]template, error) {
	if len(a) > 1 || len(b) > 1 {
		return synthesizeMulti(a, b, decision, in)
	}

	winner := decision.Winner()
	switch winner.Kind {
	case domain.WinnerExclude:
		return nil, nil
	case domain.WinnerTransaction:
		tx := findByID(winner.TransactionID, a, b)
		if tx == nil {
			return nil, notFound("transaction", winner.TransactionID)
		}
		return []template{{tx: tx, decision: winner.Token()}}, nil
	default:
		// Tie, discussion, and unresolved all fall back to the primary
		// side's transaction; matched emails hold equal tracked values so
		// either side serves.
		tx, label := primaryFallback(a, b, in.PrimaryRunID)
		if tx == nil {
			return nil, nil
		}
		if !winner.IsNone() {
			label = winner.Token()
		}
		return []template{{tx: tx, decision: label}}, nil
	}
}

// synthesizeMulti emits one transaction per selected id, sentinels ignored.
// An exclude-only selection emits nothing; with no decision at all the
// primary side's transactions carry over, mirroring the single-pair rule.
func synthesizeMulti(a, b []*domain.Transaction, decision *domain.Decision, in SynthesisInput) ([]template, error) {
	ids := decision.SelectedTransactionIDs()
	if len(ids) > 0 {
		out := make([]template, 0, len(ids))
		for _, id := range ids {
			tx := findByID(id, a, b)
			if tx == nil {
				return nil, notFound("transaction", id)
			}
			out = append(out, template{tx: tx, decision: id})
		}
		return out, nil
	}

	if decision.Contains(domain.Winner{Kind: domain.WinnerExclude}) {
		return nil, nil
	}

	primary, other := a, b
	if in.PrimaryRunID == in.RunB.ID {
		primary, other = b, a
	}
	side := primary
	if len(side) == 0 {
		side = other
	}
	out := make([]template, 0, len(side))
	for _, tx := range side {
		out = append(out, template{tx: tx, decision: "unresolved"})
	}
	return out, nil
}

// applyOverrides clones the template and applies the decision's field
// overrides on top. Overrides win unconditionally, including explicit
// empty values; "data.<key>" entries target the flattened additional data.
func applyOverrides(src *domain.Transaction, decision *domain.Decision) *domain.Transaction {
	tx := src.Clone()
	if decision == nil || len(decision.Overrides) == 0 {
		return tx
	}

	fields := make([]string, 0, len(decision.Overrides))
	for f := range decision.Overrides {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var flat map[string]any
	for _, field := range fields {
		value := decision.Overrides[field]
		if key, ok := strings.CutPrefix(field, "data."); ok {
			if flat == nil {
				flat = domain.FlattenAdditionalData(tx.AdditionalData)
			}
			flat[key] = value
			continue
		}
		// Unknown field names were rejected when the override was recorded;
		// nothing to do here beyond applying.
		_ = tx.SetField(field, value)
	}
	if flat != nil {
		tx.AdditionalData = flat
	}
	return tx
}

func primaryFallback(a, b []*domain.Transaction, primaryRunID string) (*domain.Transaction, string) {
	var first, second *domain.Transaction
	if len(a) > 0 {
		first = a[0]
	}
	if len(b) > 0 {
		second = b[0]
	}
	if first != nil && first.RunID != primaryRunID && second != nil {
		first, second = second, first
	}
	if first != nil {
		return first, "unresolved"
	}
	return second, "unresolved"
}

func findByID(id string, a, b []*domain.Transaction) *domain.Transaction {
	for _, tx := range a {
		if tx.ID == id {
			return tx
		}
	}
	for _, tx := range b {
		if tx.ID == id {
			return tx
		}
	}
	return nil
}

func unionEmails(a, b map[string][]*domain.Transaction) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var emails []string
	for id := range a {
		if !seen[id] {
			seen[id] = true
			emails = append(emails, id)
		}
	}
	for id := range b {
		if !seen[id] {
			seen[id] = true
			emails = append(emails, id)
		}
	}
	sort.Strings(emails)
	return emails
}
