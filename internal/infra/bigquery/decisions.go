package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/okozyrev/extraction-review/internal/domain"
)

type DecisionRow struct {
	RunAID  string `bigquery:"run_a_id"` // REQUIRED
	RunBID  string `bigquery:"run_b_id"` // REQUIRED
	EmailID string `bigquery:"email_id"` // REQUIRED

	// Selected holds winner tokens: transaction ids or the sentinels
	// "tie" / "exclude" / "discussion".
	Selected []string `bigquery:"selected"` // REPEATED STRING

	Overrides bigquery.NullJSON `bigquery:"overrides"` // NULLABLE

	UpdatedTS time.Time `bigquery:"updated_ts"` // REQUIRED
}

func decisionRowFromDomain(pair domain.PairKey, d *domain.Decision) (*DecisionRow, error) {
	row := &DecisionRow{
		RunAID:    pair.RunA,
		RunBID:    pair.RunB,
		EmailID:   d.EmailID,
		UpdatedTS: d.UpdatedAt,
	}
	for _, w := range d.Selected {
		if token := w.Token(); token != "" {
			row.Selected = append(row.Selected, token)
		}
	}
	if len(d.Overrides) > 0 {
		b, err := json.Marshal(d.Overrides)
		if err != nil {
			return nil, fmt.Errorf("decisionRowFromDomain: marshal overrides: %w", err)
		}
		row.Overrides = bigquery.NullJSON{JSONVal: string(b), Valid: true}
	}
	return row, nil
}

func (row *DecisionRow) toDomain() (*domain.Decision, error) {
	d := &domain.Decision{
		EmailID:   row.EmailID,
		UpdatedAt: row.UpdatedTS,
	}
	for _, token := range row.Selected {
		if w := domain.ParseWinnerToken(token); !w.IsNone() {
			d.Selected = append(d.Selected, w)
		}
	}
	if row.Overrides.Valid && row.Overrides.JSONVal != "" {
		overrides := make(map[string]string)
		if err := json.Unmarshal([]byte(row.Overrides.JSONVal), &overrides); err != nil {
			return nil, fmt.Errorf("toDomain: unmarshal overrides for %s: %w", row.EmailID, err)
		}
		d.Overrides = overrides
	}
	return d, nil
}
