package domain

import (
	"time"
)

// RunStatus is the lifecycle state of an extraction run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is still producing transactions.
	RunStatusRunning RunStatus = "RUNNING"
	// RunStatusCompleted indicates the run finished and is immutable.
	RunStatusCompleted RunStatus = "COMPLETED"
	// RunStatusFailed indicates the run aborted; its transactions are ignored.
	RunStatusFailed RunStatus = "FAILED"
)

// SynthesizedModelID marks runs produced by the synthesizer rather than by
// an extraction model.
const SynthesizedModelID = "synthesis"

// Run is one completed extraction attempt over the email corpus. Runs are
// immutable once completed; the synthesizer always creates a new Run and
// never mutates an existing one.
type Run struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Version int64  `json:"version"`
	ModelID string `json:"modelId"`

	Status              RunStatus `json:"status"`
	TransactionsCreated int       `json:"transactionsCreated"`

	StartedAt time.Time `json:"startedAt"`
}
