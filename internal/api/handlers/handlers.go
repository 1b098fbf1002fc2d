package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/okozyrev/extraction-review/internal/api/middleware"
	"github.com/okozyrev/extraction-review/internal/domain"
	"github.com/okozyrev/extraction-review/internal/emailstore"
	"github.com/okozyrev/extraction-review/internal/engine"
)

// RunsHandler handles run listing endpoints.
type RunsHandler struct {
	engine *engine.Engine
	log    zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(eng *engine.Engine, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{engine: eng, log: log}
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runs, err := h.engine.ListRuns(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	if runs == nil {
		runs = []*domain.Run{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// CompareHandler handles the comparison view endpoint.
type CompareHandler struct {
	engine *engine.Engine
	log    zerolog.Logger
}

// NewCompareHandler creates a new compare handler.
func NewCompareHandler(eng *engine.Engine, log zerolog.Logger) *CompareHandler {
	return &CompareHandler{engine: eng, log: log}
}

// GetComparison handles GET /api/compare?run_a=...&run_b=...
func (h *CompareHandler) GetComparison(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	result, err := h.engine.GetComparison(ctx, query.Get("run_a"), query.Get("run_b"))
	if err != nil {
		writeEngineError(w, h.log, err, "Failed to build comparison")
		return
	}

	if result.Comparisons == nil {
		result.Comparisons = []*domain.Comparison{}
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// DecisionsHandler handles decision and override endpoints.
type DecisionsHandler struct {
	engine *engine.Engine
	log    zerolog.Logger
}

// NewDecisionsHandler creates a new decisions handler.
func NewDecisionsHandler(eng *engine.Engine, log zerolog.Logger) *DecisionsHandler {
	return &DecisionsHandler{engine: eng, log: log}
}

// SetDecision handles POST /api/decisions
func (h *DecisionsHandler) SetDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunA    string  `json:"runA"`
		RunB    string  `json:"runB"`
		EmailID string  `json:"emailId"`
		Winner  *string `json:"winner"`
		Toggle  bool    `json:"toggle"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	pair := domain.PairKey{RunA: req.RunA, RunB: req.RunB}
	if err := h.engine.SetDecision(r.Context(), pair, req.EmailID, req.Winner, req.Toggle); err != nil {
		writeEngineError(w, h.log, err, "Failed to record decision")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"email_id": req.EmailID,
		"status":   "recorded",
	})
}

// BulkSetDecision handles POST /api/decisions/bulk
func (h *DecisionsHandler) BulkSetDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunA    string                  `json:"runA"`
		RunB    string                  `json:"runB"`
		Updates []engine.DecisionUpdate `json:"updates"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Updates) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "updates are required")
		return
	}

	pair := domain.PairKey{RunA: req.RunA, RunB: req.RunB}
	applied, err := h.engine.BulkSetDecision(r.Context(), pair, req.Updates)

	var partial *engine.PartialBatchError
	if errors.As(err, &partial) {
		// Committed items stay committed; report aggregate counts only.
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"appliedCount": applied,
			"failedCount":  partial.Failed,
			"message":      fmt.Sprintf("%d of %d updates applied", applied, len(req.Updates)),
		})
		return
	}
	if err != nil {
		writeEngineError(w, h.log, err, "Failed to apply bulk decisions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appliedCount": applied,
		"failedCount":  0,
	})
}

// SetOverrides handles POST /api/overrides
func (h *DecisionsHandler) SetOverrides(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunA      string             `json:"runA"`
		RunB      string             `json:"runB"`
		EmailID   string             `json:"emailId"`
		Overrides map[string]*string `json:"overrides"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Overrides) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "overrides are required")
		return
	}

	pair := domain.PairKey{RunA: req.RunA, RunB: req.RunB}
	if err := h.engine.SetFieldOverride(r.Context(), pair, req.EmailID, req.Overrides); err != nil {
		writeEngineError(w, h.log, err, "Failed to record overrides")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"email_id": req.EmailID,
		"status":   "recorded",
	})
}

// SynthesisHandler handles merged-run synthesis.
type SynthesisHandler struct {
	engine *engine.Engine
	log    zerolog.Logger
}

// NewSynthesisHandler creates a new synthesis handler.
func NewSynthesisHandler(eng *engine.Engine, log zerolog.Logger) *SynthesisHandler {
	return &SynthesisHandler{engine: eng, log: log}
}

// Synthesize handles POST /api/synthesize
func (h *SynthesisHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunA       string `json:"runA"`
		RunB       string `json:"runB"`
		PrimaryRun string `json:"primaryRun"`
		Name       string `json:"name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	run, err := h.engine.Synthesize(r.Context(), req.RunA, req.RunB, req.PrimaryRun, req.Name)
	if err != nil {
		writeEngineError(w, h.log, err, "Failed to synthesize merged run")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, run)
}

// EmailsHandler serves email previews for the review UI.
type EmailsHandler struct {
	store *emailstore.Store
	log   zerolog.Logger
}

// NewEmailsHandler creates a new emails handler. The store may be nil when
// no preview bucket is configured.
func NewEmailsHandler(store *emailstore.Store, log zerolog.Logger) *EmailsHandler {
	return &EmailsHandler{store: store, log: log}
}

// GetEmail handles GET /api/emails/{id}
func (h *EmailsHandler) GetEmail(w http.ResponseWriter, r *http.Request, emailID string) {
	if h.store == nil {
		middleware.WriteError(w, http.StatusNotFound, "Email previews are not configured")
		return
	}

	email, err := h.store.GetEmail(r.Context(), emailID)
	if errors.Is(err, emailstore.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Email not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("email_id", emailID).Msg("Failed to fetch email preview")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to fetch email")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, email)
}

// writeEngineError maps engine error types onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	var validation *engine.ValidationError
	if errors.As(err, &validation) {
		middleware.WriteError(w, http.StatusBadRequest, validation.Msg)
		return
	}

	var missing *engine.NotFoundError
	if errors.As(err, &missing) {
		middleware.WriteError(w, http.StatusNotFound, missing.Error())
		return
	}

	log.Error().Err(err).Msg(msg)
	middleware.WriteError(w, http.StatusInternalServerError, msg)
}
