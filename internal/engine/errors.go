package engine

import "fmt"

// ValidationError reports malformed input to an engine operation, such as a
// missing or self-referential run pair.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a reference to an unknown run, email, or
// transaction.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func notFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// PartialBatchError reports that a bulk decision call applied only part of
// its updates. Per contract it carries aggregate counts only, no per-item
// detail.
type PartialBatchError struct {
	Applied int
	Failed  int
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("bulk decision partially applied: %d applied, %d failed", e.Applied, e.Failed)
}
