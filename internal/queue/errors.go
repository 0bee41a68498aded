package queue

import (
	"fmt"

	"github.com/m365ops/watchtower/internal/model"
)

// ValidationError reports a malformed alert draft. The draft is dropped and
// logged; it never aborts the submitting monitor.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert draft: %s: %s", e.Field, e.Reason)
}

func validateDraft(draft model.AlertDraft) error {
	if draft.Service == "" {
		return &ValidationError{Field: "service", Reason: "must not be empty"}
	}
	if draft.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !draft.Severity.Valid() {
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", draft.Severity)}
	}
	return nil
}
