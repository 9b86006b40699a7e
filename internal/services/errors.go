package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers the recovery manager classifies on. Adapters wrap their
// failures with exactly one of these.
var (
	ErrAuth       = errors.New("authentication error")
	ErrQuota      = errors.New("quota exhausted")
	ErrDependency = errors.New("dependency unavailable")
	ErrTransient  = errors.New("transient failure")
	ErrDuplicate  = errors.New("duplicate content")
)

// ResourceError tags an error with the quota resource it exhausted so the
// recovery manager can mark the right ledger row.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// WithResource attaches a quota resource name to err.
func WithResource(resource string, err error) error {
	if err == nil {
		return nil
	}
	return &ResourceError{Resource: resource, Err: err}
}

// Resource extracts the quota resource name from an error chain, if any.
func Resource(err error) (string, bool) {
	var re *ResourceError
	if errors.As(err, &re) {
		return re.Resource, true
	}
	return "", false
}

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
