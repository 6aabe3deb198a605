package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed or unusable inputs.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or inconsistent configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks entities that no longer resolve (missing files, unknown keys).
	ErrNotFound = errors.New("not found")
	// ErrExternalTool marks failures reported by the catalog import collaborator.
	ErrExternalTool = errors.New("external tool error")
	// ErrVerification marks a refused verification gate check.
	ErrVerification = errors.New("verification error")
	// ErrTransient marks retryable I/O failures.
	ErrTransient = errors.New("transient failure")
	// ErrPersistence marks ledger or audit write failures. These are fatal:
	// proceeding past an un-recorded decision or action risks silent data loss.
	ErrPersistence = errors.New("persistence error")
)

// Wrap builds an error message that includes phase context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, phase, operation, message string, err error) error {
	detail := buildDetail(phase, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error must stop the run rather than skip a file.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPersistence)
}

func buildDetail(phase, operation, message string) string {
	parts := make([]string, 0, 3)
	if phase = strings.TrimSpace(phase); phase != "" {
		parts = append(parts, phase)
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
