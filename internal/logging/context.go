package logging

import (
	"context"
	"log/slog"

	"offload/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldIdentityKey is the standardized structured logging key for file identity keys.
	FieldIdentityKey = "identity_key"
	// FieldPhase is the standardized structured logging key for engine phase names.
	FieldPhase = "phase"
	// FieldBatch is the standardized structured logging key for 1-based batch numbers.
	FieldBatch = "batch"
	// FieldRunID is the standardized structured logging key for executor run identifiers.
	FieldRunID = "run_id"
	// FieldPath is the standardized structured logging key for source file paths.
	FieldPath = "path"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if key, ok := services.IdentityKeyFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldIdentityKey, key))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if batch, ok := services.BatchFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldBatch, batch))
	}
	if runID, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, runID))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
