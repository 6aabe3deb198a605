package services

import "context"

type contextKey string

const (
	identityKeyContextKey contextKey = "identity_key"
	phaseContextKey       contextKey = "phase"
	batchContextKey       contextKey = "batch"
	runIDContextKey       contextKey = "run_id"
)

// WithIdentityKey attaches a file identity key to the context.
func WithIdentityKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, identityKeyContextKey, key)
}

// IdentityKeyFromContext extracts the identity key, if present.
func IdentityKeyFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(identityKeyContextKey).(string)
	return value, ok && value != ""
}

// WithPhase attaches the current engine phase name to the context.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, phaseContextKey, phase)
}

// PhaseFromContext extracts the phase name, if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(phaseContextKey).(string)
	return value, ok && value != ""
}

// WithBatch attaches the 1-based batch number to the context.
func WithBatch(ctx context.Context, batch int) context.Context {
	return context.WithValue(ctx, batchContextKey, batch)
}

// BatchFromContext extracts the batch number, if present.
func BatchFromContext(ctx context.Context) (int, bool) {
	value, ok := ctx.Value(batchContextKey).(int)
	return value, ok && value > 0
}

// WithRunID attaches the executor run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDContextKey, runID)
}

// RunIDFromContext extracts the run identifier, if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(runIDContextKey).(string)
	return value, ok && value != ""
}
