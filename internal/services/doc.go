// Package services defines the shared error taxonomy and context carriers
// used across offload's phases.
//
// Errors are tagged with sentinel markers (validation, external tool,
// verification, persistence, ...) so callers can classify failures without
// string matching: per-file errors are local and non-fatal, while
// persistence errors stop the run. Context helpers thread identity keys,
// phase names, and batch numbers through to structured logging.
package services
