// Package config loads, normalizes, and validates offload configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and validates the result. The Config type
// centralizes every knob the CLI and engine need: source/review/log
// directories, scan filters, hashing parallelism, catalog collaborators, and
// batch execution limits.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute paths, canonical extension lists, and clear validation
// errors.
package config
