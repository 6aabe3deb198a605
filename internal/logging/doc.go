// Package logging constructs the slog loggers used throughout offload and
// standardizes the structured field names (component, identity_key, phase,
// batch) so log lines stay greppable across phases. It offers a console
// handler for interactive use and a JSON handler for machine consumption.
package logging
