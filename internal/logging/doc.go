// Package logging assembles structured slog loggers used across the gear.
//
// It owns the console and JSON handlers, fans console output and the JSON log
// file out through a single logger, and exposes context-aware helpers so stage
// code can tag log lines with the run identifier and stage name. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
