// Package services defines shared utilities consumed by the gear stages and
// the platform integration.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers and stage names for logging.
//   - Structured error markers plus the Wrap helper that tag failures so the
//     run ledger can classify them.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the run.
package services
