// Package services defines shared utilities consumed by the mirror pipeline
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, stage names, and source
//     roots for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the tool's error taxonomy (configuration, source availability,
//     protection integrity, transport).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across the run.
package services
