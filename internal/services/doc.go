// Package services defines shared utilities consumed by the reconciliation
// stages and the external integrations they call.
//
// Key responsibilities:
//   - Context helpers that stamp review IDs, stage names, and run identifiers
//     for logging.
//   - Structured error markers plus the Wrap helper, so retry decisions and
//     operator messages classify failures the same way everywhere.
//
// Use these helpers when wiring new stage or backend code so operational
// behaviour (error handling, observability, retries) stays uniform.
package services
