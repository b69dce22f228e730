// Package logging assembles structured slog loggers and formatting helpers used
// across paradiso.
//
// It owns the console and JSON handlers, the per-run log file, and retention
// pruning. Context-aware helpers tag log lines with review IDs, stages, and
// run IDs so a single pass can be followed end to end. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
