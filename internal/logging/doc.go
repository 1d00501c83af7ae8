// Package logging builds the slog loggers used across poolsync.
//
// Two output formats are supported: a human-oriented console format and
// machine-readable JSON. Loggers tee to stdout and the configured log file.
// The package also provides typed attribute helpers and standardized field
// names so run, stage, and source identifiers appear consistently in every
// log line.
package logging
