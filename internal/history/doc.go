// Package history persists run outcomes in a SQLite database.
//
// History is observability only and lives outside the mirror engine: the
// engine persists nothing beyond destination contents, and protection rules
// remain ephemeral scratch files. The store records when each run happened,
// how it ended, and per-source transfer statistics.
package history
