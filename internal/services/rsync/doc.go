// Package rsync wraps the rsync command line as the tool's transfer
// primitive. The wrapper treats rsync as a black box: it assembles arguments,
// streams stdout, and condenses itemized changes plus the --stats block into
// a Report. Command execution sits behind an Executor interface so tests
// never launch a real process.
package rsync
