// Package config loads, normalizes, and validates poolsync configuration.
//
// Configuration is read from a TOML file layered over compiled-in defaults.
// The resulting Config is immutable after Load and passed by reference into
// the sequencer and its collaborators; nothing in the pipeline reads ambient
// global state.
package config
