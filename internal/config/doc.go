// Package config loads, normalizes, and validates the TOML configuration
// used by the callscribe daemon and CLI.
package config
