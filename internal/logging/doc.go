// Package logging builds the slog loggers used across the daemon and CLI,
// along with attribute helpers and standardized field keys.
package logging
