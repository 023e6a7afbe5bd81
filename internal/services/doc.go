// Package services provides shared error classification and context
// annotation helpers for the external capability clients.
package services
