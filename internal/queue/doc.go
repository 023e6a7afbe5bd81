// Package queue persists ingestion tasks in SQLite and enforces the
// queued -> processing -> terminal lifecycle through guarded, atomic
// single-statement transitions.
package queue
