package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks capability I/O failures (network, remote 5xx,
	// filesystem). The task fails; the loop keeps running.
	ErrTransient = errors.New("transient failure")
	// ErrEmptyResult marks a capability that succeeded at the protocol
	// level but produced nothing usable.
	ErrEmptyResult = errors.New("empty result")
	// ErrMalformedResponse marks analysis output that could not be parsed.
	// It never fails a task; the pipeline degrades instead.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrConfiguration marks missing or invalid settings discovered at use time.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
