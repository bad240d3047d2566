package models

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// InvalidInputError is returned when the original message or the instruction is empty after trimming. It is
// raised before any network activity.
type InvalidInputError struct {
	Field string
}

// ConnectionError reports that the inference server could not be reached: connection refused, DNS failure, or
// no response headers within the request timeout.
type ConnectionError struct {
	URL string
	Err error
}

// HTTPError reports a non-2xx response from the inference server, such as 404 for an unknown model.
type HTTPError struct {
	StatusCode int
	Status     string
	// Message is the server's own explanation, taken from its JSON error field or the raw body.
	Message string
}

// StreamInterruptedError reports a stream that ended before its done marker, either because the connection
// dropped or because the server sent an error record mid-stream.
type StreamInterruptedError struct {
	Err error
}

// ParseWarning describes one stream record that could not be decoded. It is logged and skipped, never returned
// as a session failure.
type ParseWarning struct {
	Record string
	Err    error
}

const maxRecordPreview = 120

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s must not be empty", e.Field)
}

func (e *ConnectionError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("request to %s timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("could not connect to %s, is the server running? %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a timeout rather than a refused connection.
func (e *ConnectionError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

func (e *HTTPError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	if e.Message == "" {
		return fmt.Sprintf("server responded with %s", status)
	}
	return fmt.Sprintf("server responded with %s: %s", status, e.Message)
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

func (e *StreamInterruptedError) Unwrap() error {
	return e.Err
}

func (w *ParseWarning) Error() string {
	return fmt.Sprintf("skipping malformed record %q: %v", Preview(w.Record), w.Err)
}

func (w *ParseWarning) Unwrap() error {
	return w.Err
}

// Preview shortens s for logs and error details.
func Preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxRecordPreview {
		return s
	}
	return s[:maxRecordPreview] + "..."
}
