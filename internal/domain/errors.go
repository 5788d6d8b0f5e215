package domain

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies ingestion failures so retry decisions are a match
// over kinds rather than substring checks on error text.
type ErrorKind string

const (
	// ErrKindTransient covers network resets, timeouts and HTTP 429/5xx.
	// Retried with backoff.
	ErrKindTransient ErrorKind = "transient"
	// ErrKindQuotaExceeded means the daily API budget is spent. Never
	// retried within the same quota window.
	ErrKindQuotaExceeded ErrorKind = "quota_exceeded"
	// ErrKindSourceFatal fails the run for that source only: non-2xx on the
	// top-level fetch, unparseable body, unresolvable platform identifier.
	ErrKindSourceFatal ErrorKind = "source_fatal"
)

type IngestError struct {
	Kind ErrorKind
	Err  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

func Transient(err error) error {
	return &IngestError{Kind: ErrKindTransient, Err: err}
}

func Transientf(format string, args ...any) error {
	return Transient(fmt.Errorf(format, args...))
}

func QuotaExceeded(err error) error {
	return &IngestError{Kind: ErrKindQuotaExceeded, Err: err}
}

func QuotaExceededf(format string, args ...any) error {
	return QuotaExceeded(fmt.Errorf(format, args...))
}

func SourceFatal(err error) error {
	return &IngestError{Kind: ErrKindSourceFatal, Err: err}
}

func SourceFatalf(format string, args ...any) error {
	return SourceFatal(fmt.Errorf(format, args...))
}

// ErrorFromStatus classifies an unexpected HTTP status: 429 and 5xx are
// transient, anything else fails the source.
func ErrorFromStatus(status int, op string) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return Transientf("%s: unexpected status %d", op, status)
	}
	return SourceFatalf("%s: unexpected status %d", op, status)
}

// KindOf returns the classification of err, or false when err carries none.
func KindOf(err error) (ErrorKind, bool) {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return "", false
}

// IsRetryable reports whether the retry policy should attempt err again.
// Classified errors decide by kind; unclassified errors are retried only
// when they look like network timeouts.
func IsRetryable(err error) bool {
	if kind, ok := KindOf(err); ok {
		return kind == ErrKindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
