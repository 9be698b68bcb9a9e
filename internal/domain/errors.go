package domain

import (
	"errors"
	"fmt"
)

// TransientError wraps a failure that may succeed on retry (rate limit,
// timeout, server error).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure that will not succeed on retry (target
// missing, forbidden, no content, unsupported query).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// MalformedExportError reports a previous export that cannot be trusted.
type MalformedExportError struct {
	Path string
	Err  error
}

func (e *MalformedExportError) Error() string {
	if e.Path == "" {
		return "malformed export: " + e.Err.Error()
	}
	return fmt.Sprintf("malformed export %s: %s", e.Path, e.Err)
}
func (e *MalformedExportError) Unwrap() error { return e.Err }

// ErrNoContent is wrapped in a PermanentError when a target yields nothing.
var ErrNoContent = errors.New("no content")

// ErrIncomplete is wrapped in a TransientError when a source stops before
// covering the requested range (listing depth cap, unexpandable comment
// stubs). Such a batch must not be reconciled.
var ErrIncomplete = errors.New("incomplete batch")

// Transient wraps err as a TransientError.
func Transient(err error) error { return &TransientError{Err: err} }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error { return &PermanentError{Err: err} }

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

func IsMalformed(err error) bool {
	var m *MalformedExportError
	return errors.As(err, &m)
}
