package gaze

import (
	"errors"
	"fmt"
)

// Reason classifies why a gaze point produced no hit.
type Reason string

const (
	ReasonNoActiveView       Reason = "no-active-view"
	ReasonOffScreen          Reason = "off-screen"
	ReasonOutOfBounds        Reason = "out-of-bounds"
	ReasonNoDocumentPosition Reason = "no-document-position"
)

// MappingError is the expected, non-fatal outcome of a gaze point that does
// not land on document text.
type MappingError struct {
	Reason Reason
	Detail string
}

func (e *MappingError) Error() string {
	if e.Detail == "" {
		return "gaze mapping: " + string(e.Reason)
	}
	return fmt.Sprintf("gaze mapping: %s: %s", e.Reason, e.Detail)
}

// Is matches another *MappingError with the same reason, so the
// Err* values below work with errors.Is.
func (e *MappingError) Is(target error) bool {
	var t *MappingError
	if !errors.As(target, &t) {
		return false
	}
	return t.Reason == e.Reason
}

var (
	ErrNoActiveView       = &MappingError{Reason: ReasonNoActiveView}
	ErrOffScreen          = &MappingError{Reason: ReasonOffScreen}
	ErrOutOfBounds        = &MappingError{Reason: ReasonOutOfBounds}
	ErrNoDocumentPosition = &MappingError{Reason: ReasonNoDocumentPosition}
)

func fail(r Reason, format string, args ...any) error {
	return &MappingError{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the mapping failure reason from err.
func ReasonOf(err error) (Reason, bool) {
	var me *MappingError
	if errors.As(err, &me) {
		return me.Reason, true
	}
	return "", false
}
