package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers wrap them with context and match with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrConfig     = errors.New("invalid commission config")
	ErrForbidden  = errors.New("forbidden")
)

// ErrEventClosed is returned for commission-affecting writes on a locked event.
var ErrEventClosed = fmt.Errorf("%w: event already closed", ErrConflict)

// ErrAlreadyCheckedIn is returned alongside the active check-in when a
// registration is checked in twice without an undo.
var ErrAlreadyCheckedIn = fmt.Errorf("%w: already checked in", ErrConflict)
