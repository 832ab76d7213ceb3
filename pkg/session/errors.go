package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier is returned before any I/O when an id fails ValidateID.
	ErrInvalidIdentifier = errors.New("invalid session identifier")

	// ErrSessionExists is returned by Create under CollisionReject.
	ErrSessionExists = errors.New("session already exists")

	// ErrIO matches every *IOError via errors.Is.
	ErrIO = errors.New("session storage failure")
)

// IOError reports that a record could not be read, written or parsed.
type IOError struct {
	Op  string // open, lock, read, decode, encode, write, remove, list
	ID  string
	Err error
}

func (e *IOError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("failed to %s sessions: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s session %s: %v", e.Op, e.ID, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func ioErr(op, id string, err error) error {
	return &IOError{Op: op, ID: id, Err: err}
}
