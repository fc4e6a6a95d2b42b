package store

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// transientError marks a wrapped error as ErrTransient while keeping the
// original cause reachable through errors.Is and errors.As.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTransient, e.err)
}

func (e *transientError) Unwrap() []error {
	return []error{ErrTransient, e.err}
}

// Transient marks err as transient. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err has been classified as transient, either
// explicitly via Transient or implicitly by carrying an errno or network
// condition that is known to clear up on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	return isTransientErrno(err) || isTransientNet(err)
}

// Classify returns err marked as transient when it carries a transient
// errno or network condition, and err unchanged otherwise.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	if isTransientErrno(err) || isTransientNet(err) {
		return Transient(err)
	}
	return err
}

func isTransientErrno(err error) bool {
	switch {
	case errors.Is(err, unix.EAGAIN),
		errors.Is(err, unix.EINTR),
		errors.Is(err, unix.EBUSY),
		errors.Is(err, unix.ETXTBSY):
		return true
	}
	return false
}

func isTransientNet(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
