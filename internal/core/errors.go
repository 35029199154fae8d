package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidValue is wrapped by every error caused by an unrecognised enum value.
	ErrInvalidValue = errors.New("invalid value")
	// ErrAlreadyBound is returned when a queue is bound to a component a second time.
	ErrAlreadyBound = errors.New("queue already bound")
	// ErrNotBound is returned when a component emits before its queue is bound.
	ErrNotBound = errors.New("queue not bound")
	// ErrQueueClosed is returned by Put and Get once a queue is closed.
	ErrQueueClosed = errors.New("queue closed")
	// ErrUnsupportedComponent is returned by Behaviour.Add for values that are
	// not a Trigger, Condition or Action.
	ErrUnsupportedComponent = errors.New("unsupported component")
)

// InvalidValueError reports a value that does not map to a known ComponentKind
// interface.
type InvalidValueError struct {
	Value string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %s", e.Value)
}

// Unwrap lets errors.Is match ErrInvalidValue.
func (e *InvalidValueError) Unwrap() error {
	return ErrInvalidValue
}
