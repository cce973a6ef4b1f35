package services

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a device or subscription registration misses
// a required field.
var ErrInvalidInput = errors.New("invalid input")

// TransportError means the push relay could not be reached: bad endpoint URL,
// DNS or connection failure, or timeout.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("push to %s failed: %s", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StoreError wraps a failure of the key/value store.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %s", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
