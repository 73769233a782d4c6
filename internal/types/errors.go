package types

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError through errors.Is.
	ErrConfiguration = errors.New("configuration error")
	// ErrTypeMismatch matches every *TypeMismatchError through errors.Is.
	ErrTypeMismatch = errors.New("type mismatch")
)

// ConfigurationError reports a programmer or packaging mistake: a missing
// accessor, a hook called before the host supplied its context, or a
// package without a content-type manifest. It is never retried.
type ConfigurationError struct {
	Op     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("%s: configuration error: %s", e.Op, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(op, reason string) error {
	return &ConfigurationError{Op: op, Reason: reason}
}

// TypeMismatchError reports an accessor result of the wrong shape: a future
// on the synchronous path, a non-binary image or an invalid size.
type TypeMismatchError struct {
	Op     string
	Reason string
}

func (e *TypeMismatchError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("type mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("%s: type mismatch: %s", e.Op, e.Reason)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// NewTypeMismatchError creates a new type mismatch error
func NewTypeMismatchError(op, reason string) error {
	return &TypeMismatchError{Op: op, Reason: reason}
}
