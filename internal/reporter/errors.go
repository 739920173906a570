package reporter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every ConfigError.
	ErrInvalidConfig = errors.New("invalid channel configuration")
	// ErrSampleRejected is wrapped by every RejectionError.
	ErrSampleRejected = errors.New("sample rejected")
	// ErrUnknownChannel is returned when a channel name was never configured.
	ErrUnknownChannel = errors.New("unknown channel")
)

// ConfigError describes an invalid channel definition.
type ConfigError struct {
	// Channel is the offending channel name.
	Channel string
	// Reason explains what is wrong.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("channel %q: %s", e.Channel, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidConfig).
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// RejectionError explains why a sample was discarded.
type RejectionError struct {
	// Channel is the channel that invalidated the sample, empty for whole-sample faults.
	Channel string
	// Reason is the validation or sensor failure message.
	Reason string
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	if e.Channel == "" {
		return "sample rejected: " + e.Reason
	}

	return fmt.Sprintf("sample rejected: channel %q: %s", e.Channel, e.Reason)
}

// Unwrap allows errors.Is(err, ErrSampleRejected).
func (e *RejectionError) Unwrap() error {
	return ErrSampleRejected
}
