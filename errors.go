// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package throttler

import (
	"github.com/pkg/errors"

	"github.com/agata-anastazja/throttler/rate"
)

var (
	// ErrInvalidRateSpec is returned, wrapped, when a throttler is built from a bad spec.
	ErrInvalidRateSpec = rate.ErrInvalidRateSpec

	// ErrInvalidOption is returned, wrapped, when an Option is given a bad value.
	ErrInvalidOption = errors.New("invalid option")
)

// IsInvalidRateSpec tells you whether err was caused by an unusable rate spec.
func IsInvalidRateSpec(err error) bool {
	return errors.Is(err, ErrInvalidRateSpec)
}

// ErrorReason provides details on why a Registry lookup failed.
type ErrorReason int

const (
	// No throttler configured under the requested name
	ER_NO_THROTTLER ErrorReason = iota

	// Registry has not been started, or has been stopped
	ER_NOT_STARTED
)

type ThrottlerError struct {
	error
	Reason ErrorReason
}

func (e ThrottlerError) Error() string {
	return e.error.Error()
}

func newError(msg string, reason ErrorReason) ThrottlerError {
	return ThrottlerError{error: errors.New(msg), Reason: reason}
}

// IsNoThrottler tells you whether err is a lookup of an unknown throttler name.
func IsNoThrottler(err error) bool {
	var te ThrottlerError
	return errors.As(err, &te) && te.Reason == ER_NO_THROTTLER
}
