// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package rate converts human rates, such as "1 per minute with a burst of 5", into the
// parameters that drive a token bucket: how often a token is deposited, how many messages
// each token releases and how many tokens the bucket may bank.
package rate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultMinSleep is the floor on the refill interval. It bounds how often the refill
// goroutine wakes up, whatever the target rate.
const DefaultMinSleep = 10 * time.Millisecond

// Longest refill interval a time.Duration can hold.
const maxIntervalMillis = float64(math.MaxInt64 / int64(time.Millisecond))

// ErrInvalidRateSpec is returned, wrapped with detail, whenever a Spec cannot be turned into
// Params.
var ErrInvalidRateSpec = errors.New("invalid rate spec")

// Unit is the time unit a rate is expressed in. The zero Unit is not valid, so a Spec built
// without one fails Validate.
type Unit int

const (
	unitUnset Unit = iota
	Microsecond
	Millisecond
	Second
	Minute
	Hour
	Day
	Month
)

var unitNames = []string{
	unitUnset:   "",
	Microsecond: "microsecond",
	Millisecond: "millisecond",
	Second:      "second",
	Minute:      "minute",
	Hour:        "hour",
	Day:         "day",
	Month:       "month"}

var unitMillis = []float64{
	unitUnset:   0,
	Microsecond: 0.001,
	Millisecond: 1,
	Second:      1000,
	Minute:      60000,
	Hour:        3600000,
	Day:         86400000,
	Month:       2678400000}

func (u Unit) String() string {
	if !u.Valid() {
		return fmt.Sprintf("Unit(%d)", int(u))
	}

	return unitNames[u]
}

// Valid tells you whether u is one of the recognised units.
func (u Unit) Valid() bool {
	return u >= Microsecond && u <= Month
}

// Millis returns the length of the unit in milliseconds.
func (u Unit) Millis() float64 {
	if !u.Valid() {
		return 0
	}

	return unitMillis[u]
}

// ParseUnit parses a unit name such as "second" or "Minute".
func ParseUnit(name string) (Unit, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for u := Microsecond; u <= Month; u++ {
		if unitNames[u] == n {
			return u, nil
		}
	}

	return unitUnset, errors.Wrapf(ErrInvalidRateSpec, "unrecognised unit %q", name)
}

// Spec is a rate specification: Rate messages per Unit, allowing bursts of up to Burst.
type Spec struct {
	Rate  float64
	Unit  Unit
	Burst int
}

// NewSpec creates a Spec with the default burst of 1.
func NewSpec(r float64, unit Unit) Spec {
	return Spec{Rate: r, Unit: unit, Burst: 1}
}

func (s Spec) String() string {
	return fmt.Sprintf("%v per %v (burst %d)", s.Rate, s.Unit, s.Burst)
}

// Validate returns an error wrapping ErrInvalidRateSpec if the spec is unusable.
func (s Spec) Validate() error {
	if math.IsNaN(s.Rate) || math.IsInf(s.Rate, 0) || s.Rate <= 0 {
		return errors.Wrapf(ErrInvalidRateSpec, "rate must be a positive number, got %v", s.Rate)
	}

	if !s.Unit.Valid() {
		return errors.Wrapf(ErrInvalidRateSpec, "unrecognised unit %v", s.Unit)
	}

	if s.Burst < 1 {
		return errors.Wrapf(ErrInvalidRateSpec, "burst must be at least 1, got %d", s.Burst)
	}

	return nil
}

// Params are the low-level parameters derived from a Spec. They never change for the life of
// a throttler.
type Params struct {
	// RefillIntervalMillis is the time between two token deposits.
	RefillIntervalMillis int64
	// BatchSize is the number of messages released by each token.
	BatchSize int
	// Capacity is the number of tokens the bucket can bank, i.e. the burst.
	Capacity int
}

// RefillInterval is RefillIntervalMillis as a time.Duration.
func (p Params) RefillInterval() time.Duration {
	return time.Duration(p.RefillIntervalMillis) * time.Millisecond
}

func (p Params) String() string {
	return fmt.Sprintf("Params{refill: %vms, batch: %d, capacity: %d}",
		p.RefillIntervalMillis, p.BatchSize, p.Capacity)
}

// Calculate derives Params from a Spec. The refill interval is the ideal inter-arrival time,
// floored at minSleep; when the floor kicks in, each token releases a batch of messages so
// the average rate still matches the spec. Both values are rounded half away from zero.
func Calculate(s Spec, minSleep time.Duration) (Params, error) {
	if err := s.Validate(); err != nil {
		return Params{}, err
	}

	if minSleep <= 0 {
		return Params{}, errors.Wrapf(ErrInvalidRateSpec, "min sleep must be positive, got %v", minSleep)
	}

	minSleepMillis := float64(minSleep) / float64(time.Millisecond)
	ratePerMilli := s.Rate / s.Unit.Millis()

	interval := math.Max(math.Round(math.Max(1/ratePerMilli, minSleepMillis)), 1)
	if interval > maxIntervalMillis {
		return Params{}, errors.Wrapf(ErrInvalidRateSpec, "rate %v is too low to schedule", s)
	}

	perTick := math.Round(interval * ratePerMilli)
	if perTick > math.MaxInt32 {
		return Params{}, errors.Wrapf(ErrInvalidRateSpec, "rate %v is too high to schedule", s)
	}

	batch := int(perTick)
	if batch < 1 {
		batch = 1
	}

	return Params{
		RefillIntervalMillis: int64(interval),
		BatchSize:            batch,
		Capacity:             s.Burst}, nil
}
