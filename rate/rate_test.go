// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package rate

import (
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		spec     Spec
		interval int64
		batch    int
		capacity int
	}{
		{"one per minute", NewSpec(1, Minute), 60000, 1, 1},
		{"one per second with burst", Spec{1, Second, 9}, 1000, 1, 9},
		{"thousand per second saturates", NewSpec(1000, Second), 10, 10, 1},
		{"two per second", NewSpec(2, Second), 500, 1, 1},
		{"one per microsecond", NewSpec(1, Microsecond), 10, 10000, 1},
		{"one per month", NewSpec(1, Month), 2678400000, 1, 1},
		{"just above the floor", NewSpec(1000.0/10.4, Second), 10, 1, 1},
		{"fractional rate", NewSpec(0.5, Second), 2000, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Calculate(tt.spec, DefaultMinSleep)
			require.NoError(t, err)
			assert.Equal(t, tt.interval, p.RefillIntervalMillis)
			assert.Equal(t, tt.batch, p.BatchSize)
			assert.Equal(t, tt.capacity, p.Capacity)
			assert.True(t, p.RefillIntervalMillis >= DefaultMinSleep.Milliseconds())
		})
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	s := Spec{Rate: 37, Unit: Second, Burst: 4}
	p1, err := Calculate(s, DefaultMinSleep)
	require.NoError(t, err)
	p2, err := Calculate(s, DefaultMinSleep)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestCalculateCustomFloor(t *testing.T) {
	p, err := Calculate(NewSpec(1000, Second), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.RefillIntervalMillis)
	assert.Equal(t, 50, p.BatchSize)
	assert.Equal(t, 50*time.Millisecond, p.RefillInterval())
}

func TestCalculateInvalid(t *testing.T) {
	specs := []Spec{
		{0, Second, 1},
		{-1, Second, 1},
		{math.NaN(), Second, 1},
		{math.Inf(1), Second, 1},
		{1, Unit(42), 1},
		{1, Second, 0},
		{1, Second, -3},
		{1e-30, Month, 1},
		{1e30, Microsecond, 1},
	}

	for _, s := range specs {
		_, err := Calculate(s, DefaultMinSleep)
		require.Error(t, err, "spec %v", s)
		assert.True(t, errors.Is(err, ErrInvalidRateSpec), "spec %v: %v", s, err)
	}

	_, err := Calculate(NewSpec(1, Second), 0)
	assert.True(t, errors.Is(err, ErrInvalidRateSpec))
}

func TestMissingUnitIsInvalid(t *testing.T) {
	var u Unit
	assert.False(t, u.Valid())
	assert.Equal(t, "Unit(0)", u.String())

	err := Spec{Rate: 5, Burst: 1}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRateSpec))
}

func TestParseUnit(t *testing.T) {
	for _, u := range []Unit{Microsecond, Millisecond, Second, Minute, Hour, Day, Month} {
		parsed, err := ParseUnit(u.String())
		require.NoError(t, err)
		assert.Equal(t, u, parsed)
	}

	u, err := ParseUnit(" Minute ")
	require.NoError(t, err)
	assert.Equal(t, Minute, u)

	_, err = ParseUnit("fortnight")
	assert.True(t, errors.Is(err, ErrInvalidRateSpec))

	_, err = ParseUnit("")
	assert.True(t, errors.Is(err, ErrInvalidRateSpec))
}

func TestUnitMillis(t *testing.T) {
	assert.Equal(t, 0.001, Microsecond.Millis())
	assert.Equal(t, 2678400000.0, Month.Millis())
	assert.Equal(t, 0.0, Unit(-1).Millis())
	assert.Equal(t, "Unit(9)", Unit(9).String())
}
