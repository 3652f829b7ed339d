package soc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSOCDerivation(t *testing.T) {
	capacity := ptr(10000.0)

	sinceFull := SOCSinceFull(&EnergyTotals{Charged: 500, Discharged: 2500}, capacity)
	require.NotNil(t, sinceFull)
	assert.InDelta(t, 80, *sinceFull, 1e-9)

	sinceEmpty := SOCSinceEmpty(&EnergyTotals{Charged: 8200}, capacity)
	require.NotNil(t, sinceEmpty)
	assert.InDelta(t, 82, *sinceEmpty, 1e-9)

	avg := AverageSOC(sinceFull, sinceEmpty)
	require.NotNil(t, avg)
	assert.InDelta(t, 81, *avg, 1e-9)
}

func TestSOCUnknownInputs(t *testing.T) {
	assert.Nil(t, SOCSinceFull(nil, ptr(10000.0)))
	assert.Nil(t, SOCSinceEmpty(&EnergyTotals{}, nil))
	assert.Nil(t, AverageSOC(ptr(50.0), nil))
}

func TestSOCZeroCapacity(t *testing.T) {
	sinceFull := SOCSinceFull(&EnergyTotals{Discharged: 100}, ptr(0.0))
	sinceEmpty := SOCSinceEmpty(&EnergyTotals{Charged: 100}, ptr(0.0))
	require.NotNil(t, sinceFull)
	require.NotNil(t, sinceEmpty)
	assert.False(t, IsFinite(*sinceFull))
	assert.False(t, IsFinite(*sinceEmpty))
	assert.Nil(t, AverageSOC(sinceFull, sinceEmpty), "non-finite values never average")
}

func TestUnknownCapacityParameter(t *testing.T) {
	assert.Nil(t, AssumedParameters{}.Capacity())
	assert.Nil(t, AssumedParameters{CapacityWh: -5000}.Capacity())
	assert.Nil(t, AssumedParameters{CapacityWh: math.NaN()}.Capacity())
	assert.Equal(t, 5.0, *AssumedParameters{CapacityWh: 5}.Capacity())

	// a negative capacity must not turn into finite readings
	totals := &EnergyTotals{Charged: 1000, Discharged: 0}
	capacity := AssumedParameters{CapacityWh: -5000}.Capacity()
	full, empty := SOCSinceFull(totals, capacity), SOCSinceEmpty(totals, capacity)
	assert.Nil(t, full)
	assert.Nil(t, empty)
	assert.Nil(t, AverageSOC(full, empty))
}
