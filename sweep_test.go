package ecusim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepGenerator(t *testing.T) {
	ranges := DefaultRanges()
	gen, err := NewSweepGenerator(ranges)
	require.NoError(t, err)

	first := gen.Generate()
	assert.Equal(t, 800, first.RPM)
	assert.Equal(t, 80, first.Temperature)
	assert.Equal(t, Pressure(0.5), first.BoostPressure)
	assert.Equal(t, Ratio(12.0), first.AFR)
	assert.Equal(t, 10, first.Load)

	second := gen.Generate()
	assert.Equal(t, 900, second.RPM)
	assert.Equal(t, 81, second.Temperature)
	assert.Equal(t, Pressure(0.55), second.BoostPressure)

	sawMax := false
	for i := 0; i < 500; i++ {
		data := gen.Generate()
		assertInRanges(t, ranges, data)
		if data.RPM == ranges.RPM.Max {
			sawMax = true
		}
	}
	assert.True(t, sawMax, "rpm never reached its maximum")
}

func TestSweepGeneratorNoRepeatsAtLimits(t *testing.T) {
	gen, err := NewSweepGenerator(DefaultRanges())
	require.NoError(t, err)

	prev := gen.Generate()
	sawAFRMax := false
	for i := 0; i < 200; i++ {
		data := gen.Generate()
		assert.NotEqual(t, prev.AFR, data.AFR, "afr repeated at sample %d", i)
		assert.NotEqual(t, prev.BoostPressure, data.BoostPressure, "boost repeated at sample %d", i)
		if data.AFR == 15 {
			sawAFRMax = true
			assert.Equal(t, Ratio(14.9), prev.AFR)
		}
		prev = data
	}
	assert.True(t, sawAFRMax)
}

func TestSweepGeneratorFloatBoundsOffPrecision(t *testing.T) {
	ranges := DefaultRanges()
	ranges.BoostPressure = FloatRange{Min: 0.503, Max: 0.627}
	ranges.AFR = FloatRange{Min: 12.04, Max: 12.56}
	gen, err := NewSweepGenerator(ranges)
	require.NoError(t, err)

	first := gen.Generate()
	assert.Equal(t, Pressure(0.51), first.BoostPressure)
	assert.Equal(t, Ratio(12.1), first.AFR)
	for i := 0; i < 100; i++ {
		assertInRanges(t, ranges, gen.Generate())
	}
}

func TestRampBounces(t *testing.T) {
	r := newRamp(0, 2, 1)
	var values []float64
	for i := 0; i < 6; i++ {
		values = append(values, r.next())
	}
	assert.Equal(t, []float64{0, 1, 2, 1, 0, 1}, values)

	// degenerate range stays put
	r = newRamp(5, 5, 1)
	for i := 0; i < 3; i++ {
		assert.Equal(t, float64(5), r.next())
	}
}

func TestSweepGeneratorInvalidRanges(t *testing.T) {
	ranges := DefaultRanges()
	ranges.Temperature = IntRange{Min: 110, Max: 80}
	_, err := NewSweepGenerator(ranges)
	assert.Error(t, err)
}
