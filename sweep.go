package ecusim

import (
	"math"

	"github.com/pkg/errors"
)

const (
	sweepStepRPM         = 100
	sweepStepTemperature = 1
	sweepStepBoost       = 0.05
	sweepStepAFR         = 0.1
	sweepStepLoad        = 1
)

// ramp walks from min to max by step and back again. Values are computed as
// min + n*step so repeated additions cannot drift.
type ramp struct {
	min, max, step float64
	n, last        int
	down           bool
}

func newRamp(min, max, step float64) *ramp {
	return &ramp{
		min:  min,
		max:  max,
		step: step,
		last: int(math.Ceil((max-min)/step - scaleEpsilon)),
	}
}

func (r *ramp) value() float64 {
	return math.Min(r.min+float64(r.n)*r.step, r.max)
}

func (r *ramp) next() float64 {
	v := r.value()
	if r.down {
		r.n--
	} else {
		r.n++
	}

	if r.n >= r.last {
		r.n = r.last
		r.down = true
	} else if r.n <= 0 {
		r.n = 0
		r.down = false
	}
	return v
}

// SweepGenerator produces smoothly changing telemetry that bounces between the
// range limits, for exercising dashboards.
type SweepGenerator struct {
	ranges                             Ranges
	rpm, temperature, boost, afr, load *ramp
}

func NewSweepGenerator(ranges Ranges) (*SweepGenerator, error) {
	if err := ranges.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid ranges")
	}
	boostMin, boostMax, _ := ranges.BoostPressure.Printable(BoostPressureDecimals)
	afrMin, afrMax, _ := ranges.AFR.Printable(AFRDecimals)
	return &SweepGenerator{
		ranges:      ranges,
		rpm:         newRamp(float64(ranges.RPM.Min), float64(ranges.RPM.Max), sweepStepRPM),
		temperature: newRamp(float64(ranges.Temperature.Min), float64(ranges.Temperature.Max), sweepStepTemperature),
		boost:       newRamp(boostMin, boostMax, sweepStepBoost),
		afr:         newRamp(afrMin, afrMax, sweepStepAFR),
		load:        newRamp(float64(ranges.Load.Min), float64(ranges.Load.Max), sweepStepLoad),
	}, nil
}

func (g *SweepGenerator) Generate() LiveData {
	return LiveData{
		Timestamp:     timestamp(),
		RPM:           int(round(g.rpm.next(), 0)),
		Temperature:   int(round(g.temperature.next(), 0)),
		BoostPressure: Pressure(g.ranges.BoostPressure.Clamp(g.boost.next(), BoostPressureDecimals)),
		AFR:           Ratio(g.ranges.AFR.Clamp(g.afr.next(), AFRDecimals)),
		Load:          int(round(g.load.next(), 0)),
	}
}
