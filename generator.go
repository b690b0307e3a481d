package ecusim

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Mode string

const (
	ModeRandom Mode = "random"
	ModeSweep  Mode = "sweep"
)

// to allow testing
var timeNow = time.Now

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeRandom:
		return ModeRandom, nil
	case ModeSweep:
		return ModeSweep, nil
	}
	return "", errors.Errorf("unknown generator mode %q", s)
}

// NewGenerator builds the generator for mode over ranges.
func NewGenerator(mode Mode, ranges Ranges, seed int64) (Generator, error) {
	var gen Generator
	var err error
	switch mode {
	case ModeRandom:
		gen, err = NewRandomGenerator(ranges, seed)
	case ModeSweep:
		gen, err = NewSweepGenerator(ranges)
	default:
		return nil, errors.Errorf("unknown generator mode %q", mode)
	}
	if err != nil {
		return nil, err
	}
	return gen, nil
}

// RandomGenerator draws every field independently and uniformly from its range.
type RandomGenerator struct {
	ranges Ranges
	rnd    *rand.Rand
}

// NewRandomGenerator seeds from the clock when seed is zero.
func NewRandomGenerator(ranges Ranges, seed int64) (*RandomGenerator, error) {
	if err := ranges.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid ranges")
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomGenerator{
		ranges: ranges,
		rnd:    rand.New(rand.NewSource(seed)),
	}, nil
}

func (g *RandomGenerator) Generate() LiveData {
	return LiveData{
		Timestamp:     timestamp(),
		RPM:           g.intn(g.ranges.RPM),
		Temperature:   g.intn(g.ranges.Temperature),
		BoostPressure: Pressure(g.ranges.BoostPressure.Clamp(g.uniform(g.ranges.BoostPressure), BoostPressureDecimals)),
		AFR:           Ratio(g.ranges.AFR.Clamp(g.uniform(g.ranges.AFR), AFRDecimals)),
		Load:          g.intn(g.ranges.Load),
	}
}

func (g *RandomGenerator) intn(r IntRange) int {
	return r.Min + g.rnd.Intn(r.Max-r.Min+1)
}

func (g *RandomGenerator) uniform(r FloatRange) float64 {
	return r.Min + g.rnd.Float64()*(r.Max-r.Min)
}

func timestamp() string {
	return timeNow().UTC().Format(TimestampLayout)
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
