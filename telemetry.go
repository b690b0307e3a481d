package ecusim

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

const (
	BoostPressureDecimals = 2
	AFRDecimals           = 1
)

// TimestampLayout is the UTC ISO-8601 form used for LiveData.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Pressure is boost pressure in bar, encoded with two decimals.
type Pressure float64

func (p Pressure) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(p), 'f', BoostPressureDecimals, 64)), nil
}

// Ratio is an air-fuel ratio, encoded with one decimal.
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(r), 'f', AFRDecimals, 64)), nil
}

// LiveData is a single telemetry sample as streamed to consumers.
type LiveData struct {
	Timestamp     string   `json:"timestamp"`
	RPM           int      `json:"rpm"`
	Temperature   int      `json:"temperature"`
	BoostPressure Pressure `json:"boostPressure"`
	AFR           Ratio    `json:"afr"`
	Load          int      `json:"load"`
}

type IntRange struct {
	Min int `toml:"min" yaml:"min"`
	Max int `toml:"max" yaml:"max"`
}

type FloatRange struct {
	Min float64 `toml:"min" yaml:"min"`
	Max float64 `toml:"max" yaml:"max"`
}

// Printable narrows r to the values representable with the given number of
// decimals: Min rounded up, Max rounded down. ok is false when none remain.
func (r FloatRange) Printable(decimals int) (lo, hi float64, ok bool) {
	p := math.Pow(10, float64(decimals))
	lo = scaledCeil(r.Min*p) / p
	hi = scaledFloor(r.Max*p) / p
	return lo, hi, lo <= hi
}

// Clamp rounds v to decimals and keeps it inside the printable range.
func (r FloatRange) Clamp(v float64, decimals int) float64 {
	lo, hi, _ := r.Printable(decimals)
	v = round(v, decimals)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// scaled values within rounding noise of an integer count as that integer,
// so 1.1*100 does not ceil to 111.
const scaleEpsilon = 1e-9

func scaledCeil(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < scaleEpsilon {
		return r
	}
	return math.Ceil(v)
}

func scaledFloor(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < scaleEpsilon {
		return r
	}
	return math.Floor(v)
}

// Ranges bounds every generated field, inclusive on both ends.
type Ranges struct {
	RPM           IntRange   `toml:"rpm" yaml:"rpm"`
	Temperature   IntRange   `toml:"temperature" yaml:"temperature"`
	BoostPressure FloatRange `toml:"boost_pressure" yaml:"boost_pressure"`
	AFR           FloatRange `toml:"afr" yaml:"afr"`
	Load          IntRange   `toml:"load" yaml:"load"`
}

func DefaultRanges() Ranges {
	return Ranges{
		RPM:           IntRange{Min: 800, Max: 6800},
		Temperature:   IntRange{Min: 80, Max: 110},
		BoostPressure: FloatRange{Min: 0.5, Max: 2.0},
		AFR:           FloatRange{Min: 12.0, Max: 15.0},
		Load:          IntRange{Min: 10, Max: 100},
	}
}

func (r Ranges) Validate() error {
	ints := []struct {
		name string
		r    IntRange
	}{
		{"rpm", r.RPM},
		{"temperature", r.Temperature},
		{"load", r.Load},
	}
	for _, i := range ints {
		if i.r.Min > i.r.Max {
			return errors.Errorf("%s range min %d is above max %d", i.name, i.r.Min, i.r.Max)
		}
	}
	floats := []struct {
		name     string
		r        FloatRange
		decimals int
	}{
		{"boostPressure", r.BoostPressure, BoostPressureDecimals},
		{"afr", r.AFR, AFRDecimals},
	}
	for _, f := range floats {
		if f.r.Min > f.r.Max {
			return errors.Errorf("%s range min %v is above max %v", f.name, f.r.Min, f.r.Max)
		}
		if _, _, ok := f.r.Printable(f.decimals); !ok {
			return errors.Errorf("%s range [%v, %v] holds no value with %d decimals",
				f.name, f.r.Min, f.r.Max, f.decimals)
		}
	}
	return nil
}
