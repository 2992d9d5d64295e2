package scan

import (
	"math"
	"time"
)

// Reading is the detector-facing representation of one scan: the polar samples
// converted to Cartesian points in the sensor frame, with a validity mask for
// out-of-range beams. Capture time and sensor frame identity are preserved
// from the source scan.
type Reading struct {
	SensorFrame string
	Stamp       time.Time

	// Per-beam polar samples in sweep order.
	Angles []float64
	Ranges []float64
	// Valid marks beams whose range falls inside the sensor's limits.
	Valid []bool

	// Cartesian coordinates of each beam endpoint in the sensor frame.
	// Invalid beams carry the clamped maximum range endpoint.
	X []float64
	Y []float64

	// RangeMax is carried through for detectors that treat max-range
	// returns specially.
	RangeMax float64
}

// NewReading converts a scan into the reading representation expected by the
// detector. A zero-sample scan yields an empty but usable reading.
func NewReading(s *Scan) (*Reading, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	n := len(s.Ranges)
	r := &Reading{
		SensorFrame: s.SensorFrame,
		Stamp:       s.Stamp,
		Angles:      make([]float64, n),
		Ranges:      make([]float64, n),
		Valid:       make([]bool, n),
		X:           make([]float64, n),
		Y:           make([]float64, n),
		RangeMax:    s.RangeMax,
	}

	for i, rng := range s.Ranges {
		a := s.Angle(i)
		r.Angles[i] = a

		valid := !math.IsNaN(rng) && !math.IsInf(rng, 0) &&
			rng >= s.RangeMin && rng <= s.RangeMax
		r.Valid[i] = valid

		d := rng
		if !valid {
			d = s.RangeMax
		}
		r.Ranges[i] = d
		sin, cos := math.Sincos(a)
		r.X[i] = d * cos
		r.Y[i] = d * sin
	}

	return r, nil
}

// Len returns the number of beams in the reading.
func (r *Reading) Len() int { return len(r.Ranges) }

// ValidCount returns the number of in-range beams.
func (r *Reading) ValidCount() int {
	n := 0
	for _, v := range r.Valid {
		if v {
			n++
		}
	}
	return n
}
