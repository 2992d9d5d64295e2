// Package scan defines the range scan sample types and the reading
// representation consumed by the feature detector.
//
// A Scan is owned by whatever transport delivered it; the pipeline only
// borrows it for the duration of one invocation. A Reading is the pipeline's
// own working copy with the polar samples converted to Cartesian points.
package scan

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedScan indicates a scan that cannot be converted into a reading
// (nil scan, non-finite angular metadata, inverted range limits). This is a
// caller bug, not an expected runtime condition.
var ErrMalformedScan = errors.New("malformed scan")

// Scan is one immutable range scan sample: an ordered sweep of range readings
// with a capture timestamp and the identity of the sensor frame it was taken
// in. Ranges outside [RangeMin, RangeMax] are present but invalid.
type Scan struct {
	SensorFrame string
	Stamp       time.Time

	AngleMin       float64 // angle of Ranges[0], radians
	AngleIncrement float64 // angular step between consecutive samples, radians

	RangeMin float64 // metres
	RangeMax float64 // metres

	Ranges []float64 // metres, one per beam, in sweep order
}

// Angle returns the beam angle of sample i.
func (s *Scan) Angle(i int) float64 {
	return s.AngleMin + float64(i)*s.AngleIncrement
}

// Validate checks the scan's structural invariants. A zero-sample scan is
// valid; garbage metadata is not.
func (s *Scan) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil scan", ErrMalformedScan)
	}
	if math.IsNaN(s.AngleMin) || math.IsInf(s.AngleMin, 0) ||
		math.IsNaN(s.AngleIncrement) || math.IsInf(s.AngleIncrement, 0) {
		return fmt.Errorf("%w: non-finite angle metadata", ErrMalformedScan)
	}
	if len(s.Ranges) > 1 && s.AngleIncrement == 0 {
		return fmt.Errorf("%w: zero angle increment for %d samples", ErrMalformedScan, len(s.Ranges))
	}
	if s.RangeMax < s.RangeMin {
		return fmt.Errorf("%w: range_max %f < range_min %f", ErrMalformedScan, s.RangeMax, s.RangeMin)
	}
	return nil
}
