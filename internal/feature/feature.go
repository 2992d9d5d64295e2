// Package feature defines the interest point and descriptor model and the
// extraction pipeline that turns one scan reading into a batch of
// descriptor-bearing interest points.
//
// The detector and descriptor generator are external algorithmic services
// behind the Detector and DescriptorGenerator interfaces; this package owns
// their shared instances and serializes access to them.
package feature

import (
	"errors"

	"github.com/banshee-data/scan.features/internal/scan"
)

// ErrMalformedReading indicates the pipeline was invoked with input the
// detector cannot operate on. Propagated to the caller; the invocation aborts
// without publishing.
var ErrMalformedReading = errors.New("malformed reading")

// Descriptor is a fixed-size numeric signature summarizing local scan
// geometry around an interest point, used for similarity comparison.
type Descriptor struct {
	// Values holds the histogram bins, row-major (rho-major, phi-minor for
	// the beta grid generator).
	Values []float64
}

// DistanceFunc measures dissimilarity between two descriptor value vectors.
// Implementations live alongside the descriptor generators (see betagrid).
type DistanceFunc func(a, b []float64) float64

// InterestPoint is a detected salient location within a scan, candidate for
// matching across scans. Points are created by the detector and mutated
// exactly once to attach a descriptor; each batch belongs to a single scan.
type InterestPoint struct {
	// Position in the sensor frame, metres.
	X float64
	Y float64
	// Theta orients the descriptor support region, radians.
	Theta float64

	// Scale is the detection scale in metres; ScaleLevel indexes the
	// smoothing ladder it was found at.
	Scale      float64
	ScaleLevel int

	// Response is the detector's saliency score at this point.
	Response float64

	// BeamIndex is the index of the originating beam in the reading.
	BeamIndex int

	// Descriptor is attached by the descriptor generator after detection.
	Descriptor *Descriptor
}

// Correspondence pairs an interest point from a live scan with one from a
// reference scan. Input to geometric consensus matching (see ransac).
type Correspondence struct {
	Live      *InterestPoint
	Reference *InterestPoint
	// Distance is the descriptor distance that proposed this pairing.
	Distance float64
}

// Detector finds interest point locations along a scan reading. Behaviour is
// a pure function of (reading, construction-time tuning); implementations
// keep no per-call state.
type Detector interface {
	Detect(r *scan.Reading) ([]*InterestPoint, error)
}

// DescriptorGenerator computes a descriptor for one interest point from the
// reading it was detected in. Stateless given (point, reading).
type DescriptorGenerator interface {
	Describe(p *InterestPoint, r *scan.Reading) (*Descriptor, error)
}
