package curvature

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/scan.features/internal/feature"
	"github.com/banshee-data/scan.features/internal/scan"
)

// Config holds the detector tuning, fixed at construction. Defaults follow
// the values the pipeline has been validated with on indoor scan data.
type Config struct {
	// ScaleLevels is the number of smoothing scales analysed.
	ScaleLevels int
	// BaseSigma is the smoothing sigma of the first scale, metres.
	BaseSigma float64
	// SigmaStep is the multiplicative sigma increase per scale.
	SigmaStep float64
	// PeakMinValue and PeakMinDifference tune the response peak finder.
	PeakMinValue      float64
	PeakMinDifference float64
	// UseMaxRange includes max-range (invalid) beams in the analysis.
	UseMaxRange bool
}

// DefaultConfig returns the validated default tuning.
func DefaultConfig() Config {
	return Config{
		ScaleLevels:       5,
		BaseSigma:         0.2,
		SigmaStep:         1.4,
		PeakMinValue:      0.34,
		PeakMinDifference: 0.001,
		UseMaxRange:       false,
	}
}

// Validate checks the tuning for values the detector cannot run with.
func (c Config) Validate() error {
	if c.ScaleLevels < 1 {
		return fmt.Errorf("scale levels must be >= 1, got %d", c.ScaleLevels)
	}
	if c.BaseSigma <= 0 {
		return fmt.Errorf("base sigma must be positive, got %f", c.BaseSigma)
	}
	if c.SigmaStep <= 1 {
		return fmt.Errorf("sigma step must be > 1, got %f", c.SigmaStep)
	}
	if c.PeakMinValue < 0 || c.PeakMinDifference < 0 {
		return fmt.Errorf("peak thresholds must be non-negative")
	}
	return nil
}

// Detector finds interest points as curvature peaks of the scan polyline
// across a ladder of smoothing scales. Pure function of (reading, config);
// safe to share once constructed (callers serialize via the pipeline guard).
type Detector struct {
	cfg   Config
	peaks *PeakFinder
}

// NewDetector builds a detector from the given tuning.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("curvature detector config: %w", err)
	}
	return &Detector{
		cfg:   cfg,
		peaks: NewPeakFinder(cfg.PeakMinValue, cfg.PeakMinDifference),
	}, nil
}

// Detect returns interest points ordered by beam index. Beams marked invalid
// in the reading contribute no points unless UseMaxRange is set.
func (d *Detector) Detect(r *scan.Reading) ([]*feature.InterestPoint, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reading", feature.ErrMalformedReading)
	}
	n := r.Len()
	if n < 5 {
		// Too short for curvature estimation; an empty batch is the
		// correct answer for an empty or near-empty scan.
		return nil, nil
	}

	// Median spacing between consecutive endpoints converts metric sigmas
	// into sample-index sigmas for the smoothing kernels.
	spacing := medianSpacing(r)
	if spacing <= 0 {
		return nil, nil
	}

	// best[beam] keeps the strongest response across scales.
	type candidate struct {
		response float64
		level    int
		sigma    float64
	}
	best := make(map[int]candidate)

	xs := make([]float64, n)
	ys := make([]float64, n)

	for level := 0; level < d.cfg.ScaleLevels; level++ {
		sigma := d.cfg.BaseSigma * math.Pow(d.cfg.SigmaStep, float64(level))
		sigmaSamples := sigma / spacing

		smooth(xs, r.X, sigmaSamples)
		smooth(ys, r.Y, sigmaSamples)

		// Curvature support grows with scale so the response stays
		// comparable across levels.
		step := int(math.Max(1, math.Round(sigmaSamples)))
		response := make([]float64, n)
		for i := step; i < n-step; i++ {
			if !d.usable(r, i, step) {
				continue
			}
			k := menger(xs[i-step], ys[i-step], xs[i], ys[i], xs[i+step], ys[i+step])
			response[i] = k * sigma
		}

		for _, idx := range d.peaks.Find(response) {
			if c, ok := best[idx]; !ok || response[idx] > c.response {
				best[idx] = candidate{response: response[idx], level: level, sigma: sigma}
			}
		}
	}

	points := make([]*feature.InterestPoint, 0, len(best))
	for idx, c := range best {
		points = append(points, &feature.InterestPoint{
			X:          r.X[idx],
			Y:          r.Y[idx],
			Theta:      supportOrientation(r, idx),
			Scale:      c.sigma,
			ScaleLevel: c.level,
			Response:   c.response,
			BeamIndex:  idx,
		})
	}
	// Stable order: by beam index along the sweep.
	for i := 1; i < len(points); i++ {
		for j := i; j > 0 && points[j-1].BeamIndex > points[j].BeamIndex; j-- {
			points[j-1], points[j] = points[j], points[j-1]
		}
	}
	return points, nil
}

// usable reports whether the curvature support around beam i lies on valid
// returns (or UseMaxRange admits clamped beams).
func (d *Detector) usable(r *scan.Reading, i, step int) bool {
	if d.cfg.UseMaxRange {
		return true
	}
	return r.Valid[i-step] && r.Valid[i] && r.Valid[i+step]
}

// supportOrientation returns the local tangent direction of the scan polyline
// at beam i, used to orient the descriptor support region.
func supportOrientation(r *scan.Reading, i int) float64 {
	lo, hi := i-1, i+1
	if lo < 0 {
		lo = i
	}
	if hi >= r.Len() {
		hi = i
	}
	return math.Atan2(r.Y[hi]-r.Y[lo], r.X[hi]-r.X[lo])
}

// medianSpacing estimates the arc spacing between consecutive valid endpoints.
func medianSpacing(r *scan.Reading) float64 {
	var ds []float64
	for i := 1; i < r.Len(); i++ {
		if !r.Valid[i] || !r.Valid[i-1] {
			continue
		}
		ds = append(ds, math.Hypot(r.X[i]-r.X[i-1], r.Y[i]-r.Y[i-1]))
	}
	if len(ds) == 0 {
		return 0
	}
	// Insertion sort: scans have at most a few thousand beams.
	for i := 1; i < len(ds); i++ {
		for j := i; j > 0 && ds[j-1] > ds[j]; j-- {
			ds[j-1], ds[j] = ds[j], ds[j-1]
		}
	}
	return ds[len(ds)/2]
}

// smooth convolves src with a normalized Gaussian kernel of the given sigma
// (in samples) into dst, clamping at the boundaries.
func smooth(dst, src []float64, sigmaSamples float64) {
	radius := int(math.Ceil(3 * sigmaSamples))
	if radius < 1 {
		copy(dst, src)
		return
	}

	kernel := make([]float64, 2*radius+1)
	for k := -radius; k <= radius; k++ {
		kernel[k+radius] = math.Exp(-float64(k*k) / (2 * sigmaSamples * sigmaSamples))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)

	n := len(src)
	for i := 0; i < n; i++ {
		var acc float64
		for k := -radius; k <= radius; k++ {
			j := i + k
			if j < 0 {
				j = 0
			} else if j >= n {
				j = n - 1
			}
			acc += kernel[k+radius] * src[j]
		}
		dst[i] = acc
	}
}

// menger returns the Menger curvature of three points: 4*area over the
// product of the side lengths. Zero for degenerate (collinear) triples.
func menger(ax, ay, bx, by, cx, cy float64) float64 {
	ab := math.Hypot(bx-ax, by-ay)
	bc := math.Hypot(cx-bx, cy-by)
	ca := math.Hypot(ax-cx, ay-cy)
	if ab == 0 || bc == 0 || ca == 0 {
		return 0
	}
	cross := (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
	return 2 * math.Abs(cross) / (ab * bc * ca)
}
