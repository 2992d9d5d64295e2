// Package betagrid implements the beta grid descriptor generator: a polar
// occupancy histogram of the scan geometry around an interest point. The
// histogram layout and distance metric are fixed at construction; Describe is
// stateless given (point, reading).
package betagrid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/scan.features/internal/feature"
	"github.com/banshee-data/scan.features/internal/geom"
	"github.com/banshee-data/scan.features/internal/scan"
)

// Config holds the descriptor tuning. Defaults follow the values the pipeline
// has been validated with.
type Config struct {
	// MinRho and MaxRho bound the radial support of the grid, metres.
	MinRho float64
	MaxRho float64
	// BinsRho and BinsPhi set the grid resolution.
	BinsRho int
	BinsPhi int
	// Metric names the histogram distance fixed at construction. One of
	// "euclidean", "chi2", "bhattacharyya".
	Metric string
}

// DefaultConfig returns the validated default tuning.
func DefaultConfig() Config {
	return Config{
		MinRho:  0.02,
		MaxRho:  0.5,
		BinsRho: 4,
		BinsPhi: 12,
		Metric:  "euclidean",
	}
}

// Validate checks the tuning for values the generator cannot run with.
func (c Config) Validate() error {
	if c.MinRho < 0 || c.MaxRho <= c.MinRho {
		return fmt.Errorf("radial support [%f, %f] is invalid", c.MinRho, c.MaxRho)
	}
	if c.BinsRho < 1 || c.BinsPhi < 1 {
		return fmt.Errorf("bin counts %dx%d must be positive", c.BinsRho, c.BinsPhi)
	}
	if _, err := DistanceByName(c.Metric); err != nil {
		return err
	}
	return nil
}

// Generator computes beta grid descriptors. Shared across invocations;
// callers serialize via the pipeline guard.
type Generator struct {
	cfg  Config
	dist feature.DistanceFunc
}

// NewGenerator builds a generator from the given tuning.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("beta grid config: %w", err)
	}
	dist, _ := DistanceByName(cfg.Metric)
	return &Generator{cfg: cfg, dist: dist}, nil
}

// Size returns the descriptor length (BinsRho * BinsPhi).
func (g *Generator) Size() int { return g.cfg.BinsRho * g.cfg.BinsPhi }

// Distance returns the histogram distance metric fixed at construction.
func (g *Generator) Distance() feature.DistanceFunc { return g.dist }

// Describe computes the descriptor of p from the reading it was detected in:
// every valid endpoint within the radial support contributes to the polar bin
// it falls in relative to the point's position and orientation. The histogram
// is normalized to sum to one when any endpoint falls inside the support.
func (g *Generator) Describe(p *feature.InterestPoint, r *scan.Reading) (*feature.Descriptor, error) {
	if p == nil || r == nil {
		return nil, fmt.Errorf("%w: nil point or reading", feature.ErrMalformedReading)
	}

	values := make([]float64, g.Size())
	rhoWidth := (g.cfg.MaxRho - g.cfg.MinRho) / float64(g.cfg.BinsRho)
	phiWidth := 2 * math.Pi / float64(g.cfg.BinsPhi)

	for i := 0; i < r.Len(); i++ {
		if !r.Valid[i] {
			continue
		}
		dx := r.X[i] - p.X
		dy := r.Y[i] - p.Y
		rho := math.Hypot(dx, dy)
		if rho < g.cfg.MinRho || rho >= g.cfg.MaxRho {
			continue
		}

		phi := geom.NormalizeAngle(math.Atan2(dy, dx) - p.Theta)
		// Shift (-pi, pi] to [0, 2pi) for binning.
		if phi < 0 {
			phi += 2 * math.Pi
		}

		rhoBin := int((rho - g.cfg.MinRho) / rhoWidth)
		if rhoBin >= g.cfg.BinsRho {
			rhoBin = g.cfg.BinsRho - 1
		}
		phiBin := int(phi / phiWidth)
		if phiBin >= g.cfg.BinsPhi {
			phiBin = g.cfg.BinsPhi - 1
		}

		values[rhoBin*g.cfg.BinsPhi+phiBin]++
	}

	if sum := floats.Sum(values); sum > 0 {
		floats.Scale(1/sum, values)
	}
	return &feature.Descriptor{Values: values}, nil
}
