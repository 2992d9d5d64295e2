// Package ransac implements pairwise feature-set matching between two scans:
// descriptor-distance candidate correspondences filtered by RANSAC consensus
// over rigid 2D transform hypotheses. It serves the matching extension of the
// scan feature node; matching against a stored scan corpus is out of scope.
package ransac

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/banshee-data/scan.features/internal/feature"
	"github.com/banshee-data/scan.features/internal/geom"
)

// ErrInsufficientCorrespondences reports that fewer than two candidate
// correspondences survived the descriptor acceptance threshold, so no
// transform hypothesis can be formed.
var ErrInsufficientCorrespondences = errors.New("insufficient candidate correspondences")

// Config holds the matcher tuning, fixed at construction.
type Config struct {
	// AcceptanceThreshold is the maximum descriptor distance for a
	// candidate correspondence.
	AcceptanceThreshold float64
	// SuccessProbability and InlierProbability size the hypothesis budget.
	SuccessProbability float64
	InlierProbability  float64
	// DistanceThreshold is the maximum residual, metres, for a
	// correspondence to count as an inlier under a hypothesis.
	DistanceThreshold float64
	// RigidityThreshold is the maximum disagreement, metres, between the
	// live and reference pairwise distances of a sampled hypothesis pair.
	RigidityThreshold float64
	// Seed fixes the sampling sequence; zero seeds from the default source.
	Seed int64
}

// DefaultConfig returns the validated default tuning.
func DefaultConfig() Config {
	return Config{
		AcceptanceThreshold: 0.0599,
		SuccessProbability:  0.95,
		InlierProbability:   0.4,
		DistanceThreshold:   0.4,
		RigidityThreshold:   0.0384,
	}
}

// Validate checks the tuning for values the matcher cannot run with.
func (c Config) Validate() error {
	if c.AcceptanceThreshold <= 0 {
		return fmt.Errorf("acceptance threshold must be positive, got %f", c.AcceptanceThreshold)
	}
	if c.SuccessProbability <= 0 || c.SuccessProbability >= 1 {
		return fmt.Errorf("success probability must be in (0, 1), got %f", c.SuccessProbability)
	}
	if c.InlierProbability <= 0 || c.InlierProbability >= 1 {
		return fmt.Errorf("inlier probability must be in (0, 1), got %f", c.InlierProbability)
	}
	if c.DistanceThreshold <= 0 {
		return fmt.Errorf("distance threshold must be positive, got %f", c.DistanceThreshold)
	}
	if c.RigidityThreshold < 0 {
		return fmt.Errorf("rigidity threshold must be non-negative, got %f", c.RigidityThreshold)
	}
	return nil
}

// Result is the consensus outcome of matching a live feature set against a
// reference one.
type Result struct {
	// Transform maps reference-frame coordinates into the live frame.
	Transform geom.Pose
	// Inliers are the correspondences consistent with the transform.
	Inliers []feature.Correspondence
	// Candidates is the number of correspondences that passed the
	// descriptor acceptance threshold.
	Candidates int
}

// Matcher runs RANSAC consensus matching with a fixed descriptor distance
// metric and tuning.
type Matcher struct {
	cfg  Config
	dist feature.DistanceFunc
	rng  *rand.Rand
}

// NewMatcher builds a matcher. The distance metric must be the one the
// descriptors were generated for.
func NewMatcher(cfg Config, dist feature.DistanceFunc) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ransac config: %w", err)
	}
	if dist == nil {
		return nil, fmt.Errorf("ransac matcher requires a distance metric")
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	return &Matcher{cfg: cfg, dist: dist, rng: rand.New(rand.NewSource(seed))}, nil
}

// Candidates returns all point pairs whose descriptor distance passes the
// acceptance threshold. Points without descriptors are skipped.
func (m *Matcher) Candidates(live, ref []*feature.InterestPoint) []feature.Correspondence {
	var out []feature.Correspondence
	for _, l := range live {
		if l.Descriptor == nil {
			continue
		}
		for _, r := range ref {
			if r.Descriptor == nil {
				continue
			}
			d := m.dist(l.Descriptor.Values, r.Descriptor.Values)
			if d < m.cfg.AcceptanceThreshold {
				out = append(out, feature.Correspondence{Live: l, Reference: r, Distance: d})
			}
		}
	}
	return out
}

// Match estimates the rigid transform relating ref to live and the inlier
// correspondences supporting it.
func (m *Matcher) Match(live, ref []*feature.InterestPoint) (*Result, error) {
	candidates := m.Candidates(live, ref)
	if len(candidates) < 2 {
		return nil, fmt.Errorf("%w: %d candidates", ErrInsufficientCorrespondences, len(candidates))
	}

	iterations := m.hypothesisBudget()
	var best []int
	// Degenerate draws (same candidate, shared endpoints, rigidity failures)
	// do not consume the hypothesis budget; maxDraws bounds the loop when no
	// valid pair exists at all.
	maxDraws := iterations * 20
	for it, draws := 0, 0; it < iterations && draws < maxDraws; draws++ {
		i := m.rng.Intn(len(candidates))
		j := m.rng.Intn(len(candidates))
		a, b := candidates[i], candidates[j]
		if i == j || a.Live == b.Live || a.Reference == b.Reference {
			continue
		}

		// Rigid transforms preserve pairwise distances.
		dl := dist(a.Live, b.Live)
		dr := dist(a.Reference, b.Reference)
		if math.Abs(dl-dr) > m.cfg.RigidityThreshold {
			continue
		}

		it++
		hyp := transformFromPair(a, b)
		inliers := m.consensus(candidates, hyp)
		if len(inliers) > len(best) {
			best = inliers
		}
	}

	if len(best) < 2 {
		return nil, fmt.Errorf("%w: no hypothesis reached consensus", ErrInsufficientCorrespondences)
	}

	inliers := make([]feature.Correspondence, len(best))
	for i, idx := range best {
		inliers[i] = candidates[idx]
	}

	// Refine over the full inlier set, then re-evaluate membership once.
	refined := leastSquaresTransform(inliers)
	final := m.consensus(candidates, refined)
	if len(final) >= len(best) {
		inliers = make([]feature.Correspondence, len(final))
		for i, idx := range final {
			inliers[i] = candidates[idx]
		}
		refined = leastSquaresTransform(inliers)
	}

	return &Result{Transform: refined, Inliers: inliers, Candidates: len(candidates)}, nil
}

// hypothesisBudget sizes the sampling loop so that drawing an all-inlier pair
// at least once has the configured success probability.
func (m *Matcher) hypothesisBudget() int {
	p2 := m.cfg.InlierProbability * m.cfg.InlierProbability
	n := math.Log(1-m.cfg.SuccessProbability) / math.Log(1-p2)
	if n < 1 {
		return 1
	}
	return int(math.Ceil(n))
}

// consensus returns the indices of candidates whose reference point lands
// within the distance threshold of its live partner under t.
func (m *Matcher) consensus(candidates []feature.Correspondence, t geom.Pose) []int {
	var inliers []int
	for i, c := range candidates {
		x, y := t.TransformPoint(c.Reference.X, c.Reference.Y)
		if math.Hypot(x-c.Live.X, y-c.Live.Y) <= m.cfg.DistanceThreshold {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

func dist(a, b *feature.InterestPoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// transformFromPair builds the rigid transform mapping the two reference
// points onto their live partners.
func transformFromPair(a, b feature.Correspondence) geom.Pose {
	angLive := math.Atan2(b.Live.Y-a.Live.Y, b.Live.X-a.Live.X)
	angRef := math.Atan2(b.Reference.Y-a.Reference.Y, b.Reference.X-a.Reference.X)
	theta := geom.NormalizeAngle(angLive - angRef)

	s, c := math.Sincos(theta)
	return geom.Pose{
		X:     a.Live.X - (c*a.Reference.X - s*a.Reference.Y),
		Y:     a.Live.Y - (s*a.Reference.X + c*a.Reference.Y),
		Theta: theta,
	}
}

// leastSquaresTransform solves the closed-form 2D rigid alignment of the
// reference points onto the live points over a correspondence set.
func leastSquaresTransform(corrs []feature.Correspondence) geom.Pose {
	n := float64(len(corrs))
	var mlx, mly, mrx, mry float64
	for _, c := range corrs {
		mlx += c.Live.X
		mly += c.Live.Y
		mrx += c.Reference.X
		mry += c.Reference.Y
	}
	mlx /= n
	mly /= n
	mrx /= n
	mry /= n

	var sumCross, sumDot float64
	for _, c := range corrs {
		rx, ry := c.Reference.X-mrx, c.Reference.Y-mry
		lx, ly := c.Live.X-mlx, c.Live.Y-mly
		sumDot += rx*lx + ry*ly
		sumCross += rx*ly - ry*lx
	}
	theta := math.Atan2(sumCross, sumDot)

	s, c := math.Sincos(theta)
	return geom.Pose{
		X:     mlx - (c*mrx - s*mry),
		Y:     mly - (s*mrx + c*mry),
		Theta: theta,
	}
}
