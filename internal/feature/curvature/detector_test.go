package curvature

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scan.features/internal/feature"
	"github.com/banshee-data/scan.features/internal/scan"
)

// cornerScan ray-casts two perpendicular walls (x=2 and y=2) meeting at
// (2, 2). The corner sits at the 45 degree beam and is the only curvature
// feature in the scan.
func cornerScan(t *testing.T) (*scan.Scan, int) {
	t.Helper()
	angleMin := -30 * math.Pi / 180
	inc := math.Pi / 180
	n := 151 // -30..120 degrees

	ranges := make([]float64, n)
	cornerBeam := 0
	for i := 0; i < n; i++ {
		a := angleMin + float64(i)*inc
		if a <= math.Pi/4 {
			ranges[i] = 2 / math.Cos(a)
		} else {
			ranges[i] = 2 / math.Sin(a)
		}
		if math.Abs(a-math.Pi/4) < inc/2 {
			cornerBeam = i
		}
	}
	return &scan.Scan{
		SensorFrame:    "base_laser_link",
		Stamp:          time.Unix(77, 0),
		AngleMin:       angleMin,
		AngleIncrement: inc,
		RangeMin:       0.1,
		RangeMax:       10,
		Ranges:         ranges,
	}, cornerBeam
}

func TestDetectFindsWallCorner(t *testing.T) {
	s, cornerBeam := cornerScan(t)
	r, err := scan.NewReading(s)
	require.NoError(t, err)

	det, err := NewDetector(DefaultConfig())
	require.NoError(t, err)

	points, err := det.Detect(r)
	require.NoError(t, err)
	require.NotEmpty(t, points, "expected at least one interest point at the wall corner")

	nearCorner := false
	for _, p := range points {
		if abs(p.BeamIndex-cornerBeam) <= 5 {
			nearCorner = true
			// The corner sits at roughly (2, 2) in the sensor frame.
			assert.InDelta(t, 2.0, p.X, 0.3)
			assert.InDelta(t, 2.0, p.Y, 0.3)
			assert.Greater(t, p.Response, 0.0)
		}
	}
	assert.True(t, nearCorner, "no interest point within 5 beams of the corner (points: %v)", beams(points))

	// Points come back ordered along the sweep.
	for i := 1; i < len(points); i++ {
		assert.Less(t, points[i-1].BeamIndex, points[i].BeamIndex)
	}
}

func TestDetectStraightWallHasNoPeaks(t *testing.T) {
	// A single straight wall at x=2: curvature response should stay under
	// the peak threshold everywhere.
	angleMin := -40 * math.Pi / 180
	inc := math.Pi / 180
	n := 81
	ranges := make([]float64, n)
	for i := 0; i < n; i++ {
		a := angleMin + float64(i)*inc
		ranges[i] = 2 / math.Cos(a)
	}
	r, err := scan.NewReading(&scan.Scan{
		SensorFrame:    "base_laser_link",
		AngleMin:       angleMin,
		AngleIncrement: inc,
		RangeMin:       0.1,
		RangeMax:       10,
		Ranges:         ranges,
	})
	require.NoError(t, err)

	det, err := NewDetector(DefaultConfig())
	require.NoError(t, err)

	points, err := det.Detect(r)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestDetectEmptyReading(t *testing.T) {
	r, err := scan.NewReading(&scan.Scan{
		SensorFrame: "base_laser_link",
		RangeMin:    0.1,
		RangeMax:    10,
	})
	require.NoError(t, err)

	det, err := NewDetector(DefaultConfig())
	require.NoError(t, err)

	points, err := det.Detect(r)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestDetectNilReading(t *testing.T) {
	det, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	_, err = det.Detect(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero scale levels", func(c *Config) { c.ScaleLevels = 0 }},
		{"negative base sigma", func(c *Config) { c.BaseSigma = -1 }},
		{"sigma step below one", func(c *Config) { c.SigmaStep = 0.9 }},
		{"negative peak threshold", func(c *Config) { c.PeakMinValue = -0.1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			_, err := NewDetector(cfg)
			assert.Error(t, err)
		})
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func beams(points []*feature.InterestPoint) []int {
	out := make([]int, len(points))
	for i, p := range points {
		out[i] = p.BeamIndex
	}
	return out
}
