package geom

import (
	"math"
	"testing"
)

const eps = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestNormalizeAngle(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi, math.Pi},
		{2 * math.Pi, 0},
		{-math.Pi / 2, -math.Pi / 2},
		{5 * math.Pi / 2, math.Pi / 2},
	}
	for _, c := range cases {
		if got := NormalizeAngle(c.in); !almostEqual(got, c.want) {
			t.Errorf("NormalizeAngle(%f) = %f, want %f", c.in, got, c.want)
		}
	}
}

func TestTransformPoint(t *testing.T) {
	// A pose at (1, 2) rotated 90 degrees maps the child x axis onto world y.
	p := Pose{X: 1, Y: 2, Theta: math.Pi / 2}
	x, y := p.TransformPoint(3, 0)
	if !almostEqual(x, 1) || !almostEqual(y, 5) {
		t.Errorf("TransformPoint = (%f, %f), want (1, 5)", x, y)
	}

	// Identity pose leaves the point alone.
	x, y = (Pose{}).TransformPoint(4, -7)
	if !almostEqual(x, 4) || !almostEqual(y, -7) {
		t.Errorf("identity TransformPoint = (%f, %f), want (4, -7)", x, y)
	}
}

func TestComposeInverse(t *testing.T) {
	p := Pose{X: 2, Y: -1, Theta: 0.7, Frame: "map"}
	id := p.Compose(p.Inverse())
	if !almostEqual(id.X, 0) || !almostEqual(id.Y, 0) || !almostEqual(id.Theta, 0) {
		t.Errorf("p.Compose(p.Inverse()) = %v, want identity", id)
	}
}

func TestComposeTransformsConsistently(t *testing.T) {
	a := Pose{X: 1, Y: 0, Theta: math.Pi / 2}
	b := Pose{X: 2, Y: 0, Theta: 0}
	ab := a.Compose(b)

	// Transforming a point through the composed pose must match transforming
	// through b then a.
	bx, by := b.TransformPoint(0.5, 0.5)
	wantX, wantY := a.TransformPoint(bx, by)
	gotX, gotY := ab.TransformPoint(0.5, 0.5)
	if !almostEqual(gotX, wantX) || !almostEqual(gotY, wantY) {
		t.Errorf("composed transform = (%f, %f), want (%f, %f)", gotX, gotY, wantX, wantY)
	}
}

func TestDistance(t *testing.T) {
	a := Pose{X: 0, Y: 0}
	b := Pose{X: 3, Y: 4}
	if got := a.Distance(b); !almostEqual(got, 5) {
		t.Errorf("Distance = %f, want 5", got)
	}
}
