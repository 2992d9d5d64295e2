// Package geom provides planar pose and frame transform primitives shared by
// the scan feature pipeline. Poses are expressed as (x, y, theta) in a named
// reference frame; all angles are radians.
package geom

import (
	"fmt"
	"math"
	"time"
)

// Pose is the position and heading of a frame within a reference frame at a
// given instant. Produced fresh per lookup and treated as read-only afterwards.
type Pose struct {
	X     float64
	Y     float64
	Theta float64

	// Frame names the reference frame the pose is expressed in (e.g. "map").
	Frame string
	// Stamp is the time the pose was valid at.
	Stamp time.Time
}

// NormalizeAngle wraps an angle into (-pi, pi].
func NormalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// TransformPoint maps a point expressed in the pose's child frame into the
// pose's reference frame.
func (p Pose) TransformPoint(x, y float64) (float64, float64) {
	s, c := math.Sincos(p.Theta)
	return p.X + c*x - s*y, p.Y + s*x + c*y
}

// Compose returns the pose of q's child frame in p's reference frame, treating
// q as expressed in p's child frame.
func (p Pose) Compose(q Pose) Pose {
	x, y := p.TransformPoint(q.X, q.Y)
	return Pose{
		X:     x,
		Y:     y,
		Theta: NormalizeAngle(p.Theta + q.Theta),
		Frame: p.Frame,
		Stamp: q.Stamp,
	}
}

// Inverse returns the transform that undoes p. Composing p with its inverse
// yields the identity pose.
func (p Pose) Inverse() Pose {
	s, c := math.Sincos(p.Theta)
	return Pose{
		X:     -(c*p.X + s*p.Y),
		Y:     -(-s*p.X + c*p.Y),
		Theta: NormalizeAngle(-p.Theta),
		Stamp: p.Stamp,
	}
}

// Distance returns the Euclidean translation distance between two poses.
func (p Pose) Distance(q Pose) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f) in %s", p.X, p.Y, p.Theta, p.Frame)
}
