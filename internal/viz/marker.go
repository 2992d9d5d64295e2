// Package viz renders interest point batches into marker-set payloads for the
// visualization sinks. Marker construction is a pure transformation: the same
// (points, pose, style) input always produces byte-identical payloads.
package viz

import (
	"encoding/json"

	"github.com/banshee-data/scan.features/internal/feature"
	"github.com/banshee-data/scan.features/internal/geom"
)

// Color is an RGBA marker colour with components in [0, 1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// Marker is one displayable sphere anchored in the marker set's frame.
type Marker struct {
	ID    int     `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Scale float64 `json:"scale"`
	Color Color   `json:"color"`
}

// MarkerSet is the payload published per successful scan invocation: the
// scan's interest points transformed into the reference frame the pose is
// expressed in.
type MarkerSet struct {
	Frame     string   `json:"frame"`
	Namespace string   `json:"namespace"`
	ID        int      `json:"id"`
	Markers   []Marker `json:"markers"`
}

// Style fixes the visual parameters of a marker set.
type Style struct {
	Namespace string
	Scale     float64
	Color     Color
	Z         float64
}

// DefaultStyle returns the style used for live scan features.
func DefaultStyle() Style {
	return Style{
		Namespace: "scan_features",
		Scale:     0.1,
		Color:     Color{R: 0.2, G: 0.8, B: 0.2, A: 1},
		Z:         0.1,
	}
}

// InterestPointMarkers builds the marker set for a batch of interest points
// anchored at the given pose. Markers are emitted in batch order with
// sequential IDs, so identical input yields an identical payload. An empty
// batch produces an empty (but publishable) marker set.
func InterestPointMarkers(points []*feature.InterestPoint, pose geom.Pose, id int, style Style) *MarkerSet {
	set := &MarkerSet{
		Frame:     pose.Frame,
		Namespace: style.Namespace,
		ID:        id,
		Markers:   make([]Marker, 0, len(points)),
	}
	for i, p := range points {
		x, y := pose.TransformPoint(p.X, p.Y)
		set.Markers = append(set.Markers, Marker{
			ID:    i,
			X:     x,
			Y:     y,
			Z:     style.Z,
			Scale: style.Scale,
			Color: style.Color,
		})
	}
	return set
}

// Encode serializes the marker set to its wire payload. Field order is fixed
// by the struct definitions, so encoding is deterministic.
func (s *MarkerSet) Encode() ([]byte, error) {
	return json.Marshal(s)
}
