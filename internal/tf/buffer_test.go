package tf

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/banshee-data/scan.features/internal/geom"
)

func TestLookupDirectEdge(t *testing.T) {
	b := NewBuffer(0)
	b.Set("map", "base_laser_link", geom.Pose{X: 1, Y: 2, Theta: 0.5})

	p, err := b.Lookup("map", "base_laser_link")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.X != 1 || p.Y != 2 || p.Theta != 0.5 {
		t.Errorf("pose = %v, want (1, 2, 0.5)", p)
	}
	if p.Frame != "map" {
		t.Errorf("pose frame = %q, want map", p.Frame)
	}
}

func TestLookupUnavailable(t *testing.T) {
	b := NewBuffer(0)
	_, err := b.Lookup("map", "base_laser_link")
	if !errors.Is(err, ErrPoseUnavailable) {
		t.Fatalf("err = %v, want ErrPoseUnavailable", err)
	}
}

func TestLookupChained(t *testing.T) {
	b := NewBuffer(0)
	// map -> odom is a pure translation, odom -> base a rotation.
	b.Set("map", "odom", geom.Pose{X: 10, Y: 0})
	b.Set("odom", "base_laser_link", geom.Pose{X: 1, Y: 0, Theta: math.Pi / 2})

	p, err := b.Lookup("map", "base_laser_link")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if math.Abs(p.X-11) > 1e-9 || math.Abs(p.Y) > 1e-9 || math.Abs(p.Theta-math.Pi/2) > 1e-9 {
		t.Errorf("chained pose = %v, want (11, 0, pi/2)", p)
	}
}

func TestLookupStale(t *testing.T) {
	b := NewBuffer(100 * time.Millisecond)
	now := time.Unix(1000, 0)
	b.now = func() time.Time { return now }

	b.Set("map", "base_laser_link", geom.Pose{X: 1})

	// Fresh lookup succeeds.
	if _, err := b.Lookup("map", "base_laser_link"); err != nil {
		t.Fatalf("fresh Lookup: %v", err)
	}

	// After the max age passes the transform is unusable.
	now = now.Add(200 * time.Millisecond)
	if _, err := b.Lookup("map", "base_laser_link"); !errors.Is(err, ErrPoseUnavailable) {
		t.Fatalf("stale Lookup err = %v, want ErrPoseUnavailable", err)
	}

	// A new update makes it available again.
	b.Set("map", "base_laser_link", geom.Pose{X: 2})
	p, err := b.Lookup("map", "base_laser_link")
	if err != nil {
		t.Fatalf("refreshed Lookup: %v", err)
	}
	if p.X != 2 {
		t.Errorf("refreshed pose X = %f, want 2", p.X)
	}
}

func TestResolver(t *testing.T) {
	b := NewBuffer(0)
	r := NewResolver(b, "map", "base_laser_link")

	if _, err := r.Resolve(); !errors.Is(err, ErrPoseUnavailable) {
		t.Fatalf("Resolve before publish: err = %v, want ErrPoseUnavailable", err)
	}

	b.Set("map", "base_laser_link", geom.Pose{X: 3, Theta: 1})
	p, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.X != 3 || p.Theta != 1 {
		t.Errorf("pose = %v, want (3, 0, 1)", p)
	}

	ref, sensor := r.Frames()
	if ref != "map" || sensor != "base_laser_link" {
		t.Errorf("Frames = %q, %q", ref, sensor)
	}
}

func TestListenerHandle(t *testing.T) {
	b := NewBuffer(0)
	l := NewListener(ListenerConfig{Address: "127.0.0.1:0", Buffer: b})

	msg := []byte(`{"parent":"map","child":"base_laser_link","x":1.5,"y":-2,"theta":7.0,"stamp_unix_nanos":123}`)
	if err := l.Handle(msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	p, err := b.Lookup("map", "base_laser_link")
	if err != nil {
		t.Fatalf("Lookup after Handle: %v", err)
	}
	if p.X != 1.5 || p.Y != -2 {
		t.Errorf("pose = %v", p)
	}
	// Theta is normalized into (-pi, pi].
	if p.Theta > math.Pi || p.Theta <= -math.Pi {
		t.Errorf("theta %f not normalized", p.Theta)
	}

	received, rejected := l.Stats()
	if received != 1 || rejected != 0 {
		t.Errorf("stats = %d received, %d rejected", received, rejected)
	}
}

func TestListenerHandleRejectsBadInput(t *testing.T) {
	b := NewBuffer(0)
	l := NewListener(ListenerConfig{Address: "127.0.0.1:0", Buffer: b})

	if err := l.Handle([]byte("not json")); err == nil {
		t.Error("expected error for non-JSON packet")
	}
	if err := l.Handle([]byte(`{"x":1}`)); err == nil {
		t.Error("expected error for missing frame names")
	}
}
