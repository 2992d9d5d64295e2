package scan

import (
	"errors"
	"math"
	"testing"
	"time"
)

func validScan(n int) *Scan {
	ranges := make([]float64, n)
	for i := range ranges {
		ranges[i] = 2.0
	}
	return &Scan{
		SensorFrame:    "base_laser_link",
		Stamp:          time.Unix(100, 0),
		AngleMin:       -math.Pi / 2,
		AngleIncrement: math.Pi / 180,
		RangeMin:       0.1,
		RangeMax:       10,
		Ranges:         ranges,
	}
}

func TestNewReadingConversion(t *testing.T) {
	s := validScan(3)
	s.AngleMin = 0
	s.Ranges = []float64{1, 2, 3}

	r, err := NewReading(s)
	if err != nil {
		t.Fatalf("NewReading: %v", err)
	}

	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
	if r.SensorFrame != "base_laser_link" {
		t.Errorf("SensorFrame = %q, want base_laser_link", r.SensorFrame)
	}
	if !r.Stamp.Equal(s.Stamp) {
		t.Errorf("Stamp = %v, want %v", r.Stamp, s.Stamp)
	}

	// Beam 0 is at angle 0: endpoint (1, 0).
	if math.Abs(r.X[0]-1) > 1e-9 || math.Abs(r.Y[0]) > 1e-9 {
		t.Errorf("beam 0 endpoint = (%f, %f), want (1, 0)", r.X[0], r.Y[0])
	}

	// Beam 1 is at one increment: endpoint (2cos(inc), 2sin(inc)).
	wantX := 2 * math.Cos(s.AngleIncrement)
	wantY := 2 * math.Sin(s.AngleIncrement)
	if math.Abs(r.X[1]-wantX) > 1e-9 || math.Abs(r.Y[1]-wantY) > 1e-9 {
		t.Errorf("beam 1 endpoint = (%f, %f), want (%f, %f)", r.X[1], r.Y[1], wantX, wantY)
	}
}

func TestNewReadingMarksOutOfRangeInvalid(t *testing.T) {
	s := validScan(4)
	s.Ranges = []float64{2, 0.05, 20, math.NaN()}

	r, err := NewReading(s)
	if err != nil {
		t.Fatalf("NewReading: %v", err)
	}

	want := []bool{true, false, false, false}
	for i, w := range want {
		if r.Valid[i] != w {
			t.Errorf("Valid[%d] = %v, want %v", i, r.Valid[i], w)
		}
	}
	if r.ValidCount() != 1 {
		t.Errorf("ValidCount = %d, want 1", r.ValidCount())
	}

	// Invalid beams are clamped to RangeMax for geometry.
	if r.Ranges[2] != s.RangeMax {
		t.Errorf("clamped range = %f, want %f", r.Ranges[2], s.RangeMax)
	}
}

func TestNewReadingEmptyScan(t *testing.T) {
	s := validScan(0)
	r, err := NewReading(s)
	if err != nil {
		t.Fatalf("NewReading on empty scan: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestNewReadingMalformed(t *testing.T) {
	cases := map[string]*Scan{
		"nil scan": nil,
		"nan angle min": func() *Scan {
			s := validScan(2)
			s.AngleMin = math.NaN()
			return s
		}(),
		"zero increment": func() *Scan {
			s := validScan(2)
			s.AngleIncrement = 0
			return s
		}(),
		"inverted range limits": func() *Scan {
			s := validScan(2)
			s.RangeMin, s.RangeMax = 5, 1
			return s
		}(),
	}
	for name, s := range cases {
		if _, err := NewReading(s); !errors.Is(err, ErrMalformedScan) {
			t.Errorf("%s: err = %v, want ErrMalformedScan", name, err)
		}
	}
}

func TestScanAngle(t *testing.T) {
	s := validScan(5)
	if got := s.Angle(0); got != s.AngleMin {
		t.Errorf("Angle(0) = %f, want %f", got, s.AngleMin)
	}
	if got := s.Angle(2); math.Abs(got-(s.AngleMin+2*s.AngleIncrement)) > 1e-12 {
		t.Errorf("Angle(2) = %f", got)
	}
}
