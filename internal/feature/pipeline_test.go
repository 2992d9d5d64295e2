package feature

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/banshee-data/scan.features/internal/scan"
)

func testReading(t *testing.T, n int) *scan.Reading {
	t.Helper()
	ranges := make([]float64, n)
	for i := range ranges {
		ranges[i] = 3.0
	}
	r, err := scan.NewReading(&scan.Scan{
		SensorFrame:    "base_laser_link",
		Stamp:          time.Unix(50, 0),
		AngleMin:       0,
		AngleIncrement: math.Pi / 180,
		RangeMin:       0.1,
		RangeMax:       10,
		Ranges:         ranges,
	})
	if err != nil {
		t.Fatalf("NewReading: %v", err)
	}
	return r
}

// fixedDetector returns one interest point per requested beam and records
// which reading each detection came from.
type fixedDetector struct {
	beams []int

	mu       sync.Mutex
	readings []*scan.Reading
	err      error
}

func (d *fixedDetector) Detect(r *scan.Reading) ([]*InterestPoint, error) {
	d.mu.Lock()
	d.readings = append(d.readings, r)
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	pts := make([]*InterestPoint, 0, len(d.beams))
	for _, b := range d.beams {
		pts = append(pts, &InterestPoint{X: r.X[b], Y: r.Y[b], BeamIndex: b})
	}
	return pts, nil
}

// recordingGenerator tags each descriptor with the reading it was computed
// from, so tests can assert the same-reading invariant.
type recordingGenerator struct {
	mu      sync.Mutex
	sources map[*Descriptor]*scan.Reading
	err     error
}

func (g *recordingGenerator) Describe(p *InterestPoint, r *scan.Reading) (*Descriptor, error) {
	if g.err != nil {
		return nil, g.err
	}
	d := &Descriptor{Values: []float64{p.X, p.Y}}
	g.mu.Lock()
	if g.sources == nil {
		g.sources = make(map[*Descriptor]*scan.Reading)
	}
	g.sources[d] = r
	g.mu.Unlock()
	return d, nil
}

func TestExtractAttachesDescriptorsFromSameReading(t *testing.T) {
	det := &fixedDetector{beams: []int{0, 2, 4}}
	gen := &recordingGenerator{}
	p := NewPipeline(det, gen)

	r1 := testReading(t, 10)
	r2 := testReading(t, 10)

	pts1, err := p.Extract(r1)
	if err != nil {
		t.Fatalf("Extract r1: %v", err)
	}
	pts2, err := p.Extract(r2)
	if err != nil {
		t.Fatalf("Extract r2: %v", err)
	}

	for i, pt := range pts1 {
		if pt.Descriptor == nil {
			t.Fatalf("point %d from r1 has no descriptor", i)
		}
		if gen.sources[pt.Descriptor] != r1 {
			t.Errorf("point %d descriptor computed from wrong reading", i)
		}
	}
	for i, pt := range pts2 {
		if gen.sources[pt.Descriptor] != r2 {
			t.Errorf("r2 point %d descriptor computed from wrong reading", i)
		}
	}
}

func TestExtractNilReading(t *testing.T) {
	p := NewPipeline(&fixedDetector{}, &recordingGenerator{})
	if _, err := p.Extract(nil); !errors.Is(err, ErrMalformedReading) {
		t.Fatalf("err = %v, want ErrMalformedReading", err)
	}
}

func TestExtractAllOrNothing(t *testing.T) {
	wantErr := errors.New("descriptor blew up")
	det := &fixedDetector{beams: []int{0, 1}}
	gen := &recordingGenerator{err: wantErr}
	p := NewPipeline(det, gen)

	pts, err := p.Extract(testReading(t, 5))
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
	if pts != nil {
		t.Errorf("partial batch returned on error: %v", pts)
	}
}

func TestExtractDetectorErrorPropagates(t *testing.T) {
	wantErr := errors.New("detector blew up")
	p := NewPipeline(&fixedDetector{err: wantErr}, &recordingGenerator{})
	if _, err := p.Extract(testReading(t, 5)); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
}

// guardedDetector asserts that no two detections overlap, using an
// instrumented in-flight counter.
type guardedDetector struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (d *guardedDetector) Detect(r *scan.Reading) ([]*InterestPoint, error) {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		max := d.maxSeen.Load()
		if n <= max || d.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}
	// Hold the pipeline long enough for overlap to show up if the guard
	// were missing.
	time.Sleep(2 * time.Millisecond)
	return []*InterestPoint{{BeamIndex: 0}}, nil
}

func TestExtractMutualExclusion(t *testing.T) {
	det := &guardedDetector{}
	p := NewPipeline(det, &recordingGenerator{})
	r := testReading(t, 8)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Extract(r); err != nil {
				t.Errorf("Extract: %v", err)
			}
		}()
	}
	wg.Wait()

	if max := det.maxSeen.Load(); max != 1 {
		t.Errorf("observed %d concurrent extractions, want 1", max)
	}
}
