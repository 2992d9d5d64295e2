package feature

import (
	"fmt"
	"sync"

	"github.com/banshee-data/scan.features/internal/scan"
)

// Pipeline owns the shared detector and descriptor generator and runs the
// per-scan extraction sequence: detect, then attach a descriptor to every
// point from the same reading. The pipeline instances are expensive to
// construct and shared across all scan invocations, so Extract serializes
// callers with a mutex; pose resolution happens outside this guard.
type Pipeline struct {
	mu  sync.Mutex
	det Detector
	gen DescriptorGenerator
}

// NewPipeline wires the shared detector and descriptor generator. Both must
// be fully tuned before this call; the pipeline never reconfigures them.
func NewPipeline(det Detector, gen DescriptorGenerator) *Pipeline {
	return &Pipeline{det: det, gen: gen}
}

// Extract turns one reading into a batch of descriptor-bearing interest
// points. The invocation either fully succeeds or is abandoned: any detection
// or description error aborts the batch with no partial result.
//
// At most one extraction runs at a time; concurrent callers block.
func (p *Pipeline) Extract(r *scan.Reading) ([]*InterestPoint, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reading", ErrMalformedReading)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	points, err := p.det.Detect(r)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	for i, pt := range points {
		desc, err := p.gen.Describe(pt, r)
		if err != nil {
			return nil, fmt.Errorf("describe point %d: %w", i, err)
		}
		pt.Descriptor = desc
	}

	return points, nil
}
