// Package node contains the scan feature node: the per-scan orchestration of
// pose resolution, guarded feature extraction, and marker publication.
//
// The node is fully reactive. All work happens inside HandleScan, which runs
// to completion or aborts cleanly when no pose is available. There is no
// polling, no retry and no queueing here; delivery cadence is the scan
// source's concern.
package node

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/scan.features/internal/feature"
	"github.com/banshee-data/scan.features/internal/geom"
	"github.com/banshee-data/scan.features/internal/monitoring"
	"github.com/banshee-data/scan.features/internal/scan"
	"github.com/banshee-data/scan.features/internal/tf"
	"github.com/banshee-data/scan.features/internal/viz"
)

// PoseResolver answers the per-scan "where is the sensor now" query.
type PoseResolver interface {
	Resolve() (geom.Pose, error)
}

// RunRecord summarizes one scan invocation for telemetry.
type RunRecord struct {
	Stamp      time.Time
	Pose       geom.Pose
	PointCount int
	Duration   time.Duration
	Skipped    bool
	SkipReason string
}

// Recorder persists run telemetry. Recording failures are logged, never
// propagated: telemetry must not break scan handling.
type Recorder interface {
	Record(RunRecord) error
}

// Config wires the node's collaborators. Resolver, Pipeline and Publisher are
// required; Recorder is optional.
type Config struct {
	Resolver  PoseResolver
	Pipeline  *feature.Pipeline
	Publisher viz.Publisher
	Recorder  Recorder

	// MarkerID tags published marker sets; Style fixes their appearance.
	MarkerID int
	Style    viz.Style
}

// Stats carries the node's lifetime counters.
type Stats struct {
	ScansSeen int64
	Skipped   int64
	Published int64
	Points    int64
}

// Node is the scan feature node.
type Node struct {
	resolver PoseResolver
	pipeline *feature.Pipeline
	pub      viz.Publisher
	rec      Recorder
	markerID int
	style    viz.Style

	scansSeen atomic.Int64
	skipped   atomic.Int64
	published atomic.Int64
	points    atomic.Int64
}

// New builds a node from the given configuration.
func New(cfg Config) (*Node, error) {
	if cfg.Resolver == nil || cfg.Pipeline == nil || cfg.Publisher == nil {
		return nil, fmt.Errorf("node requires a resolver, pipeline and publisher")
	}
	style := cfg.Style
	if style.Namespace == "" {
		style = viz.DefaultStyle()
	}
	return &Node{
		resolver: cfg.Resolver,
		pipeline: cfg.Pipeline,
		pub:      cfg.Publisher,
		rec:      cfg.Recorder,
		markerID: cfg.MarkerID,
		style:    style,
	}, nil
}

// HandleScan processes one scan delivery end to end: resolve the current
// pose, extract descriptor-bearing interest points under the pipeline guard,
// and publish their visualization anchored at the pose.
//
// A pose-unavailable condition is expected and recoverable: the scan is
// skipped with a single informational log and a nil return, leaving the node
// ready for the next delivery. Any other failure aborts this invocation
// without publishing and is returned to the caller; none are fatal to the
// process.
func (n *Node) HandleScan(s *scan.Scan) error {
	n.scansSeen.Add(1)

	pose, err := n.resolver.Resolve()
	if err != nil {
		if errors.Is(err, tf.ErrPoseUnavailable) {
			n.skipped.Add(1)
			monitoring.Logf("Skipping scan: %v", err)
			n.record(RunRecord{Stamp: s.Stamp, Skipped: true, SkipReason: err.Error()})
			return nil
		}
		return fmt.Errorf("resolve pose: %w", err)
	}

	monitoring.Debugf("Extracting features at %.2f, %.2f, %.2f", pose.X, pose.Y, pose.Theta)

	reading, err := scan.NewReading(s)
	if err != nil {
		return fmt.Errorf("convert scan: %w", err)
	}

	start := time.Now()
	points, err := n.pipeline.Extract(reading)
	if err != nil {
		return fmt.Errorf("extract features: %w", err)
	}
	elapsed := time.Since(start)

	set := viz.InterestPointMarkers(points, pose, n.markerID, n.style)
	if err := n.pub.Publish(set); err != nil {
		return fmt.Errorf("publish markers: %w", err)
	}

	n.published.Add(1)
	n.points.Add(int64(len(points)))
	n.record(RunRecord{
		Stamp:      s.Stamp,
		Pose:       pose,
		PointCount: len(points),
		Duration:   elapsed,
	})
	return nil
}

func (n *Node) record(r RunRecord) {
	if n.rec == nil {
		return
	}
	if err := n.rec.Record(r); err != nil {
		monitoring.Logf("Failed to record run telemetry: %v", err)
	}
}

// Stats returns the node's lifetime counters.
func (n *Node) Stats() Stats {
	return Stats{
		ScansSeen: n.scansSeen.Load(),
		Skipped:   n.skipped.Load(),
		Published: n.published.Load(),
		Points:    n.points.Load(),
	}
}
