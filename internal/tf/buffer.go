// Package tf maintains the latest known transforms between named coordinate
// frames and answers "where is the sensor now" queries for the scan feature
// node. It is a thin client-side buffer over whatever localization source
// feeds it (see Listener for the UDP feed).
package tf

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/scan.features/internal/geom"
)

// ErrPoseUnavailable reports that the transform graph cannot currently connect
// the requested frames: nothing published yet, or the latest sample is too
// stale to use. Expected and recoverable; callers skip the current scan and
// wait for the next one.
var ErrPoseUnavailable = errors.New("pose unavailable")

type frameKey struct {
	parent string
	child  string
}

type stampedPose struct {
	pose geom.Pose
	set  time.Time
}

// Buffer stores the most recent transform per (parent, child) frame pair.
// Lookups resolve either a direct edge or a two-hop chain through a shared
// parent (map -> odom -> base), which covers the frame trees this node runs
// against. Safe for concurrent use.
type Buffer struct {
	mu     sync.RWMutex
	edges  map[frameKey]stampedPose
	maxAge time.Duration
	now    func() time.Time
}

// NewBuffer returns a buffer that considers transforms older than maxAge
// unusable. A maxAge of zero disables staleness checking.
func NewBuffer(maxAge time.Duration) *Buffer {
	return &Buffer{
		edges:  make(map[frameKey]stampedPose),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Set records the latest pose of child expressed in parent.
func (b *Buffer) Set(parent, child string, pose geom.Pose) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pose.Frame = parent
	b.edges[frameKey{parent, child}] = stampedPose{pose: pose, set: b.now()}
}

// Lookup returns the latest pose of child in parent, or ErrPoseUnavailable if
// the frames are not currently connected.
func (b *Buffer) Lookup(parent, child string) (geom.Pose, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if sp, ok := b.edges[frameKey{parent, child}]; ok {
		if err := b.checkAge(sp, parent, child); err != nil {
			return geom.Pose{}, err
		}
		return sp.pose, nil
	}

	// Two-hop chain: parent -> mid -> child.
	for key, first := range b.edges {
		if key.parent != parent {
			continue
		}
		second, ok := b.edges[frameKey{key.child, child}]
		if !ok {
			continue
		}
		if err := b.checkAge(first, parent, key.child); err != nil {
			return geom.Pose{}, err
		}
		if err := b.checkAge(second, key.child, child); err != nil {
			return geom.Pose{}, err
		}
		return first.pose.Compose(second.pose), nil
	}

	return geom.Pose{}, fmt.Errorf("%w: no transform %s -> %s", ErrPoseUnavailable, parent, child)
}

func (b *Buffer) checkAge(sp stampedPose, parent, child string) error {
	if b.maxAge <= 0 {
		return nil
	}
	if age := b.now().Sub(sp.set); age > b.maxAge {
		return fmt.Errorf("%w: transform %s -> %s is %s old (max %s)",
			ErrPoseUnavailable, parent, child, age, b.maxAge)
	}
	return nil
}

// Resolver fixes a (reference, sensor) frame pair at construction and answers
// the per-scan "current pose" query. Read-only; no retained resources.
type Resolver struct {
	buf            *Buffer
	referenceFrame string
	sensorFrame    string
}

// NewResolver builds a resolver for the given frame pair.
func NewResolver(buf *Buffer, referenceFrame, sensorFrame string) *Resolver {
	return &Resolver{buf: buf, referenceFrame: referenceFrame, sensorFrame: sensorFrame}
}

// Resolve returns the sensor frame's current pose in the reference frame.
// Always queries the latest available transform, never a historical one.
func (r *Resolver) Resolve() (geom.Pose, error) {
	return r.buf.Lookup(r.referenceFrame, r.sensorFrame)
}

// Frames returns the fixed (reference, sensor) pair, for logging.
func (r *Resolver) Frames() (string, string) {
	return r.referenceFrame, r.sensorFrame
}
