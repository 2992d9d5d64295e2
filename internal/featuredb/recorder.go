package featuredb

import (
	"github.com/banshee-data/scan.features/internal/node"
)

// RunRecorder adapts the telemetry database to the node's Recorder interface,
// tagging every run with its session.
type RunRecorder struct {
	db        *FeatureDB
	sessionID string
}

// NewRunRecorder binds a recorder to an open session.
func NewRunRecorder(db *FeatureDB, sessionID string) *RunRecorder {
	return &RunRecorder{db: db, sessionID: sessionID}
}

// Record persists one run.
func (r *RunRecorder) Record(run node.RunRecord) error {
	return r.db.RecordRun(Run{
		SessionID:  r.sessionID,
		Stamp:      run.Stamp,
		PoseX:      run.Pose.X,
		PoseY:      run.Pose.Y,
		PoseTheta:  run.Pose.Theta,
		PointCount: run.PointCount,
		Duration:   run.Duration,
		Skipped:    run.Skipped,
		SkipReason: run.SkipReason,
	})
}
