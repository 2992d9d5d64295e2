package featuredb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scan.features/internal/geom"
	"github.com/banshee-data/scan.features/internal/node"
)

func openTestDB(t *testing.T) *FeatureDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := openTestDB(t)

	// Both tables exist and are queryable.
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n))
	assert.Equal(t, 0, n)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening an already-migrated database is not an error.
	db, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)

	id, err := db.StartSession("map", "base_laser_link", "bench test")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sessions, err := db.ListSessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)
	assert.Equal(t, "map", sessions[0].ReferenceFrame)
	assert.Equal(t, "base_laser_link", sessions[0].SensorFrame)
	assert.False(t, sessions[0].EndedAt.Valid)

	require.NoError(t, db.EndSession(id))
	sessions, err = db.ListSessions(10)
	require.NoError(t, err)
	assert.True(t, sessions[0].EndedAt.Valid)
}

func TestRecordAndListRuns(t *testing.T) {
	db := openTestDB(t)
	id, err := db.StartSession("map", "base_laser_link", "")
	require.NoError(t, err)

	stamp := time.Unix(1700000000, 123456789)
	require.NoError(t, db.RecordRun(Run{
		SessionID:  id,
		Stamp:      stamp,
		PoseX:      1.5,
		PoseY:      -2.25,
		PoseTheta:  0.75,
		PointCount: 17,
		Duration:   4200 * time.Microsecond,
	}))
	require.NoError(t, db.RecordRun(Run{
		SessionID:  id,
		Stamp:      stamp.Add(100 * time.Millisecond),
		Skipped:    true,
		SkipReason: "pose unavailable: not yet published",
	}))

	runs, err := db.ListRuns(id, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.True(t, runs[0].Skipped)
	assert.Equal(t, "pose unavailable: not yet published", runs[0].SkipReason)

	got := runs[1]
	assert.Equal(t, stamp.UnixNano(), got.Stamp.UnixNano())
	assert.Equal(t, 1.5, got.PoseX)
	assert.Equal(t, -2.25, got.PoseY)
	assert.Equal(t, 0.75, got.PoseTheta)
	assert.Equal(t, 17, got.PointCount)
	assert.Equal(t, 4200*time.Microsecond, got.Duration)
	assert.False(t, got.Skipped)
}

func TestSummarizeSeparatesSkips(t *testing.T) {
	db := openTestDB(t)
	id, err := db.StartSession("map", "base_laser_link", "")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, db.RecordRun(Run{
			SessionID:  id,
			Stamp:      time.Unix(int64(i), 0),
			PointCount: 10,
			Duration:   time.Millisecond,
		}))
	}
	require.NoError(t, db.RecordRun(Run{
		SessionID: id,
		Stamp:     time.Unix(5, 0),
		Skipped:   true,
	}))

	s, err := db.Summarize(id)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Runs)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 40, s.TotalPoints)
	// Skipped runs are excluded from the averages.
	assert.InDelta(t, 10.0, s.AvgPoints, 1e-9)
	assert.Equal(t, time.Millisecond, s.AvgDuration)
}

func TestRunRecorderAdaptsNodeRecords(t *testing.T) {
	db := openTestDB(t)
	id, err := db.StartSession("map", "base_laser_link", "")
	require.NoError(t, err)

	rec := NewRunRecorder(db, id)
	require.NoError(t, rec.Record(node.RunRecord{
		Stamp:      time.Unix(42, 0),
		Pose:       geom.Pose{X: 3, Y: 4, Theta: 0.5, Frame: "map"},
		PointCount: 9,
		Duration:   2 * time.Millisecond,
	}))

	runs, err := db.ListRuns(id, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3.0, runs[0].PoseX)
	assert.Equal(t, 4.0, runs[0].PoseY)
	assert.Equal(t, 9, runs[0].PointCount)
}
