// Package featuredb persists per-scan extraction telemetry to sqlite: one row
// per HandleScan invocation, grouped into sessions. It stores counts and
// poses only, never scan payloads or descriptors.
package featuredb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/scan.features/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// FeatureDB wraps the telemetry database connection.
type FeatureDB struct {
	*sql.DB
}

// Open opens (or creates) the telemetry database at path and applies all
// pending migrations.
func Open(path string) (*FeatureDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}

	fdb := &FeatureDB{db}
	if err := fdb.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	monitoring.Debugf("Telemetry database ready at %s", path)
	return fdb, nil
}

func (db *FeatureDB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: we don't close m because it would close the underlying DB
	// connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Session identifies one continuous node execution.
type Session struct {
	ID             string
	StartedAt      time.Time
	EndedAt        sql.NullTime
	ReferenceFrame string
	SensorFrame    string
	Notes          string
}

// Run is one recorded scan invocation.
type Run struct {
	ID         int64
	SessionID  string
	Stamp      time.Time
	PoseX      float64
	PoseY      float64
	PoseTheta  float64
	PointCount int
	Duration   time.Duration
	Skipped    bool
	SkipReason string
}

// StartSession creates a session row and returns its generated ID.
func (db *FeatureDB) StartSession(referenceFrame, sensorFrame, notes string) (string, error) {
	id := uuid.New().String()
	_, err := db.Exec(`
		INSERT INTO sessions (id, reference_frame, sensor_frame, notes)
		VALUES (?, ?, ?, ?)`,
		id, referenceFrame, sensorFrame, notes)
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (db *FeatureDB) EndSession(sessionID string) error {
	_, err := db.Exec(`
		UPDATE sessions SET ended_at = CURRENT_TIMESTAMP WHERE id = ?`,
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}
	return nil
}

// RecordRun inserts one run row.
func (db *FeatureDB) RecordRun(r Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (session_id, stamp_unix_nanos, pose_x, pose_y, pose_theta,
			point_count, duration_us, skipped, skip_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Stamp.UnixNano(), r.PoseX, r.PoseY, r.PoseTheta,
		r.PointCount, r.Duration.Microseconds(), r.Skipped, r.SkipReason)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs for a session, newest first.
func (db *FeatureDB) ListRuns(sessionID string, limit int) ([]Run, error) {
	rows, err := db.Query(`
		SELECT id, session_id, stamp_unix_nanos, pose_x, pose_y, pose_theta,
			point_count, duration_us, skipped, skip_reason
		FROM runs
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var stampNanos, durationMicros int64
		var skipReason sql.NullString
		if err := rows.Scan(&r.ID, &r.SessionID, &stampNanos, &r.PoseX, &r.PoseY,
			&r.PoseTheta, &r.PointCount, &durationMicros, &r.Skipped, &skipReason); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Stamp = time.Unix(0, stampNanos)
		r.Duration = time.Duration(durationMicros) * time.Microsecond
		r.SkipReason = skipReason.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SessionSummary aggregates a session's runs.
type SessionSummary struct {
	SessionID   string
	Runs        int
	Skipped     int
	TotalPoints int
	AvgPoints   float64
	AvgDuration time.Duration
}

// Summarize computes aggregate statistics over all runs of a session.
func (db *FeatureDB) Summarize(sessionID string) (*SessionSummary, error) {
	row := db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(skipped), 0),
			COALESCE(SUM(point_count), 0),
			COALESCE(AVG(CASE WHEN skipped = 0 THEN point_count END), 0),
			COALESCE(AVG(CASE WHEN skipped = 0 THEN duration_us END), 0)
		FROM runs WHERE session_id = ?`,
		sessionID)

	s := &SessionSummary{SessionID: sessionID}
	var avgDurationMicros float64
	if err := row.Scan(&s.Runs, &s.Skipped, &s.TotalPoints, &s.AvgPoints, &avgDurationMicros); err != nil {
		return nil, fmt.Errorf("failed to summarize session %s: %w", sessionID, err)
	}
	s.AvgDuration = time.Duration(avgDurationMicros) * time.Microsecond
	return s, nil
}

// ListSessions returns the most recent sessions, newest first.
func (db *FeatureDB) ListSessions(limit int) ([]Session, error) {
	rows, err := db.Query(`
		SELECT id, started_at, ended_at, reference_frame, sensor_frame, notes
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var ref, sensor, notes sql.NullString
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.EndedAt, &ref, &sensor, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		s.ReferenceFrame = ref.String
		s.SensorFrame = sensor.String
		s.Notes = notes.String
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
