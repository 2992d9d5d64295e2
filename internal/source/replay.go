package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/banshee-data/scan.features/internal/monitoring"
	"github.com/banshee-data/scan.features/internal/scan"
)

// scanRecord is the JSON-lines log representation of one scan.
type scanRecord struct {
	SensorFrame    string    `json:"sensor_frame"`
	Stamp          time.Time `json:"stamp"`
	AngleMin       float64   `json:"angle_min"`
	AngleIncrement float64   `json:"angle_increment"`
	RangeMin       float64   `json:"range_min"`
	RangeMax       float64   `json:"range_max"`
	Ranges         []float64 `json:"ranges"`
}

// ReplaySourceConfig configures playback of a recorded scan log.
type ReplaySourceConfig struct {
	Path    string
	Handler Handler

	// Realtime paces delivery by the recorded stamps instead of replaying
	// as fast as the handler allows.
	Realtime bool
}

// ReplaySource plays a JSON-lines scan log through the handler, one scan per
// line. Blank lines are skipped; a malformed line is counted and skipped so
// a truncated final record doesn't abort a long replay.
type ReplaySource struct {
	cfg   ReplaySourceConfig
	stats Stats
	sleep func(time.Duration)
}

// NewReplaySource creates a replay source for the given log file.
func NewReplaySource(cfg ReplaySourceConfig) (*ReplaySource, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("replay source requires a handler")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("replay source requires a log path")
	}
	return &ReplaySource{cfg: cfg, sleep: time.Sleep}, nil
}

// Run replays the log until it is exhausted or the context is cancelled.
func (r *ReplaySource) Run(ctx context.Context) error {
	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open scan log: %w", err)
	}
	defer f.Close()

	monitoring.Logf("Replaying scans from %s", r.cfg.Path)
	start := time.Now()

	var prevStamp time.Time
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		r.stats.Received.Add(1)

		var rec scanRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			r.stats.Malformed.Add(1)
			monitoring.Debugf("Skipping malformed log line: %v", err)
			continue
		}
		s := &scan.Scan{
			SensorFrame:    rec.SensorFrame,
			Stamp:          rec.Stamp,
			AngleMin:       rec.AngleMin,
			AngleIncrement: rec.AngleIncrement,
			RangeMin:       rec.RangeMin,
			RangeMax:       rec.RangeMax,
			Ranges:         rec.Ranges,
		}
		if err := s.Validate(); err != nil {
			r.stats.Malformed.Add(1)
			monitoring.Debugf("Skipping malformed logged scan: %v", err)
			continue
		}

		if r.cfg.Realtime && !prevStamp.IsZero() {
			if gap := s.Stamp.Sub(prevStamp); gap > 0 {
				r.sleep(gap)
			}
		}
		prevStamp = s.Stamp

		if err := r.cfg.Handler.HandleScan(s); err != nil {
			r.stats.Errors.Add(1)
			monitoring.Logf("Scan handling failed: %v", err)
			continue
		}
		r.stats.Handled.Add(1)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan log read failed: %w", err)
	}

	handled := r.stats.Handled.Load()
	monitoring.Logf("Replay complete: %d scans handled in %v", handled, time.Since(start).Round(time.Millisecond))
	return nil
}

// Stats exposes the feed counters.
func (r *ReplaySource) Stats() *Stats {
	return &r.stats
}

// ReadScanLog loads every valid scan from a JSON-lines log. Malformed lines
// are skipped. Intended for offline tools; live playback goes through
// ReplaySource.
func ReadScanLog(path string) ([]*scan.Scan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan log: %w", err)
	}
	defer f.Close()

	var scans []*scan.Scan
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec scanRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		s := &scan.Scan{
			SensorFrame:    rec.SensorFrame,
			Stamp:          rec.Stamp,
			AngleMin:       rec.AngleMin,
			AngleIncrement: rec.AngleIncrement,
			RangeMin:       rec.RangeMin,
			RangeMax:       rec.RangeMax,
			Ranges:         rec.Ranges,
		}
		if s.Validate() != nil {
			continue
		}
		scans = append(scans, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log read failed: %w", err)
	}
	return scans, nil
}

// WriteScanLog appends scans to a JSON-lines log, the format Replay reads.
func WriteScanLog(path string, scans []*scan.Scan) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open scan log for writing: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, s := range scans {
		rec := scanRecord{
			SensorFrame:    s.SensorFrame,
			Stamp:          s.Stamp,
			AngleMin:       s.AngleMin,
			AngleIncrement: s.AngleIncrement,
			RangeMin:       s.RangeMin,
			RangeMax:       s.RangeMax,
			Ranges:         s.Ranges,
		}
		if err := enc.Encode(&rec); err != nil {
			return fmt.Errorf("failed to write scan record: %w", err)
		}
	}
	return nil
}
