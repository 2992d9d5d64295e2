package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/scan.features/internal/monitoring"
	"github.com/banshee-data/scan.features/internal/scan"
)

// SerialSourceConfig configures a serial-attached rangefinder feed.
type SerialSourceConfig struct {
	PortName    string
	BaudRate    int
	SensorFrame string
	Handler     Handler

	// Port overrides the opened serial port, for tests.
	Port io.ReadCloser
}

// SerialSource reads line-framed scans from a serial rangefinder. Each scan
// arrives as one ASCII line:
//
//	SCAN <angle_min> <angle_increment> <range_min> <range_max> <r0> <r1> ...
//
// with angles in radians and ranges in metres. Lines that don't start with
// the SCAN keyword are ignored so the feed tolerates device banners and
// status chatter.
type SerialSource struct {
	cfg   SerialSourceConfig
	stats Stats
	now   func() time.Time
}

// NewSerialSource creates a serial scan source.
func NewSerialSource(cfg SerialSourceConfig) (*SerialSource, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("serial source requires a handler")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.SensorFrame == "" {
		cfg.SensorFrame = "base_laser_link"
	}
	return &SerialSource{cfg: cfg, now: time.Now}, nil
}

// Run opens the port and reads scan lines until the context is cancelled or
// the port closes.
func (s *SerialSource) Run(ctx context.Context) error {
	port := s.cfg.Port
	if port == nil {
		mode := &serial.Mode{
			BaudRate: s.cfg.BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: 1,
		}
		opened, err := serial.Open(s.cfg.PortName, mode)
		if err != nil {
			return fmt.Errorf("failed to open serial port %s: %w", s.cfg.PortName, err)
		}
		port = opened
	}
	defer port.Close()

	monitoring.Logf("Reading scans from serial port %s", s.cfg.PortName)

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(port)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					if err != nil {
						return fmt.Errorf("serial read failed: %w", err)
					}
				default:
				}
				return ctx.Err()
			}
			s.HandleLine(line)
		}
	}
}

// HandleLine parses one line and dispatches the scan it carries, if any.
func (s *SerialSource) HandleLine(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "SCAN" {
		return
	}
	s.stats.Received.Add(1)

	sc, err := s.parseLine(fields[1:])
	if err != nil {
		s.stats.Malformed.Add(1)
		monitoring.Debugf("Dropping malformed scan line: %v", err)
		return
	}

	if err := s.cfg.Handler.HandleScan(sc); err != nil {
		s.stats.Errors.Add(1)
		monitoring.Logf("Scan handling failed: %v", err)
		return
	}
	s.stats.Handled.Add(1)
}

func (s *SerialSource) parseLine(fields []string) (*scan.Scan, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("scan line has %d header fields, want 4", len(fields))
	}
	header := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("bad header field %d: %w", i, err)
		}
		header[i] = v
	}

	ranges := make([]float64, 0, len(fields)-4)
	for _, f := range fields[4:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad range value %q: %w", f, err)
		}
		ranges = append(ranges, v)
	}

	sc := &scan.Scan{
		SensorFrame:    s.cfg.SensorFrame,
		Stamp:          s.now(),
		AngleMin:       header[0],
		AngleIncrement: header[1],
		RangeMin:       header[2],
		RangeMax:       header[3],
		Ranges:         ranges,
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Stats exposes the feed counters.
func (s *SerialSource) Stats() *Stats {
	return &s.stats
}
