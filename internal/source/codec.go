package source

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/banshee-data/scan.features/internal/scan"
)

// Wire format for scan datagrams, big endian throughout:
//
//	bytes 0..3    magic "SCN1"
//	byte  4       sensor frame length f
//	bytes 5..5+f  sensor frame (UTF-8)
//	int64         stamp, unix nanos
//	float64 x4    angle_min, angle_increment, range_min, range_max
//	uint32        beam count n
//	float32 xn    ranges in metres
//
// Ranges travel as float32: millimetre precision is plenty for a rangefinder
// and it halves the datagram size.
const scanMagic = "SCN1"

// MaxBeams bounds decode allocations against hostile packets.
const MaxBeams = 8192

// EncodeScan serializes a scan into a single datagram payload.
func EncodeScan(s *scan.Scan) ([]byte, error) {
	if len(s.SensorFrame) > 255 {
		return nil, fmt.Errorf("sensor frame name too long: %d bytes", len(s.SensorFrame))
	}
	if len(s.Ranges) > MaxBeams {
		return nil, fmt.Errorf("too many beams: %d (max %d)", len(s.Ranges), MaxBeams)
	}

	var buf bytes.Buffer
	buf.WriteString(scanMagic)
	buf.WriteByte(byte(len(s.SensorFrame)))
	buf.WriteString(s.SensorFrame)

	binary.Write(&buf, binary.BigEndian, s.Stamp.UnixNano())
	binary.Write(&buf, binary.BigEndian, s.AngleMin)
	binary.Write(&buf, binary.BigEndian, s.AngleIncrement)
	binary.Write(&buf, binary.BigEndian, s.RangeMin)
	binary.Write(&buf, binary.BigEndian, s.RangeMax)
	binary.Write(&buf, binary.BigEndian, uint32(len(s.Ranges)))
	for _, r := range s.Ranges {
		binary.Write(&buf, binary.BigEndian, float32(r))
	}
	return buf.Bytes(), nil
}

// ParseScan decodes one datagram payload into a scan.
func ParseScan(payload []byte) (*scan.Scan, error) {
	if len(payload) < len(scanMagic)+1 {
		return nil, fmt.Errorf("packet too short: %d bytes", len(payload))
	}
	if string(payload[:4]) != scanMagic {
		return nil, fmt.Errorf("bad magic %q", payload[:4])
	}

	frameLen := int(payload[4])
	r := bytes.NewReader(payload[5:])
	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, fmt.Errorf("truncated frame name")
	}

	var stampNanos int64
	var angleMin, angleIncrement, rangeMin, rangeMax float64
	var count uint32
	for _, dst := range []interface{}{&stampNanos, &angleMin, &angleIncrement, &rangeMin, &rangeMax, &count} {
		if err := binary.Read(r, binary.BigEndian, dst); err != nil {
			return nil, fmt.Errorf("truncated scan header: %w", err)
		}
	}
	if count > MaxBeams {
		return nil, fmt.Errorf("beam count %d exceeds maximum %d", count, MaxBeams)
	}
	if r.Len() != int(count)*4 {
		return nil, fmt.Errorf("range block is %d bytes, want %d", r.Len(), count*4)
	}

	ranges := make([]float64, count)
	for i := range ranges {
		var v float32
		binary.Read(r, binary.BigEndian, &v)
		ranges[i] = float64(v)
	}

	s := &scan.Scan{
		SensorFrame:    string(frame),
		Stamp:          time.Unix(0, stampNanos),
		AngleMin:       angleMin,
		AngleIncrement: angleIncrement,
		RangeMin:       rangeMin,
		RangeMax:       rangeMax,
		Ranges:         ranges,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// roundTripSafe reports whether a range survives the float32 narrowing
// within a millimetre. Used by tests.
func roundTripSafe(v float64) bool {
	return math.Abs(float64(float32(v))-v) < 1e-3
}
