// Package source delivers laser scans to the node from live and recorded
// feeds: UDP datagrams, a serial-attached rangefinder, JSON-lines replay
// logs, and (behind the pcap build tag) packet captures. Every feed decodes
// into a scan.Scan and hands it to the same handler.
package source

import (
	"sync/atomic"

	"github.com/banshee-data/scan.features/internal/scan"
)

// Handler consumes decoded scans. The node's HandleScan satisfies it.
type Handler interface {
	HandleScan(*scan.Scan) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(*scan.Scan) error

func (f HandlerFunc) HandleScan(s *scan.Scan) error { return f(s) }

// Stats tracks feed-level counters shared by all source implementations.
type Stats struct {
	Received  atomic.Int64
	Malformed atomic.Int64
	Handled   atomic.Int64
	Errors    atomic.Int64
}

// Snapshot returns a plain copy of the counters.
func (s *Stats) Snapshot() (received, malformed, handled, errors int64) {
	return s.Received.Load(), s.Malformed.Load(), s.Handled.Load(), s.Errors.Load()
}
