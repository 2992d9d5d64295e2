package tf

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/scan.features/internal/geom"
	"github.com/banshee-data/scan.features/internal/monitoring"
)

// TransformMessage is the wire format of one transform update on the UDP feed.
// The localization stack publishes these whenever it re-estimates a frame.
type TransformMessage struct {
	Parent     string  `json:"parent"`
	Child      string  `json:"child"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Theta      float64 `json:"theta"`
	StampNanos int64   `json:"stamp_unix_nanos"`
}

// Listener receives transform updates over UDP and feeds them into a Buffer.
// It manages the socket, message decoding, and periodic statistics logging.
type Listener struct {
	address     string
	buf         *Buffer
	logInterval time.Duration

	received atomic.Int64
	rejected atomic.Int64
}

// ListenerConfig contains configuration options for the transform listener.
type ListenerConfig struct {
	Address     string
	Buffer      *Buffer
	LogInterval time.Duration
}

// NewListener creates a transform listener with the provided configuration.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.LogInterval <= 0 {
		cfg.LogInterval = 30 * time.Second
	}
	return &Listener{
		address:     cfg.Address,
		buf:         cfg.Buffer,
		logInterval: cfg.LogInterval,
	}
}

// Start begins receiving transform updates. Returns when the context is
// cancelled or the socket cannot be opened.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve transform feed address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for transforms: %w", err)
	}
	defer conn.Close()

	monitoring.Logf("Listening for transform updates on %s", l.address)

	go l.statsLoop(ctx)

	buffer := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("Transform listener shutting down")
			return ctx.Err()
		default:
			// Read deadline allows the loop to notice context cancellation.
			if err := conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
				monitoring.Logf("Error setting transform read deadline: %v", err)
				continue
			}

			n, _, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				monitoring.Logf("Error reading transform packet: %v", err)
				continue
			}

			if err := l.Handle(buffer[:n]); err != nil {
				l.rejected.Add(1)
				monitoring.Debugf("Rejected transform packet: %v", err)
			}
		}
	}
}

// Handle decodes one transform message and applies it to the buffer.
// Exposed so replay tooling can feed recorded messages directly.
func (l *Listener) Handle(packet []byte) error {
	var msg TransformMessage
	if err := json.Unmarshal(packet, &msg); err != nil {
		return fmt.Errorf("bad transform JSON: %w", err)
	}
	if msg.Parent == "" || msg.Child == "" {
		return fmt.Errorf("transform missing frame names")
	}

	l.buf.Set(msg.Parent, msg.Child, geom.Pose{
		X:     msg.X,
		Y:     msg.Y,
		Theta: geom.NormalizeAngle(msg.Theta),
		Stamp: time.Unix(0, msg.StampNanos),
	})
	l.received.Add(1)
	return nil
}

// Stats returns the number of accepted and rejected transform messages.
func (l *Listener) Stats() (received, rejected int64) {
	return l.received.Load(), l.rejected.Load()
}

func (l *Listener) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			received, rejected := l.Stats()
			monitoring.Logf("Transform feed: received=%d rejected=%d", received, rejected)
		}
	}
}
