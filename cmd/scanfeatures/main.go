// The scanfeatures binary runs the scan feature node: it listens for laser
// scans and pose transforms, extracts descriptor-bearing interest points
// from every scan, and publishes them as pose-anchored markers over UDP and
// Server-Sent Events.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/scan.features/internal/config"
	"github.com/banshee-data/scan.features/internal/feature"
	"github.com/banshee-data/scan.features/internal/feature/betagrid"
	"github.com/banshee-data/scan.features/internal/feature/curvature"
	"github.com/banshee-data/scan.features/internal/featuredb"
	"github.com/banshee-data/scan.features/internal/monitoring"
	"github.com/banshee-data/scan.features/internal/node"
	"github.com/banshee-data/scan.features/internal/source"
	"github.com/banshee-data/scan.features/internal/tf"
	"github.com/banshee-data/scan.features/internal/version"
	"github.com/banshee-data/scan.features/internal/viz"
	"github.com/banshee-data/scan.features/internal/webserver"
)

var (
	listen         = flag.String("listen", ":8081", "HTTP listen address")
	scanAddr       = flag.String("scan-addr", ":2368", "UDP address to listen for scan packets")
	tfAddr         = flag.String("tf-addr", ":2370", "UDP address to listen for transform updates")
	markersAddr    = flag.String("markers-addr", "", "UDP address to publish marker sets to (optional)")
	configFile     = flag.String("config", "", "Path to tuning JSON (default: compiled-in defaults)")
	dbFile         = flag.String("db", "", "Path to the telemetry SQLite database (optional)")
	serialPort     = flag.String("serial", "", "Read scans from this serial port instead of UDP")
	serialBaud     = flag.Int("serial-baud", 115200, "Serial port baud rate")
	replayFile     = flag.String("replay", "", "Replay scans from this JSON-lines log instead of UDP")
	replayRealtime = flag.Bool("replay-realtime", false, "Pace replay by recorded scan stamps")
	pcapFile       = flag.String("pcap", "", "Replay scan packets from this PCAP file (requires -tags=pcap build)")
	pcapPort       = flag.Int("pcap-port", 2368, "UDP port to filter for in the PCAP file")
	rcvBuf         = flag.Int("rcvbuf", 4<<20, "UDP receive buffer size in bytes")
	sessionNotes   = flag.String("notes", "", "Free-form notes stored with the telemetry session")
	verbose        = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	monitoring.SetVerbose(*verbose)
	log.Printf("scanfeatures %s", version.String())

	// Tuning: compiled-in defaults unless a config file overrides them.
	tuning := config.EmptyTuningConfig()
	if *configFile != "" {
		loaded, err := config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configFile, err)
		}
		tuning = loaded
		log.Printf("Loaded tuning from %s", *configFile)
	}

	detector, err := curvature.NewDetector(curvature.Config{
		ScaleLevels:       tuning.GetDetectorScaleLevels(),
		BaseSigma:         tuning.GetDetectorBaseSigma(),
		SigmaStep:         tuning.GetDetectorSigmaStep(),
		PeakMinValue:      tuning.GetPeakMinValue(),
		PeakMinDifference: tuning.GetPeakMinDifference(),
		UseMaxRange:       tuning.GetDetectorUseMaxRange(),
	})
	if err != nil {
		log.Fatalf("Invalid detector tuning: %v", err)
	}
	generator, err := betagrid.NewGenerator(betagrid.Config{
		MinRho:  tuning.GetDescriptorMinRho(),
		MaxRho:  tuning.GetDescriptorMaxRho(),
		BinsRho: tuning.GetDescriptorBinsRho(),
		BinsPhi: tuning.GetDescriptorBinsPhi(),
		Metric:  tuning.GetDescriptorMetric(),
	})
	if err != nil {
		log.Fatalf("Invalid descriptor tuning: %v", err)
	}

	// Transform feed: buffer fed by the UDP listener, queried per scan.
	buffer := tf.NewBuffer(tuning.GetTransformMaxAge())
	tfListener := tf.NewListener(tf.ListenerConfig{Address: *tfAddr, Buffer: buffer})
	resolver := tf.NewResolver(buffer, tuning.GetReferenceFrame(), tuning.GetSensorFrame())

	// Marker sinks: SSE always, UDP when a destination is configured.
	hub := viz.NewSSEHub()
	defer hub.Close()
	publishers := viz.MultiPublisher{hub}
	if *markersAddr != "" {
		udpPub, err := viz.NewUDPPublisher(*markersAddr)
		if err != nil {
			log.Fatalf("Failed to set up marker publisher: %v", err)
		}
		publishers = append(publishers, udpPub)
	}
	defer publishers.Close()

	// Optional run telemetry.
	var recorder node.Recorder
	if *dbFile != "" {
		fdb, err := featuredb.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open telemetry database: %v", err)
		}
		defer fdb.Close()

		sessionID, err := fdb.StartSession(tuning.GetReferenceFrame(), tuning.GetSensorFrame(), *sessionNotes)
		if err != nil {
			log.Fatalf("Failed to start telemetry session: %v", err)
		}
		defer func() {
			if err := fdb.EndSession(sessionID); err != nil {
				log.Printf("Failed to end telemetry session: %v", err)
			}
		}()
		log.Printf("Recording telemetry to %s (session %s)", *dbFile, sessionID)
		recorder = featuredb.NewRunRecorder(fdb, sessionID)
	}

	n, err := node.New(node.Config{
		Resolver:  resolver,
		Pipeline:  feature.NewPipeline(detector, generator),
		Publisher: publishers,
		Recorder:  recorder,
		Style: viz.Style{
			Namespace: tuning.GetMarkerNamespace(),
			Scale:     tuning.GetMarkerScale(),
			Color:     viz.DefaultStyle().Color,
			Z:         viz.DefaultStyle().Z,
		},
	})
	if err != nil {
		log.Fatalf("Failed to build node: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Transform listener routine.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tfListener.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("Transform listener error: %v", err)
		}
		log.Print("Transform listener routine terminated")
	}()

	// Scan feed routine. Exactly one feed runs: replay, PCAP and serial
	// override the default UDP listener in that order.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stop() // a finished feed (replay EOF) shuts the node down
		if err := runScanFeed(ctx, n); err != nil && err != context.Canceled {
			log.Printf("Scan feed error: %v", err)
		}
		log.Print("Scan feed routine terminated")
	}()

	// HTTP server routine.
	ws := webserver.NewWebServer(webserver.WebServerConfig{
		Address:        *listen,
		Node:           n,
		Hub:            hub,
		ReferenceFrame: tuning.GetReferenceFrame(),
		SensorFrame:    tuning.GetSensorFrame(),
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil {
			log.Printf("Web server error: %v", err)
		}
	}()

	wg.Wait()

	stats := n.Stats()
	log.Printf("Node stopped: %d scans seen, %d published, %d skipped, %d points",
		stats.ScansSeen, stats.Published, stats.Skipped, stats.Points)
}

// runScanFeed selects and runs the configured scan source.
func runScanFeed(ctx context.Context, n *node.Node) error {
	switch {
	case *replayFile != "":
		src, err := source.NewReplaySource(source.ReplaySourceConfig{
			Path:     *replayFile,
			Handler:  n,
			Realtime: *replayRealtime,
		})
		if err != nil {
			return err
		}
		return src.Run(ctx)

	case *pcapFile != "":
		src, err := source.NewUDPSource(source.UDPSourceConfig{Address: *scanAddr, Handler: n})
		if err != nil {
			return err
		}
		return source.ReadPCAPFile(ctx, *pcapFile, *pcapPort, src)

	case *serialPort != "":
		src, err := source.NewSerialSource(source.SerialSourceConfig{
			PortName: *serialPort,
			BaudRate: *serialBaud,
			Handler:  n,
		})
		if err != nil {
			return err
		}
		return src.Run(ctx)

	default:
		src, err := source.NewUDPSource(source.UDPSourceConfig{
			Address:     *scanAddr,
			RcvBuf:      *rcvBuf,
			Handler:     n,
			LogInterval: time.Minute,
		})
		if err != nil {
			return err
		}
		return src.Run(ctx)
	}
}
