// Package webserver provides the HTTP monitoring interface for the scan
// feature node: a health check, a status page, a JSON stats endpoint and the
// live marker stream.
package webserver

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/banshee-data/scan.features/internal/httputil"
	"github.com/banshee-data/scan.features/internal/monitoring"
	"github.com/banshee-data/scan.features/internal/node"
	"github.com/banshee-data/scan.features/internal/version"
	"github.com/banshee-data/scan.features/internal/viz"
)

//go:embed status.html
var statusHTML embed.FS

// WebServer handles the HTTP interface for monitoring the node.
type WebServer struct {
	address        string
	node           *node.Node
	hub            *viz.SSEHub
	referenceFrame string
	sensorFrame    string
	started        time.Time
	server         *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address        string
	Node           *node.Node
	Hub            *viz.SSEHub
	ReferenceFrame string
	SensorFrame    string
}

// NewWebServer creates a web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:        config.Address,
		node:           config.Node,
		hub:            config.Hub,
		referenceFrame: config.ReferenceFrame,
		sensorFrame:    config.SensorFrame,
		started:        time.Now(),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

// Start begins the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/stats", ws.handleStats)
	mux.HandleFunc("/", ws.handleStatus)
	if ws.hub != nil {
		mux.HandleFunc("/markers/stream", ws.hub.Handler())
	}

	return mux
}

// handleHealth handles the health check endpoint.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":    "ok",
		"service":   "scan-features",
		"version":   version.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStats serves the node counters as JSON.
func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	stats := ws.node.Stats()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"scans_seen": stats.ScansSeen,
		"skipped":    stats.Skipped,
		"published":  stats.Published,
		"points":     stats.Points,
		"uptime_s":   int64(time.Since(ws.started).Seconds()),
	})
}

// handleStatus handles the main status page endpoint.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	tmpl, err := template.ParseFS(statusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	data := struct {
		ReferenceFrame string
		SensorFrame    string
		Uptime         string
		Stats          node.Stats
	}{
		ReferenceFrame: ws.referenceFrame,
		SensorFrame:    ws.sensorFrame,
		Uptime:         time.Since(ws.started).Round(time.Second).String(),
		Stats:          ws.node.Stats(),
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// Close shuts down the web server.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}
