package webserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/banshee-data/scan.features/internal/feature"
	"github.com/banshee-data/scan.features/internal/geom"
	"github.com/banshee-data/scan.features/internal/node"
	"github.com/banshee-data/scan.features/internal/scan"
	"github.com/banshee-data/scan.features/internal/testutil"
	"github.com/banshee-data/scan.features/internal/viz"
)

type fixedResolver struct{}

func (fixedResolver) Resolve() (geom.Pose, error) { return geom.Pose{Frame: "map"}, nil }

type noopDetector struct{}

func (noopDetector) Detect(*scan.Reading) ([]*feature.InterestPoint, error) { return nil, nil }

type noopGenerator struct{}

func (noopGenerator) Describe(*feature.InterestPoint, *scan.Reading) (*feature.Descriptor, error) {
	return &feature.Descriptor{}, nil
}

func newTestServer(t *testing.T) (*WebServer, *http.ServeMux) {
	t.Helper()
	hub := viz.NewSSEHub()
	t.Cleanup(func() { hub.Close() })

	n, err := node.New(node.Config{
		Resolver:  fixedResolver{},
		Pipeline:  feature.NewPipeline(noopDetector{}, noopGenerator{}),
		Publisher: hub,
	})
	if err != nil {
		t.Fatalf("node.New: %v", err)
	}

	ws := NewWebServer(WebServerConfig{
		Address:        ":0",
		Node:           n,
		Hub:            hub,
		ReferenceFrame: "map",
		SensorFrame:    "base_laser_link",
	})
	return ws, ws.setupRoutes()
}

func TestHealthEndpoint(t *testing.T) {
	_, mux := newTestServer(t)

	rec := testutil.Serve(mux, http.MethodGet, "/health")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body map[string]string
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	if body["status"] != "ok" || body["service"] != "scan-features" {
		t.Errorf("body = %v", body)
	}
}

func TestStatsEndpoint(t *testing.T) {
	_, mux := newTestServer(t)

	rec := testutil.Serve(mux, http.MethodGet, "/api/stats")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var body map[string]interface{}
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	for _, key := range []string{"scans_seen", "skipped", "published", "points", "uptime_s"} {
		if _, ok := body[key]; !ok {
			t.Errorf("stats missing %q", key)
		}
	}
}

func TestStatsEndpointRejectsPost(t *testing.T) {
	_, mux := newTestServer(t)

	rec := testutil.Serve(mux, http.MethodPost, "/api/stats")
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestStatusPage(t *testing.T) {
	_, mux := newTestServer(t)

	rec := testutil.Serve(mux, http.MethodGet, "/")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	body := rec.Body.String()
	if !strings.Contains(body, "base_laser_link") || !strings.Contains(body, "map") {
		t.Errorf("status page missing frames:\n%s", body)
	}
}

func TestStatusPageUnknownPath(t *testing.T) {
	_, mux := newTestServer(t)

	rec := testutil.Serve(mux, http.MethodGet, "/nope")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}
