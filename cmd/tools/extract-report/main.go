// extract-report renders an HTML report of a telemetry session: interest
// point counts and extraction latency per scan, charted with ECharts.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/scan.features/internal/featuredb"
)

var (
	dbFile    = flag.String("db", "", "Path to the telemetry SQLite database")
	sessionID = flag.String("session", "", "Session to report on (default: most recent)")
	limit     = flag.Int("limit", 5000, "Maximum number of runs to chart")
	outFile   = flag.String("out", "report.html", "Output HTML path")
)

func main() {
	flag.Parse()
	if *dbFile == "" {
		log.Fatal("extract-report requires -db")
	}

	db, err := featuredb.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open telemetry database: %v", err)
	}
	defer db.Close()

	id := *sessionID
	if id == "" {
		sessions, err := db.ListSessions(1)
		if err != nil {
			log.Fatalf("Failed to list sessions: %v", err)
		}
		if len(sessions) == 0 {
			log.Fatal("Database holds no sessions")
		}
		id = sessions[0].ID
	}

	runs, err := db.ListRuns(id, *limit)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) == 0 {
		log.Fatalf("Session %s holds no runs", id)
	}
	// ListRuns returns newest first; chart oldest to newest.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}

	summary, err := db.Summarize(id)
	if err != nil {
		log.Fatalf("Failed to summarize session: %v", err)
	}

	stamps := make([]string, 0, len(runs))
	counts := make([]opts.LineData, 0, len(runs))
	durations := make([]opts.LineData, 0, len(runs))
	for _, r := range runs {
		stamps = append(stamps, r.Stamp.Format("15:04:05.000"))
		if r.Skipped {
			counts = append(counts, opts.LineData{Value: nil})
			durations = append(durations, opts.LineData{Value: nil})
			continue
		}
		counts = append(counts, opts.LineData{Value: r.PointCount})
		durations = append(durations, opts.LineData{Value: float64(r.Duration.Microseconds()) / 1000.0})
	}

	countChart := charts.NewLine()
	countChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Interest points per scan",
			Subtitle: fmt.Sprintf("session=%s runs=%d skipped=%d avg=%.1f", id, summary.Runs, summary.Skipped, summary.AvgPoints),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "scan stamp"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "points"}),
	)
	countChart.SetXAxis(stamps).
		AddSeries("points", counts)

	latencyChart := charts.NewLine()
	latencyChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Extraction latency per scan",
			Subtitle: fmt.Sprintf("avg=%s", summary.AvgDuration),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "scan stamp"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "latency (ms)"}),
	)
	latencyChart.SetXAxis(stamps).
		AddSeries("latency", durations)

	page := components.NewPage()
	page.AddCharts(countChart, latencyChart)

	f, err := os.Create(*outFile)
	if err != nil {
		log.Fatalf("Failed to create report: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}

	fmt.Printf("Report for session %s written to %s (%d runs, %d skipped)\n",
		id, *outFile, summary.Runs, summary.Skipped)
}
