// scan-render draws one scan from a JSON-lines log as a PNG: beam endpoints
// in grey, detected interest points in red. Useful for eyeballing detector
// tuning without running the node.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/scan.features/internal/config"
	"github.com/banshee-data/scan.features/internal/feature/curvature"
	"github.com/banshee-data/scan.features/internal/scan"
	"github.com/banshee-data/scan.features/internal/source"
)

var (
	inFile     = flag.String("in", "", "JSON-lines scan log to read")
	index      = flag.Int("index", 0, "Index of the scan to render")
	outFile    = flag.String("out", "scan.png", "Output PNG path")
	configFile = flag.String("config", "", "Path to tuning JSON (default: compiled-in defaults)")
)

func main() {
	flag.Parse()
	if *inFile == "" {
		log.Fatal("scan-render requires -in")
	}

	scans, err := source.ReadScanLog(*inFile)
	if err != nil {
		log.Fatalf("Failed to read scan log: %v", err)
	}
	if *index < 0 || *index >= len(scans) {
		log.Fatalf("Scan index %d out of range: log holds %d scans", *index, len(scans))
	}
	s := scans[*index]

	tuning := config.EmptyTuningConfig()
	if *configFile != "" {
		tuning, err = config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
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

	reading, err := scan.NewReading(s)
	if err != nil {
		log.Fatalf("Failed to convert scan: %v", err)
	}
	points, err := detector.Detect(reading)
	if err != nil {
		log.Fatalf("Detection failed: %v", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("scan %d: %d beams, %d interest points", *index, reading.Len(), len(points))
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	beams := make(plotter.XYs, 0, reading.Len())
	for i := 0; i < reading.Len(); i++ {
		if !reading.Valid[i] {
			continue
		}
		beams = append(beams, plotter.XY{X: reading.X[i], Y: reading.Y[i]})
	}
	beamScatter, err := plotter.NewScatter(beams)
	if err != nil {
		log.Fatalf("Failed to build beam scatter: %v", err)
	}
	beamScatter.GlyphStyle.Color = color.Gray{Y: 128}
	beamScatter.GlyphStyle.Radius = vg.Points(1)
	p.Add(beamScatter)
	p.Legend.Add("beams", beamScatter)

	if len(points) > 0 {
		ips := make(plotter.XYs, len(points))
		for i, ip := range points {
			ips[i] = plotter.XY{X: ip.X, Y: ip.Y}
		}
		ipScatter, err := plotter.NewScatter(ips)
		if err != nil {
			log.Fatalf("Failed to build interest point scatter: %v", err)
		}
		ipScatter.GlyphStyle.Color = color.RGBA{R: 220, A: 255}
		ipScatter.GlyphStyle.Radius = vg.Points(3)
		ipScatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(ipScatter)
		p.Legend.Add("interest points", ipScatter)
	}

	if err := p.Save(6*vg.Inch, 6*vg.Inch, *outFile); err != nil {
		log.Fatalf("Failed to save plot: %v", err)
	}
	fmt.Printf("Saved %s (%d beams, %d interest points)\n", *outFile, len(beams), len(points))
}
