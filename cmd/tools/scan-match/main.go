// scan-match estimates the rigid transform between two scans from a
// JSON-lines log: extract interest points from both, then align them with
// the descriptor-seeded RANSAC matcher. Offline tuning aid; the node itself
// never matches scans against each other.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/banshee-data/scan.features/internal/config"
	"github.com/banshee-data/scan.features/internal/feature"
	"github.com/banshee-data/scan.features/internal/feature/betagrid"
	"github.com/banshee-data/scan.features/internal/feature/curvature"
	"github.com/banshee-data/scan.features/internal/feature/ransac"
	"github.com/banshee-data/scan.features/internal/scan"
	"github.com/banshee-data/scan.features/internal/source"
)

var (
	inFile     = flag.String("in", "", "JSON-lines scan log to read")
	liveIndex  = flag.Int("live", 1, "Index of the live scan")
	refIndex   = flag.Int("ref", 0, "Index of the reference scan")
	configFile = flag.String("config", "", "Path to tuning JSON (default: compiled-in defaults)")
	seed       = flag.Int64("seed", 0, "RANSAC sampling seed (0: random)")
)

func main() {
	flag.Parse()
	if *inFile == "" {
		log.Fatal("scan-match requires -in")
	}

	scans, err := source.ReadScanLog(*inFile)
	if err != nil {
		log.Fatalf("Failed to read scan log: %v", err)
	}
	for _, idx := range []int{*liveIndex, *refIndex} {
		if idx < 0 || idx >= len(scans) {
			log.Fatalf("Scan index %d out of range: log holds %d scans", idx, len(scans))
		}
	}

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
	pipeline := feature.NewPipeline(detector, generator)

	extract := func(s *scan.Scan, label string) []*feature.InterestPoint {
		reading, err := scan.NewReading(s)
		if err != nil {
			log.Fatalf("Failed to convert %s scan: %v", label, err)
		}
		points, err := pipeline.Extract(reading)
		if err != nil {
			log.Fatalf("Extraction failed on %s scan: %v", label, err)
		}
		fmt.Printf("%s scan: %d beams, %d interest points\n", label, reading.Len(), len(points))
		return points
	}

	live := extract(scans[*liveIndex], "live")
	ref := extract(scans[*refIndex], "reference")

	matcher, err := ransac.NewMatcher(ransac.Config{
		AcceptanceThreshold: tuning.GetRansacAcceptanceThreshold(),
		SuccessProbability:  tuning.GetRansacSuccessProbability(),
		InlierProbability:   tuning.GetRansacInlierProbability(),
		DistanceThreshold:   tuning.GetRansacDistanceThreshold(),
		RigidityThreshold:   tuning.GetRansacRigidityThreshold(),
		Seed:                *seed,
	}, generator.Distance())
	if err != nil {
		log.Fatalf("Invalid matcher tuning: %v", err)
	}

	result, err := matcher.Match(live, ref)
	if err != nil {
		log.Fatalf("Matching failed: %v", err)
	}

	t := result.Transform
	fmt.Printf("Transform (reference -> live): x=%.4f m, y=%.4f m, theta=%.4f rad\n", t.X, t.Y, t.Theta)
	fmt.Printf("Consensus: %d inliers of %d candidate correspondences\n",
		len(result.Inliers), result.Candidates)
}
