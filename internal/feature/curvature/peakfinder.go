// Package curvature implements the multi-scale curvature interest point
// detector used by the scan feature pipeline. Salient locations are corners
// and blob-like structures along the scan polyline, found as peaks of a
// smoothed curvature response.
package curvature

// PeakFinder locates local maxima of a response signal. A sample qualifies as
// a peak when it exceeds MinValue and rises at least MinDifference above the
// nearest valley on both sides, which suppresses plateau noise.
type PeakFinder struct {
	MinValue      float64
	MinDifference float64
}

// NewPeakFinder returns a peak finder with the given thresholds.
func NewPeakFinder(minValue, minDifference float64) *PeakFinder {
	return &PeakFinder{MinValue: minValue, MinDifference: minDifference}
}

// Find returns the indices of qualifying peaks in ascending order.
func (f *PeakFinder) Find(signal []float64) []int {
	var peaks []int
	n := len(signal)
	for i := 1; i < n-1; i++ {
		v := signal[i]
		if v <= f.MinValue {
			continue
		}
		if v < signal[i-1] || v < signal[i+1] {
			continue
		}
		// Skip all but the first sample of a flat plateau.
		if v == signal[i-1] {
			continue
		}

		// Walk to the nearest valley on each side.
		left := v
		for j := i - 1; j >= 0 && signal[j] <= left; j-- {
			left = signal[j]
		}
		right := v
		for j := i + 1; j < n && signal[j] <= right; j++ {
			right = signal[j]
		}

		if v-left >= f.MinDifference && v-right >= f.MinDifference {
			peaks = append(peaks, i)
		}
	}
	return peaks
}
