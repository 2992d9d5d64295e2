package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the scan feature node.
// Every tunable numeric parameter of the detector, descriptor generator and
// matcher is fixed here at construction; there is no runtime reconfiguration.
// Fields are pointers so partial JSON files fall back to the documented
// defaults via the Get* accessors.
type TuningConfig struct {
	// Frame names
	ReferenceFrame *string `json:"reference_frame,omitempty"`
	SensorFrame    *string `json:"sensor_frame,omitempty"`

	// Transform buffer
	TransformMaxAge *string `json:"transform_max_age,omitempty"` // duration string like "500ms"

	// Curvature detector params
	DetectorScaleLevels *int     `json:"detector_scale_levels,omitempty"`
	DetectorBaseSigma   *float64 `json:"detector_base_sigma,omitempty"`
	DetectorSigmaStep   *float64 `json:"detector_sigma_step,omitempty"`
	DetectorUseMaxRange *bool    `json:"detector_use_max_range,omitempty"`
	PeakMinValue        *float64 `json:"peak_min_value,omitempty"`
	PeakMinDifference   *float64 `json:"peak_min_difference,omitempty"`

	// Beta grid descriptor params
	DescriptorMinRho  *float64 `json:"descriptor_min_rho,omitempty"`
	DescriptorMaxRho  *float64 `json:"descriptor_max_rho,omitempty"`
	DescriptorBinsRho *int     `json:"descriptor_bins_rho,omitempty"`
	DescriptorBinsPhi *int     `json:"descriptor_bins_phi,omitempty"`
	DescriptorMetric  *string  `json:"descriptor_metric,omitempty"`

	// RANSAC matcher params (reserved for the matching extension)
	RansacAcceptanceThreshold *float64 `json:"ransac_acceptance_threshold,omitempty"`
	RansacSuccessProbability  *float64 `json:"ransac_success_probability,omitempty"`
	RansacInlierProbability   *float64 `json:"ransac_inlier_probability,omitempty"`
	RansacDistanceThreshold   *float64 `json:"ransac_distance_threshold,omitempty"`
	RansacRigidityThreshold   *float64 `json:"ransac_rigidity_threshold,omitempty"`

	// Visualization params
	MarkerNamespace *string  `json:"marker_namespace,omitempty"`
	MarkerScale     *float64 `json:"marker_scale,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath. It searches for the file in the current directory and
// common parent directories. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/feature/*
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.DetectorScaleLevels != nil && *c.DetectorScaleLevels < 1 {
		return fmt.Errorf("detector_scale_levels must be >= 1, got %d", *c.DetectorScaleLevels)
	}
	if c.DetectorBaseSigma != nil && *c.DetectorBaseSigma <= 0 {
		return fmt.Errorf("detector_base_sigma must be positive, got %f", *c.DetectorBaseSigma)
	}
	if c.DetectorSigmaStep != nil && *c.DetectorSigmaStep <= 1 {
		return fmt.Errorf("detector_sigma_step must be > 1, got %f", *c.DetectorSigmaStep)
	}
	if c.DescriptorMinRho != nil && c.DescriptorMaxRho != nil &&
		*c.DescriptorMaxRho <= *c.DescriptorMinRho {
		return fmt.Errorf("descriptor rho range [%f, %f] is inverted",
			*c.DescriptorMinRho, *c.DescriptorMaxRho)
	}
	if c.DescriptorBinsRho != nil && *c.DescriptorBinsRho < 1 {
		return fmt.Errorf("descriptor_bins_rho must be >= 1, got %d", *c.DescriptorBinsRho)
	}
	if c.DescriptorBinsPhi != nil && *c.DescriptorBinsPhi < 1 {
		return fmt.Errorf("descriptor_bins_phi must be >= 1, got %d", *c.DescriptorBinsPhi)
	}
	if c.DescriptorMetric != nil {
		switch *c.DescriptorMetric {
		case "euclidean", "chi2", "bhattacharyya":
		default:
			return fmt.Errorf("unknown descriptor_metric %q", *c.DescriptorMetric)
		}
	}
	for name, p := range map[string]*float64{
		"ransac_success_probability": c.RansacSuccessProbability,
		"ransac_inlier_probability":  c.RansacInlierProbability,
	} {
		if p != nil && (*p <= 0 || *p >= 1) {
			return fmt.Errorf("%s must be in (0, 1), got %f", name, *p)
		}
	}
	if c.TransformMaxAge != nil && *c.TransformMaxAge != "" {
		if _, err := time.ParseDuration(*c.TransformMaxAge); err != nil {
			return fmt.Errorf("invalid transform_max_age '%s': %w", *c.TransformMaxAge, err)
		}
	}
	return nil
}

// GetReferenceFrame returns the reference_frame value or the default.
func (c *TuningConfig) GetReferenceFrame() string {
	if c.ReferenceFrame == nil {
		return "map"
	}
	return *c.ReferenceFrame
}

// GetSensorFrame returns the sensor_frame value or the default.
func (c *TuningConfig) GetSensorFrame() string {
	if c.SensorFrame == nil {
		return "base_laser_link"
	}
	return *c.SensorFrame
}

// GetTransformMaxAge parses and returns transform_max_age as a time.Duration.
func (c *TuningConfig) GetTransformMaxAge() time.Duration {
	if c.TransformMaxAge == nil || *c.TransformMaxAge == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.TransformMaxAge)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetDetectorScaleLevels returns the detector_scale_levels value or the default.
func (c *TuningConfig) GetDetectorScaleLevels() int {
	if c.DetectorScaleLevels == nil {
		return 5
	}
	return *c.DetectorScaleLevels
}

// GetDetectorBaseSigma returns the detector_base_sigma value or the default.
func (c *TuningConfig) GetDetectorBaseSigma() float64 {
	if c.DetectorBaseSigma == nil {
		return 0.2
	}
	return *c.DetectorBaseSigma
}

// GetDetectorSigmaStep returns the detector_sigma_step value or the default.
func (c *TuningConfig) GetDetectorSigmaStep() float64 {
	if c.DetectorSigmaStep == nil {
		return 1.4
	}
	return *c.DetectorSigmaStep
}

// GetDetectorUseMaxRange returns the detector_use_max_range value or the default.
func (c *TuningConfig) GetDetectorUseMaxRange() bool {
	if c.DetectorUseMaxRange == nil {
		return false
	}
	return *c.DetectorUseMaxRange
}

// GetPeakMinValue returns the peak_min_value value or the default.
func (c *TuningConfig) GetPeakMinValue() float64 {
	if c.PeakMinValue == nil {
		return 0.34
	}
	return *c.PeakMinValue
}

// GetPeakMinDifference returns the peak_min_difference value or the default.
func (c *TuningConfig) GetPeakMinDifference() float64 {
	if c.PeakMinDifference == nil {
		return 0.001
	}
	return *c.PeakMinDifference
}

// GetDescriptorMinRho returns the descriptor_min_rho value or the default.
func (c *TuningConfig) GetDescriptorMinRho() float64 {
	if c.DescriptorMinRho == nil {
		return 0.02
	}
	return *c.DescriptorMinRho
}

// GetDescriptorMaxRho returns the descriptor_max_rho value or the default.
func (c *TuningConfig) GetDescriptorMaxRho() float64 {
	if c.DescriptorMaxRho == nil {
		return 0.5
	}
	return *c.DescriptorMaxRho
}

// GetDescriptorBinsRho returns the descriptor_bins_rho value or the default.
func (c *TuningConfig) GetDescriptorBinsRho() int {
	if c.DescriptorBinsRho == nil {
		return 4
	}
	return *c.DescriptorBinsRho
}

// GetDescriptorBinsPhi returns the descriptor_bins_phi value or the default.
func (c *TuningConfig) GetDescriptorBinsPhi() int {
	if c.DescriptorBinsPhi == nil {
		return 12
	}
	return *c.DescriptorBinsPhi
}

// GetDescriptorMetric returns the descriptor_metric value or the default.
func (c *TuningConfig) GetDescriptorMetric() string {
	if c.DescriptorMetric == nil {
		return "euclidean"
	}
	return *c.DescriptorMetric
}

// GetRansacAcceptanceThreshold returns the ransac_acceptance_threshold value or the default.
func (c *TuningConfig) GetRansacAcceptanceThreshold() float64 {
	if c.RansacAcceptanceThreshold == nil {
		return 0.0599
	}
	return *c.RansacAcceptanceThreshold
}

// GetRansacSuccessProbability returns the ransac_success_probability value or the default.
func (c *TuningConfig) GetRansacSuccessProbability() float64 {
	if c.RansacSuccessProbability == nil {
		return 0.95
	}
	return *c.RansacSuccessProbability
}

// GetRansacInlierProbability returns the ransac_inlier_probability value or the default.
func (c *TuningConfig) GetRansacInlierProbability() float64 {
	if c.RansacInlierProbability == nil {
		return 0.4
	}
	return *c.RansacInlierProbability
}

// GetRansacDistanceThreshold returns the ransac_distance_threshold value or the default.
func (c *TuningConfig) GetRansacDistanceThreshold() float64 {
	if c.RansacDistanceThreshold == nil {
		return 0.4
	}
	return *c.RansacDistanceThreshold
}

// GetRansacRigidityThreshold returns the ransac_rigidity_threshold value or the default.
func (c *TuningConfig) GetRansacRigidityThreshold() float64 {
	if c.RansacRigidityThreshold == nil {
		return 0.0384
	}
	return *c.RansacRigidityThreshold
}

// GetMarkerNamespace returns the marker_namespace value or the default.
func (c *TuningConfig) GetMarkerNamespace() string {
	if c.MarkerNamespace == nil {
		return "scan_features"
	}
	return *c.MarkerNamespace
}

// GetMarkerScale returns the marker_scale value or the default.
func (c *TuningConfig) GetMarkerScale() float64 {
	if c.MarkerScale == nil {
		return 0.1
	}
	return *c.MarkerScale
}
