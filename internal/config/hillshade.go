package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/hillshader/internal/external"
	"github.com/banshee-data/hillshader/internal/lidar/l2classify"
	"github.com/banshee-data/hillshader/internal/lidar/l3grid"
	"github.com/banshee-data/hillshader/internal/raster"
	"github.com/banshee-data/hillshader/internal/relief"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/hillshade.defaults.json"

const maxFileSize = 1 * 1024 * 1024

// DTM backends.
const (
	BackendInterpolate = "interpolate"
	BackendBlast2DEM   = "blast2dem"
)

// HillshadeConfig is the root configuration for a hillshade run. Every field
// is optional; the Get* accessors supply defaults for omitted values, so a
// partial file layers cleanly over the built-in behaviour.
type HillshadeConfig struct {
	// Exposures lists the three light sources, applied in order.
	Exposures []relief.Exposure `json:"exposures,omitempty" yaml:"exposures,omitempty"`

	// Gridding
	PixelSize           *float64 `json:"pixel_size,omitempty" yaml:"pixel_size,omitempty"`
	InterpolationMethod *string  `json:"interpolation_method,omitempty" yaml:"interpolation_method,omitempty"`
	NoDataPolicy        *string  `json:"nodata_policy,omitempty" yaml:"nodata_policy,omitempty"`
	NoDataValue         *float64 `json:"nodata_value,omitempty" yaml:"nodata_value,omitempty"`
	DTMBackend          *string  `json:"dtm_backend,omitempty" yaml:"dtm_backend,omitempty"`

	// Classification
	ClassificationMode *string `json:"classification_mode,omitempty" yaml:"classification_mode,omitempty"`
	GroundClass        *int    `json:"ground_class,omitempty" yaml:"ground_class,omitempty"`

	// Output
	KeepPartials *bool   `json:"keep_partials,omitempty" yaml:"keep_partials,omitempty"`
	Histogram    *bool   `json:"histogram,omitempty" yaml:"histogram,omitempty"`
	EPSG         *int    `json:"epsg,omitempty" yaml:"epsg,omitempty"`
	CRSWKT       *string `json:"crs_wkt,omitempty" yaml:"crs_wkt,omitempty"`

	// External tools (optional)
	Tools   *external.ToolPaths     `json:"tools,omitempty" yaml:"tools,omitempty"`
	Catalog *external.CatalogParams `json:"catalog,omitempty" yaml:"catalog,omitempty"`

	// Process
	LogLevel *string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFile  *string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	RunDB    *string `json:"run_db,omitempty" yaml:"run_db,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a HillshadeConfig with all fields set to nil.
func EmptyConfig() *HillshadeConfig {
	return &HillshadeConfig{}
}

// LoadConfig loads a HillshadeConfig from a .json, .yaml or .yml file.
// Fields omitted from the file keep their defaults.
func LoadConfig(path string) (*HillshadeConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *HillshadeConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *HillshadeConfig) Validate() error {
	if c.Exposures != nil {
		if len(c.Exposures) != relief.ExposureCount {
			return fmt.Errorf("exposures must list exactly %d entries, got %d", relief.ExposureCount, len(c.Exposures))
		}
		for i, e := range c.Exposures {
			if e.Opacity < 0 || e.Opacity > 1 || math.IsNaN(e.Opacity) {
				return fmt.Errorf("exposures[%d].opacity must be between 0 and 1, got %f", i, e.Opacity)
			}
			if !(e.Azimuth >= 0 && e.Azimuth < 360) {
				return fmt.Errorf("exposures[%d].azimuth must be in [0, 360), got %f", i, e.Azimuth)
			}
			if e.Altitude < 0 || e.Altitude > 90 {
				return fmt.Errorf("exposures[%d].altitude must be between 0 and 90, got %f", i, e.Altitude)
			}
		}
	}

	if c.PixelSize != nil && !(*c.PixelSize > 0) {
		return fmt.Errorf("pixel_size must be positive, got %f", *c.PixelSize)
	}
	if c.InterpolationMethod != nil {
		if _, err := l3grid.ParseMethod(*c.InterpolationMethod); err != nil {
			return err
		}
	}
	if c.NoDataPolicy != nil {
		if _, err := l3grid.ParseNoDataPolicy(*c.NoDataPolicy); err != nil {
			return err
		}
	}
	if c.NoDataValue != nil && math.IsNaN(*c.NoDataValue) {
		return fmt.Errorf("nodata_value must be a number")
	}
	if c.DTMBackend != nil {
		switch *c.DTMBackend {
		case BackendInterpolate, BackendBlast2DEM:
		default:
			return fmt.Errorf("invalid dtm_backend %q (want %s or %s)", *c.DTMBackend, BackendInterpolate, BackendBlast2DEM)
		}
	}
	if c.ClassificationMode != nil {
		if _, err := l2classify.ParseMode(*c.ClassificationMode); err != nil {
			return err
		}
	}
	if c.GroundClass != nil && (*c.GroundClass < 0 || *c.GroundClass > 255) {
		return fmt.Errorf("ground_class must be between 0 and 255, got %d", *c.GroundClass)
	}
	if c.EPSG != nil && *c.EPSG <= 0 {
		return fmt.Errorf("epsg must be positive, got %d", *c.EPSG)
	}
	if c.Catalog != nil {
		for name, v := range map[string][3]float64{
			"density":       c.Catalog.Density,
			"first_density": c.Catalog.FirstDensity,
			"intensity":     c.Catalog.Intensity,
		} {
			if v[0] <= 0 || v[1] > v[2] {
				return fmt.Errorf("catalog.%s must be [cell size > 0, min, max >= min], got %v", name, v)
			}
		}
	}
	return nil
}

// DefaultExposures are the three light sources used when none are configured.
func DefaultExposures() []relief.Exposure {
	return []relief.Exposure{
		{Azimuth: 350, Altitude: 70, Opacity: 0.5},
		{Azimuth: 15, Altitude: 60, Opacity: 0.65},
		{Azimuth: 270, Altitude: 55, Opacity: 0.7},
	}
}

// GetExposures returns the configured exposures or DefaultExposures.
func (c *HillshadeConfig) GetExposures() []relief.Exposure {
	if c.Exposures == nil {
		return DefaultExposures()
	}
	out := make([]relief.Exposure, len(c.Exposures))
	copy(out, c.Exposures)
	return out
}

// GetPixelSize returns pixel_size, or 0 when unset. Point-cloud runs
// reject a zero pixel size.
func (c *HillshadeConfig) GetPixelSize() float64 {
	if c.PixelSize == nil {
		return 0
	}
	return *c.PixelSize
}

// GetInterpolationMethod returns the interpolation_method value or the default.
func (c *HillshadeConfig) GetInterpolationMethod() l3grid.Method {
	if c.InterpolationMethod == nil {
		return l3grid.MethodNearest
	}
	m, err := l3grid.ParseMethod(*c.InterpolationMethod)
	if err != nil {
		return l3grid.MethodNearest
	}
	return m
}

// GetNoDataPolicy returns the nodata_policy value or the default.
func (c *HillshadeConfig) GetNoDataPolicy() l3grid.NoDataPolicy {
	if c.NoDataPolicy == nil {
		return l3grid.NoDataError
	}
	p, err := l3grid.ParseNoDataPolicy(*c.NoDataPolicy)
	if err != nil {
		return l3grid.NoDataError
	}
	return p
}

// GetNoDataValue returns the nodata_value value or the default.
func (c *HillshadeConfig) GetNoDataValue() float64 {
	if c.NoDataValue == nil {
		return l3grid.DefaultNoData
	}
	return *c.NoDataValue
}

// GetDTMBackend returns the dtm_backend value or the default.
func (c *HillshadeConfig) GetDTMBackend() string {
	if c.DTMBackend == nil || *c.DTMBackend == "" {
		return BackendInterpolate
	}
	return *c.DTMBackend
}

// GetClassificationMode returns the classification_mode value or the default.
func (c *HillshadeConfig) GetClassificationMode() l2classify.Mode {
	if c.ClassificationMode == nil {
		return l2classify.ModeTerrain
	}
	m, err := l2classify.ParseMode(*c.ClassificationMode)
	if err != nil {
		return l2classify.ModeTerrain
	}
	return m
}

// GetGroundClass returns the ground_class value or the default.
func (c *HillshadeConfig) GetGroundClass() uint8 {
	if c.GroundClass == nil {
		return 2
	}
	return uint8(*c.GroundClass)
}

// GetKeepPartials returns the keep_partials value or the default.
func (c *HillshadeConfig) GetKeepPartials() bool {
	if c.KeepPartials == nil {
		return false
	}
	return *c.KeepPartials
}

// GetHistogram returns the histogram value or the default.
func (c *HillshadeConfig) GetHistogram() bool {
	if c.Histogram == nil {
		return false
	}
	return *c.Histogram
}

// GetCRS returns the output CRS. A zero CRS means none was configured.
func (c *HillshadeConfig) GetCRS() raster.CRS {
	var crs raster.CRS
	if c.EPSG != nil {
		crs.EPSG = *c.EPSG
	}
	if c.CRSWKT != nil {
		crs.WKT = *c.CRSWKT
	}
	return crs
}

// GetTools returns the configured tool paths. Unset means no tools.
func (c *HillshadeConfig) GetTools() external.ToolPaths {
	if c.Tools == nil {
		return external.ToolPaths{}
	}
	return *c.Tools
}

// GetCatalog returns the catalog parameters and whether a catalog was
// configured.
func (c *HillshadeConfig) GetCatalog() (external.CatalogParams, bool) {
	if c.Catalog == nil {
		return external.CatalogParams{}, false
	}
	return *c.Catalog, true
}

// GetLogLevel returns the log_level value or the default.
func (c *HillshadeConfig) GetLogLevel() string {
	if c.LogLevel == nil || *c.LogLevel == "" {
		return "info"
	}
	return *c.LogLevel
}

// GetLogFile returns the log_file value. Empty disables file logging.
func (c *HillshadeConfig) GetLogFile() string {
	if c.LogFile == nil {
		return ""
	}
	return *c.LogFile
}

// GetRunDB returns the run_db path. Empty disables the run ledger.
func (c *HillshadeConfig) GetRunDB() string {
	if c.RunDB == nil {
		return ""
	}
	return *c.RunDB
}

// JSON returns the configuration as compact JSON for the run ledger.
func (c *HillshadeConfig) JSON() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(b)
}
