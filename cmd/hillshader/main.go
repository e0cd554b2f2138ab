package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/hillshader/internal/config"
	"github.com/banshee-data/hillshader/internal/db"
	"github.com/banshee-data/hillshader/internal/external"
	"github.com/banshee-data/hillshader/internal/lidar/pipeline"
	"github.com/banshee-data/hillshader/internal/monitoring"
	"github.com/banshee-data/hillshader/internal/security"
	"github.com/banshee-data/hillshader/internal/version"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// options holds the parsed command line. Pointer-free fields are always
// present; overrides only apply for flags the user actually set.
type options struct {
	configPath string
	outDir     string
	showVer    bool

	pixelSize    float64
	method       string
	noDataPolicy string
	mode         string
	backend      string
	keepPartials bool
	histogram    bool
	epsg         int
	logLevel     string
	logFile      string
	runDB        string

	set map[string]bool
}

func newFlagSet(o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("hillshader", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }
	fs.StringVar(&o.configPath, "config", "", "Configuration file (.json, .yaml or .yml)")
	fs.StringVar(&o.outDir, "out", ".", "Directory receiving the <base>_rN run directories")
	fs.BoolVar(&o.showVer, "version", false, "Print version and exit")

	fs.Float64Var(&o.pixelSize, "pixel-size", 0, "DEM cell size in CRS units (required for point clouds)")
	fs.StringVar(&o.method, "method", "", "Interpolation method: nearest, linear or cubic")
	fs.StringVar(&o.noDataPolicy, "nodata-policy", "", "Nodes outside the hull: error or fill")
	fs.StringVar(&o.mode, "mode", "", "Classification mode: terrain or first-surface")
	fs.StringVar(&o.backend, "dtm-backend", "", "DEM builder: interpolate or blast2dem")
	fs.BoolVar(&o.keepPartials, "keep-partials", false, "Keep intermediate LAS, DEM and single-exposure rasters")
	fs.BoolVar(&o.histogram, "histogram", false, "Write a brightness histogram PNG next to the composite")
	fs.IntVar(&o.epsg, "epsg", 0, "EPSG code stamped on point-cloud DEMs")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.StringVar(&o.logFile, "log-file", "", "Rotating log file")
	fs.StringVar(&o.runDB, "db", "", "SQLite run ledger")
	return fs
}

func parseArgs(args []string) (*options, []string, error) {
	o := &options{set: map[string]bool{}}
	fs := newFlagSet(o)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, fs.Args(), nil
}

// loadConfig reads the configuration file, or starts from built-in defaults,
// and applies the command-line overrides on top.
func loadConfig(o *options) (*config.HillshadeConfig, error) {
	cfg := config.EmptyConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.set["pixel-size"] {
		cfg.PixelSize = &o.pixelSize
	}
	if o.set["method"] {
		cfg.InterpolationMethod = &o.method
	}
	if o.set["nodata-policy"] {
		cfg.NoDataPolicy = &o.noDataPolicy
	}
	if o.set["mode"] {
		cfg.ClassificationMode = &o.mode
	}
	if o.set["dtm-backend"] {
		cfg.DTMBackend = &o.backend
	}
	if o.set["keep-partials"] {
		cfg.KeepPartials = &o.keepPartials
	}
	if o.set["histogram"] {
		cfg.Histogram = &o.histogram
	}
	if o.set["epsg"] {
		cfg.EPSG = &o.epsg
	}
	if o.set["log-level"] {
		cfg.LogLevel = &o.logLevel
	}
	if o.set["log-file"] {
		cfg.LogFile = &o.logFile
	}
	if o.set["db"] {
		cfg.RunDB = &o.runDB
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// debugLogger adapts monitoring.Debugf to external.Logger.
type debugLogger struct{}

func (debugLogger) Debugf(format string, args ...interface{}) { monitoring.Debugf(format, args...) }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	o, inputs, err := parseArgs(args)
	if err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}
	if o.showVer {
		fmt.Println(version.String())
		return exitOK
	}

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hillshader: %v\n", err)
		return exitUsage
	}
	if err := monitoring.Init(cfg.GetLogLevel(), cfg.GetLogFile()); err != nil {
		fmt.Fprintf(os.Stderr, "hillshader: failed to initialise logging: %v\n", err)
		return exitFailed
	}
	defer monitoring.Sync()

	files, err := expandInputs(inputs)
	if err != nil {
		monitoring.Logf("%v", err)
		return exitUsage
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "hillshader: no input files")
		return exitUsage
	}

	if err := os.MkdirAll(o.outDir, 0755); err != nil {
		monitoring.Logf("failed to create output directory %s: %v", o.outDir, err)
		return exitFailed
	}

	runner := pipeline.NewRunner(cfg, o.outDir)
	tools := external.NewRunner(cfg.GetTools())
	tools.SetLogger(debugLogger{})
	runner.Tools = tools
	runner.Confine = security.ValidatePathWithinDirectory

	if path := cfg.GetRunDB(); path != "" {
		ledger, err := db.OpenDB(path)
		if err != nil {
			monitoring.Logf("failed to open run ledger %s: %v", path, err)
			return exitFailed
		}
		defer ledger.Close()
		runner.Ledger = ledger
	}

	caps := cfg.GetTools().Capabilities(func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	})
	monitoring.Logf("hillshader %s: %d inputs, laszip=%t las2las=%t blast2dem=%t catalog=%t",
		version.Version, len(files), caps.Decompress, caps.GroundFilter, caps.BlastDEM, caps.Catalog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results := runner.RunBatch(ctx, files)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	monitoring.Logf("done: %d of %d files succeeded", len(results)-failed, len(results))
	if failed > 0 {
		return exitFailed
	}
	return exitOK
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), `hillshader - three-exposure hillshades from LiDAR point clouds and DEMs

Usage: hillshader [options] <input>...

Inputs are .las/.laz point clouds or .tif/.tiff/.asc elevation rasters.
A directory argument expands to the supported files it contains.
Each input produces <out>/<base>_rN/<base>_ComposedHillshade.tif.

Options:
`)
	fs.PrintDefaults()
	fmt.Fprint(fs.Output(), `
Examples:
  # Hillshade an existing DEM with the default exposures
  hillshader -out ./shaded dem.tif

  # Terrain hillshades for a folder of tiles, keeping intermediates
  hillshader -config config/hillshade.example.yaml -pixel-size 0.5 -keep-partials ./tiles
`)
}
