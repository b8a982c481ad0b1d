package main

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/theckman/yacspin"
	"golang.org/x/exp/rand"

	"github.com/rubin-sim/readoutsim/camgeom"
	"github.com/rubin-sim/readoutsim/cte"
	"github.com/rubin-sim/readoutsim/metrics"
	"github.com/rubin-sim/readoutsim/rawrec"
	"github.com/rubin-sim/readoutsim/readout"
	"github.com/rubin-sim/readoutsim/tanwcs"
	"github.com/rubin-sim/readoutsim/util"
)

// Config holds the batch runner configuration
type Config struct {
	// Family is the camera family name, one of LsstCam, LsstComCam, LsstCamImSim
	Family string `yaml:"Family"`

	// GeometryFile is the path to the YAML camera geometry description
	GeometryFile string `yaml:"GeometryFile"`

	// Inputs are globs of electron-image FITS files to process
	Inputs []string `yaml:"Inputs"`

	// OutDir is the root folder raw files are written under
	OutDir string `yaml:"OutDir"`

	// Workers is the number of detectors processed in parallel
	Workers int `yaml:"Workers"`

	// Seed is the base RNG seed; each input file derives its own seed
	// from it, so results do not depend on worker scheduling
	Seed uint64 `yaml:"Seed"`

	// MetricsAddr, when set, serves Prometheus metrics during the run
	MetricsAddr string `yaml:"MetricsAddr"`

	ExpTime     float64 `yaml:"ExpTime"`
	ReadoutTime float64 `yaml:"ReadoutTime"`
	DarkCurrent float64 `yaml:"DarkCurrent"`
	BiasLevel   float64 `yaml:"BiasLevel"`
	SCTI        float64 `yaml:"SCTI"`
	PCTI        float64 `yaml:"PCTI"`
	FullWell    float64 `yaml:"FullWell"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	p := readout.DefaultParams()
	return Config{
		Family:       "LsstCam",
		GeometryFile: "camera.yml",
		Inputs:       []string{"eimage_*.fits"},
		OutDir:       ".",
		Workers:      4,
		Seed:         57721,
		ExpTime:      p.ExpTime,
		ReadoutTime:  p.ReadoutTime,
		DarkCurrent:  p.DarkCurrent,
		BiasLevel:    p.BiasLevel,
		SCTI:         p.SCTI,
		PCTI:         p.PCTI,
		FullWell:     p.FullWell,
	}
}

func (c Config) params() readout.Params {
	return readout.Params{
		ExpTime:     c.ExpTime,
		ReadoutTime: c.ReadoutTime,
		DarkCurrent: c.DarkCurrent,
		BiasLevel:   c.BiasLevel,
		SCTI:        c.SCTI,
		PCTI:        c.PCTI,
		FullWell:    c.FullWell,
	}
}

// RunBatch processes every input electron image through the readout
// pipeline, writing one raw file per detector.  Detectors are processed
// in parallel by Workers goroutines; the geometry, CTE-operator and
// rotation-angle caches are shared across workers.
func RunBatch(c Config, logger *log.Logger) error {
	family, err := camgeom.ParseFamily(c.Family)
	if err != nil {
		return err
	}
	provider, err := camgeom.OpenYAMLProvider(c.GeometryFile)
	if err != nil {
		return err
	}
	geom := camgeom.NewCache()
	geom.Register(family, provider)
	cam, err := geom.Get(family)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if c.MetricsAddr != "" {
		collector, err = metrics.NewCollector(nil)
		if err != nil {
			return err
		}
		mux := chi.NewRouter()
		mux.Method(http.MethodGet, "/metrics", collector.Handler())
		mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		go func() {
			logger.Println("serving metrics at", c.MetricsAddr)
			if err := http.ListenAndServe(c.MetricsAddr, mux); err != nil {
				logger.Println("metrics server:", err)
			}
		}()
	}

	var files []string
	for _, pattern := range c.Inputs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("bad input glob %q: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no input files matched %v", c.Inputs)
	}

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[59],
		Suffix:          " readout",
		SuffixAutoColon: true,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	})
	if err != nil {
		return err
	}
	spinner.Start()
	defer spinner.Stop()

	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	logger.Printf("%d inputs, %d workers, %v exposures", len(files), workers, util.SecsToDuration(c.ExpTime))
	type job struct {
		idx  int
		path string
	}
	jobs := make(chan job)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	cteCache := cte.NewCache()
	angles := readout.NewRotAngleCache()
	rec := rawrec.Recorder{Root: c.OutDir, Enabled: true}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				spinner.Message(filepath.Base(j.path))
				start := time.Now()
				nframes, err := processOne(c, j.path, family, cam, cteCache, angles, &rec,
					rand.New(rand.NewSource(c.Seed+uint64(j.idx))), logger)
				if collector != nil {
					collector.ObserveRun(err, nframes, time.Since(start))
				}
				if err != nil {
					logger.Printf("%s: %v", j.path, err)
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}()
	}
	for i, f := range files {
		jobs <- job{idx: i, path: f}
	}
	close(jobs)
	wg.Wait()

	if failed > 0 {
		spinner.StopFailMessage(fmt.Sprintf("%d of %d detectors failed", failed, len(files)))
		spinner.StopFail()
		return fmt.Errorf("%d of %d detectors failed", failed, len(files))
	}
	spinner.StopMessage(fmt.Sprintf("%d detectors written to %s", len(files), c.OutDir))
	return nil
}

// processOne runs the readout pipeline for a single electron image and
// records the raw file.  It returns the number of amplifier frames
// written.
func processOne(c Config, path string, family camgeom.Family, cam *camgeom.Camera,
	cteCache *cte.Cache, angles *readout.RotAngleCache, rec *rawrec.Recorder,
	rng *rand.Rand, logger *log.Logger) (int, error) {
	ei, err := readout.ReadEImage(path)
	if err != nil {
		return 0, err
	}
	if ei.CameraName != family.String() {
		return 0, &camgeom.ConfigurationError{
			Msg: fmt.Sprintf("%s was rendered for camera %s, run configured for %s",
				path, ei.CameraName, family),
		}
	}
	det := cam.Detector(ei.DetName)
	if det == nil {
		return 0, &readout.GeometryMismatchError{
			Msg: fmt.Sprintf("geometry has no detector %s", ei.DetName),
		}
	}

	r := readout.New(det, family, c.params())
	r.CTE = cteCache
	r.Angles = angles
	r.WCS = tanwcs.Builder{}
	r.Logger = logger
	out, err := r.Run(ei.Image, ei.Exposure, rng)
	if err != nil {
		return 0, err
	}
	if _, err := rec.Record(ei.Exposure.ObsID, out); err != nil {
		return 0, err
	}
	return len(out.Amps), nil
}
