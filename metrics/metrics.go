/*Package metrics bundles Prometheus instrumentation for batch readout
runs: how many detectors were processed, how many amplifier frames were
written, how long each pipeline run took, and which error kinds caused
failures.
*/
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rubin-sim/readoutsim/camgeom"
	"github.com/rubin-sim/readoutsim/pix"
	"github.com/rubin-sim/readoutsim/readout"
)

// Collector bundles the Prometheus metrics of a batch runner.
type Collector struct {
	gatherer prometheus.Gatherer

	DetectorsProcessed *prometheus.CounterVec
	FramesWritten      prometheus.Counter
	Failures           *prometheus.CounterVec
	RunDuration        prometheus.Histogram
}

// NewCollector registers the batch metrics against reg, defaulting to
// the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		DetectorsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readout_detectors_processed_total",
			Help: "Detector readout runs, labeled by outcome.",
		}, []string{"status"}),
		FramesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readout_amp_frames_written_total",
			Help: "Amplifier frames written to raw files.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readout_failures_total",
			Help: "Failed detector runs, labeled by error kind.",
		}, []string{"kind"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "readout_duration_seconds",
			Help:    "Wall time of one detector readout run.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
	var err error
	if c.DetectorsProcessed, err = registerCounterVec(reg, c.DetectorsProcessed); err != nil {
		return nil, err
	}
	if c.FramesWritten, err = registerCounter(reg, c.FramesWritten); err != nil {
		return nil, err
	}
	if c.Failures, err = registerCounterVec(reg, c.Failures); err != nil {
		return nil, err
	}
	if c.RunDuration, err = registerHistogram(reg, c.RunDuration); err != nil {
		return nil, err
	}
	return c, nil
}

// The register helpers adopt the registry's existing collector on
// duplicate registration, so every Collector built against one registry
// feeds the metrics that registry actually exports.

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, ctr prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(ctr); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return ctr, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return h, nil
}

// ObserveRun records the outcome and duration of one detector run.
func (c *Collector) ObserveRun(err error, frames int, elapsed time.Duration) {
	c.RunDuration.Observe(elapsed.Seconds())
	if err == nil {
		c.DetectorsProcessed.WithLabelValues("ok").Inc()
		c.FramesWritten.Add(float64(frames))
		return
	}
	c.DetectorsProcessed.WithLabelValues("error").Inc()
	c.Failures.WithLabelValues(ErrorKind(err)).Inc()
}

// ErrorKind maps an error to its taxonomy label.
func ErrorKind(err error) string {
	var (
		cfgErr   *camgeom.ConfigurationError
		geomErr  *readout.GeometryMismatchError
		metaErr  *readout.MissingMetadataError
		shapeErr *pix.ShapeError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &geomErr):
		return "geometry"
	case errors.As(err, &metaErr):
		return "metadata"
	case errors.As(err, &shapeErr):
		return "shape"
	}
	return "other"
}

// Handler serves the collector's registry over HTTP.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
