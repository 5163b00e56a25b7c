package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for propagation call metrics.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
)

// PipelineCollector bundles Prometheus metrics for the propagation pipeline
// and the render consumption step. All recording methods are safe on a nil
// receiver so components can run unmetered.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	PropagateCalls    *prometheus.CounterVec
	PropagateDuration prometheus.Histogram
	PropagateInFlight prometheus.Gauge

	RegisteredSatellites prometheus.Gauge
	ElementsDropped      prometheus.Counter

	Frames             prometheus.Counter
	FrameDuration      prometheus.Histogram
	TransformRecompute prometheus.Counter
	ClockResets        prometheus.Counter
}

// NewPipelineCollector registers pipeline metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propagate_calls_total",
		Help: "Total propagation backend calls, labeled by outcome (ok, error, invalid).",
	}, []string{"outcome"})
	calls, err := registerCounterVec(reg, calls, "propagate_calls_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "propagate_duration_seconds",
		Help:    "Propagation backend call latency in seconds.",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "propagate_duration_seconds")
	if err != nil {
		return nil, err
	}

	inFlight, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "propagate_in_flight",
		Help: "Number of outstanding propagation backend calls (0 or 1).",
	}), "propagate_in_flight")
	if err != nil {
		return nil, err
	}

	satellites, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "registered_satellites",
		Help: "Number of satellites in the registered set.",
	}), "registered_satellites")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elements_dropped_total",
		Help: "Raw elements dropped during registration because derivation failed.",
	}), "elements_dropped_total")
	if err != nil {
		return nil, err
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_frames_total",
		Help: "Render consumption steps executed.",
	}), "render_frames_total")
	if err != nil {
		return nil, err
	}

	frameDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "frame_duration_seconds",
		Help:    "Render consumption step latency in seconds.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
	}), "frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	recomputes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transform_recomputes_total",
		Help: "Coordinate-frame transform recomputations.",
	}), "transform_recomputes_total")
	if err != nil {
		return nil, err
	}

	resets, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_clock_resets_total",
		Help: "Simulated clock wraparound resets to the start bound.",
	}), "sim_clock_resets_total")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:             gatherer,
		PropagateCalls:       calls,
		PropagateDuration:    duration,
		PropagateInFlight:    inFlight,
		RegisteredSatellites: satellites,
		ElementsDropped:      dropped,
		Frames:               frames,
		FrameDuration:        frameDuration,
		TransformRecompute:   recomputes,
		ClockResets:          resets,
	}, nil
}

// ObservePropagate records one backend call with its outcome and duration.
func (c *PipelineCollector) ObservePropagate(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	if c.PropagateCalls != nil {
		c.PropagateCalls.WithLabelValues(outcome).Inc()
	}
	if c.PropagateDuration != nil {
		c.PropagateDuration.Observe(d.Seconds())
	}
}

// SetInFlight records the in-flight counter value.
func (c *PipelineCollector) SetInFlight(n int) {
	if c == nil || c.PropagateInFlight == nil {
		return
	}
	c.PropagateInFlight.Set(float64(n))
}

// SetRegisteredSatellites records the registered set size.
func (c *PipelineCollector) SetRegisteredSatellites(n int) {
	if c == nil || c.RegisteredSatellites == nil {
		return
	}
	c.RegisteredSatellites.Set(float64(n))
}

// AddDroppedElements records elements excluded during registration.
func (c *PipelineCollector) AddDroppedElements(n int) {
	if c == nil || c.ElementsDropped == nil || n <= 0 {
		return
	}
	c.ElementsDropped.Add(float64(n))
}

// ObserveFrame records one render consumption step.
func (c *PipelineCollector) ObserveFrame(d time.Duration) {
	if c == nil {
		return
	}
	if c.Frames != nil {
		c.Frames.Inc()
	}
	if c.FrameDuration != nil {
		c.FrameDuration.Observe(d.Seconds())
	}
}

// IncTransformRecompute records a coordinate-frame transform recomputation.
func (c *PipelineCollector) IncTransformRecompute() {
	if c == nil || c.TransformRecompute == nil {
		return
	}
	c.TransformRecompute.Inc()
}

// IncClockReset records a simulated-clock wraparound reset.
func (c *PipelineCollector) IncClockReset() {
	if c == nil || c.ClockResets == nil {
		return
	}
	c.ClockResets.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PipelineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
