package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

//Metrics contains the Prometheus collectors of a running session
type Metrics struct {
	registry *prometheus.Registry

	ticks             prometheus.Counter
	skippedTicks      *prometheus.CounterVec
	people            prometheus.Gauge
	electricitySaved  prometheus.Gauge
	mode              prometheus.Gauge
	zoneState         *prometheus.GaugeVec
	detectionDuration prometheus.Histogram
	detectionErrors   prometheus.Counter
	commands          *prometheus.CounterVec

	collectors []prometheus.Collector
}

//NewMetrics creates the collectors and registers them with registry
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()

	for _, c := range m.collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smartroom_ticks_total",
		Help: "Number of completed control loop ticks",
	})
	m.skippedTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartroom_ticks_skipped_total",
			Help: "Number of skipped ticks by reason",
		},
		[]string{"reason"},
	)
	m.people = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smartroom_people",
		Help: "People detected on the last tick",
	})
	m.electricitySaved = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smartroom_electricity_saved_kwh",
		Help: "Heuristic electricity saving estimate since session start",
	})
	m.mode = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smartroom_manual_mode",
		Help: "1 when the controller is in manual mode, 0 in automatic mode",
	})
	m.zoneState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartroom_zone_on",
			Help: "Committed actuator state per zone",
		},
		[]string{"zone"},
	)
	m.detectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartroom_detection_duration_seconds",
		Help:    "Detector latency per frame",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})
	m.detectionErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smartroom_detection_errors_total",
		Help: "Detector failures, each degraded to zero detections",
	})
	m.commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartroom_actuator_commands_total",
			Help: "Actuator commands by delivery result",
		},
		[]string{"result"},
	)

	m.collectors = []prometheus.Collector{
		m.ticks, m.skippedTicks, m.people, m.electricitySaved, m.mode,
		m.zoneState, m.detectionDuration, m.detectionErrors, m.commands,
	}
}

//Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

//RecordTick records the outcome of one completed tick
func (m *Metrics) RecordTick(people int, electricitySaved float64, manual bool, zones []bool) {
	if m == nil {
		return
	}

	m.ticks.Inc()
	m.people.Set(float64(people))
	m.electricitySaved.Set(electricitySaved)
	m.mode.Set(boolToFloat(manual))
	for id, on := range zones {
		m.zoneState.WithLabelValues(strconv.Itoa(id)).Set(boolToFloat(on))
	}
}

//RecordSkippedTick counts a tick that did no work
func (m *Metrics) RecordSkippedTick(reason string) {
	if m == nil {
		return
	}
	m.skippedTicks.WithLabelValues(reason).Inc()
}

//RecordDetection records detector latency and failure
func (m *Metrics) RecordDetection(d time.Duration, err error) {
	if m == nil {
		return
	}

	m.detectionDuration.Observe(d.Seconds())
	if err != nil {
		m.detectionErrors.Inc()
	}
}

//RecordCommand counts one actuator command by result ("sent", "failed", "dropped")
func (m *Metrics) RecordCommand(result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(result).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
