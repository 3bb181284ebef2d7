// Package telemetry exports controller health to Prometheus and redis.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lkas-actuation-core/closed_loop/carcontrol"
)

const namespace = "lkas"

// Metrics owns a private registry so several controllers (and tests) never
// collide on the default one.
type Metrics struct {
	reg *prometheus.Registry

	cycles       prometheus.Counter
	encodeErrors prometheus.Counter
	faultCycles  prometheus.Counter
	cutoutCycles prometheus.Counter
	framesSent   *prometheus.CounterVec
	sendErrors   *prometheus.CounterVec
	rxFrames     prometheus.Counter
	rxErrors     prometheus.Counter

	steer        prometheus.Gauge
	accel        prometheus.Gauge
	angle        prometheus.Gauge
	inCutout     prometheus.Gauge
	angleEnabled prometheus.Gauge
	cycleTime    prometheus.Histogram

	last carcontrol.Stats
}

func NewMetrics(withRuntime bool) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Control cycles run.",
		}),
		encodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "encode_errors_total",
			Help: "Frames dropped because they failed to encode.",
		}),
		faultCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "steer_fault_cycles_total",
			Help: "Cycles on which the EPS reported a known fault code.",
		}),
		cutoutCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "steer_cutout_cycles_total",
			Help: "Cycles with steering forced off after a fault.",
		}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_sent_total",
			Help: "Frames handed to the bus writer.",
		}, []string{"bus"}),
		sendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "send_errors_total",
			Help: "Frames the bus writer rejected.",
		}, []string{"bus"}),
		rxFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rx_frames_total",
			Help: "Feedback frames decoded.",
		}),
		rxErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rx_errors_total",
			Help: "Feedback frames that failed to read or decode.",
		}),
		steer: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "steer_command",
			Help: "Last applied steer torque command.",
		}),
		accel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "accel_command_mps2",
			Help: "Last accel command.",
		}),
		angle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "angle_command_deg",
			Help: "Last angle command.",
		}),
		inCutout: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "steer_in_cutout",
			Help: "1 while steering is suppressed after a fault.",
		}),
		angleEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "angle_control_enabled",
			Help: "1 while angle control arbitration is on.",
		}),
		cycleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cycle_duration_seconds",
			Help:    "Time spent computing and sending one cycle.",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		}),
	}
	m.reg.MustRegister(
		m.cycles, m.encodeErrors, m.faultCycles, m.cutoutCycles,
		m.framesSent, m.sendErrors, m.rxFrames, m.rxErrors,
		m.steer, m.accel, m.angle, m.inCutout, m.angleEnabled, m.cycleTime,
	)
	if withRuntime {
		m.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveCycle records one controller cycle. Stats are cumulative; only the
// increase since the previous call is added.
func (m *Metrics) ObserveCycle(out carcontrol.ControlOutput, st carcontrol.Stats, took time.Duration) {
	m.cycles.Add(float64(st.Cycles - m.last.Cycles))
	m.encodeErrors.Add(float64(st.EncodeErrors - m.last.EncodeErrors))
	m.faultCycles.Add(float64(st.FaultCycles - m.last.FaultCycles))
	m.cutoutCycles.Add(float64(st.CutoutCycles - m.last.CutoutCycles))
	m.last = st

	m.steer.Set(float64(out.Steer))
	m.accel.Set(out.Accel)
	m.angle.Set(out.Angle)
	m.inCutout.Set(boolToFloat(out.InCutout))
	m.angleEnabled.Set(boolToFloat(out.AngleEnabled))
	m.cycleTime.Observe(took.Seconds())
}

func (m *Metrics) FrameSent(bus int) {
	m.framesSent.WithLabelValues(strconv.Itoa(bus)).Inc()
}

func (m *Metrics) SendError(bus int) {
	m.sendErrors.WithLabelValues(strconv.Itoa(bus)).Inc()
}

func (m *Metrics) FrameReceived() { m.rxFrames.Inc() }

func (m *Metrics) ReceiveError() { m.rxErrors.Inc() }

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
