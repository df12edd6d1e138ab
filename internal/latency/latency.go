// Package latency implements the per-stream latency monitor (component
// J): sliding-window delay statistics, a gap counter, and an outage/
// corrupted-data state machine, grounded on the general connection-
// health bookkeeping pattern in the example pack's server components,
// re-expressed for correction-stream latency (§4.J).
package latency

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Transition names one outage-state-machine edge (§4.J).
type Transition int

const (
	NoTransition Transition = iota
	BeginOutage
	EndOutage
	BeginCorrupted
	EndCorrupted
	Reconnect
)

func (t Transition) String() string {
	switch t {
	case BeginOutage:
		return "begin outage"
	case EndOutage:
		return "end outage"
	case BeginCorrupted:
		return "begin corrupted"
	case EndCorrupted:
		return "end corrupted"
	case Reconnect:
		return "reconnect"
	default:
		return "none"
	}
}

// Report is a periodic latency summary (§4.J "Reports issued every
// configured interval").
type Report struct {
	Stream         string
	Mean, Min, Max float64
	RMS            float64
	Samples        int
	Gaps           int
}

// Notifier receives outage/corrupted/reconnect transitions so the
// caller can drive an operator-defined external notification (§4.J
// "each transition may launch an operator-defined external
// notification").
type Notifier func(stream string, t Transition)

const (
	defaultAdviseFail = 2 * time.Minute // §4.J adviseFail minute threshold
	defaultAdviseReco = 2 * time.Minute // adviseReco minute threshold
)

// metrics are the prometheus/client_golang gauges/counters this monitor
// publishes (domain-stack wiring: the spec's latency-monitor component
// is the natural home for the corpus's prometheus dependency).
var (
	metricMeanDelay = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bncgo",
		Subsystem: "latency",
		Name:      "mean_delay_seconds",
		Help:      "Sliding-window mean of currentGPSsecond - obs.gpssec per stream.",
	}, []string{"stream"})
	metricGapTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bncgo",
		Subsystem: "latency",
		Name:      "gaps_total",
		Help:      "Count of observations whose delta exceeded 1.5x the mean delay.",
	}, []string{"stream"})
	metricOutage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bncgo",
		Subsystem: "latency",
		Name:      "outage",
		Help:      "1 while a stream is in an outage or corrupted-data state, else 0.",
	}, []string{"stream"})
)

// MustRegister installs this package's metrics into reg (typically
// prometheus.DefaultRegisterer, or a dedicated registry wired to
// internal/sink/prom's HTTP handler).
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(metricMeanDelay, metricGapTotal, metricOutage)
}

// state distinguishes the monitor's outage/corrupted bookkeeping.
type state int

const (
	stateHealthy state = iota
	stateOutage
	stateCorrupted
)

// Monitor tracks sliding-window delay statistics and outage state for
// one input stream (§4.J). Not goroutine-safe; the spec's concurrency
// model (§5) runs one decoder task per stream, so each Monitor is owned
// by exactly one task.
type Monitor struct {
	Stream string
	log    *logrus.Logger

	window     []float64
	windowSize int

	gapCount int
	state    state

	lastObsTime   time.Time
	failSince     time.Time
	recoSince     time.Time
	adviseFail    time.Duration
	adviseReco    time.Duration
}

// NewMonitor constructs a latency monitor for stream, with the default
// 64-sample sliding window and §4.J's default adviseFail/adviseReco
// thresholds.
func NewMonitor(stream string, log *logrus.Logger) *Monitor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Monitor{
		Stream:     stream,
		log:        log,
		windowSize: 64,
		adviseFail: defaultAdviseFail,
		adviseReco: defaultAdviseReco,
	}
}

// Observe records one observation's delay (currentGPSsecond - obs.gpssec,
// §4.J) at wall-clock time now, updates the sliding window and gap
// counter, and returns any outage-state-machine transition this
// observation triggered.
func (m *Monitor) Observe(delay float64, now time.Time) Transition {
	mean := m.meanLocked()
	if mean > 0 && len(m.window) > 0 {
		prevDelay := m.window[len(m.window)-1]
		if delay-prevDelay > 1.5*mean {
			m.gapCount++
			metricGapTotal.WithLabelValues(m.Stream).Inc()
		}
	}

	m.window = append(m.window, delay)
	if len(m.window) > m.windowSize {
		m.window = m.window[len(m.window)-m.windowSize:]
	}
	metricMeanDelay.WithLabelValues(m.Stream).Set(m.meanLocked())

	m.lastObsTime = now
	if m.state != stateHealthy {
		m.recoSince = time.Time{}
		if m.state == stateOutage || m.state == stateCorrupted {
			m.state = stateHealthy
			metricOutage.WithLabelValues(m.Stream).Set(0)
			return EndOutage
		}
	}
	return NoTransition
}

// Tick is called periodically (independent of Observe) to detect a
// stalled stream: if now - lastObsTime exceeds adviseFail, transition
// to outage; once in outage, if it additionally exceeds 2x adviseFail,
// reclassify as corrupted (§4.J "begin outage"/"begin corrupted").
func (m *Monitor) Tick(now time.Time) Transition {
	if m.lastObsTime.IsZero() {
		return NoTransition
	}
	silent := now.Sub(m.lastObsTime)
	switch m.state {
	case stateHealthy:
		if silent > m.adviseFail {
			m.state = stateOutage
			metricOutage.WithLabelValues(m.Stream).Set(1)
			m.log.WithField("stream", m.Stream).Warn("latency: begin outage")
			return BeginOutage
		}
	case stateOutage:
		if silent > 2*m.adviseFail {
			m.state = stateCorrupted
			m.log.WithField("stream", m.Stream).Error("latency: begin corrupted")
			return BeginCorrupted
		}
	case stateCorrupted:
		// Stays corrupted until a fresh Observe arrives and resets it
		// via EndOutage's healthy-state transition above; a sustained
		// corrupted stream surfaces via Report, not further Tick edges.
	}
	return NoTransition
}

func (m *Monitor) meanLocked() float64 {
	if len(m.window) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range m.window {
		sum += v
	}
	return sum / float64(len(m.window))
}

// Snapshot computes the current sliding-window mean/min/max/rms and gap
// count (§4.J "Reports issued every configured interval").
func (m *Monitor) Snapshot() Report {
	r := Report{Stream: m.Stream, Samples: len(m.window), Gaps: m.gapCount}
	if len(m.window) == 0 {
		return r
	}
	sum, sumSq := 0.0, 0.0
	r.Min, r.Max = m.window[0], m.window[0]
	for _, v := range m.window {
		sum += v
		sumSq += v * v
		if v < r.Min {
			r.Min = v
		}
		if v > r.Max {
			r.Max = v
		}
	}
	r.Mean = sum / float64(len(m.window))
	r.RMS = math.Sqrt(sumSq / float64(len(m.window)))
	return r
}
