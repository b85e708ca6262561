package metrics

import "github.com/prometheus/client_golang/prometheus"

// AvailabilityMetrics exposes counters/histograms for slot resolution,
// reservation validation and booking commits.
type AvailabilityMetrics struct {
	resolutionsTotal *prometheus.CounterVec
	slotsRejected    *prometheus.CounterVec
	validationsTotal *prometheus.CounterVec
	commitsTotal     *prometheus.CounterVec
	sourceLatency    *prometheus.HistogramVec
}

func NewAvailabilityMetrics(reg prometheus.Registerer) *AvailabilityMetrics {
	m := &AvailabilityMetrics{
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medspa",
			Subsystem: "availability",
			Name:      "resolutions_total",
			Help:      "Total availability resolutions by kind and outcome",
		}, []string{"kind", "outcome"}),
		slotsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medspa",
			Subsystem: "availability",
			Name:      "slots_rejected_total",
			Help:      "Candidate slots rejected, by rule",
		}, []string{"reason"}),
		validationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medspa",
			Subsystem: "availability",
			Name:      "validations_total",
			Help:      "Reservation validations by outcome",
		}, []string{"outcome"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medspa",
			Subsystem: "availability",
			Name:      "commits_total",
			Help:      "Booking commit attempts by outcome",
		}, []string{"outcome"}),
		sourceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medspa",
			Subsystem: "availability",
			Name:      "source_latency_seconds",
			Help:      "Latency of collaborator calls (vacancy, history, resources)",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.resolutionsTotal, m.slotsRejected, m.validationsTotal, m.commitsTotal, m.sourceLatency)
	return m
}

func (m *AvailabilityMetrics) ObserveResolution(kind, outcome string) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *AvailabilityMetrics) ObserveRejections(reason string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.slotsRejected.WithLabelValues(reason).Add(float64(count))
}

func (m *AvailabilityMetrics) ObserveValidation(valid bool) {
	if m == nil {
		return
	}
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	m.validationsTotal.WithLabelValues(outcome).Inc()
}

func (m *AvailabilityMetrics) ObserveCommit(outcome string) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
}

func (m *AvailabilityMetrics) ObserveSourceLatency(source string, seconds float64) {
	if m == nil {
		return
	}
	m.sourceLatency.WithLabelValues(source).Observe(seconds)
}
