package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for the chat webhook.
type ChatMetrics struct {
	repliesTotal     *prometheus.CounterVec
	dispatchTotal    *prometheus.CounterVec
	generatorLatency *prometheus.HistogramVec
	callbacksTotal   *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbot",
			Subsystem: "chat",
			Name:      "replies_total",
			Help:      "Webhook replies by outcome (immediate, deferred, ack)",
		}, []string{"outcome"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbot",
			Subsystem: "chat",
			Name:      "dispatch_total",
			Help:      "Dispatched utterances by rule and status",
		}, []string{"rule", "status"}),
		generatorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketbot",
			Subsystem: "chat",
			Name:      "generator_latency_seconds",
			Help:      "Time spent producing a reply per rule",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3.5, 5, 10, 20, 30, 60},
		}, []string{"rule"}),
		callbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbot",
			Subsystem: "chat",
			Name:      "callbacks_total",
			Help:      "Outbound callback deliveries by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.repliesTotal, m.dispatchTotal, m.generatorLatency, m.callbacksTotal)
	return m
}

func (m *ChatMetrics) ObserveReply(outcome string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(outcome).Inc()
}

func (m *ChatMetrics) ObserveDispatch(rule, status string, seconds float64) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(rule, status).Inc()
	m.generatorLatency.WithLabelValues(rule).Observe(seconds)
}

func (m *ChatMetrics) ObserveCallback(status string) {
	if m == nil {
		return
	}
	m.callbacksTotal.WithLabelValues(status).Inc()
}

// ReportMetrics tracks the daily report job.
type ReportMetrics struct {
	stepsTotal *prometheus.CounterVec
	runsTotal  *prometheus.CounterVec
}

func NewReportMetrics(reg prometheus.Registerer) *ReportMetrics {
	m := &ReportMetrics{
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbot",
			Subsystem: "report",
			Name:      "step_attempts_total",
			Help:      "Daily report step attempts by step and status",
		}, []string{"step", "status"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbot",
			Subsystem: "report",
			Name:      "runs_total",
			Help:      "Daily report runs by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.stepsTotal, m.runsTotal)
	return m
}

func (m *ReportMetrics) ObserveStep(step, status string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(step, status).Inc()
}

func (m *ReportMetrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
}
