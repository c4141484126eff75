package triage

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	TicketsTotal     *prometheus.CounterVec
	TicketDuration   *prometheus.HistogramVec
	TicketTokensIn   prometheus.Histogram
	TicketTokensOut  prometheus.Histogram
	LabelsTotal      *prometheus.CounterVec
	LLMCallsTotal    *prometheus.CounterVec
	LLMTokensIn      *prometheus.CounterVec
	LLMTokensOut     *prometheus.CounterVec
	LLMDuration      *prometheus.HistogramVec
	RunTickets       *prometheus.GaugeVec
	RunDuration      prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_triage_tickets_total",
			Help: "Total tickets triaged by final status.",
		}, []string{"status", "backend"}),
		TicketDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticket_triage_ticket_duration_seconds",
			Help:    "Duration of a single ticket triage in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}, []string{"status", "backend"}),
		TicketTokensIn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticket_triage_ticket_tokens_input",
			Help:    "Input tokens consumed per ticket.",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50 .. ~25600
		}),
		TicketTokensOut: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticket_triage_ticket_tokens_output",
			Help:    "Output tokens produced per ticket.",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50 .. ~25600
		}),
		LabelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_triage_labels_total",
			Help: "Completed triages by parsed urgency and category.",
		}, []string{"urgency", "category"}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_triage_llm_calls_total",
			Help: "Total LLM provider calls by outcome.",
		}, []string{"backend", "outcome"}),
		LLMTokensIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_triage_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}, []string{"backend"}),
		LLMTokensOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_triage_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}, []string{"backend"}),
		LLMDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticket_triage_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}, []string{"backend"}),
		RunTickets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ticket_triage_run_tickets",
			Help: "Tickets in the last run by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ticket_triage_run_duration_seconds",
			Help: "Wall time of the last run in seconds.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ticket_triage_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}

	reg.MustRegister(
		m.TicketsTotal,
		m.TicketDuration,
		m.TicketTokensIn,
		m.TicketTokensOut,
		m.LabelsTotal,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
		m.RunTickets,
		m.RunDuration,
		m.LastRunTimestamp,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnLLMCall: func(backend string, inputTokens, outputTokens int, duration float64, err error) {
			outcome := "success"
			if err != nil {
				outcome = "error"
			}
			m.LLMCallsTotal.WithLabelValues(backend, outcome).Inc()
			m.LLMTokensIn.WithLabelValues(backend).Add(float64(inputTokens))
			m.LLMTokensOut.WithLabelValues(backend).Add(float64(outputTokens))
			m.LLMDuration.WithLabelValues(backend).Observe(duration)
		},
		OnComplete: func(e *CompleteEvent) {
			m.TicketsTotal.WithLabelValues(string(e.Status), e.Backend).Inc()
			m.TicketDuration.WithLabelValues(string(e.Status), e.Backend).Observe(e.Duration)
			m.TicketTokensIn.Observe(float64(e.TokensIn))
			m.TicketTokensOut.Observe(float64(e.TokensOut))
			if e.Status == StatusComplete {
				m.LabelsTotal.WithLabelValues(labelValue(e.Urgency, urgencies), labelValue(e.Category, categories)).Inc()
			}
		},
	}
}

// ObserveRun records the outcome of a finished run.
func (m *Metrics) ObserveRun(s *Summary) {
	m.RunTickets.WithLabelValues("processed").Set(float64(s.Processed))
	m.RunTickets.WithLabelValues("failed").Set(float64(s.Failed))
	m.RunTickets.WithLabelValues("skipped").Set(float64(s.Skipped))
	m.RunDuration.Set(s.Duration)
	m.LastRunTimestamp.SetToCurrentTime()
}

// labelValue bounds label cardinality to the known terms plus "other".
func labelValue(v string, known []string) string {
	for _, k := range known {
		if v == k {
			return strings.ToLower(k)
		}
	}
	if v == "" {
		return "none"
	}
	return "other"
}
