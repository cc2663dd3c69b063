package metrics

import (
	"log"
	"time"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Standard Prometheus collectors for the crisis analysis service
var (
	// crisis_analyses_total (counter): texts analysed
	AnalysesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crisis_analyses_total",
		Help: "Total number of texts analysed for crisis risk",
	})

	// crisis_severity_total{severity=none|low|medium|high|critical|emergency}
	SeverityCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisis_severity_total",
		Help: "Analyses by overall severity",
	}, []string{"severity"})

	// crisis_category_detected_total{category=suicidal-ideation|self-harm|...}
	CategoryDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisis_category_detected_total",
		Help: "Number of analyses in which a crisis category was detected",
	}, []string{"category"})

	// crisis_escalations_total{kind=escalation|emergency}
	Escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisis_escalations_total",
		Help: "Analyses requiring escalation or emergency services",
	}, []string{"kind"})

	// crisis_failsafe_total (counter): analyses that fell back to the failsafe result
	FailsafeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crisis_failsafe_total",
		Help: "Number of analyses that failed and returned the failsafe result",
	})

	// crisis_analysis_latency_seconds (histogram): engine processing time
	LatencyHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crisis_analysis_latency_seconds",
		Help:    "Crisis analysis latency in seconds",
		Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
	})

	// crisis_routing_decision_total{decision=INTERVENE|SUPPRESS|NO_ACTION}
	DecisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisis_routing_decision_total",
		Help: "Number of routing decisions made by the Cedar engine",
	}, []string{"decision"})

	// crisis_obligation_total{obligation=SURFACE_RESOURCES|ROUTE_EMERGENCY|...}
	ObligationCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisis_obligation_total",
		Help: "Number of routing obligations issued",
	}, []string{"obligation"})

	// crisis_escalation_cases_opened_total (counter): human review cases opened
	EscalationCasesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crisis_escalation_cases_opened_total",
		Help: "Human review cases opened from routing obligations",
	})

	// crisis_escalation_cases_pending (gauge): cases awaiting a responder
	EscalationCasesPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crisis_escalation_cases_pending",
		Help: "Human review cases awaiting acknowledgement",
	})

	// crisis_cache_requests_total{result=hit|miss}
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisis_cache_requests_total",
		Help: "Result cache lookups",
	}, []string{"result"})
)

// RecordAnalysis updates the analysis collectors for one result
func RecordAnalysis(r *crisis.Result, elapsed time.Duration) {
	AnalysesTotal.Inc()
	LatencyHistogram.Observe(elapsed.Seconds())
	SeverityCount.WithLabelValues(string(r.OverallSeverity)).Inc()

	if r.IsFailsafe() {
		FailsafeTotal.Inc()
	}
	for _, c := range r.Categories() {
		CategoryDetected.WithLabelValues(c).Inc()
	}
	if r.EscalationRequired {
		Escalations.WithLabelValues("escalation").Inc()
	}
	if r.EmergencyServicesRequired {
		Escalations.WithLabelValues("emergency").Inc()
	}
}

// RecordDecision increments the decision counter and one counter per obligation
func RecordDecision(decision string, obligations []string) {
	DecisionCount.WithLabelValues(decision).Inc()
	for _, ob := range obligations {
		ObligationCount.WithLabelValues(ob).Inc()
	}
}

// RecordCacheLookup counts a result cache hit or miss
func RecordCacheLookup(hit bool) {
	if hit {
		CacheRequests.WithLabelValues("hit").Inc()
		return
	}
	CacheRequests.WithLabelValues("miss").Inc()
}

// RecordEscalation counts an opened case and sets the pending gauge
func RecordEscalation(pending int) {
	EscalationCasesOpened.Inc()
	EscalationCasesPending.Set(float64(pending))
}

// Init logs that the collectors are registered (promauto registers them on import)
func Init() {
	log.Println("[metrics] Prometheus collectors initialized")
}
