package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ChecksPerformed counts compliance checks by outcome (compliant/non_compliant)
var ChecksPerformed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "veridex_compliance_checks_total",
		Help: "Total number of compliance checks performed",
	},
	[]string{"outcome"},
)

// CheckFailures counts failed requirement checks by severity
var CheckFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "veridex_check_failures_total",
		Help: "Total number of failed requirement checks by severity",
	},
	[]string{"severity"},
)

// CheckLatency records latency distribution for full compliance checks
var CheckLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "veridex_compliance_check_latency_seconds",
		Help:    "Latency in seconds to run a full compliance check",
		Buckets: prometheus.DefBuckets,
	},
)

// Identity verification fallback metrics
var (
	ProviderAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veridex_identity_provider_attempts_total",
			Help: "Identity provider verification attempts by provider and result",
		},
		[]string{"provider", "result"},
	)

	FallbackDepth = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "veridex_identity_fallback_depth",
			Help:    "Number of providers tried before a verification resolved",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)
)

// Cache metrics for the compliance result cache
var CacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "veridex_result_cache_lookups_total",
		Help: "Compliance result cache lookups by result (hit/miss/stale)",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(ChecksPerformed, CheckFailures, CheckLatency)
	prometheus.MustRegister(ProviderAttempts, FallbackDepth, CacheLookups)
}
