package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrparse",
			Name:      "api_requests_total",
			Help:      "Total OCR service requests by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)

	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocrparse",
			Name:      "api_request_duration_seconds",
			Help:      "Duration of OCR service requests by endpoint",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	rateLimitRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrparse",
			Name:      "rate_limit_retries_total",
			Help:      "Retries after 429 responses by endpoint",
		},
		[]string{"endpoint"},
	)

	documentsParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrparse",
			Name:      "documents_parsed_total",
			Help:      "Documents run through the two-phase pipeline by result",
		},
		[]string{"result"},
	)

	pagesExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ocrparse",
			Name:      "pages_extracted_total",
			Help:      "Pages returned by layout parsing",
		},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(apiRequests, apiLatency, rateLimitRetries, documentsParsed, pagesExtracted)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveRequest(endpoint, result string, dur time.Duration) {
	apiRequests.WithLabelValues(endpoint, result).Inc()
	apiLatency.WithLabelValues(endpoint).Observe(dur.Seconds())
}

func IncRateLimitRetry(endpoint string) { rateLimitRetries.WithLabelValues(endpoint).Inc() }

func IncParsed(result string) { documentsParsed.WithLabelValues(result).Inc() }

func AddPagesExtracted(n int) { pagesExtracted.Add(float64(n)) }
