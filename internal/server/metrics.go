package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yolodet_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yolodet_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	detectRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yolodet_detect_requests_total",
			Help: "Total number of detection requests",
		},
		[]string{"source", "status"}, // source: http, websocket
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yolodet_rate_limited_total",
			Help: "Total number of detection requests rejected by the rate limiter",
		},
		[]string{"source"},
	)

	detectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yolodet_detect_duration_seconds",
			Help:    "End-to-end detection duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	detectionsPerImage = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yolodet_detections_per_image",
			Help:    "Number of detections returned per image",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"source"},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yolodet_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yolodet_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yolodet_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // sent, received
	)
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// observeDetection records the outcome of one detection request.
func observeDetection(source string, seconds float64, detections int, err error) {
	if err != nil {
		detectRequestsTotal.WithLabelValues(source, "error").Inc()
		return
	}
	detectRequestsTotal.WithLabelValues(source, "success").Inc()
	detectDuration.WithLabelValues(source).Observe(seconds)
	detectionsPerImage.WithLabelValues(source).Observe(float64(detections))
}
