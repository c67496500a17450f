package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// AIRequestCounter 按密钥槽位和结果统计生成调用
	AIRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_generation_requests_total",
			Help: "Total number of generation provider calls",
		},
		[]string{"slot", "outcome"},
	)

	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_generation_duration_seconds",
			Help:    "Duration of generation provider calls",
			Buckets: []float64{1, 5, 10, 30, 60, 120},
		},
		[]string{"slot"},
	)

	CredentialSwitchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_credential_switches_total",
			Help: "Number of times the active credential slot changed",
		},
		[]string{"to_slot"},
	)

	CredentialInvalidGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ai_credential_invalid",
			Help: "1 when the credential slot has been marked invalid",
		},
		[]string{"slot"},
	)

	SessionTransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_session_transitions_total",
			Help: "Committed exam session state transitions",
		},
		[]string{"to_status"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(AIRequestCounter)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(CredentialSwitchCounter)
	prometheus.MustRegister(CredentialInvalidGauge)
	prometheus.MustRegister(SessionTransitionCounter)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
