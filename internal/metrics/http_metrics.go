package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SessionEvents counts session lifecycle transitions: created, expired, revoked.
	SessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_session_events_total",
			Help: "Session lifecycle events",
		},
		[]string{"event"},
	)

	// ViewOnlyBlocked counts writes rejected by the subscription gate.
	ViewOnlyBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_view_only_blocked_total",
			Help: "Requests rejected because the shop is view-only or has no subscription",
		},
		[]string{"reason"},
	)

	// AdminVerifications counts step-up attempts by result.
	AdminVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_admin_verifications_total",
			Help: "Admin step-up password attempts",
		},
		[]string{"result"},
	)

	// RateLimited counts requests refused by a token bucket.
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_rate_limited_total",
			Help: "Requests rejected by the Redis token bucket",
		},
		[]string{"bucket"},
	)

	// BackgroundFailures counts detached tasks that returned an error.
	BackgroundFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_background_failures_total",
			Help: "Failed fire-and-forget tasks",
		},
		[]string{"task"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDurationHistogram,
		SessionEvents,
		ViewOnlyBlocked,
		AdminVerifications,
		RateLimited,
		BackgroundFailures,
	)
}

// Middleware records request count and latency per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			RequestCounter.WithLabelValues(method, path, strconv.Itoa(c.Response().Status)).Inc()
			RequestDurationHistogram.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
