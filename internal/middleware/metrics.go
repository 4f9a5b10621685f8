package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"jwt-proxy-go/internal/metrics"
)

// MetricsMiddleware counts and times every inbound request, self-served or
// forwarded. Paths are labelled as one of the proxy's own routes or "other";
// the dispatcher's destination choice feeds jwt_proxy_classifications_total.
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			labels := []string{
				metrics.NormalizeMethod(c.Request().Method),
				strconv.Itoa(statusOf(c, err)),
				m.NormalizePath(c.Request().URL.Path),
			}
			m.RequestsTotal.WithLabelValues(labels...).Inc()
			m.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

			if destination, ok := c.Get(DestinationKey).(string); ok {
				m.Classifications.WithLabelValues(destination).Inc()
			}
			return err
		}
	}
}

// statusOf reports the status the client will see. An *echo.HTTPError (body
// limit, rate limit) is only written later by echo's error handler.
func statusOf(c echo.Context, err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return c.Response().Status
}
