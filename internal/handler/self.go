package handler

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jwt-proxy-go/internal/config"
	"jwt-proxy-go/internal/counters"
	"jwt-proxy-go/internal/metrics"
	"jwt-proxy-go/internal/middleware"
)

// Paths answered by the proxy when a request is addressed to itself.
const (
	StatusPath  = "/status"
	HealthzPath = "/healthz"
)

const htmlContentType = "text/html; charset=utf-8"

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head><title>Proxy status</title></head>
<body>
<h1>Proxy status</h1>
<p>Seconds since startup: {{printf "%.6f" .Uptime.Seconds}}</p>
<p>Proxied requests count: {{.ProxiedRequests}}</p>
<p>Version: {{.Version}}</p>
</body>
</html>
`))

// Version is a string type for dependency injection of the build version.
type Version string

// SelfHandler serves the routes the proxy answers for itself.
type SelfHandler struct {
	counters    *counters.Counters
	version     Version
	metricsPath string
	metrics     http.Handler
	now         func() time.Time
}

// NewSelfHandler creates a SelfHandler. The metrics endpoint is exposed only
// when enabled in config and m is non-nil.
func NewSelfHandler(cfg *config.Config, v Version, c *counters.Counters, m *metrics.Metrics) *SelfHandler {
	h := &SelfHandler{
		counters: c,
		version:  v,
		now:      time.Now,
	}
	if cfg.Metrics.Enabled && m != nil {
		h.metricsPath = cfg.Metrics.Path
		h.metrics = promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
	}
	return h
}

// Serve routes a self-addressed request by path. Unknown paths get 404.
func (h *SelfHandler) Serve(c echo.Context) error {
	middleware.SetSecurityHeaders(c.Response().Header())

	switch path := c.Request().URL.Path; {
	case path == StatusPath:
		return h.Status(c)
	case path == HealthzPath:
		return h.Healthz(c)
	case h.metrics != nil && path == h.metricsPath:
		return echo.WrapHandler(h.metrics)(c)
	default:
		return h.NotFound(c)
	}
}

// Status renders uptime and the proxied request count. It reads the counters
// without modifying them.
func (h *SelfHandler) Status(c echo.Context) error {
	snap := h.counters.Snapshot(h.now())

	var buf bytes.Buffer
	err := statusPage.Execute(&buf, struct {
		counters.Snapshot
		Version Version
	}{snap, h.version})
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, htmlContentType, buf.Bytes())
}

// Healthz returns a simple OK response for liveness probes.
func (h *SelfHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": string(h.version),
	})
}

// NotFound answers any other self-addressed path.
func (h *SelfHandler) NotFound(c echo.Context) error {
	return c.String(http.StatusNotFound, http.StatusText(http.StatusNotFound))
}
