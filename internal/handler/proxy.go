package handler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"jwt-proxy-go/internal/assertion"
	"jwt-proxy-go/internal/classifier"
	"jwt-proxy-go/internal/client"
	"jwt-proxy-go/internal/metrics"
	"jwt-proxy-go/internal/middleware"
	"jwt-proxy-go/internal/model"
	"jwt-proxy-go/internal/service"
)

// ProxyHandler dispatches every inbound request either to the proxy's own
// routes or, signed, to the upstream origin named by the request's Host.
type ProxyHandler struct {
	service    *service.ProxyService
	classifier classifier.Classifier
	self       *SelfHandler
	logger     *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, cl classifier.Classifier, self *SelfHandler, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service:    svc,
		classifier: cl,
		self:       self,
		logger:     logger.With("component", "proxy_handler"),
	}
}

// Handle extracts the request, classifies its destination and either serves
// it locally or forwards it upstream. Every failure ends in a response.
func (h *ProxyHandler) Handle(c echo.Context) error {
	pr, err := extractRequest(c)
	if err != nil {
		return h.mapError(c, err)
	}

	ctx := c.Request().Context()
	local, _ := ctx.Value(http.LocalAddrContextKey).(net.Addr)

	if h.classifier.IsSelf(ctx, pr.Host, local) {
		c.Set(middleware.DestinationKey, metrics.DestinationSelf)
		return h.self.Serve(c)
	}
	c.Set(middleware.DestinationKey, metrics.DestinationUpstream)

	resp, err := h.service.Forward(ctx, pr)
	if err != nil {
		return h.mapError(c, err)
	}

	h.writeResponse(c, resp)
	return nil
}

// writeResponse relays status, headers and body exactly as received upstream.
func (h *ProxyHandler) writeResponse(c echo.Context, resp *model.ProxyResponse) {
	out := c.Response().Header()
	for _, f := range resp.Header {
		out.Add(f.Name, f.Value)
	}
	c.Response().WriteHeader(resp.StatusCode)

	// The status line is already sent, so a failed write can only be logged.
	if _, err := c.Response().Write(resp.Body); err != nil {
		h.logger.Error("writing response body",
			"err", err,
			"path", c.Request().URL.Path,
		)
	}
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	h.logger.Error("proxy error",
		"err", err,
		"host", c.Request().Host,
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, model.ErrMissingHost) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "missing host header",
		})
	}

	if errors.Is(err, model.ErrMalformedBody) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "malformed request body",
		})
	}

	if errors.Is(err, assertion.ErrSigning) {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "could not sign request assertion",
		})
	}

	if errors.Is(err, client.ErrCircuitOpen) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "upstream temporarily unavailable",
		})
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": "upstream request timed out",
		})
	}

	if errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "client disconnected",
		})
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": "upstream request timed out",
		})
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "upstream host unreachable",
		})
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "upstream connection failed",
		})
	}

	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "upstream request failed",
	})
}
