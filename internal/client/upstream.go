// Package client provides the HTTP client that talks to the upstream origin.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"jwt-proxy-go/internal/config"
	"jwt-proxy-go/internal/metrics"
	"jwt-proxy-go/internal/model"
)

// chunkSize is the read size used while draining the upstream body.
const chunkSize = 32 * 1024

// UpstreamClient sends requests to the upstream origin.
type UpstreamClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	breakers   *breakers
}

// ErrCircuitOpen is returned when the upstream host's circuit breaker is
// refusing requests.
var ErrCircuitOpen = errors.New("upstream circuit open")

// NewUpstreamClient creates an UpstreamClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
//
// Redirects are returned to the caller rather than followed, and transparent
// decompression is off, so the response is relayed exactly as the origin sent it.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	uc := &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "upstream_client"),
		metrics: m,
	}
	if cfg.Upstream.CircuitBreaker.Enabled {
		uc.breakers = newBreakers(cfg.Upstream.CircuitBreaker, uc.logger, m)
	}
	return uc
}

// Do sends method/header/body to url and returns the upstream response with
// its body fully read. The context controls the whole exchange: when it is
// canceled (e.g. the client disconnects) the upstream request is abandoned.
// Nothing is retried.
func (c *UpstreamClient) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header

	c.logger.Debug("upstream request",
		"method", req.Method,
		"url", req.URL.Redacted(),
	)

	if c.breakers == nil {
		return c.exchange(req)
	}

	out, err := c.breakers.get(req.URL.Host).Execute(func() (any, error) {
		return c.exchange(req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		if c.metrics != nil {
			c.metrics.BreakerRejections.Inc()
		}
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, req.URL.Host)
	}
	if err != nil {
		return nil, err
	}
	return out.(*model.ProxyResponse), nil
}

// exchange performs one round trip and drains the response body.
func (c *UpstreamClient) exchange(req *http.Request) (*model.ProxyResponse, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	label := metrics.NormalizeMethod(req.Method)

	if err != nil {
		c.observe(label, "", start)
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := readChunks(resp.Body)
	if err != nil {
		c.observe(label, "", start)
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	c.observe(label, strconv.Itoa(resp.StatusCode), start)

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     model.HeaderFromHTTP(resp.Header, ""),
		Body:       respBody,
	}, nil
}

func (c *UpstreamClient) observe(method, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if status != "" {
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}
}

// readChunks drains r, appending each chunk in arrival order.
func readChunks(r io.Reader) ([]byte, error) {
	var out bytes.Buffer
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
