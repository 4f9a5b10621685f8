// Package service implements the core proxy forwarding logic.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"jwt-proxy-go/internal/assertion"
	"jwt-proxy-go/internal/config"
	"jwt-proxy-go/internal/counters"
	"jwt-proxy-go/internal/metrics"
	"jwt-proxy-go/internal/model"
)

// UsernameHeader names the inbound header that selects the asserted user.
const UsernameHeader = "username"

// Issuer mints signed assertions.
type Issuer interface {
	Issue(user string, date time.Time) ([]byte, error)
}

// Upstream performs the upstream exchange.
type Upstream interface {
	Do(ctx context.Context, method, url string, header http.Header, body []byte) (*model.ProxyResponse, error)
}

// ProxyService signs and forwards requests to the upstream origin.
type ProxyService struct {
	upstream    Upstream
	issuer      Issuer
	counters    *counters.Counters
	metrics     *metrics.Metrics
	defaultUser string
	now         func() time.Time
	logger      *slog.Logger
}

// NewProxyService creates a ProxyService. The metrics parameter may be nil.
func NewProxyService(up Upstream, iss Issuer, c *counters.Counters, m *metrics.Metrics, cfg *config.Config, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		upstream:    up,
		issuer:      iss,
		counters:    c,
		metrics:     m,
		defaultUser: cfg.JWT.DefaultUsername,
		now:         time.Now,
		logger:      logger.With("component", "proxy_service"),
	}
}

// Forward attaches a fresh assertion to pr and relays it upstream.
//
// The outbound header set is a copy of pr.Header with exactly one
// X-My-Jwt field appended; pr.Header itself is not modified. The proxied
// request counter is incremented only once the upstream has answered.
func (s *ProxyService) Forward(ctx context.Context, pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	header, err := s.OutboundHeader(pr.Header)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"url", pr.URL,
	)

	resp, err := s.upstream.Do(ctx, pr.Method, pr.URL, header.HTTP(), pr.Body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	s.counters.IncProxied()
	return resp, nil
}

// OutboundHeader returns in plus the signed assertion header. The asserted
// user is the inbound username header, or the configured default.
func (s *ProxyService) OutboundHeader(in model.Header) (model.Header, error) {
	user := in.Get(UsernameHeader)
	if user == "" {
		user = s.defaultUser
	}

	token, err := s.issuer.Issue(user, s.now())
	if err != nil {
		if s.metrics != nil {
			s.metrics.AssertionErrors.Inc()
		}
		return nil, fmt.Errorf("issue assertion: %w", err)
	}
	if s.metrics != nil {
		s.metrics.AssertionsIssued.Inc()
	}

	out := in.Clone()
	out.Add(assertion.HeaderName, string(token))
	return out, nil
}
