package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"

	"jwt-proxy-go/internal/config"
	"jwt-proxy-go/internal/metrics"
)

// breakers keeps one circuit breaker per upstream host. Only transport
// failures count against a host; any HTTP response, 5xx included, is relayed
// and counts as success. At most MaxHosts breakers are kept; the least
// recently used host is forgotten first and starts closed if seen again.
type breakers struct {
	mu       sync.Mutex
	byHost   *lru.Cache[string, *gobreaker.CircuitBreaker]
	settings gobreaker.Settings
}

func newBreakers(cfg config.CircuitBreakerConfig, logger *slog.Logger, m *metrics.Metrics) *breakers {
	threshold := uint32(cfg.FailureThreshold) //nolint:gosec // validated >= 1
	open := time.Duration(cfg.OpenSeconds) * time.Second

	// lru.New only fails for a non-positive size.
	size := max(cfg.MaxHosts, 1)
	byHost, _ := lru.New[string, *gobreaker.CircuitBreaker](size)

	return &breakers{
		byHost: byHost,
		settings: gobreaker.Settings{
			MaxRequests: 1,
			Timeout:     open,
			// A caller hanging up says nothing about the upstream.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					"host", name,
					"from", from.String(),
					"to", to.String(),
				)
				if m != nil {
					m.BreakerStates.WithLabelValues(from.String(), to.String()).Inc()
				}
			},
		},
	}
}

func (b *breakers) get(host string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.byHost.Get(host); ok {
		return cb
	}
	s := b.settings
	s.Name = host
	cb := gobreaker.NewCircuitBreaker(s)
	b.byHost.Add(host, cb)
	return cb
}
