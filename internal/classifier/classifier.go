// Package classifier decides whether a request is addressed to the proxy itself
// or to the upstream origin.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"jwt-proxy-go/internal/config"
)

// DefaultPort is assumed when the request host carries no port.
const DefaultPort = "80"

// Classifier reports whether requestHost refers to this proxy. local is the
// address of the connection the request arrived on and may be nil.
type Classifier interface {
	IsSelf(ctx context.Context, requestHost string, local net.Addr) bool
}

// Resolver is the subset of *net.Resolver used for lookups.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupPort(ctx context.Context, network, service string) (int, error)
}

// DNSClassifier resolves the request host on every call and compares the
// result against the connection's local address. Results are not cached.
type DNSClassifier struct {
	resolver Resolver
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDNSClassifier creates a DNSClassifier. A zero timeout leaves lookups
// bounded only by ctx.
func NewDNSClassifier(r Resolver, timeout time.Duration, logger *slog.Logger) *DNSClassifier {
	return &DNSClassifier{
		resolver: r,
		timeout:  timeout,
		logger:   logger.With("component", "dns_classifier"),
	}
}

// IsSelf resolves requestHost and reports whether local is among the results.
// A host that cannot be resolved is classified as self.
func (d *DNSClassifier) IsSelf(ctx context.Context, requestHost string, local net.Addr) bool {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	host, port := SplitHostPort(requestHost)

	portNum, err := d.resolver.LookupPort(ctx, "tcp", port)
	if err != nil {
		d.logger.Debug("port lookup failed; treating as self", "host", requestHost, "err", err)
		return true
	}
	addrs, err := d.resolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		d.logger.Debug("host lookup failed; treating as self", "host", requestHost, "err", err)
		return true
	}

	la, ok := local.(*net.TCPAddr)
	if !ok || la == nil {
		return false
	}
	if la.Port != portNum {
		return false
	}
	for _, a := range addrs {
		if a.IP.Equal(la.IP) {
			return true
		}
	}
	return false
}

// StaticClassifier matches the request host against a fixed list without DNS.
type StaticClassifier struct {
	self map[string]bool
}

// NewStaticClassifier creates a StaticClassifier. Entries without a port get DefaultPort.
func NewStaticClassifier(hosts []string) *StaticClassifier {
	s := &StaticClassifier{self: make(map[string]bool, len(hosts))}
	for _, h := range hosts {
		s.self[normalize(h)] = true
	}
	return s
}

// IsSelf reports whether requestHost is one of the configured hosts. local is ignored.
func (s *StaticClassifier) IsSelf(_ context.Context, requestHost string, _ net.Addr) bool {
	return s.self[normalize(requestHost)]
}

func normalize(hostport string) string {
	host, port := SplitHostPort(hostport)
	return net.JoinHostPort(strings.ToLower(host), port)
}

// SplitHostPort splits a Host header value into hostname and port, defaulting
// the port to DefaultPort. IPv6 literals may be bracketed with or without a port.
func SplitHostPort(hostport string) (host, port string) {
	if h, p, err := net.SplitHostPort(hostport); err == nil {
		if p == "" {
			p = DefaultPort
		}
		return h, p
	}
	return strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]"), DefaultPort
}

// New builds the classifier selected by [routing] classifier.
func New(cfg *config.Config, logger *slog.Logger) (Classifier, error) {
	switch cfg.Routing.Classifier {
	case "dns", "":
		timeout := time.Duration(cfg.Routing.ResolveTimeoutSeconds) * time.Second
		return NewDNSClassifier(net.DefaultResolver, timeout, logger), nil
	case "static":
		return NewStaticClassifier(cfg.Routing.SelfHosts), nil
	default:
		return nil, fmt.Errorf("unknown classifier %q", cfg.Routing.Classifier)
	}
}

