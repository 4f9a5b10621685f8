package metrics

import (
	"testing"
	"time"

	"jwt-proxy-go/internal/config"
	"jwt-proxy-go/internal/counters"
)

func TestNew_GathersMetrics(t *testing.T) {
	m := New(nil)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	// Should include at least Go runtime and process collectors.
	if len(families) == 0 {
		t.Fatal("expected non-empty metric families from Gather()")
	}

	// Verify our custom metrics exist by incrementing one and gathering again.
	m.RequestsTotal.WithLabelValues("GET", "200", "/status").Inc()
	m.Classifications.WithLabelValues(DestinationUpstream).Inc()

	families, err = m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	want := map[string]bool{
		"jwt_proxy_http_requests_total":   false,
		"jwt_proxy_classifications_total": false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected %s in gathered metrics", name)
		}
	}
}

func TestNew_ExportsCounters(t *testing.T) {
	c := counters.New(time.Now().Add(-time.Minute))
	c.IncProxied()
	c.IncProxied()
	c.IncProxied()

	m := New(c)
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var proxied, uptime float64
	for _, f := range families {
		switch f.GetName() {
		case "jwt_proxy_proxied_requests_total":
			proxied = f.GetMetric()[0].GetCounter().GetValue()
		case "jwt_proxy_uptime_seconds":
			uptime = f.GetMetric()[0].GetGauge().GetValue()
		}
	}

	if proxied != 3 {
		t.Errorf("jwt_proxy_proxied_requests_total = %v, want 3", proxied)
	}
	if uptime < 60 {
		t.Errorf("jwt_proxy_uptime_seconds = %v, want >= 60", uptime)
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"GET", "GET"},
		{"POST", "POST"},
		{"PUT", "PUT"},
		{"DELETE", "DELETE"},
		{"PATCH", "PATCH"},
		{"HEAD", "HEAD"},
		{"OPTIONS", "OPTIONS"},
		{"FOOBAR", "other"},
		{"get", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got := NormalizeMethod(tt.method)
			if got != tt.want {
				t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.method, got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	m := New(nil)
	tests := []struct {
		path string
		want string
	}{
		{"/status", "/status"},
		{"/healthz", "/healthz"},
		{"/metrics", "/metrics"},
		{"/statusbar", "other"},
		{"/post", "other"},
		{"/", "other"},
		{"/prom", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := m.NormalizePath(tt.path)
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestNewFromConfig_CustomMetricsPath(t *testing.T) {
	tests := []struct {
		name    string
		metrics config.MetricsConfig
		path    string
		want    string
	}{
		{"custom path labelled", config.MetricsConfig{Enabled: true, Path: "/prom"}, "/prom", "/prom"},
		{"custom path subtree", config.MetricsConfig{Enabled: true, Path: "/prom"}, "/prom/x", "/prom"},
		{"default path still known", config.MetricsConfig{Enabled: true, Path: "/prom"}, "/metrics", "/metrics"},
		{"disabled adds nothing", config.MetricsConfig{Enabled: false, Path: "/prom"}, "/prom", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFromConfig(&config.Config{Metrics: tt.metrics}, nil)
			if got := m.NormalizePath(tt.path); got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
