package model

import (
	"net/http"
	"slices"
	"testing"
)

func TestHeader_CaseInsensitiveLookup(t *testing.T) {
	h := Header{
		{Name: "Content-Type", Value: "application/json"},
		{Name: "username", Value: "alice"},
	}

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"exact", "Content-Type", "application/json"},
		{"lower", "content-type", "application/json"},
		{"upper", "USERNAME", "alice"},
		{"missing", "X-Missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Get(tt.key); got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestHeader_DuplicatesPreserved(t *testing.T) {
	var h Header
	h.Add("X-Trace", "a")
	h.Add("Accept", "*/*")
	h.Add("x-trace", "b")

	got := h.Values("X-TRACE")
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Values() = %v, want [a b]", got)
	}
	if !h.Has("accept") {
		t.Error("Has(accept) = false, want true")
	}
	if h.Has("Cookie") {
		t.Error("Has(Cookie) = true, want false")
	}
}

func TestHeader_CloneIsIndependent(t *testing.T) {
	orig := Header{{Name: "A", Value: "1"}}
	clone := orig.Clone()
	clone.Add("B", "2")
	clone[0].Value = "changed"

	if len(orig) != 1 {
		t.Fatalf("len(orig) = %d, want 1", len(orig))
	}
	if orig[0].Value != "1" {
		t.Errorf("orig[0].Value = %q, want %q", orig[0].Value, "1")
	}
}

func TestHeader_HTTP(t *testing.T) {
	h := Header{
		{Name: "x-my-jwt", Value: "first"},
		{Name: "Accept", Value: "text/plain"},
		{Name: "X-My-Jwt", Value: "second"},
	}

	out := h.HTTP()
	if got := out.Values("X-My-Jwt"); !slices.Equal(got, []string{"first", "second"}) {
		t.Errorf("X-My-Jwt values = %v, want [first second]", got)
	}
	if got := out.Get("Accept"); got != "text/plain" {
		t.Errorf("Accept = %q, want %q", got, "text/plain")
	}
}

func TestHeaderFromHTTP(t *testing.T) {
	src := http.Header{
		"Zeta":  {"z"},
		"Alpha": {"a1", "a2"},
	}

	h := HeaderFromHTTP(src, "example.com")
	want := Header{
		{Name: "Host", Value: "example.com"},
		{Name: "Alpha", Value: "a1"},
		{Name: "Alpha", Value: "a2"},
		{Name: "Zeta", Value: "z"},
	}
	if !slices.Equal(h, want) {
		t.Errorf("HeaderFromHTTP() = %v, want %v", h, want)
	}
}

func TestHeaderFromHTTP_NoHost(t *testing.T) {
	h := HeaderFromHTTP(http.Header{"Date": {"now"}}, "")
	if h.Has("Host") {
		t.Error("Host field should be absent when host is empty")
	}
	if len(h) != 1 {
		t.Errorf("len = %d, want 1", len(h))
	}
}
