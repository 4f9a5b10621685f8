package model

import (
	"net/http"
	"slices"
	"strings"
)

// HeaderField is a single header line as received.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered header multi-map. Names compare case-insensitively,
// duplicates are kept, and insertion order is preserved.
type Header []HeaderField

// Get returns the first value for name, or "" if absent.
func (h Header) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value for name in order.
func (h Header) Values(name string) []string {
	var vals []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			vals = append(vals, f.Value)
		}
	}
	return vals
}

// Has reports whether at least one field named name is present.
func (h Header) Has(name string) bool {
	return slices.ContainsFunc(h, func(f HeaderField) bool {
		return strings.EqualFold(f.Name, name)
	})
}

// Add appends a field. Existing fields with the same name are left alone.
func (h *Header) Add(name, value string) {
	*h = append(*h, HeaderField{Name: name, Value: value})
}

// Clone returns an independent copy.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	return slices.Clone(h)
}

// HTTP converts to net/http form. Values of a repeated name keep their
// relative order.
func (h Header) HTTP() http.Header {
	out := make(http.Header, len(h))
	for _, f := range h {
		out.Add(f.Name, f.Value)
	}
	return out
}

// HeaderFromHTTP builds an ordered Header from a net/http header map.
// net/http does not retain wire order across names, so names are emitted in
// sorted order with per-name value order kept. A non-empty host is emitted
// first as the Host field, since net/http lifts it out of the map.
func HeaderFromHTTP(src http.Header, host string) Header {
	h := make(Header, 0, len(src)+1)
	if host != "" {
		h.Add("Host", host)
	}
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range src[k] {
			h.Add(k, v)
		}
	}
	return h
}
