// Package model defines shared types for the proxy.
package model

import (
	"errors"
)

var (
	// ErrMissingHost is returned when an inbound request carries no host.
	ErrMissingHost = errors.New("request has no host header")
	// ErrMalformedBody is returned when the inbound body framing is broken.
	ErrMalformedBody = errors.New("malformed request body")
)

// ProxyRequest is a fully extracted inbound request.
type ProxyRequest struct {
	Method string
	URL    string
	Host   string
	Path   string
	Header Header
	Body   []byte
}

// ProxyResponse is an upstream response with its body fully assembled.
type ProxyResponse struct {
	StatusCode int
	Header     Header
	Body       []byte
}
