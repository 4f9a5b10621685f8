package handler

import (
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/labstack/echo/v4"

	"jwt-proxy-go/internal/model"
)

// extractRequest reads the inbound request into a ProxyRequest. The body is
// read to the end; a read that fails before the final chunk is a framing error.
// The target URL is scheme + Host + path + raw query, never a fragment.
func extractRequest(c echo.Context) (*model.ProxyRequest, error) {
	req := c.Request()
	if req.Host == "" {
		return nil, model.ErrMissingHost
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, he
		}
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedBody, err)
	}

	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	target := url.URL{
		Scheme:   scheme,
		Host:     req.Host,
		Path:     req.URL.Path,
		RawPath:  req.URL.RawPath,
		RawQuery: req.URL.RawQuery,
	}

	return &model.ProxyRequest{
		Method: req.Method,
		URL:    target.String(),
		Host:   req.Host,
		Path:   req.URL.Path,
		Header: model.HeaderFromHTTP(req.Header, req.Host),
		Body:   body,
	}, nil
}
