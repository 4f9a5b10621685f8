package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires the dispatcher onto the Echo instance. Every path and
// method goes through it: whether a path is one of the proxy's own routes
// depends on the Host, not on the path alone.
//
// e.Any covers only echo's standard methods. The not-found route catches
// everything else (PURGE, MKCOL, ...), which echo would otherwise answer with 405.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler) {
	for _, path := range []string{"/", "/*"} {
		e.Any(path, proxy.Handle)
		e.RouteNotFound(path, proxy.Handle)
	}
}
