package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// Every route also answers HEAD; net/http drops the body.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, health *HealthHandler) {
	routes := []struct {
		path string
		h    echo.HandlerFunc
	}{
		{"/health", health.Health},
		{"/status", health.Status},
		{ProxyPath, proxy.Handle},
	}

	for _, r := range routes {
		e.GET(r.path, r.h)
		e.HEAD(r.path, r.h)
	}
}
