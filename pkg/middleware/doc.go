// Package middleware provides HTTP middleware for the villain server.
//
// Both middlewares wrap a chi router and label by route pattern, so
// WebSocket upgrades pass through them unchanged.
//
// # OpenTelemetry Middleware
//
// OpenTelemetry starts a server span per request and continues the
// caller's trace when the request carries one:
//
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/metrics"
//	    }),
//	))
//
// # Prometheus Metrics
//
// Prometheus counts requests by route, method and status class:
//
//	reg := prometheus.NewRegistry()
//	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
//
// Each call registers a fresh set of collectors, so give every server its
// own registry.
package middleware
