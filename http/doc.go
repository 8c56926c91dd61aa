// Package http exposes the edgeshelf gateway over HTTP.
//
// # Routes
//
//   - GET, HEAD /<name>: serve an object through the edge cache. Query
//     parameters size, quality, width, height and format describe a
//     transformation and are part of the cache key.
//   - OPTIONS /<name>: CORS allow-all answer.
//   - GET /_health: liveness probe.
//   - GET /metrics: Prometheus metrics, when enabled.
//   - /_admin/objects: list, upload (PUT raw body or POST multipart) and
//     delete objects, when an admin secret is configured.
//
// # Usage
//
//	gw := edgeshelf.NewGateway(edgeshelf.NewFetcher(store), cache, edgeshelf.GatewayConfig{})
//	handler := http.NewHandler(&http.HandlerConfig{
//	    AdminSecret:   secret, // empty disables /_admin
//	    MaxUploadSize: 50 << 20,
//	}, gw, store)
//	srv := &nethttp.Server{Addr: ":8080", Handler: handler.Router()}
//
// # Errors
//
// Errors are written as JSON {"error": ..., "message": ...}. Missing objects
// map to 404, invalid input to 400, origin faults to 500. Edge cache faults
// never reach the client; the gateway treats them as misses.
//
// # Conditional requests
//
// If-None-Match is honoured on both cache hits and misses: a matching
// validator yields 304 with the full header set and no body. Range requests
// are not supported; the whole object is always returned.
package http
