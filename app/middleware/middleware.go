package appMiddleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Tracing starts a server span per request, named after the matched chi route
// pattern once routing has finished.
func Tracing(serviceName string) func(next http.Handler) http.Handler {
	return otelhttp.NewMiddleware(serviceName,
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					return r.Method + " " + pattern
				}
			}
			return r.Method + " " + r.URL.Path
		}),
	)
}
