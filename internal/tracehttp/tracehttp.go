// Package tracehttp builds outbound HTTP clients that record a client span
// for every request, so model and webhook calls nest under the span of the
// ticket that caused them.
package tracehttp

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewClient returns an *http.Client whose transport is wrapped with otelhttp.
// A zero timeout leaves the deadline to the request context.
func NewClient(timeout time.Duration, opts ...otelhttp.Option) *http.Client {
	opts = append([]otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Host
		}),
	}, opts...)
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
	}
}
