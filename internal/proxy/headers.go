package proxy

import (
	"net/http"
	"net/http/httputil"

	"github.com/google/uuid"
)

// allowedHeaders defines the HTTP headers permitted to pass through to the
// platform API. Authorization is deliberately absent: the proxy's entire job
// is to attach its own, and a client-supplied credential must never reach
// the platform.
var allowedHeaders = map[string]bool{
	"Content-Type":    true,
	"Content-Length":  true,
	"Accept":          true,
	"Accept-Encoding": true,

	// W3C Trace Context for distributed tracing correlation.
	// Traceparent and Tracestate enable end-to-end trace propagation through the proxy.
	"Traceparent": true,
	"Tracestate":  true,
}

// sanitizeOutbound replaces the outbound header set with the allowlisted
// subset of the inbound headers and tags the request for upstream
// correlation.
func sanitizeOutbound(pr *httputil.ProxyRequest) {
	headers := make(http.Header, len(allowedHeaders)+1)
	for name, values := range pr.In.Header {
		if allowedHeaders[http.CanonicalHeaderKey(name)] {
			headers[http.CanonicalHeaderKey(name)] = values
		}
	}
	headers.Set("X-Request-Id", uuid.NewString())
	pr.Out.Header = headers
}
