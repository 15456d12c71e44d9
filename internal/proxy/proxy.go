// Package proxy provides a local authenticating forward proxy for the XCor
// Platform API. Clients send unauthenticated requests to it; the proxy
// attaches a bearer token obtained from the credential manager and forwards
// the request to the platform.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/nr1etech/xcorplatform-client/internal/observability/middleware"
)

// Proxy represents the forward proxy server
type Proxy struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

// New creates a forward proxy for the platform API at baseURL, authenticating
// outbound requests with tokens from ts.
func New(ts oauth2.TokenSource, baseURL string) (*Proxy, error) {
	upstream, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upstream.Host == "" {
		return nil, fmt.Errorf("upstream URL %q has no host", baseURL)
	}

	// oauth2.Transport resolves a token per request; the token source's
	// cache makes that a lock-and-check, not a network call.
	transport := &oauth2.Transport{Source: ts}

	reverseProxyHandler := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = upstream.Scheme
			pr.Out.URL.Host = upstream.Host
			pr.Out.URL.Path, pr.Out.URL.RawPath = joinURLPath(upstream, pr.In.URL)
			pr.Out.Host = upstream.Host
			sanitizeOutbound(pr)
		},
		Transport:    transport,
		ErrorHandler: upstreamErrorHandler,
	}

	logger := slog.Default()

	mux := http.NewServeMux()
	mux.Handle("/", applyMiddlewares(reverseProxyHandler,
		middleware.Logging(logger),
		Recovery,
	))

	return &Proxy{mux: mux}, nil
}

// ServeHTTP implements http.Handler interface
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (p *Proxy) Start(ctx context.Context, address string) (<-chan error, error) {
	// Startup phase: Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	p.server = &http.Server{
		Handler:      p,
		ReadTimeout:  30 * time.Second, // Inbound: Read entire client request (DoS protection against slow clients)
		WriteTimeout: 2 * time.Minute,  // Inbound: Write entire response to client, bounded
		IdleTimeout:  90 * time.Second, // Inbound: Keep-alive wait for next request from client
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := p.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	if err := p.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = p.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}

// joinURLPath joins the upstream base path with the inbound request path
// without doubling slashes. The escaped form is carried alongside so
// percent-encoded segments (e.g. %2F) keep their meaning through the proxy.
func joinURLPath(base, in *url.URL) (path, rawPath string) {
	basePath := strings.TrimSuffix(base.Path, "/")
	if base.RawPath == "" && in.RawPath == "" {
		return basePath + in.Path, ""
	}
	baseRaw := strings.TrimSuffix(base.EscapedPath(), "/")
	return basePath + in.Path, baseRaw + in.EscapedPath()
}
