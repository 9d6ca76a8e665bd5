package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/nvidianim"
	"github.com/florianilch/nimbridge/internal/observability/middleware"
	"github.com/florianilch/nimbridge/internal/ratelimit"
)

const defaultMaxRequestBytes = 10 << 20 // 10 MiB

// ReadinessChecker reports whether the application is ready to serve traffic.
type ReadinessChecker interface {
	IsReady() bool
}

// Config carries the proxy's operational settings. Zero values fall back to
// defaults suitable for local use.
type Config struct {
	// BaseURL is the OpenAI-compatible backend root. Defaults to the hosted
	// NIM endpoint.
	BaseURL string
	// Aliases maps the model ids clients send to backend model ids. It also
	// defines the /v1/models listing.
	Aliases map[string]string
	// MaxRequestBytes bounds request bodies. Defaults to 10 MiB.
	MaxRequestBytes int64
	// RateLimit configures the client-side limiter shared by all requests.
	RateLimit ratelimit.Config
	// Retry configures the bounded retry schedule for backend calls.
	Retry nvidianim.RetryConfig
}

// Option customizes proxy construction.
type Option func(*options)

type options struct {
	transport http.RoundTripper
}

// WithTransport replaces the upstream transport beneath the authenticating
// layer. Used by tests to mock the backend.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// Proxy is the HTTP server translating Anthropic Messages API traffic onto
// an OpenAI-compatible backend.
type Proxy struct {
	handler http.Handler
	server  *http.Server
}

// Compile-time check to ensure Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

// New builds the proxy with its full middleware stack. The token source
// authenticates every backend call; health backs the readiness endpoint.
func New(cfg Config, tokenSource oauth2.TokenSource, health ReadinessChecker, opts ...Option) (*Proxy, error) {
	if tokenSource == nil {
		return nil, errors.New("token source cannot be nil")
	}
	if health == nil {
		return nil, errors.New("readiness checker cannot be nil")
	}

	o := options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	maxBytes := cfg.MaxRequestBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBytes
	}

	adapter := &nvidianim.CreateMessageAdapter{
		BaseURL: cfg.BaseURL,
		Aliases: cfg.Aliases,
		Limiter: ratelimit.New(cfg.RateLimit),
		Retry:   cfg.Retry,
	}
	transport := &oauth2.Transport{
		Source: tokenSource,
		Base:   o.transport,
	}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/messages", &CreateMessageHandler{
		Adapter:   adapter,
		Transport: transport,
	})
	mux.Handle("GET /v1/models", modelsHandler(cfg.Aliases))
	mux.Handle("GET /healthz", livenessHandler())
	mux.Handle("GET /readyz", readinessHandler(health))

	handler := applyMiddlewares(mux,
		middleware.RequestIDGeneration,
		middleware.Logging(slog.Default()),
		middleware.RequestIDPropagation,
		middleware.TraceContextExtraction,
		Recovery,
		RequestSizeLimit(maxBytes),
	)

	return &Proxy{handler: handler}, nil
}

// ServeHTTP implements http.Handler by dispatching through the middleware
// stack.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// Start binds the listener synchronously, then serves in the background.
// Runtime errors arrive on the returned channel, which closes when the
// server stops.
func (p *Proxy) Start(ctx context.Context, addr string) (<-chan error, error) {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	p.server = &http.Server{
		Handler:           p.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// WriteTimeout stays zero: SSE responses are open-ended.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		slog.InfoContext(ctx, "proxy listening", "addr", listener.Addr().String())
		if err := p.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh, nil
}

// Shutdown drains in-flight requests until ctx expires.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	return p.server.Shutdown(ctx)
}
