package bridge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/improbable-eng/grpc-web/go/grpcweb"
)

// WebProxy exposes the bridge over grpc-web so browser-hosted display
// surfaces can subscribe without a native gRPC stack.
type WebProxy struct {
	httpServer *http.Server
	port       int
}

// NewWebProxy wraps the bridge server for grpc-web access on the given port.
func NewWebProxy(srv *Server, port int) *WebProxy {
	wrapped := grpcweb.WrapServer(srv.GRPCServer(),
		grpcweb.WithOriginFunc(func(origin string) bool {
			// Local surfaces only; the daemon never serves remote clients.
			return origin == "http://localhost" || origin == "http://127.0.0.1"
		}),
	)

	return &WebProxy{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("localhost:%d", port),
			Handler:           wrapped,
			ReadHeaderTimeout: 5 * time.Second,
		},
		port: port,
	}
}

// Port returns the HTTP port the proxy listens on.
func (p *WebProxy) Port() int {
	return p.port
}

// Serve blocks until Stop is called.
func (p *WebProxy) Serve() error {
	err := p.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the proxy down, waiting for in-flight requests.
func (p *WebProxy) Stop(ctx context.Context) error {
	return p.httpServer.Shutdown(ctx)
}
