package payserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hupe1980/payroute/logging"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Transports served by Serve.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// DefaultAddr is the listen address of the network transports.
const DefaultAddr = "127.0.0.1:8765"

// Handler mounts srv for a network transport: SSE at /sse and /message,
// streamable HTTP at /mcp. Both get /healthz.
func Handler(srv *mcpserver.MCPServer, transport, baseURL string) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	switch transport {
	case TransportSSE:
		sse := mcpserver.NewSSEServer(srv, mcpserver.WithBaseURL(baseURL))
		r.Handle("/sse", sse.SSEHandler())
		r.Handle("/message", sse.MessageHandler())
	case TransportHTTP:
		r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(srv))
	default:
		return nil, fmt.Errorf("unsupported transport %q", transport)
	}

	return r, nil
}

// Serve runs srv on transport until ctx is done. stdio uses the process
// stdin and stdout; network transports listen on addr.
func Serve(ctx context.Context, srv *mcpserver.MCPServer, transport, addr string, logger logging.Logger) error {
	logger = logging.OrNoOp(logger)

	if transport == TransportStdio {
		logger.Info("payserver.start", "transport", transport)
		return mcpserver.NewStdioServer(srv).Listen(ctx, os.Stdin, os.Stdout)
	}

	if addr == "" {
		addr = DefaultAddr
	}

	h, err := Handler(srv, transport, "http://"+addr)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("payserver.start", "transport", transport, "addr", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logger.Info("payserver.shutdown", "addr", addr)
		return httpServer.Shutdown(shutdownCtx)
	}
}
