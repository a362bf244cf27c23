package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"github.com/rjboer/GoWSA/internal/logging"
)

// maxConnections bounds concurrent HTTP clients, websockets included.
const maxConnections = 32

// WebServer exposes event history, live updates and any extra handlers such
// as a metrics endpoint.
type WebServer struct {
	srv    *http.Server
	hub    *Hub
	logger logging.Logger
}

// NewWebServer builds an HTTP server serving the hub endpoints. extra maps
// additional paths to handlers.
func NewWebServer(addr string, hub *Hub, logger logging.Logger, extra map[string]http.Handler) *WebServer {
	return &WebServer{
		hub:    hub,
		logger: logging.OrDefault(logger).With(logging.Field{Key: "subsystem", Value: "telemetry"}),
		srv:    &http.Server{Addr: addr, Handler: NewMux(hub, extra), ReadHeaderTimeout: 5 * time.Second},
	}
}

// NewMux routes the hub endpoints plus extra.
func NewMux(hub *Hub, extra map[string]http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/history", hub.handleHistory)
	mux.HandleFunc("/api/live", hub.handleLive)
	mux.HandleFunc("/api/config", hub.handleGetConfig)
	mux.HandleFunc("/api/config/update", hub.handleSetConfig)
	for path, h := range extra {
		mux.Handle(path, h)
	}
	return mux
}

// Start listens until ctx is canceled. It returns once the server stops.
func (w *WebServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", w.srv.Addr)
	if err != nil {
		return err
	}
	return w.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (w *WebServer) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := w.srv.Shutdown(shutdownCtx); err != nil {
			w.logger.Warn("web telemetry shutdown", logging.Field{Key: "err", Value: err})
		}
	}()

	w.logger.Info("web telemetry listening", logging.Field{Key: "addr", Value: ln.Addr().String()})
	if err := w.srv.Serve(netutil.LimitListener(ln, maxConnections)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		w.logger.Error("web telemetry server error", logging.Field{Key: "err", Value: err})
		return err
	}
	return nil
}
