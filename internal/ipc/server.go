package ipc

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Server wraps an HTTP server with battle API routing.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a Server that binds to the given address.
func NewServer(h *Handler, listenAddr string) *Server {
	mux := http.NewServeMux()

	// Health endpoint.
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Caller endpoints.
	mux.HandleFunc("GET /api/v1/levels", h.ListLevels)
	mux.HandleFunc("GET /api/v1/me", h.GetMe)
	mux.HandleFunc("GET /api/v1/me/notes", h.ListNotes)

	// Battle endpoints.
	mux.HandleFunc("POST /api/v1/battle", h.StartBattle)
	mux.HandleFunc("POST /api/v1/battle/autoplay", h.AutoPlay)
	mux.HandleFunc("GET /api/v1/battle/{sessionID}", h.GetBattle)
	mux.HandleFunc("POST /api/v1/battle/{sessionID}/advance", h.AdvanceBattle)

	// Event endpoints.
	mux.HandleFunc("GET /api/v1/battle/{sessionID}/events", h.ListEvents)
	mux.HandleFunc("GET /api/v1/battle/{sessionID}/events/stream", h.StreamEvents)

	// Report endpoint.
	mux.HandleFunc("GET /api/v1/report/{sessionID}", h.GetReport)

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		httpServer: srv,
	}
}

// Start begins listening for HTTP connections. Blocks until the server stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for the browser client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, X-User-Name")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// FormatListenURL turns a listen address such as ":9800" into a URL a
// browser can open.
func FormatListenURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
