// Package api serves Hex Flowers over HTTP.
// GET endpoints are public (read-only observation).
// Mutating endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/talgya/hexflower/internal/engine"
	apperrors "github.com/talgya/hexflower/internal/errors"
	"github.com/talgya/hexflower/internal/persistence"
)

const (
	maxSSEConns     = 8
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Server serves the engine's flowers over HTTP.
type Server struct {
	Engine      *engine.Engine
	Events      *engine.Broadcaster // Source for /stream. Nil = streaming disabled.
	DB          *persistence.DB     // Event log and settings. Nil = those endpoints answer 503.
	Port        int
	AdminKey    string // Bearer token for mutating endpoints. Empty = mutations disabled.
	CORSOrigins []string

	// NavigateLimit caps navigate calls per client per minute. Zero means 60.
	NavigateLimit int

	// Active SSE connection count (atomic).
	sseConns int32
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	limit := s.NavigateLimit
	if limit <= 0 {
		limit = 60
	}
	navigateLimiter := NewRateLimiter(limit, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/key", s.handleKey)
	mux.HandleFunc("GET /api/v1/key/{roll}", s.handleKeyRoll)
	mux.HandleFunc("GET /api/v1/flowers", s.handleListFlowers)
	mux.HandleFunc("GET /api/v1/flowers/{id}", s.handleGetFlower)
	mux.HandleFunc("GET /api/v1/flowers/{id}/current", s.handleCurrent)
	mux.HandleFunc("GET /api/v1/flowers/{id}/preview/{roll}", s.handlePreview)
	mux.HandleFunc("GET /api/v1/flowers/{id}/events", s.handleFlowerEvents)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/flowers", s.adminOnly(s.handleCreate))
	mux.HandleFunc("POST /api/v1/flowers/import", s.adminOnly(s.handleImport))
	mux.HandleFunc("DELETE /api/v1/flowers/{id}", s.adminOnly(s.handleDelete))
	mux.HandleFunc("POST /api/v1/flowers/{id}/navigate", s.adminOnly(RateLimitMiddleware(navigateLimiter, s.handleNavigate)))
	mux.HandleFunc("PUT /api/v1/flowers/{id}/hexes/{q}/{r}", s.adminOnly(s.handleSetCell))
	mux.HandleFunc("POST /api/v1/flowers/{id}/reset", s.adminOnly(s.handleReset))
	mux.HandleFunc("PUT /api/v1/boundary", s.adminOnly(s.handleBoundary))

	return corsMiddleware(s.CORSOrigins, mux)
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with ctx so open streams close on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slog.Info("HTTP API stopped")
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no HEXFLOWER_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

type errorBody struct {
	Error string         `json:"error"`
	Code  apperrors.Code `json:"code"`
}

// writeError answers with the status mapped from the error's code.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSONStatus(w, status, errorBody{Error: err.Error(), Code: code})
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.Wrap(apperrors.CodeInvalidParameter, "invalid request body", err)
	}
	return nil
}
