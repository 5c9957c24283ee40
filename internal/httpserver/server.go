// internal/httpserver/server.go
//
// HTTP server wiring for the party backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/debug/words".
//   - The websocket endpoint "/ws" where all gameplay happens.
//   - Word helpers and the archive leaderboard (routes.go).
//   - Session-gated room snapshots (routes.go).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled.
//   - The handler timeout is not applied to /ws; upgraded connections live
//     as long as the client stays.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/party-server/internal/archive"
	"github.com/robalobadob/wordle/apps/party-server/internal/session"
	"github.com/robalobadob/wordle/apps/party-server/internal/store"
	"github.com/robalobadob/wordle/apps/party-server/internal/words"
)

// Archive is the read side of the result archive.
type Archive interface {
	Leaderboard(ctx context.Context, limit int) ([]archive.LBRow, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server needs.
type Deps struct {
	Store        store.Store
	Words        words.Lists
	Archive      Archive
	Sessions     *session.Issuer
	WS           http.Handler
	ClientOrigin string
}

// Server bundles the router and its collaborators.
type Server struct {
	r *chi.Mux
	d Deps
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	if d.Archive == nil {
		d.Archive = archive.Nop{}
	}
	s := &Server{r: chi.NewRouter(), d: d}

	// --- middleware ---
	s.r.Use(chimw.RequestID)      // add X-Request-ID
	s.r.Use(chimw.RealIP)         // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)      // recover from panics
	s.r.Use(cors(d.ClientOrigin)) // credentials-friendly CORS

	// --- realtime ---
	if d.WS != nil {
		s.r.Handle("/ws", d.WS)
	}

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"wordle-party","endpoints":["/health","/ws","/words/random","/words/check","/rooms/{roomID}","/leaderboard"]}`))
		})
		r.Get("/health", s.handleHealth)
		r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
			a, g := d.Words.Stats()
			_ = json.NewEncoder(w).Encode(map[string]int{"answers": a, "allowed": g})
		})

		s.mountRoutes(r)

		// JSON 404 for easier debugging
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not_found")
		})
	})

	return s
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rooms, players := 0, 0
	if s.d.Store != nil {
		rooms, players = s.d.Store.Stats()
	}
	body := map[string]any{"ok": true, "rooms": rooms, "players": players, "archive": "ok"}
	if err := s.d.Archive.Ping(r.Context()); err != nil {
		log.Warn().Err(err).Msg("archive ping failed")
		body["archive"] = "unavailable"
	}
	_ = json.NewEncoder(w).Encode(body)
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
