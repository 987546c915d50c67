// internal/httpserver/server.go
//
// HTTP server wiring for the reveal game.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     request logging).
//   - Public endpoints: "/", "/health", "/catalog/names".
//   - Game endpoints (optional auth): /game/new, /game/guess, /game/reveal, /game/{id}.
//   - Daily Challenge endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /games/mine.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Live sessions stay in the session store; only round outcomes reach the DB.

package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/svdguess/internal/catalog"
	"github.com/robalobadob/svdguess/internal/daily"
	"github.com/robalobadob/svdguess/internal/game"
	"github.com/robalobadob/svdguess/internal/history"
	"github.com/robalobadob/svdguess/internal/imagebuf"
	"github.com/robalobadob/svdguess/internal/store"
)

// Options configures a Server. Zero values fall back to development defaults.
type Options struct {
	JWTSecret    string        // HS256 key for auth tokens
	JWTTTL       time.Duration // token lifetime; default 14 days
	CookieName   string        // auth cookie; default "svdguess_token"
	CookieSecure bool          // Secure + SameSite=None cookies (production)
	ClientOrigin string        // allowed CORS origin
	DailySalt    string        // keys the daily target selection
	Timeout      time.Duration // per-request handler budget; default 10s
	Now          func() time.Time
}

func (o *Options) defaults() {
	if o.JWTSecret == "" {
		o.JWTSecret = "dev_secret_change_me"
	}
	if o.JWTTTL <= 0 {
		o.JWTTTL = 14 * 24 * time.Hour
	}
	if o.CookieName == "" {
		o.CookieName = "svdguess_token"
	}
	if o.ClientOrigin == "" {
		o.ClientOrigin = "http://localhost:5173"
	}
	if o.DailySalt == "" {
		o.DailySalt = "local_dev_salt"
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Server bundles router, engine, session store, and DB-backed stores.
type Server struct {
	r       *chi.Mux
	engine  *game.Engine
	store   store.Store
	db      *sql.DB
	history *history.Store
	daily   *dailyServer
	opts    Options
}

// New constructs a Server, installs middleware, and registers routes.
func New(engine *game.Engine, st store.Store, db *sql.DB, opts Options) *Server {
	opts.defaults()
	s := &Server{
		r:       chi.NewRouter(),
		engine:  engine,
		store:   st,
		db:      db,
		history: history.NewStore(db),
		opts:    opts,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)          // add X-Request-ID
	s.r.Use(chimw.RealIP)             // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)            // one line per request
	s.r.Use(chimw.Recoverer)          // recover from panics
	s.r.Use(chimw.Timeout(opts.Timeout))
	s.r.Use(jsonContentType)
	s.r.Use(cors(opts.ClientOrigin))

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "svdguess",
			"endpoints": []string{"/health", "/catalog/names", "POST /game/new", "POST /game/guess", "POST /game/reveal", "/daily/*", "/auth/*"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.store.Len()})
	})
	s.r.Get("/catalog/names", s.handleNames)

	// Game endpoints: guests can play
	s.r.Group(func(r chi.Router) {
		r.Use(s.withOptionalAuth())
		r.Post("/game/new", s.handleNewGame)
		r.Post("/game/guess", s.handleGuess)
		r.Post("/game/reveal", s.handleReveal)
		r.Get("/game/{id}", s.handleView)
		r.Delete("/game/{id}", s.handleEnd)
	})

	// Daily Challenge: guests can play, results keyed by player or anon ID
	s.daily = s.mountDaily(s.r.With(s.withOptionalAuth()))

	s.mountAuthRoutes()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Router exposes the internal router (tests, http.Server).
func (s *Server) Router() chi.Router { return s.r }

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
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger writes one zerolog line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		t0 := time.Now()
		defer func() {
			ev := log.Info()
			if ww.Status() >= http.StatusInternalServerError {
				ev = log.Warn()
			}
			ev.Str("reqId", chimw.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("dur", time.Since(t0)).
				Msg("http")
		}()
		next.ServeHTTP(ww, r)
	})
}

// ------------------------------- helpers ------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeErr maps domain errors onto status codes.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state")
	case errors.Is(err, game.ErrUnknownCandidate):
		writeError(w, http.StatusBadRequest, "unknown_candidate")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "session_not_found")
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, imagebuf.ErrDecode):
		log.Error().Err(err).Str("reqId", chimw.GetReqID(r.Context())).Msg("catalog image")
		writeError(w, http.StatusBadGateway, "bad_catalog_image")
	default:
		log.Error().Err(err).Str("reqId", chimw.GetReqID(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

// handleNames lists the catalog's entries so clients can offer choices.
func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if l, ok := s.engine.Catalog().(game.Lister); ok {
		names = l.Names()
	}
	writeJSON(w, http.StatusOK, map[string]any{"names": names})
}

// now returns the server clock (overridable in tests).
func (s *Server) now() time.Time { return s.opts.Now() }

// dateKey is today's daily key.
func (s *Server) dateKey() string { return daily.DateKey(s.now()) }
