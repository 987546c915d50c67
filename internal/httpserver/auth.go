// internal/httpserver/auth.go
//
// Optional accounts.
// Responsibilities:
//   - Signup/login with bcrypt-hashed passwords in the players table.
//   - HS256 JWT in an HttpOnly cookie (or Authorization: Bearer).
//   - Optional-auth and require-auth middleware.
//   - Anonymous cookie so guest rounds can be claimed after signup/login.
//   - Profile endpoints: /auth/me, /stats/me, /games/mine.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/svdguess/internal/history"
)

var (
	errUsernameTaken = errors.New("username taken")
	errBadSignup     = errors.New("invalid signup")
)

// credentials is the payload for signup and login.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

// userFrom returns the authenticated user, or nil for guests.
func userFrom(ctx context.Context) *authUser {
	u, _ := ctx.Value(ctxUserKey{}).(*authUser)
	return u
}

// mountAuthRoutes registers /auth/* and the gated profile routes.
func (s *Server) mountAuthRoutes() {
	s.r.Post("/auth/signup", s.handleSignup)
	s.r.Post("/auth/login", s.handleLogin)
	s.r.Post("/auth/logout", s.handleLogout)

	s.r.Group(func(r chi.Router) {
		r.Use(s.requireAuth())
		r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, userFrom(r.Context()))
		})
		r.Get("/stats/me", s.handleStats)
		r.Get("/games/mine", s.handleMyGames)
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	st, err := s.history.Stats(r.Context(), me.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ID string `json:"id"`
		history.PlayerStats
	}{me.ID, st})
}

func (s *Server) handleMyGames(w http.ResponseWriter, r *http.Request) {
	rows, err := s.history.Recent(r.Context(), userFrom(r.Context()).ID, 50)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleSignup creates a player, signs a JWT, sets the cookie and claims
// anonymous history.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	u, err := s.createPlayer(r.Context(), body.Username, body.Password)
	switch {
	case errors.Is(err, errUsernameTaken):
		writeError(w, http.StatusConflict, "Username taken")
		return
	case errors.Is(err, errBadSignup):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), errBadSignup.Error()+": "))
		return
	case err != nil:
		writeErr(w, r, err)
		return
	}
	if !s.login(w, r, u) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "username": u.Username, "createdAt": u.CreatedAt})
}

// handleLogin authenticates, sets the cookie and claims anonymous history.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	u, err := s.findPlayerByUsername(r.Context(), strings.TrimSpace(body.Username))
	if err != nil || !checkPassword(u.PasswordHash, body.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if !s.login(w, r, u) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "username": u.Username})
}

// login issues the token cookie and attaches guest rounds to u.
func (s *Server) login(w http.ResponseWriter, r *http.Request, u *playerRow) bool {
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return false
	}
	s.setCookie(w, s.opts.CookieName, tok, exp)
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		if err := s.history.ClaimAnonymous(r.Context(), c.Value, u.ID); err != nil {
			log.Warn().Err(err).Str("player", u.ID).Msg("claim anon games")
		}
	}
	return true
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.setCookie(w, s.opts.CookieName, "", time.Time{})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --------------------------- middleware ------------------------------------

// withOptionalAuth decorates requests with user context if a valid JWT is
// present. It never 401s.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, err := s.authenticate(r); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth enforces a valid JWT for a player that still exists.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := s.authenticate(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u)))
		})
	}
}

// authenticate validates the request token and loads its player.
func (s *Server) authenticate(r *http.Request) (*authUser, error) {
	tok := s.bearerOrCookie(r)
	if tok == "" {
		return nil, errors.New("no token")
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	id, _ := claims["id"].(string)
	if id == "" {
		return nil, errors.New("invalid token: no id")
	}
	u, err := s.findPlayerByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &authUser{ID: u.ID, Username: u.Username}, nil
}

const anonCookieName = "svdguess_anon"

// owner identifies who is playing: the logged-in player, else an anonymous
// cookie (set on first use).
func (s *Server) owner(w http.ResponseWriter, r *http.Request) history.Owner {
	if me := userFrom(r.Context()); me != nil {
		return history.Owner{PlayerID: me.ID}
	}
	return history.Owner{AnonymousID: s.ensureAnonID(w, r)}
}

// ensureAnonID returns an existing anon cookie or sets a new one.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	s.setCookie(w, anonCookieName, id, s.now().Add(180*24*time.Hour))
	return id
}

// setCookie writes an HttpOnly cookie; a zero expiry deletes it.
func (s *Server) setCookie(w http.ResponseWriter, name, value string, exp time.Time) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	}
	if s.opts.CookieSecure {
		c.SameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	if exp.IsZero() {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}

// bearerOrCookie extracts a token from the Authorization header or cookie.
func (s *Server) bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// signJWT creates an HS256 token carrying id and username.
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.opts.JWTTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.opts.JWTSecret))
	return ss, exp, err
}

// ------------------------------ players ------------------------------------

// playerRow matches the players table columns auth needs.
type playerRow struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// createPlayer validates input, hashes the password and inserts the row.
func (s *Server) createPlayer(ctx context.Context, username, pw string) (*playerRow, error) {
	username = strings.TrimSpace(username)
	if err := validateSignup(username, pw); err != nil {
		return nil, fmt.Errorf("%w: %s", errBadSignup, err)
	}
	if _, err := s.findPlayerByUsername(ctx, username); err == nil {
		return nil, errUsernameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Truncate(time.Second)
	u := &playerRow{ID: uuid.NewString(), Username: username, PasswordHash: string(h), CreatedAt: now}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO players (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, now.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Server) findPlayerByUsername(ctx context.Context, username string) (*playerRow, error) {
	return scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM players WHERE username=?`, username))
}

func (s *Server) findPlayerByID(ctx context.Context, id string) (*playerRow, error) {
	return scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM players WHERE id=?`, id))
}

func scanPlayer(row *sql.Row) (*playerRow, error) {
	var u playerRow
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created); err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

// checkPassword is a bcrypt verifier.
func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// validateSignup enforces basic username/password rules.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return errors.New("username must be 3-24 chars")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errors.New("username: letters, numbers, underscore only")
		}
	}
	if len(p) < 8 || len(p) > 72 {
		return errors.New("password must be 8-72 chars")
	}
	return nil
}
