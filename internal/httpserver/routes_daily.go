// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes three endpoints under /daily:
//   - POST /daily/new         → start (or resume) today's round
//   - POST /daily/guess       → submit a guess for today's round
//   - GET  /daily/leaderboard → top 20 results for today (or ?date=YYYY-MM-DD)
//
// Each player (or anonymous cookie) plays once per day: enforced by the
// daily_results table plus the in-memory session map, which keeps won rounds
// until the date changes. The target comes from daily.Target over the
// catalog's sorted names, so it is the same for everyone.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/svdguess/internal/daily"
	"github.com/robalobadob/svdguess/internal/game"
	"github.com/robalobadob/svdguess/internal/history"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	store    *daily.Store
	sessions map[string]*dailySession // keyed by player|date
	mu       sync.Mutex               // guards sessions
}

// dailySession is an in-progress daily round.
type dailySession struct {
	sess *game.Session
	date string
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) *dailyServer {
	dd := &dailyServer{
		srv:      s,
		store:    daily.NewStore(s.db),
		sessions: make(map[string]*dailySession),
	}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", dd.handleNew)
		r.Post("/guess", dd.handleGuess)
		r.Get("/leaderboard", dd.handleLeaderboard)
	})
	return dd
}

// dailyRes wraps the round payload with the date.
type dailyRes struct {
	Date   string `json:"date"`
	Played bool   `json:"played"`
	*roundRes
}

// playerKey is the account ID when logged in, else the anonymous cookie.
func playerKey(o history.Owner) string {
	if o.PlayerID != "" {
		return o.PlayerID
	}
	return o.AnonymousID
}

// lookup returns the live session for key, pruning other days' entries.
func (d *dailyServer) lookup(key, date string) (*dailySession, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, ds := range d.sessions {
		if ds.date != date {
			delete(d.sessions, k)
		}
	}
	ds, ok := d.sessions[key]
	return ds, ok
}

// handleNew starts today's round, or resumes it if one is in progress.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	o := d.srv.owner(w, r)
	uid := playerKey(o)
	now := d.srv.now()
	date := daily.DateKey(now)

	lister, ok := d.srv.engine.Catalog().(game.Lister)
	if !ok || len(lister.Names()) == 0 {
		writeError(w, http.StatusServiceUnavailable, "daily_unavailable")
		return
	}

	if played, err := d.store.AlreadyPlayed(r.Context(), uid, date); err != nil {
		writeErr(w, r, err)
		return
	} else if played {
		writeJSON(w, http.StatusOK, dailyRes{Date: date, Played: true})
		return
	}

	key := uid + "|" + date
	if ds, ok := d.lookup(key, date); ok {
		switch tr := ds.sess.View(); tr.Phase {
		case game.PhasePlaying:
			d.respond(w, r, date, ds.sess, tr)
			return
		case game.PhaseWon:
			// won but the result row is missing; still one round per day
			writeJSON(w, http.StatusOK, dailyRes{Date: date, Played: true})
			return
		}
	}

	sess := d.srv.engine.NewSession()
	target := daily.Target(now, d.srv.opts.DailySalt, lister.Names())
	tr, err := sess.StartWith(r.Context(), target)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	d.mu.Lock()
	d.sessions[key] = &dailySession{sess: sess, date: date}
	d.mu.Unlock()

	if err := d.srv.history.StartRound(r.Context(), history.Round{
		SessionID: sess.ID(), Round: tr.Round, Owner: o, Mode: "daily", StartedAt: sess.StartedAt(),
	}); err != nil {
		log.Warn().Err(err).Str("session", sess.ID()).Msg("insert daily game row")
	}
	d.respond(w, r, date, sess, tr)
}

func (d *dailyServer) respond(w http.ResponseWriter, r *http.Request, date string, sess *game.Session, tr game.Transition) {
	res, err := d.srv.render(sess.ID(), tr)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dailyRes{Date: date, roundRes: &res})
}

// handleGuess applies a guess to today's round and stores the result on a win.
func (d *dailyServer) handleGuess(w http.ResponseWriter, r *http.Request) {
	uid := playerKey(d.srv.owner(w, r))

	var p guessReq
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	date := daily.DateKey(d.srv.now())
	ds, ok := d.lookup(uid+"|"+date, date)
	if !ok || ds.sess.ID() != p.SessionID {
		writeError(w, http.StatusConflict, "no_session")
		return
	}

	tr, err := ds.sess.Guess(p.Guess)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	d.srv.recordGuess(r, ds.sess, tr)

	if tr.Phase == game.PhaseWon {
		elapsed := d.srv.now().Sub(ds.sess.StartedAt()).Milliseconds()
		if err := d.store.InsertResult(r.Context(), daily.Result{
			PlayerID:  uid,
			Date:      date,
			Target:    tr.Answer,
			Rank:      tr.Rank,
			Score:     tr.Score,
			Guesses:   tr.Guesses,
			ElapsedMs: int(elapsed),
		}); err != nil {
			log.Warn().Err(err).Str("player", uid).Msg("insert daily result")
		}
	}
	d.respond(w, r, date, ds.sess, tr)
}

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = d.srv.dateKey()
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
