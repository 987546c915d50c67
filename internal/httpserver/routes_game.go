// internal/httpserver/routes_game.go
//
// Free-play endpoints:
//   - POST /game/new     → start a round (new session, or restart a known one)
//   - POST /game/guess   → submit a guess for the session's round
//   - POST /game/reveal  → give up; the answer is shown with score 0
//   - GET  /game/{id}    → current view without changing state
//   - DELETE /game/{id}  → end the session; an unfinished round is abandoned
//
// Every response carries the image as a PNG data URI, the status message and
// the disclosure stats. Round outcomes are written to history best effort.

package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/svdguess/internal/game"
	"github.com/robalobadob/svdguess/internal/history"
	"github.com/robalobadob/svdguess/internal/imagebuf"
)

// roundRes is the payload for every game endpoint.
type roundRes struct {
	SessionID  string      `json:"sessionId"`
	Image      string      `json:"image,omitempty"` // data URI
	Message    string      `json:"message"`
	Stats      *game.Stats `json:"stats,omitempty"`
	StatsLines []string    `json:"statsLines"`
	Phase      game.Phase  `json:"phase"`
	Round      int         `json:"round"`
	Rank       int         `json:"rank"`
	MaxRank    int         `json:"maxRank"`
	Guesses    int         `json:"guesses"`
	Score      int         `json:"score"`
	Answer     string      `json:"answer,omitempty"`
	Exhausted  bool        `json:"exhausted"`
}

// placeholderer is implemented by catalogs with an idle-screen image.
type placeholderer interface {
	Placeholder() ([]byte, error)
}

// render converts a transition into the response payload.
func (s *Server) render(id string, tr game.Transition) (roundRes, error) {
	res := roundRes{
		SessionID:  id,
		Message:    tr.Message,
		StatsLines: tr.Stats.Lines(),
		Phase:      tr.Phase,
		Round:      tr.Round,
		Rank:       tr.Rank,
		MaxRank:    tr.MaxRank,
		Guesses:    tr.Guesses,
		Score:      tr.Score,
		Answer:     tr.Answer,
		Exhausted:  tr.Exhausted,
	}
	if res.StatsLines == nil {
		res.StatsLines = []string{}
	}
	if tr.Stats.Rank > 0 {
		st := tr.Stats
		res.Stats = &st
	}

	if !tr.Image.Empty() {
		b, err := imagebuf.Export(tr.Image)
		if err != nil {
			return res, err
		}
		res.Image = imagebuf.DataURI(b)
		return res, nil
	}
	if p, ok := s.engine.Catalog().(placeholderer); ok {
		b, err := p.Placeholder()
		if err != nil {
			log.Warn().Err(err).Msg("placeholder image")
		} else if len(b) > 0 {
			res.Image = "data:" + http.DetectContentType(b) + ";base64," + base64.StdEncoding.EncodeToString(b)
		}
	}
	return res, nil
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, id string, tr game.Transition) {
	res, err := s.render(id, tr)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// newGameReq is the payload for POST /game/new. SessionID is optional: a
// known ID restarts that session, anything else gets a fresh one.
type newGameReq struct {
	SessionID string `json:"sessionId"`
}

// handleNewGame starts a round and records its history row.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	var sess *game.Session
	if req.SessionID != "" {
		if got, err := s.store.Get(r.Context(), req.SessionID); err == nil {
			sess = got
		}
	}
	fresh := sess == nil
	var prev game.Transition
	if fresh {
		sess = s.engine.NewSession()
	} else {
		prev = sess.View()
	}

	tr, err := sess.Start(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if prev.Phase == game.PhasePlaying {
		s.abandon(r, sess.ID(), prev)
	}
	if fresh {
		if err := s.store.Save(r.Context(), sess); err != nil {
			writeErr(w, r, err)
			return
		}
	}

	if err := s.history.StartRound(r.Context(), history.Round{
		SessionID: sess.ID(),
		Round:     tr.Round,
		Owner:     s.owner(w, r),
		Mode:      "free",
		StartedAt: sess.StartedAt(),
	}); err != nil {
		log.Warn().Err(err).Str("session", sess.ID()).Msg("insert game row")
	}

	s.respond(w, r, sess.ID(), tr)
}

// guessReq is the payload for POST /game/guess.
type guessReq struct {
	SessionID string `json:"sessionId"`
	Guess     string `json:"guess"`
}

// handleGuess applies a guess and persists progress.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess, err := s.store.Get(r.Context(), req.SessionID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	tr, err := sess.Guess(req.Guess)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.recordGuess(r, sess, tr)
	s.respond(w, r, sess.ID(), tr)
}

// recordGuess writes a guess outcome to history. Failures are logged only.
func (s *Server) recordGuess(r *http.Request, sess *game.Session, tr game.Transition) {
	var err error
	if tr.Phase == game.PhaseWon {
		err = s.history.FinishRound(r.Context(), history.Outcome{
			SessionID:  sess.ID(),
			Round:      tr.Round,
			Status:     history.StatusWon,
			Target:     tr.Answer,
			Rank:       tr.Rank,
			Guesses:    tr.Guesses,
			Score:      tr.Score,
			FinishedAt: s.now(),
		})
	} else {
		err = s.history.RecordGuess(r.Context(), sess.ID(), tr.Round, tr.Guesses, tr.Rank)
	}
	if err != nil && !errors.Is(err, history.ErrNoRound) {
		log.Warn().Err(err).Str("session", sess.ID()).Msg("update game row")
	}
}

// sessionReq carries just a session ID.
type sessionReq struct {
	SessionID string `json:"sessionId"`
}

// handleReveal gives up on the round.
func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	var req sessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess, err := s.store.Get(r.Context(), req.SessionID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	tr, err := sess.Reveal()
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.history.FinishRound(r.Context(), history.Outcome{
		SessionID:  sess.ID(),
		Round:      tr.Round,
		Status:     history.StatusRevealed,
		Target:     tr.Answer,
		Rank:       tr.Rank,
		Guesses:    tr.Guesses,
		FinishedAt: s.now(),
	}); err != nil && !errors.Is(err, history.ErrNoRound) {
		log.Warn().Err(err).Str("session", sess.ID()).Msg("finish game row")
	}
	s.respond(w, r, sess.ID(), tr)
}

// abandon closes the history row of a round left unfinished. The target is
// not recorded since the player never saw it.
func (s *Server) abandon(r *http.Request, id string, tr game.Transition) {
	if err := s.history.FinishRound(r.Context(), history.Outcome{
		SessionID:  id,
		Round:      tr.Round,
		Status:     history.StatusAbandoned,
		Rank:       tr.Rank,
		Guesses:    tr.Guesses,
		FinishedAt: s.now(),
	}); err != nil && !errors.Is(err, history.ErrNoRound) {
		log.Warn().Err(err).Str("session", id).Msg("abandon game row")
	}
}

// handleEnd drops a session from the store.
func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if tr := sess.View(); tr.Phase == game.PhasePlaying {
		s.abandon(r, id, tr)
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleView returns the session's current state.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.respond(w, r, id, sess.View())
}
