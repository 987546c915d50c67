// internal/game/engine.go
//
// Round engine for the reveal game.
// Responsibilities:
//   - Create sessions bound to a catalog and an image codec.
//   - Start rounds: pick a target, factorize it once, show the rank-1 image.
//   - Apply guesses: win on a match, otherwise add one singular value.
//   - Track state transitions: idle → playing → won (→ playing on restart).
//
// Notes:
//   - Every Session method holds the session mutex, so start/guess never
//     interleave on one session. Different sessions share nothing.
//   - LastActive is atomic and lock-free; store sweeps read it while a
//     slow Start still holds the mutex.
//   - The decomposition lives only for the round that produced it.

package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/svdguess/internal/imagebuf"
	"github.com/robalobadob/svdguess/internal/svd"
)

// Engine builds sessions that share a catalog and codec.
type Engine struct {
	catalog Catalog
	codec   Codec
	now     func() time.Time
	log     zerolog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides time.Now (used for idle tracking).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger used for round events.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine constructs an Engine over the given collaborators.
func NewEngine(cat Catalog, codec Codec, opts ...Option) *Engine {
	e := &Engine{catalog: cat, codec: codec, now: time.Now, log: log.Logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() Catalog { return e.catalog }

// NewSession returns an idle session with a fresh ID.
func (e *Engine) NewSession() *Session {
	s := &Session{
		id:      uuid.NewString(),
		engine:  e,
		message: MsgPrompt,
	}
	s.touch(e.now())
	return s
}

// Session is one player's game. Methods are safe for concurrent use.
type Session struct {
	mu     sync.Mutex
	id     string
	engine *Engine

	phase     Phase
	round     int // rounds started so far
	target    string
	original  imagebuf.Image
	decomp    *svd.Decomposition // nil unless playing
	current   imagebuf.Image
	rank      int
	maxRank   int
	guesses   int
	score     int
	exhausted bool
	message   string

	started time.Time

	// unix nanos; kept outside mu so reapers never wait on a round
	// that is still factorizing.
	lastActive atomic.Int64
}

// ID identifies the session in stores and APIs.
func (s *Session) ID() string { return s.id }

// Phase reports the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LastActive is the time of the last state-changing call, in UTC.
// It does not take the session lock.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load()).UTC()
}

func (s *Session) touch(t time.Time) { s.lastActive.Store(t.UnixNano()) }

// StartedAt is when the current (or last) round began; zero before any round.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Start begins a new round with a random catalog target.
// Any previous round is discarded, but only once the new one is ready:
// on error the session keeps its prior state.
func (s *Session) Start(ctx context.Context) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, raw, err := s.engine.catalog.SampleOne(ctx)
	if err != nil {
		return s.view(), fmt.Errorf("game: sample target: %w", err)
	}
	return s.begin(ctx, id, raw)
}

// StartWith begins a new round with a specific catalog entry.
func (s *Session) StartWith(ctx context.Context, id string) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.engine.catalog.Lookup(ctx, id)
	if err != nil {
		return s.view(), fmt.Errorf("game: lookup %q: %w", id, err)
	}
	return s.begin(ctx, id, raw)
}

// begin decodes and factorizes the target, then commits the new round.
// Callers hold s.mu.
func (s *Session) begin(ctx context.Context, id string, raw []byte) (Transition, error) {
	img, err := s.engine.codec.Load(raw)
	if err != nil {
		return s.view(), fmt.Errorf("game: load target: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return s.view(), err
	}

	t0 := time.Now()
	d, err := svd.Factorize(img)
	if err != nil {
		return s.view(), fmt.Errorf("game: factorize target: %w", err)
	}
	first, err := d.Reconstruct(1)
	if err != nil {
		return s.view(), fmt.Errorf("game: reconstruct: %w", err)
	}

	now := s.engine.now()
	s.round++
	s.phase = PhasePlaying
	s.target = id
	s.original = img
	s.decomp = d
	s.current = first
	s.rank = 1
	s.maxRank = d.Rank()
	s.guesses = 0
	s.score = 0
	s.exhausted = false
	s.message = MsgGo
	s.started = now
	s.touch(now)

	s.engine.log.Debug().
		Str("session", s.id).
		Str("shape", img.Shape.String()).
		Int("maxRank", s.maxRank).
		Dur("factorize", time.Since(t0)).
		Msg("round started")
	return s.view(), nil
}

// Guess checks candidate against the target.
//
// A match moves the session to PhaseWon and discloses the original image.
// A miss adds one singular value; once every value is shown the image stays
// the same and the transition is flagged Exhausted.
func (s *Session) Guess(candidate string) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePlaying {
		return s.view(), fmt.Errorf("%w: guess while %s", ErrInvalidState, s.phase)
	}
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return s.view(), fmt.Errorf("%w: empty guess", ErrUnknownCandidate)
	}
	if l, ok := s.engine.catalog.(Lister); ok && !l.Contains(candidate) {
		return s.view(), fmt.Errorf("%w: %q", ErrUnknownCandidate, candidate)
	}

	s.guesses++
	s.touch(s.engine.now())

	if strings.EqualFold(candidate, s.target) {
		s.phase = PhaseWon
		s.score = Score(s.rank)
		s.message = fmt.Sprintf(msgWon, s.score)
		s.decomp = nil
		s.current = imagebuf.Image{}
		s.exhausted = false
		s.engine.log.Debug().Str("session", s.id).Int("rank", s.rank).Int("score", s.score).Msg("round won")
		return s.view(), nil
	}

	s.message = MsgNope
	if s.rank >= s.maxRank {
		s.exhausted = true
		return s.view(), nil
	}
	next, err := s.decomp.Reconstruct(s.rank + 1)
	if err != nil {
		return s.view(), fmt.Errorf("game: reconstruct: %w", err)
	}
	s.rank++
	s.current = next
	return s.view(), nil
}

// Reveal gives up on the current round: the original image and answer are
// returned with a zero score and the session goes back to PhaseIdle.
func (s *Session) Reveal() (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePlaying {
		return s.view(), fmt.Errorf("%w: reveal while %s", ErrInvalidState, s.phase)
	}
	out := Transition{
		Image:   s.original,
		Message: fmt.Sprintf(msgReveal, s.target),
		Stats:   ComputeStats(s.rank, s.original.Shape),
		Phase:   PhaseIdle,
		Round:   s.round,
		Rank:    s.rank,
		MaxRank: s.maxRank,
		Guesses: s.guesses,
		Answer:  s.target,
	}

	s.phase = PhaseIdle
	s.target = ""
	s.original = imagebuf.Image{}
	s.decomp = nil
	s.current = imagebuf.Image{}
	s.rank = 0
	s.maxRank = 0
	s.exhausted = false
	s.message = MsgPrompt
	s.touch(s.engine.now())
	return out, nil
}

// View returns the current transition without changing anything.
func (s *Session) View() Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// view builds the transition for the current state. Callers hold s.mu.
func (s *Session) view() Transition {
	switch s.phase {
	case PhasePlaying:
		return Transition{
			Image:     s.current,
			Message:   s.message,
			Stats:     ComputeStats(s.rank, s.current.Shape),
			Phase:     s.phase,
			Round:     s.round,
			Rank:      s.rank,
			MaxRank:   s.maxRank,
			Guesses:   s.guesses,
			Exhausted: s.exhausted,
		}
	case PhaseWon:
		return Transition{
			Image:   s.original,
			Message: s.message,
			Stats:   ComputeStats(s.rank, s.original.Shape),
			Phase:   s.phase,
			Round:   s.round,
			Rank:    s.rank,
			MaxRank: s.maxRank,
			Guesses: s.guesses,
			Score:   s.score,
			Answer:  s.target,
		}
	default:
		return Transition{Message: s.message, Phase: PhaseIdle, Round: s.round}
	}
}
