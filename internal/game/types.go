// internal/game/types.go
//
// Core type definitions for the reveal game.
// Defines:
//   - Phase: where a session is in its round (idle/playing/won).
//   - Transition: what a caller gets back after every start/guess/view.
//   - Catalog, Lister, Codec: collaborators the engine is built on.

package game

import (
	"context"
	"errors"

	"github.com/robalobadob/svdguess/internal/imagebuf"
)

// Phase is the state of a session.
type Phase int

const (
	PhaseIdle    Phase = iota // no round yet, or the last round was revealed
	PhasePlaying              // target chosen, accepting guesses
	PhaseWon                  // guessed; terminal until the next Start
)

func (p Phase) String() string {
	switch p {
	case PhasePlaying:
		return "playing"
	case PhaseWon:
		return "won"
	default:
		return "idle"
	}
}

// MarshalText renders the phase by name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Status messages shown to the player.
const (
	MsgPrompt = "Press 'New Game' to get started"
	MsgGo     = "Go!"
	MsgNope   = "Nope. Try again"
	msgWon    = "You did it!! Your score: %d"
	msgReveal = "It was %s"
)

var (
	// ErrInvalidState is returned by Guess and Reveal outside PhasePlaying.
	ErrInvalidState = errors.New("game: invalid state")

	// ErrUnknownCandidate is returned for empty guesses or names the catalog
	// does not know. The rank is not advanced.
	ErrUnknownCandidate = errors.New("game: unknown candidate")
)

// Catalog supplies target images by identity.
type Catalog interface {
	// SampleOne picks a random entry.
	SampleOne(ctx context.Context) (id string, img []byte, err error)

	// Lookup returns the encoded image for id.
	Lookup(ctx context.Context, id string) ([]byte, error)
}

// Lister is implemented by catalogs that can enumerate their entries.
// When available, guesses for unknown names are rejected.
type Lister interface {
	Names() []string
	Contains(id string) bool
}

// Codec decodes catalog bytes into fixed-shape images.
type Codec interface {
	Load(b []byte) (imagebuf.Image, error)
}

// Transition is the outcome of a session operation: the image to display,
// the status message and the disclosure stats, plus machine-readable state.
type Transition struct {
	Image     imagebuf.Image
	Message   string
	Stats     Stats
	Phase     Phase
	Round     int // 1 for the session's first round
	Rank      int
	MaxRank   int
	Guesses   int
	Score     int    // meaningful once Phase == PhaseWon
	Answer    string // set when the target is disclosed (win or reveal)
	Exhausted bool   // a wrong guess arrived with every singular value already shown
}
