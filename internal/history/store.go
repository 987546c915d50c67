// internal/history/store.go
//
// Round history and player stats.
// Responsibilities:
//   - Record a row per started round (free play and daily).
//   - Count guesses and store the final outcome (won/revealed/abandoned).
//   - Bump player counters inside the same transaction as the outcome.
//   - Move anonymous rounds to an account after signup/login.
//
// Writes are best effort from the HTTP layer's point of view: a failed insert
// is logged, never surfaced to the player.

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Round statuses.
const (
	StatusPlaying   = "playing"
	StatusWon       = "won"
	StatusRevealed  = "revealed"
	StatusAbandoned = "abandoned" // restarted or ended before a win or reveal
)

// ErrNoRound is returned when a referenced round row does not exist.
var ErrNoRound = errors.New("history: round not found")

// Owner identifies who played a round: an account or an anonymous cookie.
type Owner struct {
	PlayerID    string
	AnonymousID string
}

// Round is the row written when a round starts.
type Round struct {
	SessionID string
	Round     int
	Owner     Owner
	Mode      string // "free" | "daily"
	StartedAt time.Time
}

// Outcome is the row update written when a round ends.
type Outcome struct {
	SessionID  string
	Round      int
	Status     string
	Target     string
	Rank       int
	Guesses    int
	Score      int
	FinishedAt time.Time
}

// GameRow is a round as listed in a player's history.
type GameRow struct {
	SessionID  string `json:"sessionId"`
	Round      int    `json:"round"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Target     string `json:"target,omitempty"`
	Guesses    int    `json:"guesses"`
	Rank       int    `json:"rank"`
	Score      int    `json:"score"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// PlayerStats are the counters kept on the players table.
type PlayerStats struct {
	GamesPlayed int `json:"gamesPlayed"`
	Wins        int `json:"wins"`
	TotalScore  int `json:"totalScore"`
	BestScore   int `json:"bestScore"`
}

// Store reads and writes the games table.
type Store struct{ db *sql.DB }

// NewStore wraps db.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// StartRound inserts the row for a new round.
func (s *Store) StartRound(ctx context.Context, r Round) error {
	mode := r.Mode
	if mode == "" {
		mode = "free"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO games (session_id, round, player_id, anonymous_id, mode, status, started_at)
		 VALUES (?,?,?,?,?,?,?)`,
		r.SessionID, r.Round, nullable(r.Owner.PlayerID), nullable(r.Owner.AnonymousID),
		mode, StatusPlaying, r.StartedAt.UTC().Format(time.RFC3339))
	return err
}

// RecordGuess stores the guess count and rank after a wrong guess.
func (s *Store) RecordGuess(ctx context.Context, sessionID string, round, guesses, rank int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET guesses=?, final_rank=? WHERE session_id=? AND round=? AND status=?`,
		guesses, rank, sessionID, round, StatusPlaying)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// FinishRound stores the outcome and, for account-owned rounds, bumps the
// player's counters in the same transaction.
func (s *Store) FinishRound(ctx context.Context, o Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var playerID sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT player_id FROM games WHERE session_id=? AND round=? AND status=?`,
		o.SessionID, o.Round, StatusPlaying).Scan(&playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%d", ErrNoRound, o.SessionID, o.Round)
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET status=?, target=?, final_rank=?, guesses=?, score=?, finished_at=?
		 WHERE session_id=? AND round=?`,
		o.Status, o.Target, o.Rank, o.Guesses, o.Score, o.FinishedAt.UTC().Format(time.RFC3339),
		o.SessionID, o.Round); err != nil {
		return err
	}

	if playerID.Valid {
		if err := bumpStats(ctx, tx, playerID.String, o.Status == StatusWon, o.Score); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// bumpStats increments games played, and on a win also wins, total score
// and best score.
func bumpStats(ctx context.Context, tx *sql.Tx, playerID string, won bool, score int) error {
	winInc := 0
	if won {
		winInc = 1
	} else {
		score = 0
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE players
		    SET games_played = games_played + 1,
		        wins = wins + ?,
		        total_score = total_score + ?,
		        best_score = MAX(best_score, ?)
		  WHERE id=?`, winInc, score, score, playerID)
	return err
}

// ClaimAnonymous transfers rounds played under an anonymous cookie to an
// account. Finished rounds are added to the player's counters.
func (s *Store) ClaimAnonymous(ctx context.Context, anonID, playerID string) error {
	if anonID == "" || playerID == "" {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT status, score FROM games WHERE anonymous_id=? AND player_id IS NULL AND status<>?`,
		anonID, StatusPlaying)
	if err != nil {
		return err
	}
	type fin struct {
		won   bool
		score int
	}
	var done []fin
	for rows.Next() {
		var status string
		var score int
		if err := rows.Scan(&status, &score); err != nil {
			rows.Close()
			return err
		}
		done = append(done, fin{won: status == StatusWon, score: score})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET player_id=?, anonymous_id=NULL WHERE anonymous_id=? AND player_id IS NULL`,
		playerID, anonID); err != nil {
		return err
	}
	for _, f := range done {
		if err := bumpStats(ctx, tx, playerID, f.won, f.score); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Recent lists a player's latest rounds, newest first.
func (s *Store) Recent(ctx context.Context, playerID string, limit int) ([]GameRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, round, mode, status, target, guesses, final_rank, score,
		        started_at, COALESCE(finished_at, '')
		   FROM games WHERE player_id=?
		  ORDER BY started_at DESC, round DESC LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []GameRow{}
	for rows.Next() {
		var g GameRow
		if err := rows.Scan(&g.SessionID, &g.Round, &g.Mode, &g.Status, &g.Target,
			&g.Guesses, &g.Rank, &g.Score, &g.StartedAt, &g.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Stats loads a player's counters.
func (s *Store) Stats(ctx context.Context, playerID string) (PlayerStats, error) {
	var st PlayerStats
	err := s.db.QueryRowContext(ctx,
		`SELECT games_played, wins, total_score, best_score FROM players WHERE id=?`, playerID,
	).Scan(&st.GamesPlayed, &st.Wins, &st.TotalScore, &st.BestScore)
	return st, err
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRound
	}
	return nil
}
