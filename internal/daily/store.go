// internal/daily/store.go
//
// Persistence for daily results and the per-date leaderboard.

package daily

import (
	"context"
	"database/sql"
)

// Result is one finished daily round.
type Result struct {
	PlayerID  string `json:"playerId"`
	Date      string `json:"date"`
	Target    string `json:"target"`
	Rank      int    `json:"rank"`
	Score     int    `json:"score"`
	Guesses   int    `json:"guesses"`
	ElapsedMs int    `json:"elapsedMs"`
}

// LBRow is a leaderboard line.
type LBRow struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username,omitempty"`
	Score     int    `json:"score"`
	Rank      int    `json:"rank"`
	ElapsedMs int    `json:"elapsedMs"`
}

// Store persists daily results in the daily_results table.
type Store struct{ db *sql.DB }

// NewStore wraps db.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// AlreadyPlayed reports whether playerID has a result for date.
func (s *Store) AlreadyPlayed(ctx context.Context, playerID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM daily_results WHERE player_id=? AND date=?`,
		playerID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// InsertResult stores r. A second result for the same player and date is
// ignored.
func (s *Store) InsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results
		     (player_id, date, target, final_rank, score, guesses, elapsed_ms)
		 VALUES (?,?,?,?,?,?,?)`,
		r.PlayerID, r.Date, r.Target, r.Rank, r.Score, r.Guesses, r.ElapsedMs,
	)
	return err
}

// Leaderboard returns the best results for date: highest score first, then
// fastest, then earliest.
func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.player_id, COALESCE(p.username, ''), d.score, d.final_rank, d.elapsed_ms
		   FROM daily_results d
		   LEFT JOIN players p ON p.id = d.player_id
		  WHERE d.date=?
		  ORDER BY d.score DESC, d.elapsed_ms ASC, d.created_at ASC
		  LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LBRow, 0, limit)
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.PlayerID, &r.Username, &r.Score, &r.Rank, &r.ElapsedMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
