// internal/game/score.go
//
// Scoring and disclosure stats.

package game

import (
	"fmt"

	"github.com/robalobadob/svdguess/internal/imagebuf"
)

// MaxScore is awarded for guessing from the rank-1 image.
const MaxScore = 10

// Score is max(0, 11-n) for a win at rank n.
func Score(n int) int {
	return max(0, MaxScore+1-n)
}

// Stats describes how much of the image has been disclosed.
type Stats struct {
	Rank            int     `json:"rank"`
	BytesShown      int     `json:"bytesShown"`
	TotalBytes      int     `json:"totalBytes"`
	Compression     float64 `json:"compression"`
	CompressionText string  `json:"compressionText"`
}

// ComputeStats counts one scalar per unit: each rank discloses a column of U
// (H·C values), a row of Vᵗ (W values) and one singular value.
//
// Bytes shown are n·(W + H·C + 1). For square images this equals the
// n·(H + H·C + 1) count the game has always shown; for non-square ones the
// row of Vᵗ is W long, so W is used.
func ComputeStats(n int, shape imagebuf.Shape) Stats {
	shown := n * (shape.Width + shape.Height*shape.Channels + 1)
	total := shape.Len()
	var pct float64
	if total > 0 {
		pct = (1 - float64(shown)/float64(total)) * 100
	}
	return Stats{
		Rank:            n,
		BytesShown:      shown,
		TotalBytes:      total,
		Compression:     pct,
		CompressionText: fmt.Sprintf("%.2f%%", pct),
	}
}

// Lines renders the stats the way the game page shows them.
// Nothing is shown before a round starts.
func (s Stats) Lines() []string {
	if s.Rank == 0 {
		return nil
	}
	return []string{
		fmt.Sprintf("Number of singular values: %d", s.Rank),
		fmt.Sprintf("Data shown: %dB", s.BytesShown),
		fmt.Sprintf("Compression: %s", s.CompressionText),
	}
}
