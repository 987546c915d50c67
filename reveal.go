// reveal.go
//
// The reveal command: write one rank-N reconstruction to disk.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/svdguess/internal/game"
	"github.com/robalobadob/svdguess/internal/imagebuf"
	"github.com/robalobadob/svdguess/internal/svd"
)

// reveal writes the rank-N reconstruction of cfg.image to cfg.out.
// Ranks beyond the image's rank are capped.
func reveal(cfg *Config) error {
	raw, err := os.ReadFile(cfg.image)
	if err != nil {
		return err
	}
	codec, err := newCodec(cfg)
	if err != nil {
		return err
	}
	img, err := codec.Load(raw)
	if err != nil {
		return fmt.Errorf("load %s: %w", cfg.image, err)
	}

	t0 := time.Now()
	d, err := svd.Factorize(img)
	if err != nil {
		return err
	}
	n := min(cfg.rank, d.Rank())
	out, err := d.Reconstruct(n)
	if err != nil {
		return err
	}
	mse, err := imagebuf.MSE(img, out)
	if err != nil {
		return err
	}

	b, err := imagebuf.Export(out)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.out, b, 0o644); err != nil {
		return err
	}

	vals := d.Values()
	st := game.ComputeStats(n, img.Shape)
	log.Info().
		Str("out", cfg.out).
		Str("shape", img.Shape.String()).
		Int("rank", n).
		Int("maxRank", d.Rank()).
		Int("bytesShown", st.BytesShown).
		Str("compression", st.CompressionText).
		Float64("energy", d.Energy(n)).
		Floats64("top", vals[:min(5, len(vals))]).
		Float64("mse", mse).
		Dur("took", time.Since(t0)).
		Msg("reconstructed")
	return nil
}
