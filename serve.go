// serve.go
//
// The serve command: open the database, build the engine, run the HTTP
// server until the context is canceled.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/svdguess/assets"
	"github.com/robalobadob/svdguess/internal/catalog"
	"github.com/robalobadob/svdguess/internal/database"
	"github.com/robalobadob/svdguess/internal/game"
	"github.com/robalobadob/svdguess/internal/httpserver"
	"github.com/robalobadob/svdguess/internal/imagebuf"
	"github.com/robalobadob/svdguess/internal/store"
)

const timeout = 30 * time.Second

// openCatalog loads the configured directory, or falls back to built-in
// shapes drawn at the game's size.
func openCatalog(cfg *Config) (game.Catalog, error) {
	if cfg.catalogDir == "" {
		log.Info().Msg("no catalog dir set, using built-in shapes")
		return catalog.NewSynthetic(cfg.size, cfg.size)
	}
	return catalog.OpenDir(cfg.catalogDir)
}

// newCodec returns a codec for the configured shape, scaling if asked to.
func newCodec(cfg *Config) (game.Codec, error) {
	c, err := imagebuf.NewCodec(cfg.shape())
	if err != nil {
		return nil, err
	}
	if cfg.resize {
		return imagebuf.ScalingCodec{Codec: c}, nil
	}
	return c, nil
}

func serve(ctx context.Context, cfg *Config) error {
	db, err := database.Open(cfg.db)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(db, assets.Migrations()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	codec, err := newCodec(cfg)
	if err != nil {
		return err
	}

	eng := game.NewEngine(cat, codec, game.WithLogger(log.Logger))
	sessions := store.NewMemoryStore()
	srv := httpserver.New(eng, sessions, db, httpserver.Options{
		JWTSecret:    cfg.jwtSecret,
		JWTTTL:       cfg.jwtTTL,
		CookieSecure: cfg.cookieSecure,
		ClientOrigin: cfg.clientOrigin,
		DailySalt:    cfg.dailySalt,
	})

	go store.RunReaper(ctx, sessions, cfg.sessionTimeout, time.Minute, nil)

	hs := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           srv.Router(),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", hs.Addr).
			Str("shape", cfg.shape().String()).
			Str("version", releaseVersion).
			Msg("starting svdguess")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}
