// main.go
//
// svdguess entry point. Loads .env, then runs the cobra command tree until
// SIGINT or SIGTERM.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	releaseVersion = "0.1.0"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &Config{}
	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("svdguess")
	}
}
