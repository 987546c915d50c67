// config.go
//
// Command-line and environment configuration.
// Every flag can also be set as SVDGUESS_<FLAG>, e.g. SVDGUESS_CATALOG_DIR.

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/robalobadob/svdguess/internal/imagebuf"
)

const envPrefix = "SVDGUESS"

type Config struct {
	bind           string
	port           int
	db             string
	catalogDir     string
	size           int
	channels       int
	resize         bool
	sessionTimeout time.Duration
	dailySalt      string
	jwtSecret      string
	jwtTTL         time.Duration
	clientOrigin   string
	cookieSecure   bool
	logLevel       string

	// reveal
	image string
	rank  int
	out   string
}

func (c *Config) shape() imagebuf.Shape {
	return imagebuf.Shape{Height: c.size, Width: c.size, Channels: c.channels}
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if err := c.validateImage(); err != nil {
		return err
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout: %s", c.sessionTimeout)
	}
	if c.cookieSecure && c.jwtSecret == "" {
		return errors.New("--jwt-secret is required with --cookie-secure")
	}
	return nil
}

func (c *Config) validateImage() error {
	if c.size < 1 {
		return fmt.Errorf("invalid size: %d", c.size)
	}
	if err := c.shape().Validate(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.logLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.logLevel)
	}
	return nil
}

// applyLogLevel sets the global zerolog level; validate has checked it.
func (c *Config) applyLogLevel() {
	if lvl, err := zerolog.ParseLevel(c.logLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}

// bindEnv lets every flag in fs be set from SVDGUESS_<FLAG_NAME>.
// Explicit flags win over the environment.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func newRootCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "svdguess",
		Short:         "Guess the picture from its first few singular values.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := cmd.PersistentFlags()
	pf.IntVar(&cfg.size, "size", 256, "height and width images are scaled or checked to (env: SVDGUESS_SIZE)")
	pf.IntVar(&cfg.channels, "channels", 4, "samples per pixel: 1, 3 or 4 (env: SVDGUESS_CHANNELS)")
	pf.StringVar(&cfg.logLevel, "log-level", "info", "trace|debug|info|warn|error (env: SVDGUESS_LOG_LEVEL)")

	cmd.AddCommand(newServeCmd(cfg), newRevealCmd(cfg))

	bindEnv(newViper(), pf)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("svdguess v{{.Version}}\n")

	return cmd
}

func newServeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP game server",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			cfg.applyLogLevel()
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SVDGUESS_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 5175, "port to listen on (env: SVDGUESS_PORT)")
	fs.StringVar(&cfg.db, "db", "./data/svdguess.db", "sqlite database path (env: SVDGUESS_DB)")
	fs.StringVar(&cfg.catalogDir, "catalog-dir", "", "directory with catalog.csv or catalog.yaml; built-in shapes if empty (env: SVDGUESS_CATALOG_DIR)")
	fs.BoolVar(&cfg.resize, "resize", true, "scale catalog images to --size instead of rejecting them (env: SVDGUESS_RESIZE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are dropped, 0 to keep forever (env: SVDGUESS_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.dailySalt, "daily-salt", "local_dev_salt", "secret mixed into the daily target choice (env: SVDGUESS_DAILY_SALT)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "HS256 key for auth tokens (env: SVDGUESS_JWT_SECRET)")
	fs.DurationVar(&cfg.jwtTTL, "jwt-ttl", 14*24*time.Hour, "auth token lifetime (env: SVDGUESS_JWT_TTL)")
	fs.StringVar(&cfg.clientOrigin, "client-origin", "http://localhost:5173", "allowed CORS origin (env: SVDGUESS_CLIENT_ORIGIN)")
	fs.BoolVar(&cfg.cookieSecure, "cookie-secure", false, "mark cookies Secure and SameSite=None (env: SVDGUESS_COOKIE_SECURE)")

	bindEnv(newViper(), fs)
	return cmd
}

func newRevealCmd(cfg *Config) *cobra.Command {
	var scale bool
	cmd := &cobra.Command{
		Use:   "reveal",
		Short: "Write the rank-N reconstruction of an image",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validateImage(); err != nil {
				return err
			}
			if cfg.rank < 1 {
				return fmt.Errorf("invalid rank: %d", cfg.rank)
			}
			cfg.resize = scale
			cfg.applyLogLevel()
			return reveal(cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.image, "image", "i", "", "input image (png, jpeg or gif)")
	fs.IntVarP(&cfg.rank, "rank", "n", 1, "number of singular values to keep")
	fs.StringVarP(&cfg.out, "out", "o", "reveal.png", "output png")
	fs.BoolVar(&scale, "resize", true, "scale the input to --size first")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}
