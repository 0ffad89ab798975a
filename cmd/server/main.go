package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/quipcourt/quipcourt/internal/config"
	"github.com/quipcourt/quipcourt/internal/game"
	"github.com/quipcourt/quipcourt/internal/judge"
	"github.com/quipcourt/quipcourt/internal/recap"
	"github.com/quipcourt/quipcourt/internal/ws"
)

const version = "v1.0.0"

func newCmd(cfg *config.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIPCOURT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quipcourt",
		Short:         "Party game server: answer prompts, guess authors, get judged.",
		Args:          cobra.ExactArgs(0),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIPCOURT_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: QUIPCOURT_PORT)")
	fs.StringVar(&cfg.OpenAIKey, "openai-key", "", "API key for the judging backend (env: QUIPCOURT_OPENAI_KEY)")
	fs.StringVar(&cfg.OpenAIBaseURL, "openai-base-url", "", "custom API base URL (env: QUIPCOURT_OPENAI_BASE_URL)")
	fs.StringVar(&cfg.Model, "model", "gpt-4o-mini", "model used for judging and recaps (env: QUIPCOURT_MODEL)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", time.Hour, "time before idle sessions are cancelled (env: QUIPCOURT_SESSION_TTL)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable debug logging (env: QUIPCOURT_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quipcourt {{.Version}}\n")

	return cmd
}

func run(cfg *config.Config) error {
	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	hub := ws.NewHub()
	oracle := judge.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.Model)
	mgr := game.NewManager(game.Options{
		Oracle:     oracle,
		Recap:      recap.NewGenerator(oracle),
		Notifier:   hub,
		SessionTTL: cfg.SessionTTL,
	})

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/ws") {
			return
		}
		zerologlog.Info().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	registerRoutes(r, mgr, hub)

	ctx := newSignalContext()
	go mgr.RunJanitor(ctx, time.Minute)

	zerologlog.Info().Str("addr", cfg.Addr()).Msg("listening")
	srv := &http.Server{Addr: cfg.Addr(), Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := shutdownContext()
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func main() {
	cfg := &config.Config{}
	if err := newCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
