package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cipher241/Smart-Cities-Banorte/internal/config"
	"github.com/cipher241/Smart-Cities-Banorte/internal/hermes"
	"github.com/cipher241/Smart-Cities-Banorte/internal/store"
)

// exitErr carries a process exit code through cobra's RunE.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// app is the shared state every subcommand starts from.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "banorte",
		Short:         "Extract, score and train on municipal project documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := config.LoadDotEnv(envFile); err != nil {
				return codeError(3, "loading %s: %s", envFile, err)
			}
			a.cfg = config.Load()
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				a.cfg.LogLevel = lvl
			}
			setupLogging(a.cfg.LogLevel)
			a.logger = slog.Default()
			return nil
		},
	}
	root.PersistentFlags().String("env-file", ".env", "Environment file loaded before reading configuration")
	root.PersistentFlags().String("log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		a.serveCmd(),
		a.processCmd(),
		a.monitorCmd(),
		a.warehouseCmd(),
		a.trainCmd(),
		a.workerCmd(),
		recoverCmd(a),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openEvents connects to NATS when NATS_URL is set. The returned client is
// nil when events are disabled or the connection failed; the publisher is
// never nil.
func (a *app) openEvents(ctx context.Context) (hermes.Publisher, *hermes.Client) {
	if a.cfg.NatsURL == "" {
		return hermes.Nop{}, nil
	}
	client, err := hermes.NewClient(ctx, a.cfg.NatsURL, a.cfg.NatsToken, a.logger)
	if err != nil {
		a.logger.Warn("event bus unavailable, continuing without events", "error", err)
		return hermes.Nop{}, nil
	}
	return client, client
}

// openStore connects to the warehouse and makes sure the schema exists.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	st, err := store.New(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	a.logger.Info("connected to warehouse")
	return st, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
