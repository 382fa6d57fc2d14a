package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"meetinghost/internal/app"
	"meetinghost/internal/config"
)

const shutdownTimeout = 30 * time.Second

var errNotAgreed = errors.New("production warning not accepted")

func serveCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the meeting server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// FUNCTIONAL DISCOVERY: .env only seeds variables that are not already set
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			if configPath == "" {
				configPath = os.Getenv("MEETINGHOST_CONFIG_FILE")
			}

			cfg, err := config.LoadConfigWithPrecedence(configPath)
			if err != nil {
				return err
			}
			slog.SetDefault(newLogger(cfg.Log, cmd.ErrOrStderr()))

			if !yes && !cfg.BypassProductionWarning {
				if err := confirmProduction(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a JSON config file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the production readiness prompt")
	return cmd
}

// confirmProduction asks until the operator types "agree". Running out of
// input refuses.
func confirmProduction(in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "WARNING: this server relays live meeting audio and participant profiles.")
	fmt.Fprintln(out, "Make sure the directory and network exposure are production ready.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Type 'agree' to continue: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read confirmation: %w", err)
			}
			return errNotAgreed
		}
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "agree") {
			return nil
		}
	}
}

// run starts the application and blocks until SIGINT/SIGTERM or ctx ends.
func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		_ = application.Stop(context.Background())
		return fmt.Errorf("failed to start: %w", err)
	}

	<-ctx.Done()
	slog.Info("shutdown requested", "cause", context.Cause(ctx))

	// ARCHITECTURAL DISCOVERY: shutdown gets a fresh deadline, the run context is already done
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
