package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/medibook/internal/infrastructure/observability"
	"github.com/zatekoja/medibook/pkg/config"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
	"github.com/zatekoja/medibook/pkg/secrets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{out: os.Stdout}
	err := c.rootCmd().ExecuteContext(ctx)
	c.teardown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errorMessage(err))
		os.Exit(1)
	}
}

// errorMessage shows typed errors the way the user should read them
func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return apperrors.UserMessage(err)
	}
	return err.Error()
}

// cli builds the app once per command invocation
type cli struct {
	out  io.Writer
	cfg  *config.Config
	opts []appOption

	app      *app
	shutdown func(context.Context) error
}

func (c *cli) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "medibook",
		Short:         "Book and manage medical appointments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Context())
		},
	}
	rootCmd.SetOut(c.out)

	rootCmd.AddCommand(c.loginCmd())
	rootCmd.AddCommand(c.registerCmd())
	rootCmd.AddCommand(c.logoutCmd())
	rootCmd.AddCommand(c.whoamiCmd())
	rootCmd.AddCommand(c.doctorsCmd())
	rootCmd.AddCommand(c.doctorCmd())
	rootCmd.AddCommand(c.slotsCmd())
	rootCmd.AddCommand(c.bookCmd())
	rootCmd.AddCommand(c.appointmentsCmd())
	rootCmd.AddCommand(c.agendaCmd())
	rootCmd.AddCommand(c.availabilityCmd())
	rootCmd.AddCommand(c.profileCmd())

	return rootCmd
}

func (c *cli) setup(ctx context.Context) error {
	if c.app != nil {
		return nil
	}
	cfg := c.cfg
	if cfg == nil {
		vault, err := secrets.ApplyVaultSecrets(ctx, secrets.LoadVaultConfigFromEnv())
		if err != nil {
			return fmt.Errorf("failed to load secrets from vault: %w", err)
		}
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		observability.InitLogger(cfg.OTEL.ServiceName, cfg.Log.Env, cfg.Log.Level)
		if vault.Enabled {
			log.Debug().Str("path", vault.Path).Int("loaded", vault.Loaded).Int("skipped", vault.Skipped).Msg("Applied vault secrets")
		}
	}

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			c.shutdown = shutdown
		}
	}

	a, err := newApp(ctx, cfg, c.out, c.opts...)
	if err != nil {
		return err
	}
	c.app = a

	if err := a.bootstrap(ctx); err != nil {
		log.Warn().Err(err).Msg("Stored session could not be restored")
		fmt.Fprintln(c.out, "Your previous session could not be restored:", errorMessage(err))
	}
	return nil
}

func (c *cli) teardown() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
	if c.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.shutdown(ctx); err != nil {
			log.Debug().Err(err).Msg("Error shutting down OpenTelemetry")
		}
		c.shutdown = nil
	}
}
