package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/traildig/traildig-server/internal/config"
	"github.com/traildig/traildig-server/internal/di"
	"github.com/traildig/traildig-server/internal/di/providers"
	"github.com/traildig/traildig-server/internal/logger"
	"github.com/traildig/traildig-server/internal/service"
)

// newRootCommand creates the traildig command tree. Running it without a
// subcommand starts the server.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "traildig",
		Short:         "TrailDig work session server",
		Long:          "Tracks trail work sessions, the crews that did them and the time spent per tag.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newCreateSuperuserCommand())
	cmd.AddCommand(newSeedCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	providers.Version = version
	injector := di.NewContainer(config.NewLoader(cmd.Flags()))

	if err := di.Bootstrap(injector); err != nil {
		shutdown(injector)
		return fmt.Errorf("bootstrap server: %w", err)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down server gracefully...")
	shutdown(injector)
	log.Info("Server stopped")
	return nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, func(ctx context.Context, injector do.Injector) error {
				storeHandle := do.MustInvoke[*providers.StoreHandle](injector)
				v, err := storeHandle.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Database is at schema version %d\n", v)
				return nil
			})
		},
	}
}

func newCreateSuperuserCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create an administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("TRAILDIG_SUPERUSER_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("--email and --password (or TRAILDIG_SUPERUSER_PASSWORD) are required")
			}

			return withServices(cmd, func(ctx context.Context, injector do.Injector) error {
				authService := do.MustInvoke[*service.AuthService](injector)
				user, err := authService.CreateSuperuser(ctx, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created (%s)\n", user.Email, user.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address of the new administrator")
	cmd.Flags().StringVar(&password, "password", "", "Password of the new administrator")

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "traildig", version)
		},
	}
}

// withServices runs fn against an initialized container without starting
// the server, then shuts everything down.
func withServices(cmd *cobra.Command, fn func(context.Context, do.Injector) error) error {
	injector := di.NewContainer(config.NewLoader(cmd.Flags()))
	defer shutdown(injector)

	if err := di.InitServices(injector); err != nil {
		return err
	}
	return fn(cmd.Context(), injector)
}

func shutdown(injector *do.RootScope) {
	if err := injector.Shutdown(); err != nil {
		fmt.Fprintln(os.Stderr, "Shutdown error:", err)
	}
}
