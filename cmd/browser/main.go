package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/noah-isme/supatable-api/internal/browser"
	"github.com/noah-isme/supatable-api/internal/client"
	"github.com/noah-isme/supatable-api/internal/models"
	"github.com/noah-isme/supatable-api/pkg/logger"
)

type options struct {
	Endpoint string        `validate:"required,url"`
	Debounce time.Duration `validate:"min=0"`
	Timeout  time.Duration `validate:"gt=0"`
	Search   string
	Role     string `validate:"omitempty,oneof=All Admin Manager User"`
	Limit    int    `validate:"min=1,max=200"`
	LogLevel string `validate:"oneof=debug info warn error"`
}

func (o options) validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "browser",
		Short: "Browse users of a supatable API from the terminal",
		Long:  "Interactive user browser with debounced search, role filter, pagination and local sort.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Endpoint, "endpoint", "http://localhost:8080/graphql", "GraphQL endpoint")
	flags.DurationVar(&opts.Debounce, "debounce", browser.DefaultDebounce, "quiet period before a search edit is sent")
	flags.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request timeout")
	flags.StringVar(&opts.Search, "search", "", "initial search")
	flags.StringVar(&opts.Role, "role", string(models.RoleAll), "initial role filter")
	flags.IntVar(&opts.Limit, "limit", models.DefaultUserLimit, "page size")
	flags.StringVar(&opts.LogLevel, "log-level", "warn", "log level written to stderr")

	return cmd
}

func run(ctx context.Context, opts options) error {
	logr, err := logger.NewConsole(opts.LogLevel)
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	users := client.NewUsersClient(opts.Endpoint, nil, opts.Timeout)
	coord := browser.NewCoordinator(users, browser.Options{
		Debounce: opts.Debounce,
		Timeout:  opts.Timeout,
		Logger:   logr,
	})
	defer coord.Close()

	session := browser.NewSession(coord, os.Stdout)
	fmt.Fprintf(os.Stdout, "connected to %s, type help for commands\n", opts.Endpoint)
	coord.Start(models.NormalizeUserFilter(opts.Search, opts.Role, 0, opts.Limit))

	return session.Run(ctx, os.Stdin)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
