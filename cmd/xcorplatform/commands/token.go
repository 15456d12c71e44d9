package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/nr1etech/xcorplatform-client/internal/app"
	"github.com/nr1etech/xcorplatform-client/internal/credentials"
	"github.com/nr1etech/xcorplatform-client/internal/observability"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "credential manager operations",
		Commands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "obtain a valid access token and print it",
				Action: tokenGetAction,
			},
			{
				Name:   "refresh",
				Usage:  "force a token exchange against the endpoint",
				Action: tokenRefreshAction,
			},
		},
	}
}

// newManager builds a credential manager from CLI configuration with
// observability installed.
func newManager(cmd *cli.Command) (*credentials.Manager, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat)); err != nil {
		return nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	manager, err := app.NewCredentialManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential manager: %w", err)
	}
	return manager, nil
}

func tokenGetAction(ctx context.Context, cmd *cli.Command) error {
	manager, err := newManager(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	token, err := manager.AccessToken(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.Writer, token)
	return err
}

func tokenRefreshAction(ctx context.Context, cmd *cli.Command) error {
	manager, err := newManager(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	if err := manager.Refresh(ctx); err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	slog.InfoContext(ctx, "token exchange succeeded")
	return nil
}
