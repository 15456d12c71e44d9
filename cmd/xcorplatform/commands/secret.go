package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

func secretCommand() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "manage the stored client secret",
		Commands: []*cli.Command{
			{
				Name:   "set",
				Usage:  "store the client secret in the configured backend",
				Action: secretSetAction,
			},
		},
	}
}

func secretSetAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := cfg.Auth.NewSecretStore()
	if err != nil {
		return fmt.Errorf("failed to create secret store: %w", err)
	}

	secret, err := readSecret()
	if err != nil {
		return err
	}
	if secret == "" {
		return fmt.Errorf("client secret cannot be empty")
	}

	if err := store.Write(ctx, secret); err != nil {
		return fmt.Errorf("failed to store client secret: %w", err)
	}

	fmt.Fprintln(cmd.Writer, "client secret stored")
	return nil
}

// readSecret reads the client secret without echoing it when stdin is a
// terminal, and from piped stdin otherwise.
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Client secret: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading secret from stdin: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
