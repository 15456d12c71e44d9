package secretstore

import "context"

// SecretStore reads and writes the client secret.
type SecretStore interface {
	// Read returns the stored secret. Returns error if the secret is missing
	// or empty.
	Read(ctx context.Context) (string, error)

	// Write persists the secret to storage. Returns error if the storage
	// backend is read-only (e.g., environment variables) or if the write
	// operation fails.
	Write(ctx context.Context, secret string) error
}
