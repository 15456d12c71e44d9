package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/nr1etech/xcorplatform-client/internal/credentials"
	"github.com/nr1etech/xcorplatform-client/internal/secretstore"
)

// ExchangerFactory creates a token endpoint client from a loaded client secret.
type ExchangerFactory func(secret string) credentials.Exchanger

// StoredSecretExchanger is a credentials.Exchanger that loads the client
// secret from a SecretStore on first use. Initialization is deferred so that
// application startup performs no I/O and a missing secret surfaces on the
// first exchange instead.
type StoredSecretExchanger struct {
	factory     ExchangerFactory
	secretStore secretstore.SecretStore

	exchanger func() (credentials.Exchanger, error)
}

// Compile-time check to ensure StoredSecretExchanger implements credentials.Exchanger
var _ credentials.Exchanger = (*StoredSecretExchanger)(nil)

// NewStoredSecretExchanger creates a StoredSecretExchanger.
// No I/O is performed until the first Exchange call.
func NewStoredSecretExchanger(factory ExchangerFactory, secretStore secretstore.SecretStore) (*StoredSecretExchanger, error) {
	if factory == nil {
		return nil, fmt.Errorf("missing exchanger factory")
	}
	if secretStore == nil {
		return nil, fmt.Errorf("missing secret store")
	}

	s := &StoredSecretExchanger{
		factory:     factory,
		secretStore: secretStore,
	}

	s.exchanger = sync.OnceValues(s.createExchanger)

	return s, nil
}

// createExchanger performs one-time initialization of the underlying exchanger.
func (s *StoredSecretExchanger) createExchanger() (credentials.Exchanger, error) {
	// sync.OnceValues takes no context; the read is local (file, env, or
	// keyring) so a background context is acceptable here.
	secret, err := s.secretStore.Read(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret: %w", err)
	}

	return s.factory(secret), nil
}

// Exchange implements credentials.Exchanger, loading the secret on first call.
func (s *StoredSecretExchanger) Exchange(ctx context.Context) (*credentials.Grant, error) {
	ex, err := s.exchanger()
	if err != nil {
		return nil, err
	}
	return ex.Exchange(ctx)
}
