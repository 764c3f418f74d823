package secret

import (
	"fmt"
	"os"
	"strings"
)

// SecretStore holds the passwords of external connections, addressed by the
// connection's password_key.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// New returns the store for a provider name from the config file.
func New(provider string) (SecretStore, error) {
	switch provider {
	case "", "env":
		return NewEnvStore(), nil
	case "keychain":
		return NewKeychainStore(), nil
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", provider)
	}
}

// Password resolves key through store. An empty key means no password.
func Password(store SecretStore, key string) (string, error) {
	if key == "" || store == nil {
		return "", nil
	}
	v, err := store.Get(key)
	if err != nil {
		return "", fmt.Errorf("secret %s: %w", key, err)
	}
	return string(v), nil
}

// EnvStore reads secrets from environment variables. Keys are upper-cased
// and dashes or dots become underscores, so "warehouse.password" reads
// $WAREHOUSE_PASSWORD.
type EnvStore struct{}

func NewEnvStore() *EnvStore { return &EnvStore{} }

func envName(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}

func (e *EnvStore) Set(key string, value []byte) error {
	return os.Setenv(envName(key), string(value))
}

func (e *EnvStore) Get(key string) ([]byte, error) {
	v, ok := os.LookupEnv(envName(key))
	if !ok {
		return nil, nil
	}
	return []byte(v), nil
}

func (e *EnvStore) Delete(key string) error {
	return os.Unsetenv(envName(key))
}
