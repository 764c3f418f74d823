package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// KeychainStore keeps connection passwords in the macOS Keychain as generic
// passwords: service "tabledb", account = the connection's password key.
type KeychainStore struct {
	service string
}

func NewKeychainStore() *KeychainStore {
	return &KeychainStore{service: "tabledb"}
}

// errItemMissing is returned by security() when the item does not exist.
var errItemMissing = errors.New("keychain item not found")

// security runs the macOS security CLI against this store's service and
// returns its trimmed stdout.
func (k *KeychainStore) security(verb, key string, extra ...string) (string, error) {
	args := append([]string{verb, "-a", key, "-s", k.service}, extra...)
	out, err := exec.Command("security", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// 44 is errSecItemNotFound.
			if exitErr.ExitCode() == 44 {
				return "", errItemMissing
			}
			return "", fmt.Errorf("keychain %s: %s: %w", verb, strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return "", fmt.Errorf("keychain %s: %w", verb, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (k *KeychainStore) Set(key string, value []byte) error {
	_, err := k.security("add-generic-password", key, "-w", string(value), "-U")
	return err
}

// Get returns nil, nil when no item exists for key.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := k.security("find-generic-password", key, "-w")
	if errors.Is(err, errItemMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func (k *KeychainStore) Delete(key string) error {
	_, err := k.security("delete-generic-password", key)
	if errors.Is(err, errItemMissing) {
		return nil
	}
	return err
}
