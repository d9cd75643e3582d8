// Package secrets resolves named credentials for the pipeline. Secrets
// live in the OS keychain under the service name "admart"; an uppercase
// environment variable of the same name overrides the keychain, which
// is what scheduled runs on headless hosts use.
package secrets

import (
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"admart/pkg/errors"
)

const keyringService = "admart"

// Store resolves logical secret names to values.
type Store interface {
	Fetch(name string) (string, error)
}

// KeyringStore reads secrets from the OS keychain with environment
// override.
type KeyringStore struct{}

// NewStore returns the default secret store.
func NewStore() *KeyringStore {
	return &KeyringStore{}
}

// Fetch returns the secret stored under the logical name. The
// environment variable form of the name (uppercased) wins over the
// keychain so runs can inject credentials without touching the host
// keyring.
func (s *KeyringStore) Fetch(name string) (string, error) {
	if v := os.Getenv(strings.ToUpper(name)); v != "" {
		return v, nil
	}

	v, err := keyring.Get(keyringService, name)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", errors.Newf(errors.ErrCodeSecretNotFound,
				"secret %s not found in keychain or environment", name).
				WithContext("secret", name)
		}
		return "", errors.SecretError(name, err)
	}
	return v, nil
}

// Put stores a secret under the logical name, used by the init wizard.
func (s *KeyringStore) Put(name, value string) error {
	if err := keyring.Set(keyringService, name, value); err != nil {
		return errors.SecretError(name, err)
	}
	return nil
}

// AccessTokenName returns the logical name of the shared vendor API
// access token for a company and platform.
func AccessTokenName(company, platform string) string {
	return company + "_secret_all_" + platform + "_token_access_user"
}

// AccountIDName returns the logical name of the advertiser account ID
// secret for one department and account.
func AccountIDName(company, department, platform, account string) string {
	return company + "_secret_" + department + "_" + platform + "_account_id_" + account
}
