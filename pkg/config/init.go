package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
)

// ErrConfigExists is returned by InitConfigToPath when it would overwrite a
// file without force.
var ErrConfigExists = errors.New("configuration file already exists")

const secretBytes = 32

const configHeader = `# certstore configuration file
#
# Environment variables override any value here: CERTSTORE_<SECTION>_<KEY>,
# e.g. CERTSTORE_LOGGING_LEVEL=DEBUG. The API token secret can also be set
# through CERTSTORE_API_AUTH_SECRET.
#
# Generate a JSON schema for editor completion with: certstore config schema

`

// InitConfig writes a starter config at GetDefaultConfigPath and returns
// that path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a starter config to path with token auth turned
// on and fresh secrets for API tokens and signed upload URLs.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w at %s (use --force to overwrite)", ErrConfigExists, path)
		}
	}

	secrets, err := newSecrets(2)
	if err != nil {
		return err
	}

	cfg := GetDefaultConfig()
	cfg.Server.Auth.Enabled = true
	cfg.Server.Auth.Secret = secrets[0]
	cfg.Storage.SignedURL.Secret = secrets[1]

	return writeConfig(path, configHeader, cfg)
}

// newSecrets returns n independent hex encoded random secrets.
func newSecrets(n int) ([]string, error) {
	out := make([]string, n)
	buf := make([]byte, secretBytes)
	for i := range out {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate secret: %w", err)
		}
		out[i] = hex.EncodeToString(buf)
	}
	return out, nil
}
