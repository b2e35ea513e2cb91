package cipher

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
)

// keyringUser is the account name the master key is filed under in the
// OS keyring. The service name comes from config so parallel installs
// don't share a key.
const keyringUser = "master-key"

// generatedKeyBytes is the size of an auto-generated master key.
const generatedKeyBytes = 32

// LoadMasterKey resolves the AESGCM master key material.
//
// Resolution order:
//  1. the environment variable named by keyEnv, when set and non-empty
//  2. the OS keyring entry for keyringService; generated and stored on
//     first run so the same key survives restarts
//
// An empty keyringService disables the keyring fallback.
func LoadMasterKey(keyEnv, keyringService string) ([]byte, error) {
	if keyEnv != "" {
		if v := os.Getenv(keyEnv); v != "" {
			log.Debug().Str("source", "env").Str("var", keyEnv).Msg("master key loaded")
			return []byte(v), nil
		}
	}

	if keyringService == "" {
		return nil, fmt.Errorf("cipher: no master key in $%s and keyring disabled", keyEnv)
	}

	secret, err := keyring.Get(keyringService, keyringUser)
	if err == nil {
		log.Debug().Str("source", "keyring").Str("service", keyringService).Msg("master key loaded")
		return []byte(secret), nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("cipher: read keyring: %w", err)
	}

	// First run on this machine: mint a key and file it away.
	fresh := make([]byte, generatedKeyBytes)
	if _, err := rand.Read(fresh); err != nil {
		return nil, fmt.Errorf("cipher: generate master key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(fresh)
	if err := keyring.Set(keyringService, keyringUser, encoded); err != nil {
		return nil, fmt.Errorf("cipher: store master key: %w", err)
	}

	log.Info().Str("service", keyringService).Msg("generated new master key in OS keyring")
	return []byte(encoded), nil
}
