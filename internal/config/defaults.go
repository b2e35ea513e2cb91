// Package config - defaults.go centralizes default values for the gateway.
package config

import "time"

// =============================================================================
// SERVER DEFAULTS
// =============================================================================

// DefaultAddr binds to loopback only; the UI layer runs on the same
// machine and nothing else should reach the settings surface.
const DefaultAddr = "127.0.0.1:8787"

// DefaultReadTimeout for the HTTP server.
const DefaultReadTimeout = 10 * time.Second

// DefaultWriteTimeout for the HTTP server. Generous enough for the
// WebSocket upgrade path.
const DefaultWriteTimeout = 30 * time.Second

// =============================================================================
// STORE AND CIPHER DEFAULTS
// =============================================================================

// DefaultStoreFile is the SQLite file name, created under the user
// config directory when no explicit path is configured.
const DefaultStoreFile = "settings.db"

// DefaultKeyEnv is the environment variable consulted first for the
// master key.
const DefaultKeyEnv = "DESKPILOT_MASTER_KEY"

// DefaultKeyringService is the OS keyring service name the generated
// master key is filed under.
const DefaultKeyringService = "deskpilot-settings-gateway"

// CipherBackendAES selects local AES-256-GCM encryption.
const CipherBackendAES = "aes"

// CipherBackendKMS selects AWS KMS-delegated encryption.
const CipherBackendKMS = "kms"

// =============================================================================
// MIGRATION DEFAULTS
// =============================================================================

// MigrationFreshStart discards legacy flat keys on first run.
const MigrationFreshStart = "fresh-start"

// MigrationCarryOver promotes legacy flat values into the new document.
const MigrationCarryOver = "carry-over"

// DefaultLogLevel for zerolog.
const DefaultLogLevel = "info"
