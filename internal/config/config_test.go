package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, CipherBackendAES, cfg.Cipher.Backend)
	assert.Equal(t, MigrationFreshStart, cfg.Migration.Strategy)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestLoadFromBytesOverridesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
server:
  addr: "127.0.0.1:9000"
  read_timeout: 5s
store:
  ephemeral: true
migration:
  strategy: carry-over
log:
  level: debug
  pretty: true
`))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.Server.WriteTimeout, "untouched fields keep defaults")
	assert.True(t, cfg.Store.Ephemeral)
	assert.Equal(t, MigrationCarryOver, cfg.Migration.Strategy)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoadFromBytesExpandsEnv(t *testing.T) {
	t.Setenv("TEST_KMS_KEY", "arn:aws:kms:eu-west-1:123456789012:key/abc")
	cfg, err := LoadFromBytes([]byte(`
cipher:
  backend: kms
  kms_key_id: ${TEST_KMS_KEY}
`))
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:kms:eu-west-1:123456789012:key/abc", cfg.Cipher.KMSKeyID)
}

func TestValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown backend", "cipher:\n  backend: vault\n", "unknown cipher backend"},
		{"kms without key id", "cipher:\n  backend: kms\n", "requires kms_key_id"},
		{"unknown migration", "migration:\n  strategy: yolo\n", "unknown migration strategy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadFromBytesRejectsBadYAML(t *testing.T) {
	_, err := LoadFromBytes([]byte("server: [not a map"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \"127.0.0.1:7070\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7070", cfg.Server.Addr)
}

func TestStorePathExplicit(t *testing.T) {
	cfg := Default()
	cfg.Store.Path = "/tmp/custom.db"
	path, err := cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", path)
}
