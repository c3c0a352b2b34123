package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetAccessdEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "accessd.yaml")

	configContent := `
rbac:
  region: us-east-1
  tablename: accessd-rbac
jwt:
  expirationminutes: 45
  identities:
    - audience: aud://r1
      issuer: https://issuer.example.com
      keyid: kid-1
      algorithm: HS256
      keymaterial: test-passphrase
observability:
  servicename: accessd
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.RBAC.Region)
	assert.Equal(t, "accessd-rbac", cfg.RBAC.TableName)
	assert.Equal(t, 45, cfg.JWT.ExpirationMinutes)
	require.Len(t, cfg.JWT.Identities, 1)
	assert.Equal(t, "aud://r1", cfg.JWT.Identities[0].Audience)
	assert.Equal(t, "accessd", cfg.Observability.ServiceName)
}

func TestLoad_EnvironmentVariableOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "accessd.yaml")
	configContent := `
rbac:
  region: us-east-1
  tablename: accessd-rbac
jwt:
  identities:
    - audience: aud://r1
      issuer: https://issuer.example.com
      keyid: kid-1
      algorithm: HS256
      keymaterial: test-passphrase
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	defer unsetAccessdEnv(t, "ACCESSD_RBAC_REGION")
	os.Setenv("ACCESSD_RBAC_REGION", "eu-west-1")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.RBAC.Region)
}

func TestLoad_RejectsUnknownKey(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "accessd.yaml")
	configContent := `
rbac:
  region: us-east-1
  tablename: accessd-rbac
  unexpected: true
jwt:
  identities:
    - audience: aud://r1
      issuer: https://issuer.example.com
      keyid: kid-1
      algorithm: HS256
      keymaterial: test-passphrase
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_MissingRequiredTableName(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "accessd.yaml")
	configContent := `
rbac:
  region: us-east-1
jwt:
  identities:
    - audience: aud://r1
      issuer: https://issuer.example.com
      keyid: kid-1
      algorithm: HS256
      keymaterial: test-passphrase
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "tablename")
}

func TestLoad_MissingIdentities(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "accessd.yaml")
	configContent := `
rbac:
  region: us-east-1
  tablename: accessd-rbac
jwt:
  identities: []
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_DuplicateAudienceRejected(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "accessd.yaml")
	configContent := `
rbac:
  region: us-east-1
  tablename: accessd-rbac
jwt:
  identities:
    - audience: aud://r1
      issuer: https://issuer.example.com
      keyid: kid-1
      algorithm: HS256
      keymaterial: test-passphrase
    - audience: aud://r1
      issuer: https://issuer.example.com
      keyid: kid-2
      algorithm: HS256
      keymaterial: test-passphrase-2
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoad_ExpirationMinutesDefault(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "accessd.yaml")
	configContent := `
rbac:
  region: us-east-1
  tablename: accessd-rbac
jwt:
  identities:
    - audience: aud://r1
      issuer: https://issuer.example.com
      keyid: kid-1
      algorithm: HS256
      keymaterial: test-passphrase
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.JWT.ExpirationMinutes)
}
