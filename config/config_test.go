package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-approval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
token:
  signing_key: secret
  expiration: 30m
approval:
  admin_allow_list:
    - Admin@Example.com
  resubmission_policy: reject
  validate_payload: true
`)

	cfg, err := Load(WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.GetSigningKey())
	assert.Equal(t, 30*time.Minute, cfg.GetTokenExpiration())
	assert.Equal(t, []string{"Admin@Example.com"}, cfg.GetAdminAllowList())
	assert.Equal(t, "reject", cfg.GetResubmissionPolicy())
	assert.True(t, cfg.GetValidatePayload())
	assert.Equal(t, "go-approval", cfg.GetIssuer())
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestResubmissionPolicyIgnoresCase(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
token:
  signing_key: secret
approval:
  resubmission_policy: Reject
`)

	cfg, err := Load(WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, approval.ResubmitReject, approval.ParseResubmissionPolicy(cfg.GetResubmissionPolicy()))
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "APPROVAL_TOKEN_SIGNING_KEY=from-env\n")
	cfgPath := writeFile(t, dir, "config.yaml", "server:\n  addr: \":9090\"\n")
	t.Cleanup(func() { os.Unsetenv("APPROVAL_TOKEN_SIGNING_KEY") })

	cfg, err := Load(WithConfigFile(cfgPath), WithEnvFile(envPath))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.GetSigningKey())
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing signing key",
			content: "token:\n  expiration: 1h\n",
			wantErr: "token.signing_key is required",
		},
		{
			name:    "unknown resubmission policy",
			content: "token:\n  signing_key: k\napproval:\n  resubmission_policy: merge\n",
			wantErr: "approval.resubmission_policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tt.content)
			_, err := Load(WithConfigFile(path))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoaderCurrent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "token:\n  signing_key: k\n")

	loader := NewLoader(WithConfigFile(path))
	assert.Nil(t, loader.Current())

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, loader.Current())
}
