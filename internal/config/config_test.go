package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "leasefin", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, ":8080", cfg.HTTP.Addr())
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodySize)
	assert.Equal(t, "leasefin.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Jurisdiction.Rules)
	assert.True(t, cfg.Jurisdiction.Builtin)
	assert.Len(t, cfg.Jurisdiction.EffectiveRules(), 3)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEASEFIN_HTTP_PORT", "9090")
	t.Setenv("LEASEFIN_APP_ENV", "production")
	t.Setenv("LEASEFIN_LOG_FORMAT", "json")
	t.Setenv("LEASEFIN_DATABASE_PATH", ":memory:")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "json", cfg.Log.Logger().Format)
	assert.Equal(t, ":memory:", cfg.Database.DSN())
}

func TestLoad_FileWithJurisdictionRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leasefin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 7000
database:
  path: /var/lib/leasefin/data.db
jurisdiction:
  default: CA
  rules:
    - jurisdiction: CA
      statute_reference: Cal. Civ. Code 1950.5
      security_deposit_limit:
        max_months: 1
      late_fee_cap:
        max_percent_of_rent: 5
    - jurisdiction: NY
      late_fee_cap:
        max_fixed_amount: 50
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.HTTP.Port)
	assert.Contains(t, cfg.Database.DSN(), "file:/var/lib/leasefin/data.db")
	assert.Equal(t, "CA", cfg.Jurisdiction.Default)
	require.Len(t, cfg.Jurisdiction.Rules, 2)

	ca := cfg.Jurisdiction.Rules[0]
	assert.Equal(t, "CA", ca.Jurisdiction)
	require.NotNil(t, ca.SecurityDepositLimit)
	assert.Equal(t, 1.0, ca.SecurityDepositLimit.MaxMonths)
	require.NotNil(t, ca.LateFeeCap)
	assert.Equal(t, 5.0, ca.LateFeeCap.MaxPercentOfRent)

	ny := cfg.Jurisdiction.Rules[1]
	assert.Nil(t, ny.SecurityDepositLimit)
	assert.Equal(t, 50.0, ny.LateFeeCap.MaxFixedAmount)

	// CA is configured, so only the county and city builtins are merged in.
	assert.Len(t, cfg.Jurisdiction.EffectiveRules(), 4)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEASEFIN_LOG_FORMAT", "xml")

	_, err := Load("")
	assert.ErrorContains(t, err, "log.format")
}
