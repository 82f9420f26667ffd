package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	return Parse(flag.NewFlagSet("test", flag.ContinueOnError), args)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(t, "-token-secret", "s3cr3t")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:80", cfg.Addr)
	assert.Equal(t, "http://localhost:80", cfg.Url())
	assert.Equal(t, 120*time.Second, cfg.TokenTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 2.0, cfg.AutosaveRate)
	assert.Empty(t, cfg.RedisAddr)
	assert.False(t, cfg.TrustProxy)
	assert.Equal(t, 80.0, cfg.Locale.FinalizeThreshold)
	assert.Equal(t, "pt-BR", cfg.Locale.Language)
}

func TestParse_Env(t *testing.T) {
	t.Setenv("CERIMONIAL_PORT", "8080")
	t.Setenv("CERIMONIAL_TOKEN_SECRET", "from-env")
	t.Setenv("CERIMONIAL_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := parse(t, "-host", "127.0.0.1", "-trust-proxy")
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxy)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
	assert.Equal(t, "from-env", cfg.TokenSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestParse_Errors(t *testing.T) {
	_, err := parse(t)
	assert.EqualError(t, err, "missing parameter -token-secret")

	_, err = parse(t, "-token-secret", "x", "-autosave-rate", "0")
	assert.Error(t, err)

	_, err = parse(t, "-token-secret", "x", "-locale-file", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadLocale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locale.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
finalize_threshold: 90
timezone: UTC
fallbacks:
  date_undefined: "Sem data"
signature:
  awaiting: "Pendente"
`), 0o600))

	l, err := LoadLocale(path)
	require.NoError(t, err)
	assert.Equal(t, 90.0, l.FinalizeThreshold)
	assert.Equal(t, "Sem data", l.Fallbacks.DateUndefined)
	assert.Equal(t, "Data inválida", l.Fallbacks.DateInvalid, "keys left out keep their defaults")
	assert.Equal(t, "R$", l.CurrencySymbol)

	tl, err := l.Templating()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, tl.Location)
	assert.Equal(t, "Pendente", tl.AwaitingSignature)
	assert.Equal(t, "pt-BR", tl.Language.String())
}

func TestLoadLocale_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("finalize_threshold: [1"), 0o600))
	_, err := LoadLocale(bad)
	assert.Error(t, err)

	out := filepath.Join(dir, "range.yaml")
	require.NoError(t, os.WriteFile(out, []byte("finalize_threshold: 120"), 0o600))
	_, err = LoadLocale(out)
	assert.Error(t, err)

	l := DefaultLocale()
	l.Timezone = "Mars/Olympus"
	_, err = l.Templating()
	assert.Error(t, err)
}
