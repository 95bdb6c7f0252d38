package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/redraskal/gateway/internal/errors"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(newViper())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Hostname)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, EnvProd, cfg.Env)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 3600, cfg.CacheTTL)
	assert.True(t, cfg.JSONErrors)
	assert.Equal(t, int64(1<<20), cfg.MaxBodySize)
	assert.Equal(t, "pages", cfg.PagesDir)
	assert.Equal(t, "public", cfg.PublicDir)
	assert.Equal(t, int64(0), cfg.Reloads)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, "auto", cfg.LogFormat)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("GATEWAY_PORT", "8080")
	t.Setenv("GATEWAY_ENV", "DEV")
	t.Setenv("GATEWAY_DEBUG", "1")
	t.Setenv("GATEWAY_JSON_ERRORS", "no")
	t.Setenv("GATEWAY_RELOADS", "3")
	t.Setenv("GATEWAY_ALLOWED_ORIGINS", "example.com, *.example.org")

	cfg, err := LoadFrom(newViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, EnvDev, cfg.Env)
	assert.True(t, cfg.Env.IsDev())
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.JSONErrors)
	assert.Equal(t, int64(3), cfg.Reloads)
	assert.Equal(t, []string{"example.com", "*.example.org"}, cfg.AllowedOrigins)
}

func TestLoadExplicitValues(t *testing.T) {
	v := viper.New()
	v.Set(KeyAllowedOrigins, []string{"a.test", " "})
	v.Set(KeyDebug, true)
	v.Set(KeyLogFormat, "JSON")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.test"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestEnvironmentIsDev(t *testing.T) {
	assert.True(t, EnvDev.IsDev())
	assert.False(t, EnvProd.IsDev())
	assert.False(t, Environment("staging").IsDev())
}

func TestParseBool(t *testing.T) {
	tests := map[string]bool{
		"true":  true,
		"TRUE":  true,
		"True":  true,
		"1":     true,
		" 1 ":   true,
		"false": false,
		"0":     false,
		"yes":   false,
		"":      false,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseBool(in), "input %q", in)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
		code string
	}{
		{"port too high", KeyPort, 70000, "ERR_PORT"},
		{"negative port", KeyPort, -1, "ERR_PORT"},
		{"dangerous hostname", KeyHostname, "localhost;rm", "ERR_HOSTNAME"},
		{"negative ttl", KeyCacheTTL, -5, "ERR_CACHE_TTL"},
		{"negative body size", KeyMaxBodySize, -1, "ERR_MAX_BODY_SIZE"},
		{"pages traversal", KeyPagesDir, "../pages", "ERR_PATH_TRAVERSAL"},
		{"empty public dir", KeyPublicDir, "", "ERR_INVALID_PATH"},
		{"gen with shell chars", KeyGen, "a;b.go", "ERR_INVALID_PATH"},
		{"bad log format", KeyLogFormat, "xml", "ERR_LOG_FORMAT"},
		{"bad origin", KeyAllowedOrigins, []string{"<script>"}, "ERR_INVALID_ORIGIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)

			_, err := LoadFrom(v)
			require.Error(t, err)

			var ge *gwerrors.GatewayError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, tt.code, ge.Code)
		})
	}
}

func TestValidationAllowsAbsoluteAndNestedPaths(t *testing.T) {
	v := viper.New()
	v.Set(KeyPagesDir, "/srv/site/pages")
	v.Set(KeyPublicDir, "site/public")
	v.Set(KeyGen, "blog/[slug].go")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "blog/[slug].go", cfg.Gen)
}

func TestLoadUsesGlobalViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set(KeyPort, 4000)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
}
