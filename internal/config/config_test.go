package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectConfigPath(t *testing.T) string {
	t.Helper()

	// Get the project root by going up from internal/config
	projectRoot, err := filepath.Abs("../../")
	require.NoError(t, err, "failed to get project root")

	return filepath.Join(projectRoot, "etc") + string(filepath.Separator)
}

func TestReadConfig(t *testing.T) {
	cfg, err := ReadConfig(projectConfigPath(t))
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Title)
	assert.NotZero(t, cfg.Webserver.Port)
	assert.NotEmpty(t, cfg.Webserver.URL)
	assert.Equal(t, "sqlite", cfg.DB.GormEngine)

	// single string values become one element lists
	assert.Equal(t, []string{"https://api.example.com/service"}, cfg.TokenAuth.Audience)
	assert.Len(t, cfg.TokenAuth.Issuer, 2)
	assert.Equal(t, []string{"service"}, cfg.TokenAuth.APIScopePrefix)
	assert.Equal(t, []string{"helsinki_adfs"}, cfg.TokenAuth.UserMigrateAMRs)
	assert.Equal(t, "Bearer", cfg.TokenAuth.AuthScheme)
	assert.Equal(t, 86400, cfg.TokenAuth.OIDCConfigExpirationTime)
	assert.True(t, cfg.BackChannelLogout.Enabled)
	assert.Equal(t, "db", cfg.Revocation.Backend)
}

func TestTokenAuthDefaults(t *testing.T) {
	ta := TokenAuth{}.WithDefaults()

	assert.Equal(t, []string{DefaultAPIAuthorizationField}, ta.APIAuthorizationField)
	assert.Equal(t, DefaultAuthScheme, ta.AuthScheme)
	assert.Equal(t, DefaultOIDCConfigExpirationTime, ta.OIDCConfigExpirationTime)
	assert.Equal(t, DefaultADGroupsField, ta.ADGroupsField)
	assert.Equal(t, int64(86400), int64(ta.KeyCacheTTL().Seconds()))
	assert.Equal(t, int64(DefaultDiscoveryTimeout), int64(ta.DiscoveryTimeoutDuration().Seconds()))

	kept := TokenAuth{AuthScheme: "JWT", ADGroupsField: "groups"}.WithDefaults()
	assert.Equal(t, "JWT", kept.AuthScheme)
	assert.Equal(t, "groups", kept.ADGroupsField)
}

func TestConfigValidation(t *testing.T) {
	validTokenAuth := TokenAuth{
		Audience: []string{"svc"},
		Issuer:   []string{"https://idp"},
	}

	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name: "valid config",
			config: Config{
				Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
				TokenAuth: validTokenAuth,
			},
		},
		{
			name: "missing port",
			config: Config{
				Webserver: Webserver{Port: 0, URL: "http://localhost:8080"},
				TokenAuth: validTokenAuth,
			},
			wantErr: ErrWebServerPortCanNotBeZero,
		},
		{
			name: "missing URL",
			config: Config{
				Webserver: Webserver{Port: 8080},
				TokenAuth: validTokenAuth,
			},
			wantErr: ErrEmptyURL,
		},
		{
			name: "missing issuer",
			config: Config{
				Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
				TokenAuth: TokenAuth{Audience: []string{"svc"}},
			},
			wantErr: ErrInvalidTokenAuth,
		},
		{
			name: "empty audience entry",
			config: Config{
				Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
				TokenAuth: TokenAuth{Audience: []string{""}, Issuer: []string{"https://idp"}},
			},
			wantErr: ErrInvalidTokenAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(&tt.config)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, 5, tt.config.Webserver.ShutDownTime)

				return
			}

			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidationRejectsUnknownRevocationBackend(t *testing.T) {
	cfg := Config{
		Webserver:  Webserver{Port: 8080, URL: "http://localhost:8080"},
		TokenAuth:  TokenAuth{Audience: []string{"svc"}, Issuer: []string{"https://idp"}},
		Revocation: Revocation{Backend: "memcached"},
	}

	require.Error(t, validate(&cfg))
}

func TestReadConfigWithJSONOverride(t *testing.T) {
	t.Setenv(EnvJSONOverride, `{"Title":"Test Override","Webserver":{"Port":9090,"URL":"http://localhost:9090"}}`)

	cfg, err := ReadConfig(projectConfigPath(t))
	require.NoError(t, err)

	assert.Equal(t, "Test Override", cfg.Title)
	assert.Equal(t, 9090, cfg.Webserver.Port)
}

func TestJSONOverrideAcceptsStringForList(t *testing.T) {
	t.Setenv(EnvJSONOverride, `{"tokenauth":{"audience":"svc","issuer":["https://a","https://b"]},"DevMode":true}`)

	cfg, err := ReadConfig(projectConfigPath(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"svc"}, cfg.TokenAuth.Audience)
	assert.Equal(t, []string{"https://a", "https://b"}, cfg.TokenAuth.Issuer)
	assert.Equal(t, "Bearer", cfg.TokenAuth.AuthScheme, "file values survive the override")
	assert.Equal(t, "debug", cfg.Log.LogLevel)

	t.Setenv(EnvJSONOverride, `{"Title":`)

	_, err = ReadConfig(projectConfigPath(t))
	require.Error(t, err)
}

func TestApplyDevMode(t *testing.T) {
	cfg := Config{}
	cfg.Log.LogLevel = "info"
	cfg.ApplyDevMode()
	assert.Equal(t, "info", cfg.Log.LogLevel)
	assert.False(t, cfg.Log.Console.Enabled)

	cfg.DevMode = true
	cfg.ApplyDevMode()
	assert.Equal(t, "debug", cfg.Log.LogLevel)
	assert.True(t, cfg.Log.Console.Enabled)
	assert.True(t, cfg.Log.Console.UseConsoleWriter)
	assert.True(t, cfg.Log.EnableAccessLogToConsole)

	cfg.Log.LogLevel = "trace"
	cfg.ApplyDevMode()
	assert.Equal(t, "trace", cfg.Log.LogLevel)
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := ReadConfig(t.TempDir())
	require.Error(t, err)
}

func TestReadConfigFromTempDir(t *testing.T) {
	dir := t.TempDir()
	content := `
[Webserver]
Port = 8081
URL = "http://localhost:8081"

[tokenauth]
audience = ["a", "b"]
issuer = "https://idp"
apiScopePrefix = ["read", "write"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.toml"), []byte(content), 0o600))

	cfg, err := ReadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, cfg.TokenAuth.Audience)
	assert.Equal(t, []string{"https://idp"}, cfg.TokenAuth.Issuer)
	assert.Equal(t, []string{"read", "write"}, cfg.TokenAuth.APIScopePrefix)
	assert.Equal(t, []string{DefaultAPIAuthorizationField}, cfg.TokenAuth.APIAuthorizationField)
}

func TestDumpConfig(t *testing.T) {
	cfg := Config{
		Title:   "Test",
		DevMode: true,
		Webserver: Webserver{
			Port: 8080,
			URL:  "http://localhost:8080",
		},
		TokenAuth: TokenAuth{Issuer: []string{"https://idp"}},
	}

	tomlStr, err := DumpConfig(&cfg)
	require.NoError(t, err)
	assert.True(t, strings.Contains(tomlStr, "Test"))
	assert.True(t, strings.Contains(tomlStr, "https://idp"))

	jsonStr, err := DumpConfigJSON(&cfg)
	require.NoError(t, err)
	assert.True(t, strings.Contains(jsonStr, `"Title": "Test"`))
}
