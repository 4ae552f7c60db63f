package fiber_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapter "github.com/GoPowerDNS-Admin/go-oidc-users/internal/logger/adapter/fiber"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/logger"
)

// accessLine implements the logged json format.
type accessLine struct {
	Status    int    `json:"status"`
	URI       string `json:"URI"`
	Method    string `json:"method"`
	Host      string `json:"host"`
	Principal string `json:"principal"`
}

func TestNew(t *testing.T) {
	consoleLog := logger.Log{
		EnableAccessLogToConsole: true,
		DisableCheckAlive:        true,
		Console:                  logger.Console{Enabled: true},
	}

	tests := []struct {
		name       string
		targetPath string
		config     adapter.Config
		want       *accessLine
	}{
		{
			name:       "no writer no output",
			targetPath: "/",
		},
		{
			name:       "get / log to console json",
			targetPath: "/",
			config:     adapter.Config{Config: consoleLog},
			want:       &accessLine{Status: 200, URI: "/", Method: fiber.MethodGet, Host: "example.com"},
		},
		{
			name:       "unknown path with query",
			targetPath: "/missing?test=123",
			config:     adapter.Config{Config: consoleLog},
			want:       &accessLine{Status: 404, URI: "/missing?test=123", Method: fiber.MethodGet, Host: "example.com"},
		},
		{
			name:       "check alive is skipped",
			targetPath: "/checkalive",
			config:     adapter.Config{Config: consoleLog, CheckAliveURI: "/checkalive"},
		},
		{
			name:       "principal is logged",
			targetPath: "/",
			config: adapter.Config{
				Config: consoleLog,
				Principal: func(c *fiber.Ctx) string {
					return "u-ad52zgilvnpgnduefzlh5jgr6y"
				},
			},
			want: &accessLine{
				Status:    200,
				URI:       "/",
				Method:    fiber.MethodGet,
				Host:      "example.com",
				Principal: "u-ad52zgilvnpgnduefzlh5jgr6y",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureRequest(t, tt.targetPath, tt.config)

			if tt.want == nil {
				assert.Empty(t, output)
				return
			}

			var got accessLine
			require.NoError(t, json.Unmarshal([]byte(output), &got), output)
			assert.Equal(t, *tt.want, got)
		})
	}
}

func captureRequest(t *testing.T, targetPath string, adapterConfig adapter.Config) string {
	t.Helper()

	stdout := os.Stdout

	r, w, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = w

	app := fiber.New(fiber.Config{CaseSensitive: true, Immutable: true})
	app.Use(adapter.New(adapterConfig))
	app.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.SendString("hello test")
	})
	app.Get("/checkalive", func(ctx *fiber.Ctx) error {
		return ctx.SendString("OK")
	})

	_, err = app.Test(httptest.NewRequest(fiber.MethodGet, targetPath, nil), 100000)

	_ = w.Close()
	os.Stdout = stdout

	require.NoError(t, err)

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)

	return buf.String()
}
