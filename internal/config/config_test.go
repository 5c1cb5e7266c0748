package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/aura-radar/internal/domain/threat"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aura.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.yaml")} {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: 127.0.0.1:8080
  cors_origins: [http://dash.local]
behavior:
  learning_window: 1m
integrity:
  roots: [/srv/www, /etc/nginx]
  max_files: 0
  interval: 10s
reputation:
  drop_lists: [/var/lib/aura/local.txt]
  refresh_interval: 6h
capture:
  source: sockets
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	assert.Equal(t, []string{"http://dash.local"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, time.Minute, cfg.Behavior.LearningWindow)
	assert.Equal(t, []string{"/srv/www", "/etc/nginx"}, cfg.Integrity.Roots)
	assert.Zero(t, cfg.Integrity.MaxFiles)
	assert.Equal(t, 10*time.Second, cfg.Integrity.Interval)
	assert.Equal(t, 6*time.Hour, cfg.Reputation.RefreshInterval)
	assert.Equal(t, "sockets", cfg.Capture.Source)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Firewall, cfg.Firewall)
	assert.Equal(t, 5*time.Second, cfg.Reputation.Cooldown)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AURA_HTTP_ADDR", ":9000")
	t.Setenv("AURA_ABUSEIPDB_KEY", "secret")
	t.Setenv("AURA_INTEGRITY_ROOTS", "/a, /b ,")
	t.Setenv("AURA_INTEGRITY_INTERVAL", "45s")
	t.Setenv("AURA_OTEL_ENABLED", "true")
	t.Setenv("AURA_OTEL_ENDPOINT", "collector:4317")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "secret", cfg.Reputation.AbuseIPDBKey)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Integrity.Roots)
	assert.Equal(t, 45*time.Second, cfg.Integrity.Interval)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		env       map[string]string
		wantErr   error
		wantField string
	}{
		{
			name:    "malformed yaml",
			body:    "http: [",
			wantErr: threat.ErrMalformedInput,
		},
		{
			name:    "malformed env duration",
			env:     map[string]string{"AURA_CAPTURE_INTERVAL": "soon"},
			wantErr: threat.ErrMalformedInput,
		},
		{
			name:      "unknown backend",
			body:      "firewall:\n  backend: iptables\n",
			wantErr:   threat.ErrConfigurationGap,
			wantField: "firewall.backend",
		},
		{
			name:      "telemetry without endpoint",
			body:      "telemetry:\n  enabled: true\n",
			wantErr:   threat.ErrConfigurationGap,
			wantField: "telemetry.endpoint",
		},
		{
			name:      "non-positive learning window",
			body:      "behavior:\n  learning_window: 0s\n",
			wantErr:   threat.ErrConfigurationGap,
			wantField: "behavior.learning_window",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.body != "" {
				path = writeConfig(t, tc.body)
			}

			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)

			if tc.wantField != "" {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Contains(t, verr.Fields, tc.wantField)
				assert.NotEmpty(t, verr.Fields[tc.wantField])
			}
		})
	}
}
