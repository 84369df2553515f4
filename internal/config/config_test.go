package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
database:
  url: "postgres://localhost/discounts"
redis:
  url: "localhost:6379"
admin:
  api_key: "k"
  jwt_secret: "s"
`

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, minimalConfig), false)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Server.Port != 8080 || cfg.Admin.Port != 8081 {
		t.Fatalf("ports = %d/%d", cfg.Server.Port, cfg.Admin.Port)
	}
	if cfg.Limits.ValidatePerMinute != 10 || cfg.Limits.WebhookPerMinute != 120 ||
		cfg.Limits.SweepPerMinute != 6 || cfg.Limits.WindowMinutes != 1 {
		t.Fatalf("limit defaults: %+v", cfg.Limits)
	}
	if cfg.Reservation.TTLMinutes != 15 || cfg.Reservation.DefaultGraceMinutes != 30 {
		t.Fatalf("reservation defaults: %+v", cfg.Reservation)
	}
	if cfg.Reaper.Interval.Std() != 2*time.Minute || cfg.Reaper.BatchSize != 100 {
		t.Fatalf("reaper defaults: %+v", cfg.Reaper)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("log defaults: %+v", cfg.Log)
	}
}

func TestLoadConfig_RequiredFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
	}{
		{"missing database url", `
redis: {url: "localhost:6379"}
admin: {api_key: "k", jwt_secret: "s"}
`},
		{"missing redis url", `
database: {url: "postgres://localhost/d"}
admin: {api_key: "k", jwt_secret: "s"}
`},
		{"missing jwt secret", `
database: {url: "postgres://localhost/d"}
redis: {url: "localhost:6379"}
admin: {api_key: "k"}
`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := LoadConfig(writeConfig(t, tc.yaml), false); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, minimalConfig+`
server:
  port: 9090
reaper:
  interval: 30s
  batch_size: 25
`), true)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Reaper.Interval.Std() != 30*time.Second || cfg.Reaper.BatchSize != 25 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.Runtime.Dev {
		t.Fatal("dev flag not propagated")
	}
}
