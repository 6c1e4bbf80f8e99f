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
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
auth:
  session_secret: "0123456789abcdef0123456789abcdef"
  google:
    client_id: "client-id"
    client_secret: "client-secret"
    redirect_url: "http://localhost:8090/auth/callback"
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ListenAddr != ":8090" {
		t.Errorf("expected default listen addr :8090, got %s", cfg.Server.ListenAddr)
	}
	if cfg.Scheduler.Interval != 15*time.Second {
		t.Errorf("expected default scheduler interval 15s, got %s", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.BatchSize != 25 {
		t.Errorf("expected default batch size 25, got %d", cfg.Scheduler.BatchSize)
	}
	if cfg.Gmail.Transport != "api" {
		t.Errorf("expected default gmail transport api, got %s", cfg.Gmail.Transport)
	}
	if cfg.Auth.SessionTTL != 7*24*time.Hour {
		t.Errorf("expected default session TTL 168h, got %s", cfg.Auth.SessionTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
server:
  listen_addr: ":9000"
  public_url: "https://mail.example.com"
scheduler:
  interval: 30s
  batch_size: 50
gmail:
  transport: smtp
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("expected listen addr :9000, got %s", cfg.Server.ListenAddr)
	}
	if cfg.Server.PublicURL != "https://mail.example.com" {
		t.Errorf("expected public url override, got %s", cfg.Server.PublicURL)
	}
	if cfg.Scheduler.Interval != 30*time.Second {
		t.Errorf("expected scheduler interval 30s, got %s", cfg.Scheduler.Interval)
	}
	if cfg.Gmail.Transport != "smtp" {
		t.Errorf("expected gmail transport smtp, got %s", cfg.Gmail.Transport)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing session secret",
			content: `auth: {google: {client_id: a, client_secret: b, redirect_url: c}}`,
		},
		{
			name: "short session secret",
			content: `
auth:
  session_secret: "tooshort"
  google: {client_id: a, client_secret: b, redirect_url: c}
`,
		},
		{
			name: "missing google client",
			content: `
auth:
  session_secret: "0123456789abcdef0123456789abcdef"
`,
		},
		{
			name: "bad gmail transport",
			content: minimalConfig + `
gmail:
  transport: pigeon
`,
		},
		{
			name: "tls without cert",
			content: minimalConfig + `
server:
  tls:
    enabled: true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
