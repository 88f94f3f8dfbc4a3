package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServerConfig_DefaultEnvironment(t *testing.T) {
	os.Unsetenv("ENV")
	cfg := LoadServerConfig()
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected %q, got %q", EnvDevelopment, cfg.Environment)
	}
}

func TestLoadServerConfig_InvalidEnvironment(t *testing.T) {
	t.Setenv("ENV", "invalid")
	cfg := LoadServerConfig()
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected %q for invalid ENV, got %q", EnvDevelopment, cfg.Environment)
	}
}

func TestLoadServerConfig_ValidEnvironments(t *testing.T) {
	tests := []struct {
		env  string
		want Environment
	}{
		{"development", EnvDevelopment},
		{"staging", EnvStaging},
		{"production", EnvProduction},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("ENV", tt.env)
			cfg := LoadServerConfig()
			if cfg.Environment != tt.want {
				t.Errorf("expected %q, got %q", tt.want, cfg.Environment)
			}
		})
	}
}

func TestLoadServerConfig_ListenAddr(t *testing.T) {
	os.Unsetenv("LISTEN_ADDR")
	os.Unsetenv("PORT")
	cfg := LoadServerConfig()
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected default :8080, got %q", cfg.ListenAddr)
	}

	t.Setenv("PORT", "9090")
	cfg = LoadServerConfig()
	if cfg.ListenAddr != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.ListenAddr)
	}

	t.Setenv("LISTEN_ADDR", "127.0.0.1:3000")
	cfg = LoadServerConfig()
	if cfg.ListenAddr != "127.0.0.1:3000" {
		t.Errorf("LISTEN_ADDR should win over PORT, got %q", cfg.ListenAddr)
	}
}

func TestLoadServerConfig_InvalidPort(t *testing.T) {
	os.Unsetenv("LISTEN_ADDR")
	t.Setenv("PORT", "70000")
	cfg := LoadServerConfig()
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected fallback :8080 for out-of-range port, got %q", cfg.ListenAddr)
	}
}

func TestLoadServerConfig_CORSOrigins(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://admin.example.com ,")
	cfg := LoadServerConfig()
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %d", len(cfg.CORSOrigins))
	}
	if cfg.CORSOrigins[0] != "https://app.example.com" || cfg.CORSOrigins[1] != "https://admin.example.com" {
		t.Errorf("unexpected origins: %v", cfg.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	cfg := ServerConfig{Environment: EnvDevelopment}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when ACCOUNT_API_URL is missing")
	}

	cfg.AccountBaseURL = "http://account:3001"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Environment = EnvProduction
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing service token in production")
	}

	cfg.AccountServiceToken = "token"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadFile_MissingFileReturnsEmpty(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != "" {
		t.Errorf("expected empty overlay, got %+v", cfg)
	}
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.yml")
	data := "listen_addr: \"127.0.0.1:4000\"\nrate_limit: \"30-M\"\ncors_origins:\n  - https://app.example.com\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	overlay, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := ServerConfig{ListenAddr: ":8080", RateLimit: "120-M", RedisURL: "redis://localhost:6379"}
	overlay.Apply(&cfg)

	if cfg.ListenAddr != "127.0.0.1:4000" {
		t.Errorf("listen_addr not applied, got %q", cfg.ListenAddr)
	}
	if cfg.RateLimit != "30-M" {
		t.Errorf("rate_limit not applied, got %q", cfg.RateLimit)
	}
	if cfg.RedisURL != "redis://localhost:6379" {
		t.Errorf("unset overlay field must not clobber, got %q", cfg.RedisURL)
	}
	if len(cfg.CORSOrigins) != 1 {
		t.Errorf("cors_origins not applied: %v", cfg.CORSOrigins)
	}
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.yml")
	if err := os.WriteFile(path, []byte("listen_addr: [not closed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}
