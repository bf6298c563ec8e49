package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
)

func TestLoadConfigCwdFallback(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server:\n  port: 9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWD); err != nil {
			t.Fatal(err)
		}
	})

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if resolved != cfgPath {
		t.Errorf("expected fallback to %s, got %s", cfgPath, resolved)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
}

func TestLoadConfigExplicitPath(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(cfgPath, []byte("debug: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(cfgPath)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if resolved != cfgPath {
		t.Errorf("expected %s, got %s", cfgPath, resolved)
	}
	if !cfg.Debug {
		t.Error("expected debug to be set")
	}
}

func TestNewEmbedderProviders(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	cfg.Embedding.Provider = "mock"
	if _, err := newEmbedder(cfg); err != nil {
		t.Errorf("mock provider failed: %v", err)
	}

	cfg.Embedding.Provider = "openai"
	if _, err := newEmbedder(cfg); err != nil {
		t.Errorf("openai provider failed: %v", err)
	}

	cfg.Embedding.Provider = "carrier-pigeon"
	if _, err := newEmbedder(cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}
