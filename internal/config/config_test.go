package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected address %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "memoflix.db" || cfg.CatalogPath != "memorials.json" {
		t.Fatalf("unexpected paths %q %q", cfg.DatabasePath, cfg.CatalogPath)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level %q", cfg.LogLevel)
	}
	if cfg.CloudEnabled() {
		t.Fatalf("cloud must be disabled by default")
	}
	if cfg.AutoSlideInterval != 2800*time.Millisecond ||
		cfg.FloatingFadeDelay != 1500*time.Millisecond ||
		cfg.HeroInterval != 3500*time.Millisecond {
		t.Fatalf("unexpected intervals %+v", cfg)
	}
}

func TestLoadCloudSettings(t *testing.T) {
	v := NewViper()
	v.Set("supabase.url", "https://project.supabase.co")
	v.Set("supabase.anon_key", "anon-key")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.CloudEnabled() {
		t.Fatalf("expected cloud enabled")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		message string
	}{
		{name: "missing database path", key: "database.path", value: " ", message: "database.path"},
		{name: "missing catalog path", key: "catalog.path", value: "", message: "catalog.path"},
		{name: "url without key", key: "supabase.url", value: "https://project.supabase.co", message: "set together"},
		{name: "anon key without url", key: "supabase.anon_key", value: "anon-key", message: "set together"},
		{name: "zero interval", key: "gallery.auto_slide_ms", value: 0, message: "intervals"},
		{name: "negative interval", key: "gallery.hero_interval_ms", value: -10, message: "intervals"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViper()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Fatalf("unexpected error %q", err)
			}
		})
	}
}
