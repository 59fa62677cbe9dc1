package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "MEMOFLIX"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "memoflix.db"
	defaultCatalogPath  = "memorials.json"
	defaultLogLevel     = "info"

	defaultAutoSlideMS    = 2800
	defaultFloatingFadeMS = 1500
	defaultHeroIntervalMS = 3500
)

// AppConfig captures runtime configuration for the memorial page API.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	CatalogPath     string
	LogLevel        string
	SupabaseURL     string
	SupabaseAnonKey string

	AutoSlideInterval time.Duration
	FloatingFadeDelay time.Duration
	HeroInterval      time.Duration
}

// CloudEnabled reports whether the hosted backend is configured. Blank
// settings mean the service runs on the local fallback store alone.
func (c AppConfig) CloudEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("catalog.path", defaultCatalogPath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("gallery.auto_slide_ms", defaultAutoSlideMS)
	configViper.SetDefault("gallery.floating_fade_ms", defaultFloatingFadeMS)
	configViper.SetDefault("gallery.hero_interval_ms", defaultHeroIntervalMS)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		CatalogPath:     configViper.GetString("catalog.path"),
		LogLevel:        configViper.GetString("log.level"),
		SupabaseURL:     strings.TrimSpace(configViper.GetString("supabase.url")),
		SupabaseAnonKey: strings.TrimSpace(configViper.GetString("supabase.anon_key")),

		AutoSlideInterval: time.Duration(configViper.GetInt("gallery.auto_slide_ms")) * time.Millisecond,
		FloatingFadeDelay: time.Duration(configViper.GetInt("gallery.floating_fade_ms")) * time.Millisecond,
		HeroInterval:      time.Duration(configViper.GetInt("gallery.hero_interval_ms")) * time.Millisecond,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.CatalogPath) == "" {
		return fmt.Errorf("catalog.path is required")
	}
	if (c.SupabaseURL == "") != (c.SupabaseAnonKey == "") {
		return fmt.Errorf("supabase.url and supabase.anon_key must be set together")
	}
	if c.AutoSlideInterval <= 0 || c.FloatingFadeDelay <= 0 || c.HeroInterval <= 0 {
		return fmt.Errorf("gallery intervals must be positive")
	}
	return nil
}
