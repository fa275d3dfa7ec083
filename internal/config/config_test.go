package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsAndClamps(t *testing.T) {
	configViper := NewViper()
	configViper.Set("provider.url", "https://id.example.com/")
	configViper.Set("provider.service_key", "service-key")
	configViper.Set("provider.anon_key", "anon-key")
	configViper.Set("provider.page_size", 5000)
	configViper.Set("delete.concurrency", 0)

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.HTTPRoute != defaultHTTPRoute {
		t.Fatalf("unexpected route %q", cfg.HTTPRoute)
	}
	if cfg.ProviderURL != "https://id.example.com" {
		t.Fatalf("expected trailing slash to be trimmed, got %q", cfg.ProviderURL)
	}
	if cfg.ProviderPageSize != maxProviderPageSize {
		t.Fatalf("expected page size clamp to %d, got %d", maxProviderPageSize, cfg.ProviderPageSize)
	}
	if cfg.ProviderTimeout != 10*time.Second {
		t.Fatalf("unexpected provider timeout %s", cfg.ProviderTimeout)
	}
	if cfg.DeleteWorkers != 1 {
		t.Fatalf("expected sequential delete default, got %d", cfg.DeleteWorkers)
	}
	if cfg.AuthMode != AuthModeProvider {
		t.Fatalf("unexpected auth mode %q", cfg.AuthMode)
	}
	if cfg.JWTAudience != "authenticated" {
		t.Fatalf("unexpected jwt audience default %q", cfg.JWTAudience)
	}
}

func TestLoadReadsJWTSettings(t *testing.T) {
	configViper := NewViper()
	configViper.Set("provider.url", "https://id.example.com")
	configViper.Set("provider.service_key", "service-key")
	configViper.Set("auth.mode", "JWT")
	configViper.Set("auth.jwt_secret", "jwt-secret")
	configViper.Set("auth.jwt_issuer", " https://id.example.com/auth/v1 ")
	configViper.Set("auth.jwt_audience", " dormdesk-staff ")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.AuthMode != AuthModeJWT {
		t.Fatalf("unexpected auth mode %q", cfg.AuthMode)
	}
	if cfg.JWTIssuer != "https://id.example.com/auth/v1" || cfg.JWTAudience != "dormdesk-staff" {
		t.Fatalf("unexpected jwt settings issuer=%q audience=%q", cfg.JWTIssuer, cfg.JWTAudience)
	}
}

func TestLoadRejectsIncompleteConfiguration(t *testing.T) {
	testCases := []struct {
		name     string
		settings map[string]any
		message  string
	}{
		{
			name:     "missing provider url",
			settings: map[string]any{"provider.service_key": "k", "provider.anon_key": "a"},
			message:  "provider.url is required",
		},
		{
			name:     "missing service key",
			settings: map[string]any{"provider.url": "https://id.example.com", "provider.anon_key": "a"},
			message:  "provider.service_key is required",
		},
		{
			name:     "provider mode without anon key",
			settings: map[string]any{"provider.url": "https://id.example.com", "provider.service_key": "k"},
			message:  "provider.anon_key is required",
		},
		{
			name: "jwt mode without secret",
			settings: map[string]any{
				"provider.url":         "https://id.example.com",
				"provider.service_key": "k",
				"auth.mode":            "jwt",
			},
			message: "auth.jwt_secret is required",
		},
		{
			name: "unknown auth mode",
			settings: map[string]any{
				"provider.url":         "https://id.example.com",
				"provider.service_key": "k",
				"auth.mode":            "cookie",
			},
			message: "not supported",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			for key, value := range testCase.settings {
				configViper.Set(key, value)
			}
			_, err := Load(configViper)
			if err == nil {
				t.Fatalf("expected configuration error")
			}
			if !strings.Contains(err.Error(), testCase.message) {
				t.Fatalf("expected error containing %q, got %v", testCase.message, err)
			}
		})
	}
}
