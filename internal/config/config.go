package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "DORMDESK"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultHTTPRoute          = "/manage-auth-users"
	defaultDatabasePath       = "dormdesk.db"
	defaultLogLevel           = "info"
	defaultAuthMode           = AuthModeProvider
	defaultJWTAudience        = "authenticated"
	defaultProviderPageSize   = 1000
	defaultProviderTimeout    = 10
	defaultDeleteConcurrency  = 1
	maxProviderPageSize       = 1000
	defaultProviderRatePerSec = 0
)

// Supported credential verification modes.
const (
	AuthModeProvider = "provider"
	AuthModeJWT      = "jwt"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress string
	HTTPRoute   string

	DatabasePath string
	LogLevel     string

	ProviderURL               string
	ProviderServiceKey        string
	ProviderAnonKey           string
	ProviderPageSize          int
	ProviderTimeout           time.Duration
	ProviderRequestsPerSecond float64

	AuthMode      string
	JWTSecret     string
	JWTIssuer     string
	JWTAudience   string
	DeleteWorkers int
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
	configViper.SetDefault("http.route", defaultHTTPRoute)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.mode", defaultAuthMode)
	configViper.SetDefault("auth.jwt_audience", defaultJWTAudience)
	configViper.SetDefault("provider.page_size", defaultProviderPageSize)
	configViper.SetDefault("provider.timeout_seconds", defaultProviderTimeout)
	configViper.SetDefault("provider.requests_per_second", defaultProviderRatePerSec)
	configViper.SetDefault("delete.concurrency", defaultDeleteConcurrency)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:               configViper.GetString("http.address"),
		HTTPRoute:                 configViper.GetString("http.route"),
		DatabasePath:              configViper.GetString("database.path"),
		LogLevel:                  configViper.GetString("log.level"),
		ProviderURL:               strings.TrimRight(strings.TrimSpace(configViper.GetString("provider.url")), "/"),
		ProviderServiceKey:        configViper.GetString("provider.service_key"),
		ProviderAnonKey:           configViper.GetString("provider.anon_key"),
		ProviderPageSize:          configViper.GetInt("provider.page_size"),
		ProviderTimeout:           time.Duration(configViper.GetInt("provider.timeout_seconds")) * time.Second,
		ProviderRequestsPerSecond: configViper.GetFloat64("provider.requests_per_second"),
		AuthMode:                  strings.ToLower(strings.TrimSpace(configViper.GetString("auth.mode"))),
		JWTSecret:                 configViper.GetString("auth.jwt_secret"),
		JWTIssuer:                 strings.TrimSpace(configViper.GetString("auth.jwt_issuer")),
		JWTAudience:               strings.TrimSpace(configViper.GetString("auth.jwt_audience")),
		DeleteWorkers:             configViper.GetInt("delete.concurrency"),
	}

	if cfg.ProviderPageSize <= 0 || cfg.ProviderPageSize > maxProviderPageSize {
		cfg.ProviderPageSize = maxProviderPageSize
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout * time.Second
	}
	if cfg.DeleteWorkers <= 0 {
		cfg.DeleteWorkers = defaultDeleteConcurrency
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
	if !strings.HasPrefix(c.HTTPRoute, "/") {
		return fmt.Errorf("http.route must start with /")
	}
	if c.ProviderURL == "" {
		return fmt.Errorf("provider.url is required")
	}
	if _, err := url.ParseRequestURI(c.ProviderURL); err != nil {
		return fmt.Errorf("provider.url is invalid: %w", err)
	}
	if strings.TrimSpace(c.ProviderServiceKey) == "" {
		return fmt.Errorf("provider.service_key is required")
	}
	if c.ProviderRequestsPerSecond < 0 {
		return fmt.Errorf("provider.requests_per_second must not be negative")
	}
	switch c.AuthMode {
	case AuthModeProvider:
		if strings.TrimSpace(c.ProviderAnonKey) == "" {
			return fmt.Errorf("provider.anon_key is required when auth.mode is %q", AuthModeProvider)
		}
	case AuthModeJWT:
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("auth.jwt_secret is required when auth.mode is %q", AuthModeJWT)
		}
	default:
		return fmt.Errorf("auth.mode %q is not supported", c.AuthMode)
	}
	return nil
}
