package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/dormdesk/internal/access"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/accounts"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/audit"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/auth"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/config"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/database"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/directory"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/logging"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/roles"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dormdesk-api",
		Short: "Dormitory identity administration service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newRolesCommand(), newUsersCommand(), newAuditCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.Flags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.Flags().String("http-route", defaults.GetString("http.route"), "Path of the management endpoint")
	cmd.Flags().String("provider-url", "", "Identity provider base URL")
	cmd.Flags().String("service-key", "", "Identity provider service key (overrides env)")
	cmd.Flags().String("anon-key", "", "Identity provider anon key used to look up callers")
	cmd.Flags().Int("page-size", defaults.GetInt("provider.page_size"), "Accounts requested per listing (max 1000)")
	cmd.Flags().Float64("provider-rate", defaults.GetFloat64("provider.requests_per_second"), "Provider requests per second (0 disables pacing)")
	cmd.Flags().String("auth-mode", defaults.GetString("auth.mode"), "Credential verification mode (provider, jwt)")
	cmd.Flags().String("jwt-secret", "", "Provider JWT secret for local token checks (overrides env)")
	cmd.Flags().String("jwt-issuer", "", "Expected token issuer in jwt mode")
	cmd.Flags().String("jwt-audience", defaults.GetString("auth.jwt_audience"), "Expected token audience in jwt mode (empty disables the check)")
	cmd.Flags().Int("delete-concurrency", defaults.GetInt("delete.concurrency"), "Concurrent provider deletions per batch")

	bindPersistentFlag(cmd, "database.path", "database-path")
	bindPersistentFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.route", "http-route")
	bindFlag(cmd, "provider.url", "provider-url")
	bindFlag(cmd, "provider.service_key", "service-key")
	bindFlag(cmd, "provider.anon_key", "anon-key")
	bindFlag(cmd, "provider.page_size", "page-size")
	bindFlag(cmd, "provider.requests_per_second", "provider-rate")
	bindFlag(cmd, "auth.mode", "auth-mode")
	bindFlag(cmd, "auth.jwt_secret", "jwt-secret")
	bindFlag(cmd, "auth.jwt_issuer", "jwt-issuer")
	bindFlag(cmd, "auth.jwt_audience", "jwt-audience")
	bindFlag(cmd, "delete.concurrency", "delete-concurrency")
}

func bindPersistentFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	providerHTTP := &http.Client{Timeout: appConfig.ProviderTimeout}

	verifier, err := newCredentialVerifier(appConfig, providerHTTP)
	if err != nil {
		return err
	}

	roleService, err := roles.NewService(roles.ServiceConfig{Database: db, Clock: time.Now})
	if err != nil {
		return err
	}

	gate, err := access.NewGate(verifier, roleService)
	if err != nil {
		return err
	}

	directoryClient, err := directory.NewClient(directory.ClientConfig{
		BaseURL:           appConfig.ProviderURL,
		ServiceKey:        appConfig.ProviderServiceKey,
		HTTPClient:        providerHTTP,
		RequestsPerSecond: appConfig.ProviderRequestsPerSecond,
	})
	if err != nil {
		return err
	}

	journal, err := audit.NewJournal(audit.JournalConfig{Database: db, Clock: time.Now})
	if err != nil {
		return err
	}

	deleter, err := accounts.NewDeleter(accounts.DeleterConfig{
		Directory: directoryClient,
		Strategy:  accounts.StrategyFor(appConfig.DeleteWorkers),
		Journal:   journal,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Gate:      gate,
		Directory: directoryClient,
		Deleter:   deleter,
		Logger:    logger,
		Route:     appConfig.HTTPRoute,
		PageSize:  appConfig.ProviderPageSize,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("route", appConfig.HTTPRoute),
			zap.String("auth_mode", appConfig.AuthMode),
			zap.Int("delete_concurrency", appConfig.DeleteWorkers),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newCredentialVerifier(appConfig config.AppConfig, httpClient *http.Client) (access.CredentialVerifier, error) {
	if appConfig.AuthMode == config.AuthModeJWT {
		verifier, err := auth.NewTokenVerifier(auth.TokenVerifierConfig{
			SigningSecret: []byte(appConfig.JWTSecret),
			Issuer:        appConfig.JWTIssuer,
			Audience:      appConfig.JWTAudience,
			Clock:         time.Now,
		})
		if err != nil {
			return nil, err
		}
		return verifier, nil
	}
	verifier, err := auth.NewProviderVerifier(auth.ProviderVerifierConfig{
		BaseURL:    appConfig.ProviderURL,
		AnonKey:    appConfig.ProviderAnonKey,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, err
	}
	return verifier, nil
}
