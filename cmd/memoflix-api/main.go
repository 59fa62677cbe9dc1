package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/memoflix/internal/config"
	"github.com/MarcoPoloResearchLab/memoflix/internal/gallery"
	"github.com/MarcoPoloResearchLab/memoflix/internal/gateway"
	"github.com/MarcoPoloResearchLab/memoflix/internal/localstore"
	"github.com/MarcoPoloResearchLab/memoflix/internal/logging"
	"github.com/MarcoPoloResearchLab/memoflix/internal/memorial"
	"github.com/MarcoPoloResearchLab/memoflix/internal/server"
	"github.com/MarcoPoloResearchLab/memoflix/internal/session"
	"github.com/MarcoPoloResearchLab/memoflix/internal/social"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "memoflix-api",
		Short: "Memoflix memorial page backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite fallback store path")
	cmd.PersistentFlags().String("catalog-path", defaults.GetString("catalog.path"), "Memorial catalog JSON path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("supabase-url", "", "Hosted backend project URL (blank disables the cloud path)")
	cmd.PersistentFlags().String("supabase-anon-key", "", "Hosted backend anon key")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "catalog.path", "catalog-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "supabase.url", "supabase-url")
	bindFlag(cmd, "supabase.anon_key", "supabase-anon-key")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
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

	catalog, err := memorial.LoadCatalogFile(appConfig.CatalogPath)
	if err != nil {
		return err
	}

	store, err := localstore.Open(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	sessions, err := session.NewStore(session.StoreConfig{
		Records: store,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	client := gateway.NewClient(gateway.Config{
		BaseURL: appConfig.SupabaseURL,
		AnonKey: appConfig.SupabaseAnonKey,
		Logger:  logger,
	})
	if !client.Enabled() {
		logger.Info("cloud backend not configured, running on the local fallback store")
	}

	authService, err := gateway.NewAuth(gateway.AuthConfig{
		Client:   client,
		Sessions: sessions,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	socialService, err := social.NewService(social.ServiceConfig{
		Gateway:    client,
		Sessions:   sessions,
		Fallback:   store,
		Clock:      time.Now,
		IDProvider: social.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	dispatcher := server.NewEventDispatcher()
	scheduler := gallery.NewScheduler()

	view, err := gallery.NewViewController(gallery.ControllerConfig{
		Scheduler:         scheduler,
		Sink:              dispatcher,
		Logger:            logger,
		AutoSlideInterval: appConfig.AutoSlideInterval,
		FloatingFadeDelay: appConfig.FloatingFadeDelay,
	})
	if err != nil {
		return err
	}

	hero, err := gallery.NewHeroRotator(gallery.HeroRotatorConfig{
		Covers:    catalog.Covers(),
		Scheduler: scheduler,
		Sink:      dispatcher,
		Interval:  appConfig.HeroInterval,
	})
	if err != nil {
		return err
	}
	hero.Start()
	defer hero.Stop()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Catalog:  catalog,
		Auth:     authService,
		Gateway:  client,
		Social:   socialService,
		Sessions: sessions,
		View:     view,
		Hero:     hero,
		Events:   dispatcher,
		Logger:   logger,
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
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
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
