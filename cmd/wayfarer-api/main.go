package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wayfarer-social/wayfarer/internal/auth"
	"github.com/wayfarer-social/wayfarer/internal/cache"
	"github.com/wayfarer-social/wayfarer/internal/config"
	"github.com/wayfarer-social/wayfarer/internal/database"
	"github.com/wayfarer-social/wayfarer/internal/feed"
	"github.com/wayfarer-social/wayfarer/internal/logging"
	"github.com/wayfarer-social/wayfarer/internal/server"
	"github.com/wayfarer-social/wayfarer/internal/social"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wayfarer-api",
		Short: "Wayfarer trip-sharing backend service",
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
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("redis-addr", defaults.GetString("redis.addr"), "Redis address")
	cmd.PersistentFlags().String("server-origin", defaults.GetString("server.origin"), "Public origin used to absolutize avatar URLs")
	cmd.PersistentFlags().Int("scoring-window", defaults.GetInt("feed.scoring_window"), "Max candidates held in memory for ranking")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "redis.addr", "redis-addr")
	bindFlag(cmd, "server.origin", "server-origin")
	bindFlag(cmd, "feed.scoring_window", "scoring-window")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
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

	logger, err := logging.NewLogger("wayfarer-api", appConfig.LogLevel)
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

	redisBackend := cache.New(cache.Config{
		Addr:     appConfig.RedisAddr,
		DB:       appConfig.RedisDB,
		Password: appConfig.RedisPassword,
	}, logger)
	defer redisBackend.Close() //nolint:errcheck

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := redisBackend.Ping(pingCtx); err != nil {
		// The cache layer fails open; a cold or absent Redis only costs
		// recompute latency, so startup continues.
		logger.Warn("redis unreachable at startup", zap.Error(err))
	}
	cancelPing()

	feedCache := feed.NewCache(redisBackend, logger)
	seenTracker := feed.NewSeenTracker(redisBackend, logger)

	feedService, err := feed.NewService(feed.ServiceConfig{
		Store:        feed.NewStore(db),
		Cache:        feedCache,
		Seen:         seenTracker,
		Logger:       logger,
		ServerOrigin: appConfig.ServerOrigin,
	})
	if err != nil {
		return err
	}

	socialService, err := social.NewService(social.ServiceConfig{
		Database:    db,
		Clock:       time.Now,
		IDProvider:  social.NewUUIDProvider(),
		Invalidator: feedCache,
		Seen:        seenTracker,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	tokenManager := auth.NewTokenManager(auth.TokenManagerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "wayfarer-api",
		Audience:      "wayfarer-clients",
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		FeedService:   feedService,
		SocialService: socialService,
		TokenManager:  tokenManager,
		Logger:        logger,
		FeedTTL:       appConfig.FeedTTL,
		AnalyticsTTL:  appConfig.AnalyticsTTL,
		ScoringWindow: appConfig.ScoringWindow,
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
