package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "WAYFARER"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "wayfarer.db"
	defaultRedisAddr     = "localhost:6379"
	defaultLogLevel      = "info"
	defaultServerOrigin  = "http://localhost:8080"
	defaultFeedTTL       = 60 * time.Second
	defaultAnalyticsTTL  = 300 * time.Second
	defaultScoringWindow = 1000
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	RedisAddr     string
	RedisDB       int
	RedisPassword string
	SigningSecret string
	ServerOrigin  string
	LogLevel      string
	FeedTTL       time.Duration
	AnalyticsTTL  time.Duration
	ScoringWindow int
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
	configViper.SetDefault("redis.addr", defaultRedisAddr)
	configViper.SetDefault("redis.db", 0)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("server.origin", defaultServerOrigin)
	configViper.SetDefault("feed.cache_ttl_seconds", int(defaultFeedTTL.Seconds()))
	configViper.SetDefault("feed.analytics_ttl_seconds", int(defaultAnalyticsTTL.Seconds()))
	configViper.SetDefault("feed.scoring_window", defaultScoringWindow)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		RedisAddr:     configViper.GetString("redis.addr"),
		RedisDB:       configViper.GetInt("redis.db"),
		RedisPassword: configViper.GetString("redis.password"),
		SigningSecret: configViper.GetString("auth.signing_secret"),
		ServerOrigin:  configViper.GetString("server.origin"),
		LogLevel:      configViper.GetString("log.level"),
		FeedTTL:       time.Duration(configViper.GetInt("feed.cache_ttl_seconds")) * time.Second,
		AnalyticsTTL:  time.Duration(configViper.GetInt("feed.analytics_ttl_seconds")) * time.Second,
		ScoringWindow: configViper.GetInt("feed.scoring_window"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.ScoringWindow < 1 {
		return fmt.Errorf("feed.scoring_window must be positive")
	}
	return nil
}
