package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Apple    AppleConfig
	Google   GoogleConfig
	DeepLink DeepLinkConfig
	Email    EmailConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig contains unified Redis connection settings.
// Supported modes: single, sentinel, cluster.
type RedisConfig struct {
	// Mode: Redis operation mode ("single", "sentinel", "cluster"). Defaults to "single".
	Mode string `mapstructure:"mode"`

	// Addrs: list of Redis addresses (host:port). Used by all modes.
	// For 'single', if non-empty, the first address from the list is used.
	Addrs []string `mapstructure:"addrs"`

	// Addr: alternative address for 'single' mode (backward compatibility).
	// Used when Mode="single" and Addrs is empty.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Redis master server name (sentinel mode only).
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: maximum reconnection attempts (-1 for unlimited). Defaults to 0.
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff: minimum interval between attempts (milliseconds).
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`

	// MaxRetryBackoff: maximum interval between attempts (milliseconds).
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// JWTConfig contains access-token settings.
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpirationHrs int    `mapstructure:"expirationHrs"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	// SessionLimit caps the number of active refresh tokens per user.
	SessionLimit int
	// RefreshTokenLifetime is the refresh-token lifetime in days.
	RefreshTokenLifetime int
	// CeremonySeconds bounds a full sign-in ceremony, provider exchange
	// included. Zero disables the watchdog.
	CeremonySeconds int `mapstructure:"ceremonySeconds"`
	// NonceTTLSeconds is the lifetime of an issued sign-in nonce.
	NonceTTLSeconds int `mapstructure:"nonceTTLSeconds"`
}

// AppleConfig contains Sign in with Apple settings.
type AppleConfig struct {
	// ClientIDs lists the audiences accepted in Apple identity tokens
	// (app bundle id plus any services id).
	ClientIDs []string `mapstructure:"client_ids"`
}

// GoogleConfig contains Google Sign-In settings.
type GoogleConfig struct {
	WebClientID     string `mapstructure:"web_client_id"`
	AndroidClientID string `mapstructure:"android_client_id"`
	IOSClientID     string `mapstructure:"ios_client_id"`
}

// DeepLinkConfig contains deep-link routing settings.
type DeepLinkConfig struct {
	// Scheme is the custom URI scheme ("sling" for sling://bet/abc123).
	Scheme string `mapstructure:"scheme"`
	// UniversalHost is the https host for universal links ("sling.app").
	UniversalHost string `mapstructure:"universal_host"`
}

// EmailConfig contains transactional email settings.
type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
}

// PostgresConnectionString builds the PostgreSQL connection string.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads the configuration from a file and bound environment variables.
func Load(configPath string) (*Config, error) {
	vip := viper.New() // fresh instance to avoid global state

	vip.SetDefault("auth.sessionLimit", 10)
	vip.SetDefault("auth.refreshTokenLifetime", 30)
	vip.SetDefault("auth.ceremonySeconds", 90)
	vip.SetDefault("auth.nonceTTLSeconds", 300)
	vip.SetDefault("deeplink.scheme", "sling")
	vip.SetDefault("deeplink.universal_host", "sling.app")

	// Bind environment variables explicitly.
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")

	vip.BindEnv("auth.sessionLimit", "AUTH_SESSIONLIMIT")
	vip.BindEnv("auth.refreshTokenLifetime", "AUTH_REFRESHTOKENLIFETIME")
	vip.BindEnv("auth.ceremonySeconds", "AUTH_CEREMONYSECONDS")
	vip.BindEnv("auth.nonceTTLSeconds", "AUTH_NONCETTLSECONDS")

	vip.BindEnv("apple.client_ids", "APPLE_CLIENT_IDS")

	vip.BindEnv("google.web_client_id", "GOOGLE_WEB_CLIENT_ID")
	vip.BindEnv("google.android_client_id", "GOOGLE_ANDROID_CLIENT_ID")
	vip.BindEnv("google.ios_client_id", "GOOGLE_IOS_CLIENT_ID")

	vip.BindEnv("deeplink.scheme", "DEEPLINK_SCHEME")
	vip.BindEnv("deeplink.universal_host", "DEEPLINK_UNIVERSAL_HOST")

	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from_address", "EMAIL_FROM_ADDRESS")
	vip.BindEnv("email.from_name", "EMAIL_FROM_NAME")

	vip.BindEnv("server.port", "SERVER_PORT")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// A missing file is not fatal, env bindings still apply.
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Config file '%s' not found, using environment variables/defaults.", configPath)
			} else {
				log.Printf("Warning: could not read config file '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Loaded configuration values ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("JWT Expiration Hours: %d", cfg.JWT.ExpirationHrs)
		log.Printf("JWT Secret Set: %t", cfg.JWT.Secret != "")
		log.Printf("Apple Client IDs: %v", cfg.Apple.ClientIDs)
		log.Printf("Google Web Client ID Set: %t", cfg.Google.WebClientID != "")
		log.Printf("Deep Link Scheme: %s", cfg.DeepLink.Scheme)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("-----------------------------------")
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	ginMode := vip.GetString("GIN_MODE")
	if ginMode != "debug" {
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("database password is required in production mode (check DATABASE_PASSWORD env var)")
		}
	}

	return &cfg, nil
}
