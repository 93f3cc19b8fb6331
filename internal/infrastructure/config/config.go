package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	JWT         JWTConfig        `mapstructure:"jwt"`
	Points      PointsConfig     `mapstructure:"points"`
	Schedulers  SchedulerConfig  `mapstructure:"schedulers"`
	Tracing     TracingConfig    `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// PointsConfig contains the points-economy constants.
type PointsConfig struct {
	WelcomeBonus       string `mapstructure:"welcome_bonus"`
	EventCreationFee   string `mapstructure:"event_creation_fee"`
	ReferralPercentage string `mapstructure:"referral_percentage"`
	SystemSeedBalance  string `mapstructure:"system_seed_balance"`
}

// WelcomeBonusAmount returns the welcome bonus as a decimal.
func (p PointsConfig) WelcomeBonusAmount() decimal.Decimal {
	return mustDecimal(p.WelcomeBonus)
}

// EventCreationFeeAmount returns the event creation fee as a decimal.
func (p PointsConfig) EventCreationFeeAmount() decimal.Decimal {
	return mustDecimal(p.EventCreationFee)
}

// ReferralRate returns the referral commission rate as a decimal fraction.
func (p PointsConfig) ReferralRate() decimal.Decimal {
	return mustDecimal(p.ReferralPercentage)
}

// SystemSeed returns the initial system wallet balance as a decimal.
func (p PointsConfig) SystemSeed() decimal.Decimal {
	return mustDecimal(p.SystemSeedBalance)
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SchedulerConfig contains the cron expressions and enable flags for the
// background jobs. Expressions use robfig/cron syntax ("@hourly", "@every 1h",
// or standard five-field specs).
type SchedulerConfig struct {
	DistributionEnabled bool   `mapstructure:"distribution_enabled"`
	DistributionCron    string `mapstructure:"distribution_cron"`
	ReferralEnabled     bool   `mapstructure:"referral_enabled"`
	ReferralCron        string `mapstructure:"referral_cron"`
	WindowMinutes       int    `mapstructure:"window_minutes"`
	RunTimeoutSeconds   int    `mapstructure:"run_timeout_seconds"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "soul_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Redis defaults
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// JWT defaults
	viper.SetDefault("jwt.issuer", "soul_service")

	// Points economy defaults
	viper.SetDefault("points.welcome_bonus", "1020")
	viper.SetDefault("points.event_creation_fee", "50")
	viper.SetDefault("points.referral_percentage", "0.05")
	viper.SetDefault("points.system_seed_balance", "1000000")

	// Scheduler defaults
	viper.SetDefault("schedulers.distribution_enabled", true)
	viper.SetDefault("schedulers.distribution_cron", "@hourly")
	viper.SetDefault("schedulers.referral_enabled", true)
	viper.SetDefault("schedulers.referral_cron", "@hourly")
	viper.SetDefault("schedulers.window_minutes", 60)
	viper.SetDefault("schedulers.run_timeout_seconds", 300)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 1.0)
	viper.SetDefault("tracing.insecure", true)
}

func overrideFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		viper.Set("jwt.secret", jwtSecret)
	}

	if redisURL := os.Getenv("REDIS_HOST"); redisURL != "" {
		viper.Set("redis.host", redisURL)
		viper.Set("redis.enabled", true)
	}

	if pct := os.Getenv("REFERRAL_PERCENTAGE"); pct != "" {
		viper.Set("points.referral_percentage", pct)
	}

	if bonus := os.Getenv("WELCOME_BONUS"); bonus != "" {
		viper.Set("points.welcome_bonus", bonus)
	}

	if fee := os.Getenv("EVENT_CREATION_FEE"); fee != "" {
		viper.Set("points.event_creation_fee", fee)
	}

	if seed := os.Getenv("SYSTEM_SEED_BALANCE"); seed != "" {
		viper.Set("points.system_seed_balance", seed)
	}
}

func validate(config *Config) error {
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}

	if _, err := decimal.NewFromString(config.Points.ReferralPercentage); err != nil {
		return fmt.Errorf("invalid referral percentage: %w", err)
	}

	if _, err := decimal.NewFromString(config.Points.WelcomeBonus); err != nil {
		return fmt.Errorf("invalid welcome bonus: %w", err)
	}

	return nil
}
