// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
//
// The values are read by viper from a config file or environment variables.
type Config struct {
	DBDriver            string        `mapstructure:"DB_DRIVER"`
	DBSource            string        `mapstructure:"DB_SOURCE"`
	ServerAddress       string        `mapstructure:"SERVER_ADDRESS"`
	Environment         string        `mapstructure:"GO_ENV"`
	TokenKind           string        `mapstructure:"TOKEN_KIND"`
	TokenSymmetricKey   string        `mapstructure:"TOKEN_SYMMETRIC_KEY"`
	AccessTokenDuration time.Duration `mapstructure:"ACCESS_TOKEN_DURATION"`

	RedisAddress   string        `mapstructure:"REDIS_ADDRESS"`
	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	// IdempotencyLockTTL bounds how long an unfinished request holds its key.
	IdempotencyLockTTL time.Duration `mapstructure:"IDEMPOTENCY_LOCK_TTL"`

	AMQPURL              string `mapstructure:"AMQP_URL"`
	NotificationExchange string `mapstructure:"NOTIFICATION_EXCHANGE"`
	NotificationSender   string `mapstructure:"NOTIFICATION_SENDER"`
	NotificationBuffer   int    `mapstructure:"NOTIFICATION_BUFFER"`

	DailyLimit                string `mapstructure:"DAILY_LIMIT"`
	LargeTransactionThreshold string `mapstructure:"LARGE_TRANSACTION_THRESHOLD"`
	LedgerTimezone            string `mapstructure:"LEDGER_TIMEZONE"`
	ReverseOnLimitFailure     bool   `mapstructure:"REVERSE_ON_LIMIT_FAILURE"`

	WorkerEmbedded     bool          `mapstructure:"WORKER_EMBEDDED"`
	WorkerConcurrency  int           `mapstructure:"WORKER_CONCURRENCY"`
	WorkerPollInterval time.Duration `mapstructure:"WORKER_POLL_INTERVAL"`
	WorkerJobTimeout   time.Duration `mapstructure:"WORKER_JOB_TIMEOUT"`
	WorkerLease        time.Duration `mapstructure:"WORKER_LEASE"`
	WorkerMaxAttempts  int           `mapstructure:"WORKER_MAX_ATTEMPTS"`
	WorkerBackoffBase  time.Duration `mapstructure:"WORKER_BACKOFF_BASE"`
	WorkerBackoffMax   time.Duration `mapstructure:"WORKER_BACKOFF_MAX"`
}

var defaults = map[string]any{
	"DB_DRIVER":                   "postgres",
	"SERVER_ADDRESS":              "0.0.0.0:8080",
	"GO_ENV":                      "production",
	"TOKEN_KIND":                  "paseto",
	"ACCESS_TOKEN_DURATION":       15 * time.Minute,
	"IDEMPOTENCY_TTL":             24 * time.Hour,
	"IDEMPOTENCY_LOCK_TTL":        30 * time.Second,
	"NOTIFICATION_EXCHANGE":       "ledger.notifications",
	"NOTIFICATION_SENDER":         "noreply@ledger.local",
	"NOTIFICATION_BUFFER":         256,
	"DAILY_LIMIT":                 "3000000.00",
	"LARGE_TRANSACTION_THRESHOLD": "10000.00",
	"LEDGER_TIMEZONE":             "Local",
	"REVERSE_ON_LIMIT_FAILURE":    false,
	"WORKER_EMBEDDED":             true,
	"WORKER_CONCURRENCY":          4,
	"WORKER_POLL_INTERVAL":        time.Second,
	"WORKER_JOB_TIMEOUT":          10 * time.Second,
	"WORKER_LEASE":                time.Minute,
	"WORKER_MAX_ATTEMPTS":         5,
	"WORKER_BACKOFF_BASE":         2 * time.Second,
	"WORKER_BACKOFF_MAX":          time.Minute,
}

// Load read configuration from file or environment variables.
//
// A missing app.env is not an error, every key falls back to its default or the environment.
func Load(path string) (Config, error) {
	var c Config

	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// AutomaticEnv only sees keys viper already knows about.
	for _, key := range []string{"DB_SOURCE", "TOKEN_SYMMETRIC_KEY", "REDIS_ADDRESS", "AMQP_URL"} {
		if err := v.BindEnv(key); err != nil {
			return c, err
		}
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}
