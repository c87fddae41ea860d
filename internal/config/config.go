package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string

	RailProvider string
	RailEndpoint string
	RailAPIKey   string
	RailTimeout  time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	NotifyTo     string

	Dispatcher DispatcherConfig
}

// DispatcherConfig tunes the disbursement tick. Values come from the
// optional disburse.yaml file first, environment second.
type DispatcherConfig struct {
	TickInterval      time.Duration
	BatchSize         int
	Workers           int
	ExecutionTimeout  time.Duration
	RecoveryThreshold time.Duration
	LeaderLockTTL     time.Duration
	EnabledJobs       []string
}

// Load loads configuration from environment variables, the .env file
// and an optional disburse.yaml next to the binary.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "disburse"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "disburse"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 0),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 0),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		RailProvider: getenv("RAIL_PROVIDER", "sandbox"),
		RailEndpoint: getenv("RAIL_ENDPOINT", ""),
		RailAPIKey:   getenv("RAIL_API_KEY", ""),
		RailTimeout:  getenvDuration("RAIL_TIMEOUT", 15*time.Second),

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", "587"),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", ""),
		NotifyTo:     getenv("NOTIFY_TO", ""),

		Dispatcher: loadDispatcherConfig(),
	}

	return cfg
}

func loadDispatcherConfig() DispatcherConfig {
	v := viper.New()
	v.SetConfigName("disburse")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/disburse")

	v.SetDefault("dispatcher.tick_interval", time.Minute)
	v.SetDefault("dispatcher.batch_size", 50)
	v.SetDefault("dispatcher.workers", 4)
	v.SetDefault("dispatcher.execution_timeout", 15*time.Second)
	v.SetDefault("dispatcher.recovery_threshold", 15*time.Minute)
	v.SetDefault("dispatcher.leader_lock_ttl", 90*time.Second)

	// Missing config file is fine; defaults and env carry the load.
	_ = v.ReadInConfig()

	cfg := DispatcherConfig{
		TickInterval:      v.GetDuration("dispatcher.tick_interval"),
		BatchSize:         v.GetInt("dispatcher.batch_size"),
		Workers:           v.GetInt("dispatcher.workers"),
		ExecutionTimeout:  v.GetDuration("dispatcher.execution_timeout"),
		RecoveryThreshold: v.GetDuration("dispatcher.recovery_threshold"),
		LeaderLockTTL:     v.GetDuration("dispatcher.leader_lock_ttl"),
		EnabledJobs:       v.GetStringSlice("dispatcher.enabled_jobs"),
	}

	if jobs := getenv("DISPATCHER_ENABLED_JOBS", ""); jobs != "" {
		cfg.EnabledJobs = splitCSV(jobs)
	}
	if interval := getenvDuration("DISPATCHER_TICK_INTERVAL", 0); interval > 0 {
		cfg.TickInterval = interval
	}

	return cfg
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	raw := getenv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	raw := getenv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
