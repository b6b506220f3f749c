package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Reminder   ReminderConfig   `mapstructure:"reminder"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// SweepToken guards POST /internal/reminders/sweep. Empty disables the route.
	SweepToken      string        `mapstructure:"sweep_token"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver  string        `mapstructure:"driver"` // "mongo" or "memory"
	URI     string        `mapstructure:"uri"`
	Name    string        `mapstructure:"name"`
	Timeout time.Duration `mapstructure:"timeout"` // per operation
}

// JWTConfig defines JWT specific configuration. Tokens are issued by the
// identity service; only the shared secret is needed to verify them.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type SchedulingConfig struct {
	MaxHorizonDays                   int  `mapstructure:"max_horizon_days"`
	RebookHorizonDays                int  `mapstructure:"rebook_horizon_days"`
	RejectOverlappingMaterialization bool `mapstructure:"reject_overlapping_materialization"`
}

type ReminderConfig struct {
	Lead   time.Duration `mapstructure:"lead"`
	Window time.Duration `mapstructure:"window"`
}

type NotifierConfig struct {
	Driver    string          `mapstructure:"driver"` // "log" or "nats"
	Timeout   time.Duration   `mapstructure:"timeout"`
	NATS      NATSConfig      `mapstructure:"nats"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Token         string        `mapstructure:"token"`
	Subject       string        `mapstructure:"subject"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type RateLimitConfig struct {
	Backend string        `mapstructure:"backend"` // "mongo", "redis" or "memory"
	Limit   int64         `mapstructure:"limit"`   // 0 disables limiting
	Window  time.Duration `mapstructure:"window"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Env   string `mapstructure:"env"` // "development" gets console output
	Level string `mapstructure:"level"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	// Set the path to look for the config file in
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Handling ---
	v.AutomaticEnv()
	// Use replacer for nested keys e.g., server.address -> SERVER_ADDRESS
	// notifier.rate_limit.backend -> NOTIFIER_RATE_LIMIT_BACKEND
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	// --- Set default values ---
	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	setDefaults(v)

	// --- Read Config File ---
	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil // Proceed on defaults and env vars
	} else if err != nil {
		return
	}

	// --- Unmarshal Config ---
	// Duration strings ("10m", "5s") decode directly into time.Duration fields.
	if err = v.Unmarshal(&config); err != nil {
		return
	}
	if err = config.Validate(); err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.sweep_token", "")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "coach_scheduling")
	v.SetDefault("database.timeout", "5s")

	v.SetDefault("jwt.secret", "")

	v.SetDefault("scheduling.max_horizon_days", 28)
	v.SetDefault("scheduling.rebook_horizon_days", 7)
	v.SetDefault("scheduling.reject_overlapping_materialization", true)

	v.SetDefault("reminder.lead", "10m")
	v.SetDefault("reminder.window", "10m")

	v.SetDefault("notifier.driver", "log")
	v.SetDefault("notifier.timeout", "10s")
	v.SetDefault("notifier.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("notifier.nats.token", "")
	v.SetDefault("notifier.nats.subject", "coach.notifications.email")
	v.SetDefault("notifier.nats.max_reconnects", -1)
	v.SetDefault("notifier.nats.reconnect_wait", "2s")
	v.SetDefault("notifier.rate_limit.backend", "mongo")
	v.SetDefault("notifier.rate_limit.limit", 0)
	v.SetDefault("notifier.rate_limit.window", "1h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.env", "production")
	v.SetDefault("log.level", "info")
}

// MinJWTSecretLength is the shortest HS256 secret the API accepts.
const MinJWTSecretLength = 32

// Validate rejects combinations the wiring cannot satisfy.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "mongo", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be mongo or memory", c.Database.Driver))
	}
	switch c.Notifier.Driver {
	case "log", "nats":
	default:
		errs = append(errs, fmt.Errorf("notifier.driver %q must be log or nats", c.Notifier.Driver))
	}
	if c.Notifier.RateLimit.Limit > 0 {
		switch c.Notifier.RateLimit.Backend {
		case "mongo", "redis", "memory":
		default:
			errs = append(errs, fmt.Errorf("notifier.rate_limit.backend %q must be mongo, redis or memory", c.Notifier.RateLimit.Backend))
		}
		if c.Notifier.RateLimit.Backend == "mongo" && c.Database.Driver != "mongo" {
			errs = append(errs, errors.New("notifier.rate_limit.backend mongo requires database.driver mongo"))
		}
		// Process-local counters only hold for a single process on throwaway data.
		if c.Notifier.RateLimit.Backend == "memory" && c.Database.Driver != "memory" {
			errs = append(errs, errors.New("notifier.rate_limit.backend memory requires database.driver memory"))
		}
	}
	if c.Scheduling.MaxHorizonDays < 1 {
		errs = append(errs, fmt.Errorf("scheduling.max_horizon_days must be positive, got %d", c.Scheduling.MaxHorizonDays))
	}
	if c.Reminder.Lead <= 0 || c.Reminder.Window <= 0 {
		errs = append(errs, errors.New("reminder.lead and reminder.window must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateServe adds the checks only the HTTP server needs on top of Validate.
// Maintenance commands never verify tokens and may run without a secret.
func (c Config) ValidateServe() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.JWT.Secret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("jwt.secret must be at least %d bytes, got %d", MinJWTSecretLength, len(c.JWT.Secret)))
	}
	return errors.Join(errs...)
}
