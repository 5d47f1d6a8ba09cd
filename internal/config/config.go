package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/makkenzo/keygate/internal/ierr"
	"github.com/spf13/viper"
)

const (
	StorageDriverFile     = "file"
	StorageDriverPostgres = "postgres"
	StorageDriverRedis    = "redis"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Worker    WorkerConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	ShutdownPeriod time.Duration `mapstructure:"shutdownPeriod"`
	AllowedOrigins []string      `mapstructure:"allowedOrigins"`
}

// AuthConfig holds the admin credential. AdminKeyHash, when set, is a bcrypt
// hash and takes precedence over the plaintext AdminKey.
type AuthConfig struct {
	AdminKey     string `mapstructure:"adminKey"`
	AdminKeyHash string `mapstructure:"adminKeyHash"`
}

type RateLimitConfig struct {
	Capacity     int     `mapstructure:"capacity"`
	RefillPerSec float64 `mapstructure:"refillPerSec"`
}

type WebhookConfig struct {
	HMACSecret      string `mapstructure:"hmacSecret"`
	TwilioAuthToken string `mapstructure:"twilioAuthToken"`
	PublicBaseURL   string `mapstructure:"publicBaseURL"`
}

type StorageConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	RedisKey string `mapstructure:"redisKey"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	PurgeSchedule string `mapstructure:"purgeSchedule"`
	Concurrency   int    `mapstructure:"concurrency"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func LoadConfig(configPath string) (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables and config file")
	}

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	bindLegacyEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("Warning: could not read config file: %s. Error: %v\n", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.shutdownPeriod", 15*time.Second)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})

	v.SetDefault("auth.adminKey", "")
	v.SetDefault("auth.adminKeyHash", "")

	v.SetDefault("rateLimit.capacity", 60)
	v.SetDefault("rateLimit.refillPerSec", 1.0)

	v.SetDefault("webhook.hmacSecret", "")
	v.SetDefault("webhook.twilioAuthToken", "")
	v.SetDefault("webhook.publicBaseURL", "")

	v.SetDefault("storage.driver", StorageDriverFile)
	v.SetDefault("storage.path", "api_keys.json")
	v.SetDefault("storage.redisKey", "keygate:api_keys")

	v.SetDefault("database.url", "")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 2)
	v.SetDefault("database.connMaxLifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.purgeSchedule", "@every 1h")
	v.SetDefault("worker.concurrency", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// bindLegacyEnv keeps the flat variable names used by existing deployments.
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"auth.adminKey":           "ADMIN_API_KEY",
		"storage.path":            "API_KEYS_FILE",
		"webhook.hmacSecret":      "WHATSAPP_WEBHOOK_SECRET",
		"webhook.twilioAuthToken": "TWILIO_AUTH_TOKEN",
		"rateLimit.capacity":      "RATE_LIMIT_CAPACITY",
		"rateLimit.refillPerSec":  "RATE_LIMIT_REFILL_PER_SEC",
	}
	for key, env := range legacy {
		_ = v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
}

func (c *Config) Validate() error {
	if c.Auth.AdminKey == "" && c.Auth.AdminKeyHash == "" {
		return fmt.Errorf("%w: auth.adminKey or auth.adminKeyHash is required", ierr.ErrMisconfiguredSecret)
	}
	if c.RateLimit.Capacity < 0 {
		return fmt.Errorf("%w: rateLimit.capacity must not be negative", ierr.ErrValidation)
	}
	if c.RateLimit.RefillPerSec < 0 {
		return fmt.Errorf("%w: rateLimit.refillPerSec must not be negative", ierr.ErrValidation)
	}

	switch c.Storage.Driver {
	case StorageDriverFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for the file driver", ierr.ErrValidation)
		}
	case StorageDriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("%w: database.url is required for the postgres driver", ierr.ErrValidation)
		}
	case StorageDriverRedis, StorageDriverMemory:
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ierr.ErrValidation, c.Storage.Driver)
	}

	return nil
}
