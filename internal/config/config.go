package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConf struct {
	Env                   string `mapstructure:"env"`
	Port                  int    `mapstructure:"port"`
	ShutdownSeconds       int    `mapstructure:"shutdown_seconds"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

func (a *AppConf) PortString() string { return fmt.Sprintf("%d", a.Port) }

type MongoConf struct {
	URI                    string        `mapstructure:"uri"`
	Database               string        `mapstructure:"database"`
	ParticipantsCollection string        `mapstructure:"participants_collection"`
	MessagesCollection     string        `mapstructure:"messages_collection"`
	ConnectTimeout         time.Duration `mapstructure:"connect_timeout"`
}

// SweepConf drives the idle-participant eviction worker.
type SweepConf struct {
	Interval  time.Duration `mapstructure:"interval"`
	IdleAfter time.Duration `mapstructure:"idle_after"`
}

type RedisConf struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConf struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RateLimitConf struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

type Config struct {
	App       AppConf       `mapstructure:"app"`
	Mongo     MongoConf     `mapstructure:"mongo"`
	Sweep     SweepConf     `mapstructure:"sweep"`
	Redis     RedisConf     `mapstructure:"redis"`
	Kafka     KafkaConf     `mapstructure:"kafka"`
	RateLimit RateLimitConf `mapstructure:"rate_limit"`
	Log       struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	// derived
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// Load reads the optional YAML file at path, then applies environment overrides
// (MONGO_URI, SWEEP_IDLE_AFTER, ... and the bare PORT).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("app.port", "APP_PORT", "PORT")
	_ = v.BindEnv("mongo.uri", "MONGO_URI", "MONGODB_URI")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitBrokers(cfg.Kafka.Brokers)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSeconds) * time.Second
	cfg.RequestTimeout = time.Duration(cfg.App.RequestTimeoutSeconds) * time.Second
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.port", 5000)
	v.SetDefault("app.shutdown_seconds", 10)
	v.SetDefault("app.request_timeout_seconds", 5)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "batepapo")
	v.SetDefault("mongo.participants_collection", "participants")
	v.SetDefault("mongo.messages_collection", "messages")
	v.SetDefault("mongo.connect_timeout", 30*time.Second)

	v.SetDefault("sweep.interval", 15*time.Second)
	v.SetDefault("sweep.idle_after", 10*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "batepapo:ratelimit")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "chat.events")

	v.SetDefault("rate_limit.per_minute", 0)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("log.level", "info")
}

// splitBrokers accepts both a YAML list and a single comma separated env value.
func splitBrokers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, b := range in {
		for _, part := range strings.Split(b, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func validate(cfg *Config) error {
	if cfg.App.Port <= 0 {
		return errors.New("app.port missing or invalid")
	}
	if cfg.App.ShutdownSeconds <= 0 {
		cfg.App.ShutdownSeconds = 10
	}
	if cfg.App.RequestTimeoutSeconds <= 0 {
		cfg.App.RequestTimeoutSeconds = 5
	}

	if cfg.Mongo.URI == "" {
		return errors.New("mongo.uri missing (set MONGO_URI)")
	}
	if cfg.Mongo.Database == "" {
		return errors.New("mongo.database missing")
	}

	if cfg.Sweep.Interval <= 0 {
		return errors.New("sweep.interval must be positive")
	}
	if cfg.Sweep.IdleAfter <= 0 {
		return errors.New("sweep.idle_after must be positive")
	}

	if cfg.RateLimit.PerMinute < 0 {
		return errors.New("rate_limit.per_minute cannot be negative")
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 1
	}
	return nil
}
