// Package config loads botflow settings from an optional YAML file and the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukex/botflow/pkg/bots"
	"github.com/dukex/botflow/pkg/idempotency"
	"github.com/dukex/botflow/pkg/workflow"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BOTFLOW"

type Config struct {
	DatabaseURL string         `mapstructure:"database_url"`
	LogLevel    string         `mapstructure:"log_level"`
	LogFormat   string         `mapstructure:"log_format"`
	UploadRoot  string         `mapstructure:"upload_root"`
	Tracing     bool           `mapstructure:"tracing"`
	API         APIConfig      `mapstructure:"api"`
	EventBus    EventBusConfig `mapstructure:"event_bus"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Bots        BotsConfig     `mapstructure:"bots"`
	Workflow    WorkflowConfig `mapstructure:"workflow"`
}

type APIConfig struct {
	Port int `mapstructure:"port"`
}

type EventBusConfig struct {
	Type         string   `mapstructure:"type"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
}

// RedisConfig configures the update dedup store. An empty URL disables it.
type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type BotsConfig struct {
	IdentityTimeout   time.Duration `mapstructure:"identity_timeout"`
	ReconcileSchedule string        `mapstructure:"reconcile_schedule"`
}

type WorkflowConfig struct {
	MaxTraversalSteps int `mapstructure:"max_traversal_steps"`
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "file://./data")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("upload_root", "./uploads")
	v.SetDefault("tracing", false)

	v.SetDefault("api.port", 9091)

	v.SetDefault("event_bus.type", "gochannel")
	v.SetDefault("event_bus.kafka_brokers", []string{})

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key_prefix", "botflow:update:")
	v.SetDefault("redis.ttl", idempotency.DefaultTTL)

	v.SetDefault("bots.identity_timeout", bots.DefaultIdentityTimeout)
	v.SetDefault("bots.reconcile_schedule", bots.DefaultReconcileSchedule)

	v.SetDefault("workflow.max_traversal_steps", workflow.DefaultMaxSteps)
}

// Load reads the YAML file at path, when given, over the defaults. Environment
// variables such as BOTFLOW_API_PORT or BOTFLOW_REDIS_URL override both.
func Load(path string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var config Config

	err := v.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &config, nil
}
