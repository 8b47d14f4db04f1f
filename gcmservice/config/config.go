package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

// Supported push gateways.
const (
	GatewayGCM = "gcm"
	GatewayFCM = "fcm"
)

const (
	defaultRedisTTL = 24 * time.Hour
	defaultTimeout  = 10 * time.Second
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// GatewayConfig selects and configures the push gateway.
type GatewayConfig struct {
	// Gateway is GatewayGCM (legacy HTTP endpoint, API key) or GatewayFCM
	// (Firebase Admin SDK, application default credentials).
	Gateway        string
	APIKey         string
	Endpoint       string
	Timeout        time.Duration
	TransportRetry bool
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Push       GatewayConfig

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	override := func(key string, apply func(string) error) error {
		val := os.Getenv(key)
		if val == "" {
			return nil
		}
		if err := apply(val); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		logger.Debug("Overriding config value", "key", key, "source", "env")
		return nil
	}

	overrides := []struct {
		key   string
		apply func(string) error
	}{
		{"PROJECT_ID", func(v string) error { cfg.ProjectID = v; return nil }},
		{"PORT", func(v string) error { cfg.ListenAddr = ":" + v; return nil }},
		{"TOPIC_ID", func(v string) error { cfg.TopicID = v; return nil }},
		{"SUBSCRIPTION_ID", func(v string) error {
			cfg.SubscriptionID = v
			cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(v)
			return nil
		}},
		{"SUBSCRIPTION_DLQ_TOPIC_ID", func(v string) error { cfg.SubscriptionDLQTopicID = v; return nil }},
		{"NUM_PIPELINE_WORKERS", func(v string) error {
			workers, err := strconv.Atoi(v)
			if err != nil || workers <= 0 {
				return fmt.Errorf("want a positive integer, got %q", v)
			}
			cfg.NumPipelineWorkers = workers
			return nil
		}},

		{"REDIS_ADDR", func(v string) error { cfg.Redis.Addr = v; cfg.Redis.Enabled = true; return nil }},
		{"REDIS_PASSWORD", func(v string) error { cfg.Redis.Password = v; return nil }},
		{"REDIS_DB", func(v string) (err error) { cfg.Redis.DB, err = strconv.Atoi(v); return err }},
		{"REDIS_ENABLED", func(v string) (err error) { cfg.Redis.Enabled, err = strconv.ParseBool(v); return err }},
		{"REDIS_TTL", func(v string) (err error) { cfg.Redis.TTL, err = time.ParseDuration(v); return err }},

		{"PUSH_GATEWAY", func(v string) error { cfg.Push.Gateway = strings.ToLower(v); return nil }},
		{"GCM_API_KEY", func(v string) error { cfg.Push.APIKey = v; return nil }},
		{"GCM_ENDPOINT", func(v string) error { cfg.Push.Endpoint = v; return nil }},
		{"GCM_TIMEOUT", func(v string) (err error) { cfg.Push.Timeout, err = time.ParseDuration(v); return err }},
		{"GCM_TRANSPORT_RETRY", func(v string) (err error) { cfg.Push.TransportRetry, err = strconv.ParseBool(v); return err }},

		{"CORS_ALLOWED_ORIGINS", func(v string) error {
			var cleanOrigins []string
			for _, o := range strings.Split(v, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					cleanOrigins = append(cleanOrigins, trimmed)
				}
			}
			cfg.CorsConfig.AllowedOrigins = cleanOrigins
			return nil
		}},
	}
	for _, o := range overrides {
		if err := override(o.key, o.apply); err != nil {
			return nil, err
		}
	}

	if err := finalize(cfg); err != nil {
		return nil, err
	}
	logger.Debug("Configuration finalized and validated successfully", "gateway", cfg.Push.Gateway)
	return cfg, nil
}

func finalize(cfg *Config) error {
	if cfg.ProjectID == "" {
		return fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = defaultRedisTTL
	}
	if cfg.PubsubConsumerConfig == nil {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	switch cfg.Push.Gateway {
	case "":
		cfg.Push.Gateway = GatewayGCM
		fallthrough
	case GatewayGCM:
		if cfg.Push.APIKey == "" {
			return fmt.Errorf("gcm.api_key is required for the gcm gateway (set via YAML or GCM_API_KEY env var)")
		}
	case GatewayFCM:
	default:
		return fmt.Errorf("unknown push gateway %q (want %q or %q)", cfg.Push.Gateway, GatewayGCM, GatewayFCM)
	}
	if cfg.Push.Timeout <= 0 {
		cfg.Push.Timeout = defaultTimeout
	}
	return nil
}
