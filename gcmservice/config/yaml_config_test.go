package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-gcm-service/gcmservice/config"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"gopkg.in/yaml.v3"
)

const sampleYaml = `
project_id: "yaml-project"
listen_addr: ":9000"
topic_id: "yaml-topic"
subscription_id: "yaml-subscription"
subscription_dlq_topic_id: "yaml-dlq"
num_pipeline_workers: 5
cors:
  allowed_origins: ["http://yaml.com"]
  role: "editor"
redis:
  enabled: true
  addr: "localhost:6379"
  ttl: "30m"
gcm:
  gateway: "gcm"
  api_key: "yaml-key"
  endpoint: "https://gcm.test/send"
  timeout: "5s"
  transport_retry: false
`

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal([]byte(sampleYaml), &yamlCfg))

		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, "yaml-topic", cfg.TopicID)
		assert.Equal(t, "yaml-subscription", cfg.SubscriptionID)
		assert.Equal(t, "yaml-dlq", cfg.SubscriptionDLQTopicID)
		assert.Equal(t, 5, cfg.NumPipelineWorkers)

		assert.Equal(t, []string{"http://yaml.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, middleware.CorsRoleEditor, cfg.CorsConfig.Role)

		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, 30*time.Minute, cfg.Redis.TTL)

		assert.Equal(t, config.GatewayGCM, cfg.Push.Gateway)
		assert.Equal(t, "yaml-key", cfg.Push.APIKey)
		assert.Equal(t, "https://gcm.test/send", cfg.Push.Endpoint)
		assert.Equal(t, 5*time.Second, cfg.Push.Timeout)
		assert.False(t, cfg.Push.TransportRetry)

		assert.NotNil(t, cfg.PubsubConsumerConfig)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:      "minimal-project",
			SubscriptionID: "minimal-sub",
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Equal(t, 0, cfg.NumPipelineWorkers)
		assert.Empty(t, cfg.ListenAddr)
		assert.Zero(t, cfg.Push.Timeout)
		assert.True(t, cfg.Push.TransportRetry, "transport retry defaults on")
	})

	t.Run("Failure - Bad Duration", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			GatewayConfig: config.YamlGatewayConfig{Timeout: "ten seconds"},
		}

		_, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "gcm.timeout")
	})
}
