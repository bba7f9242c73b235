package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Portal   PortalConfig   `yaml:"portal"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	PortalAuditTopicName string `yaml:"portal_audit_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type PortalConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	WorkerHTTPAddr     string `yaml:"worker_http_addr"`

	ResultCacheTTLSeconds int `yaml:"result_cache_ttl_seconds"`

	// ShipsGo provider. Empty auth_code means the provider is not configured:
	// every live fetch resolves to NotConfigured without a network call.
	ProviderBaseURL        string `yaml:"provider_base_url"`
	ProviderAuthCode       string `yaml:"provider_auth_code"`
	ProviderTimeoutSeconds int    `yaml:"provider_timeout_seconds"`

	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// Указатели, чтобы отличить "не задано" (включено по умолчанию) от
	// явного false в конфиге.
	FallbackEnabled        *bool `yaml:"fallback_enabled"`
	MaskUnknownIdentifiers *bool `yaml:"mask_unknown_identifiers"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
