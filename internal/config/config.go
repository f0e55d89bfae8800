package config

import (
	"os"
	"strings"
)

// Config aggregates runtime configuration grouped by concern.
type Config struct {
	ServiceName string
	HTTP        HTTPConfig
	Restate     RestateConfig
	Kafka       KafkaConfig
	Gateway     GatewayConfig
	Store       StoreConfig
	Fulfillment FulfillmentConfig
}

type HTTPConfig struct {
	Addr string
}

// RestateConfig controls the durable-execution binding. An empty RuntimeURL
// means no runtime is deployed and reconciliation runs in-process.
type RestateConfig struct {
	ListenAddr string
	RuntimeURL string
}

type KafkaConfig struct {
	Brokers              []string
	ReconciliationsTopic string
	ReconciliationsGroup string
}

// GatewayConfig holds payment gateway credentials. An empty SecretKey leaves
// the gateway unconfigured, which makes every reconciliation fail fast.
type GatewayConfig struct {
	BaseURL   string
	SecretKey string
}

type StoreConfig struct {
	BaseURL string
	Dataset string
	Token   string
}

type FulfillmentConfig struct {
	BaseURL string
}

// Load reads configuration from environment variables, applying sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "backoffice-reconciler"),
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_LISTEN_ADDR", ":3000"),
		},
		Restate: RestateConfig{
			ListenAddr: getEnv("RESTATE_LISTEN_ADDR", ":9081"),
			RuntimeURL: getEnv("RESTATE_RUNTIME_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:              splitAndTrim(getEnv("KAFKA_BROKERS", "localhost:9092")),
			ReconciliationsTopic: getEnv("KAFKA_RECONCILIATIONS_TOPIC", "reconciliations.v1"),
			ReconciliationsGroup: getEnv("KAFKA_RECONCILIATIONS_GROUP_ID", "reconciliation-workers"),
		},
		Gateway: GatewayConfig{
			BaseURL:   getEnv("PAYMENT_GATEWAY_URL", ""),
			SecretKey: getEnv("PAYMENT_GATEWAY_SECRET_KEY", ""),
		},
		Store: StoreConfig{
			BaseURL: getEnv("CONTENT_STORE_URL", "http://localhost:3333"),
			Dataset: getEnv("CONTENT_STORE_DATASET", "production"),
			Token:   getEnv("CONTENT_STORE_TOKEN", ""),
		},
		Fulfillment: FulfillmentConfig{
			BaseURL: getEnv("FULFILLMENT_BASE_URL", ""),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
