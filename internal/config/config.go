package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentline/agentline/internal/registry"
)

// AppConfig holds all application configuration
type AppConfig struct {
	// API Configuration
	APIPort string

	// Agent Configuration
	AgentsFile string

	// Invocation Configuration
	InvokeTimeout time.Duration

	// Observability Configuration
	OTLPEndpoint   string
	PrometheusPort string
	HealthPort     string

	// Service Configuration
	ServiceName    string
	ServiceVersion string
	Environment    string
	LogLevel       string
}

// Load loads configuration from environment variables with defaults
func Load() *AppConfig {
	return &AppConfig{
		// API
		APIPort: getEnv("AGENTLINE_API_PORT", "8090"),

		// Agents
		AgentsFile: getEnv("AGENTLINE_AGENTS_FILE", "agents.yaml"),

		// Invocation; zero means no per-invocation timeout
		InvokeTimeout: getEnvAsDuration("AGENTLINE_INVOKE_TIMEOUT", 0),

		// Observability Stack
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "127.0.0.1:4317"),
		PrometheusPort: getEnv("PROMETHEUS_PORT", "9090"),
		HealthPort:     getEnv("AGENTLINE_HEALTH_PORT", "8080"),

		// Service Configuration
		ServiceName:    getEnv("SERVICE_NAME", "agentline"),
		ServiceVersion: getEnv("SERVICE_VERSION", "1.0.0"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
	}
}

// GetAPIAddress returns the listen address for the HTTP API
func (c *AppConfig) GetAPIAddress() string {
	return ":" + c.APIPort
}

// GetPrometheusURL returns the Prometheus web interface URL
func (c *AppConfig) GetPrometheusURL() string {
	return "http://localhost:" + c.PrometheusPort
}

// agentsFile is the YAML document shape of the agents configuration file.
type agentsFile struct {
	Agents []registry.AgentConfig `yaml:"agents"`
}

// LoadAgentConfigs reads the agent roster from a YAML file:
//
//	agents:
//	  - name: researcher
//	    url: http://localhost:4100
//	    description: Research assistant
//	  - name: coder
//	    url: http://localhost:4200
//	    headers:
//	      Authorization: Bearer ...
func LoadAgentConfigs(path string) ([]registry.AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents file %s: %w", path, err)
	}

	var doc agentsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse agents file %s: %w", path, err)
	}

	for i := range doc.Agents {
		if err := doc.Agents[i].Validate(); err != nil {
			return nil, fmt.Errorf("agents file %s: %w", path, err)
		}
	}
	return doc.Agents, nil
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as duration with a default fallback
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
