// Package config provides centralized configuration management for agentline
// through environment variables with sensible defaults, plus loading of the
// agent roster from a YAML file.
//
// # Overview
//
// The config package loads application configuration from environment
// variables, providing a single source of truth for:
//   - HTTP API and health check listen ports
//   - The path of the agents roster file
//   - Invocation timeout policy
//   - Observability stack endpoints (OTLP, Prometheus)
//   - Service metadata (name, version, environment)
//
// All configuration values have sensible defaults, so the service can run
// without any environment variable configuration.
//
// # Quick Start
//
// Load configuration in your service:
//
//	cfg := config.Load()
//	fmt.Printf("API: %s\n", cfg.GetAPIAddress())
//	fmt.Printf("Environment: %s\n", cfg.Environment)
//
//	agents, err := config.LoadAgentConfigs(cfg.AgentsFile)
//
// # Configuration Fields
//
// **Service**:
//   - AGENTLINE_API_PORT: HTTP API port (default: "8090")
//   - AGENTLINE_HEALTH_PORT: Health endpoint port (default: "8080")
//   - AGENTLINE_AGENTS_FILE: Agents roster path (default: "agents.yaml")
//   - AGENTLINE_INVOKE_TIMEOUT: Per-invocation timeout, e.g. "90s"
//     (default: none)
//
// **Observability Stack**:
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: "127.0.0.1:4317")
//   - PROMETHEUS_PORT: Prometheus port (default: "9090")
//
// **Service Metadata**:
//   - SERVICE_NAME: Service name for observability (default: "agentline")
//   - SERVICE_VERSION: Service version (default: "1.0.0")
//   - ENVIRONMENT: Deployment environment (default: "development")
//   - LOG_LEVEL: Logging level - DEBUG, INFO, WARN, ERROR (default: "INFO")
//
// # Agents File
//
// The agent roster is a YAML document:
//
//	agents:
//	  - name: researcher
//	    url: http://localhost:4100
//	    description: Research assistant
//	  - name: coder
//	    url: http://localhost:4200
//	    headers:
//	      Authorization: Bearer secret
//
// Each agent needs a name and a url; headers are attached to every request
// to that agent.
//
// # Thread Safety
//
// AppConfig is safe to read from multiple goroutines once loaded.
// Do not modify AppConfig fields after calling Load().
package config
