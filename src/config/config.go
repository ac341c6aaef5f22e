// Package config provides environment-based configuration for the ghtrace
// CLI.
package config

import "os"

// Config holds the invocation-level configuration read from the
// environment. Flags override these values.
type Config struct {
	// Token authenticates against the GitHub API. Empty means
	// unauthenticated, which shares a much smaller rate-limit budget.
	Token string

	// OTLPEndpoint is the collector the OTLP exporter ships traces to.
	OTLPEndpoint string
}

// LoadFromEnv loads configuration from environment variables. A missing
// token is not an error; the client falls back to unauthenticated requests.
func LoadFromEnv() *Config {
	token := os.Getenv("GITHUB_ACCESS_TOKEN")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	return &Config{
		Token:        token,
		OTLPEndpoint: endpoint,
	}
}
