package cli

import (
	"os"
	"time"
)

// Config holds CLI configuration
type Config struct {
	Addr      string
	ServerURL string
	Timeout   time.Duration
	Output    string
	Verbose   bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Addr:      getEnvOrDefault("MATCHCTL_ADDR", "localhost:5000"),
		ServerURL: getEnvOrDefault("MATCHCTL_SERVER", "http://localhost:8080"),
		Timeout:   10 * time.Second,
		Output:    "text",
		Verbose:   false,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
