package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Destination selects the warehouse backend.
type Destination string

const (
	DestinationMotherDuck Destination = "motherduck"
	DestinationDuckDB     Destination = "duckdb"
)

// Credential env vars follow the SOURCES__<PIPELINE>__<SERVICE>__<KEY>
// convention shared with the CI secret store.
const (
	EnvGitHubToken   = "SOURCES__GITHUB__GITHUB__API_TOKEN"
	EnvSlackToken    = "SOURCES__SLACK__SLACK__API_TOKEN"
	EnvTwitterBearer = "SOURCES__TWITTER__TWITTER__BEARER_TOKEN"
)

type Config struct {
	GitHub    GitHubConfig
	Slack     SlackConfig
	Twitter   TwitterConfig
	Warehouse WarehouseConfig
	Log       LogConfig
	// HealthcheckURL is pinged once per run with the run's exit status.
	HealthcheckURL string
}

type GitHubConfig struct {
	APIToken     string
	Organization string
	// TrafficTopRepos caps the traffic resource to the top-N repos by stars.
	TrafficTopRepos int
}

type SlackConfig struct {
	APIToken  string
	Workspace string
}

type TwitterConfig struct {
	BearerToken string
	Username    string
}

type WarehouseConfig struct {
	// MotherDuck side.
	Database string
	Token    string
	// Local DuckDB side.
	Path string
}

type LogConfig struct {
	Level  string
	Format string
}

var AppConfig *Config

// Load loads configuration from .env file and environment variables
func Load() error {
	// Load .env file if it exists; plain env vars are fine too.
	_ = godotenv.Load()

	AppConfig = &Config{
		GitHub: GitHubConfig{
			APIToken:        os.Getenv(EnvGitHubToken),
			Organization:    getEnv("GITHUB_ORGANIZATION", "nf-core"),
			TrafficTopRepos: getEnvAsInt("TRAFFIC_TOP_REPOS", 50),
		},
		Slack: SlackConfig{
			APIToken:  os.Getenv(EnvSlackToken),
			Workspace: os.Getenv("SLACK_WORKSPACE"),
		},
		Twitter: TwitterConfig{
			BearerToken: os.Getenv(EnvTwitterBearer),
			Username:    getEnv("TWITTER_USERNAME", "nf_core"),
		},
		Warehouse: WarehouseConfig{
			Database: os.Getenv("MOTHERDUCK_DATABASE"),
			Token:    os.Getenv("MOTHERDUCK_TOKEN"),
			Path:     getEnv("DUCKDB_PATH", "./stats.duckdb"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		HealthcheckURL: os.Getenv("HEALTHCHECK_URL"),
	}

	return nil
}

// ParseDestination validates a --destination flag value.
func ParseDestination(s string) (Destination, error) {
	switch Destination(s) {
	case DestinationMotherDuck:
		return DestinationMotherDuck, nil
	case DestinationDuckDB:
		return DestinationDuckDB, nil
	default:
		return "", fmt.Errorf("unknown destination %q (expected %q or %q)", s, DestinationMotherDuck, DestinationDuckDB)
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
