// Package config handles loading and validation of service configuration.
// Supports env vars, a JSON config file, and Secret Manager for the default
// constraint profile.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"golang.org/x/mod/semver"
)

// Profile sources.
const (
	SourceBuiltin = "builtin"
	SourceFile    = "file"
	SourceSecret  = "secret"
)

// Config holds all service configuration.
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required for the secret profile source)
	GCPProject string

	Profile ProfileConfig
}

// ProfileConfig controls where the default constraint profile comes from and
// how remote profiles are fetched.
type ProfileConfig struct {
	Source string `json:"source"` // builtin, file or secret
	File   string `json:"file"`   // path for the file source
	Secret string `json:"secret"` // secret id for the secret source

	// Data is the profile document read from Secret Manager.
	Data []byte `json:"-"`

	// MinVersion rejects remote profiles with an older semver version.
	MinVersion string `json:"min_version"`

	// Strict fails requests whose named profile cannot be fetched instead of
	// falling back to the default profile.
	Strict bool `json:"strict"`

	CacheTTL     time.Duration `json:"-"`
	FetchTimeout time.Duration `json:"-"`
	Transport    string        `json:"transport"` // default or chrome
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		cfg, err = loadFromFile(configPath)
	} else {
		cfg, err = loadFromEnv()
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Profile.Source == SourceSecret {
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading constraint profile: %w", err)
		}
	}

	return cfg, nil
}

func loadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		Profile: ProfileConfig{
			Source:     envOrDefault("PROFILE_SOURCE", SourceBuiltin),
			File:       os.Getenv("CONSTRAINTS_FILE"),
			Secret:     os.Getenv("PROFILE_SECRET"),
			MinVersion: os.Getenv("MIN_PROFILE_VERSION"),
			Transport:  envOrDefault("PROFILE_TRANSPORT", "default"),
		},
	}

	var err error
	if v := os.Getenv("PROFILE_STRICT"); v != "" {
		if cfg.Profile.Strict, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid PROFILE_STRICT %q: %w", v, err)
		}
	}
	if cfg.Profile.CacheTTL, err = parseDuration("PROFILE_CACHE_TTL", os.Getenv("PROFILE_CACHE_TTL")); err != nil {
		return nil, err
	}
	if cfg.Profile.FetchTimeout, err = parseDuration("PROFILE_FETCH_TIMEOUT", os.Getenv("PROFILE_FETCH_TIMEOUT")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Use a struct that matches the JSON structure
	var fileConfig struct {
		Port        string        `json:"port"`
		Environment string        `json:"environment"`
		LogLevel    string        `json:"log_level"`
		GCPProject  string        `json:"gcp_project"`
		Profile     ProfileConfig `json:"profile"`

		CacheTTL     string `json:"profile_cache_ttl"`
		FetchTimeout string `json:"profile_fetch_timeout"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		GCPProject:  fileConfig.GCPProject,
		Profile:     fileConfig.Profile,
	}
	cfg.Profile.Source = withDefault(cfg.Profile.Source, SourceBuiltin)
	cfg.Profile.Transport = withDefault(cfg.Profile.Transport, "default")

	if cfg.Profile.CacheTTL, err = parseDuration("profile_cache_ttl", fileConfig.CacheTTL); err != nil {
		return nil, err
	}
	if cfg.Profile.FetchTimeout, err = parseDuration("profile_fetch_timeout", fileConfig.FetchTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseDuration reads a Go duration ("30s", "5m"). Empty means zero, which
// leaves the fetcher default in place.
func parseDuration(name, val string) (time.Duration, error) {
	if val == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, val, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", name, val)
	}
	return d, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches the default constraint profile document.
// Secret name format: projects/{project}/secrets/{secret}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := c.SecretName()

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	c.Profile.Data = result.Payload.Data
	return nil
}

// SecretName is the Secret Manager resource holding the default profile.
func (c *Config) SecretName() string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.GCPProject, c.Profile.Secret)
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	switch c.Profile.Source {
	case SourceBuiltin:
	case SourceFile:
		if c.Profile.File == "" {
			return fmt.Errorf("CONSTRAINTS_FILE is required for the file profile source")
		}
	case SourceSecret:
		if c.GCPProject == "" {
			return fmt.Errorf("GCP_PROJECT is required for the secret profile source")
		}
		if c.Profile.Secret == "" {
			return fmt.Errorf("PROFILE_SECRET is required for the secret profile source")
		}
	default:
		return fmt.Errorf("unsupported profile source: %s", c.Profile.Source)
	}

	switch c.Profile.Transport {
	case "default", "chrome":
	default:
		return fmt.Errorf("unsupported profile transport: %s", c.Profile.Transport)
	}

	if v := c.Profile.MinVersion; v != "" && !semver.IsValid(canonicalVersion(v)) {
		return fmt.Errorf("invalid MIN_PROFILE_VERSION %q: not a semantic version", v)
	}

	return nil
}

func canonicalVersion(v string) string {
	if v != "" && v[0] != 'v' {
		return "v" + v
	}
	return v
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
