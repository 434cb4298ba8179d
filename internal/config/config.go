package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EmbeddingDimensions is the size of the interviews.embedding vector column
const EmbeddingDimensions = 768

// Config holds application configuration
type Config struct {
	DatabaseURL         string   `json:"database_url"`
	GoogleCloudProject  string   `json:"google_cloud_project"`
	GoogleCloudLocation string   `json:"google_cloud_location"`
	GeminiAPIKey        string   `json:"gemini_api_key"`
	GeminiModel         string   `json:"gemini_model"`
	EmbeddingModel      string   `json:"embedding_model"`
	EmbeddingDimensions int      `json:"embedding_dimensions"`
	GoogleClientID      string   `json:"google_client_id"`
	GoogleClientSecret  string   `json:"google_client_secret"`
	GoogleRedirectURL   string   `json:"google_redirect_url"`
	DriveFolderID       string   `json:"drive_folder_id"`
	PollInterval        Duration `json:"poll_interval"`
	LeverAPIKey         string   `json:"lever_api_key"`
	LeverBaseURL        string   `json:"lever_base_url"`
	ExtensionToken      string   `json:"extension_token"`
	AllowedOrigins      []string `json:"allowed_origins"`
	Port                string   `json:"port"`
}

// Duration is a time.Duration that reads and writes as "15m" in JSON
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		GoogleCloudLocation: "us-central1",
		GeminiModel:         "gemini-1.5-flash",
		EmbeddingModel:      "text-embedding-004",
		EmbeddingDimensions: EmbeddingDimensions,
		GoogleRedirectURL:   "http://localhost:8080/auth/google/callback",
		PollInterval:        Duration{15 * time.Minute},
		LeverBaseURL:        "https://api.lever.co/v1",
		Port:                "8080",
	}
}

// GetConfigPath returns the path to the configuration file
// On Windows: %APPDATA%/InterviewNotes/config.json
// On Unix: ~/.config/InterviewNotes/config.json
func GetConfigPath() (string, error) {
	var configDir string

	if os.Getenv("APPDATA") != "" {
		configDir = filepath.Join(os.Getenv("APPDATA"), "InterviewNotes")
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "InterviewNotes")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load loads configuration from the default config path, a .env file in the
// working directory if present, and the process environment, in that order
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadFrom(configPath)
}

// LoadFrom loads configuration from a specific path and overlays the environment
func LoadFrom(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := config.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overlays non-empty environment variables onto the config
func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"DATABASE_URL":          &c.DatabaseURL,
		"GOOGLE_CLOUD_PROJECT":  &c.GoogleCloudProject,
		"GOOGLE_CLOUD_LOCATION": &c.GoogleCloudLocation,
		"GEMINI_API_KEY":        &c.GeminiAPIKey,
		"GEMINI_MODEL":          &c.GeminiModel,
		"EMBEDDING_MODEL":       &c.EmbeddingModel,
		"GOOGLE_CLIENT_ID":      &c.GoogleClientID,
		"GOOGLE_CLIENT_SECRET":  &c.GoogleClientSecret,
		"GOOGLE_REDIRECT_URL":   &c.GoogleRedirectURL,
		"DRIVE_FOLDER_ID":       &c.DriveFolderID,
		"LEVER_API_KEY":         &c.LeverAPIKey,
		"LEVER_BASE_URL":        &c.LeverBaseURL,
		"EXTENSION_TOKEN":       &c.ExtensionToken,
		"PORT":                  &c.Port,
	}
	for name, field := range strs {
		if v := getenv(name); v != "" {
			*field = v
		}
	}

	if v := getenv("EMBEDDING_DIMENSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid EMBEDDING_DIMENSIONS %q: %w", v, err)
		}
		c.EmbeddingDimensions = n
	}

	if v := getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POLL_INTERVAL %q: %w", v, err)
		}
		c.PollInterval = Duration{d}
	}

	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}

	return nil
}

// Save saves the configuration to the default config path
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	return c.SaveTo(configPath)
}

// SaveTo saves the configuration to a specific path
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}

	if c.GeminiAPIKey == "" && c.GoogleCloudProject == "" {
		return fmt.Errorf("one of gemini_api_key or google_cloud_project is required")
	}

	if c.GoogleCloudProject != "" && c.GoogleCloudLocation == "" {
		return fmt.Errorf("google_cloud_location is required with google_cloud_project")
	}

	if c.EmbeddingDimensions != EmbeddingDimensions {
		return fmt.Errorf("embedding_dimensions must be %d to match the database schema, got %d", EmbeddingDimensions, c.EmbeddingDimensions)
	}

	if c.PollInterval.Duration < time.Minute {
		return fmt.Errorf("poll_interval must be at least 1m, got %s", c.PollInterval)
	}

	return nil
}

// DriveEnabled reports whether Google OAuth credentials are configured
func (c *Config) DriveEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// LeverEnabled reports whether a Lever API key is configured
func (c *Config) LeverEnabled() bool {
	return c.LeverAPIKey != ""
}
