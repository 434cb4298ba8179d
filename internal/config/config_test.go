package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if cfg.EmbeddingDimensions != 768 {
		t.Errorf("Expected default embedding dimensions 768, got %d", cfg.EmbeddingDimensions)
	}
	if cfg.LeverBaseURL != "https://api.lever.co/v1" {
		t.Errorf("Unexpected default Lever URL: %s", cfg.LeverBaseURL)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	cfg.DatabaseURL = "postgres://localhost/interviews"
	cfg.DriveFolderID = "folder-123"
	cfg.PollInterval = Duration{5 * time.Minute}

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if loaded.DriveFolderID != "folder-123" {
		t.Errorf("Expected folder 'folder-123', got '%s'", loaded.DriveFolderID)
	}
	if loaded.PollInterval.Duration != 5*time.Minute {
		t.Errorf("Expected poll interval 5m, got %s", loaded.PollInterval)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected file mode 0600, got %v", info.Mode().Perm())
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL":         "postgres://db/app",
		"EMBEDDING_DIMENSIONS": "1536",
		"POLL_INTERVAL":        "2m",
		"ALLOWED_ORIGINS":      "chrome-extension://abc, https://app.example.com ,",
	}

	cfg := DefaultConfig()
	if err := cfg.applyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv() failed: %v", err)
	}

	if cfg.DatabaseURL != "postgres://db/app" {
		t.Errorf("Unexpected database URL: %s", cfg.DatabaseURL)
	}
	if cfg.EmbeddingDimensions != 1536 {
		t.Errorf("Expected 1536 dimensions, got %d", cfg.EmbeddingDimensions)
	}
	if cfg.PollInterval.Duration != 2*time.Minute {
		t.Errorf("Expected 2m poll interval, got %s", cfg.PollInterval)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://app.example.com" {
		t.Errorf("Unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.GeminiModel != "gemini-1.5-flash" {
		t.Errorf("Unset variables should keep defaults, got model %s", cfg.GeminiModel)
	}
}

func TestApplyEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "Bad dimensions", env: map[string]string{"EMBEDDING_DIMENSIONS": "many"}},
		{name: "Bad interval", env: map[string]string{"POLL_INTERVAL": "often"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if err := cfg.applyEnv(func(k string) string { return tt.env[k] }); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "Valid with API key",
			mutate: func(c *Config) { c.DatabaseURL = "postgres://x"; c.GeminiAPIKey = "key" },
		},
		{
			name:   "Valid with Vertex project",
			mutate: func(c *Config) { c.DatabaseURL = "postgres://x"; c.GoogleCloudProject = "proj" },
		},
		{
			name:    "Missing database",
			mutate:  func(c *Config) { c.GeminiAPIKey = "key" },
			wantErr: true,
		},
		{
			name:    "Missing Gemini credentials",
			mutate:  func(c *Config) { c.DatabaseURL = "postgres://x" },
			wantErr: true,
		},
		{
			name: "Embedding size differs from schema",
			mutate: func(c *Config) {
				c.DatabaseURL = "postgres://x"
				c.GeminiAPIKey = "key"
				c.EmbeddingDimensions = 1536
			},
			wantErr: true,
		},
		{
			name: "Poll interval too short",
			mutate: func(c *Config) {
				c.DatabaseURL = "postgres://x"
				c.GeminiAPIKey = "key"
				c.PollInterval = Duration{time.Second}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
