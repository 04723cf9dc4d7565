package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Backup    BackupConfig    `yaml:"backup"`
	Generator GeneratorConfig `yaml:"generator"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// StorageConfig contains content store file locations.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	ContentFile string `yaml:"content_file"`
	TrashFile   string `yaml:"trash_file"`
}

// ContentPath returns the full path of the active content file.
func (s StorageConfig) ContentPath() string {
	return filepath.Join(s.DataDir, s.ContentFile)
}

// TrashPath returns the full path of the trash file.
func (s StorageConfig) TrashPath() string {
	return filepath.Join(s.DataDir, s.TrashFile)
}

// BackupConfig contains snapshot settings.
type BackupConfig struct {
	Dir        string        `yaml:"dir"`
	MaxBackups int           `yaml:"max_backups"`
	Auto       bool          `yaml:"auto"`
	Offsite    OffsiteConfig `yaml:"offsite"`
}

// ResolveDir returns the backup directory, defaulting to a sibling of the
// data directory when unset.
func (b BackupConfig) ResolveDir(dataDir string) string {
	if b.Dir != "" {
		return b.Dir
	}
	return filepath.Join(dataDir, "backups")
}

// OffsiteConfig contains S3-compatible backup upload settings.
// An empty bucket keeps the system in local-only mode.
type OffsiteConfig struct {
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"-"` // env-only, never in YAML
	SecretKey string `yaml:"-"` // env-only, never in YAML
	UseSSL    *bool  `yaml:"use_ssl"`
}

// GeneratorConfig contains LLM completion settings.
type GeneratorConfig struct {
	APIKey      string  `yaml:"-"` // env-only, never in YAML
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("TOPIKA_CONFIG_PATH", "config/topika.yaml")

	// Missing file is not an error; defaults apply.
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Storage: StorageConfig{
			DataDir:     "data",
			ContentFile: "confirmed_questions.json",
			TrashFile:   "trash.json",
		},
		Backup: BackupConfig{
			MaxBackups: 30,
			Auto:       true,
		},
		Generator: GeneratorConfig{
			Model:       "gpt-3.5-turbo",
			Temperature: 0.7,
			MaxTokens:   1500,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("TOPIKA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TOPIKA_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("TOPIKA_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("TOPIKA_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Storage
	if v := os.Getenv("TOPIKA_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("TOPIKA_CONTENT_FILE"); v != "" {
		cfg.Storage.ContentFile = v
	}
	if v := os.Getenv("TOPIKA_TRASH_FILE"); v != "" {
		cfg.Storage.TrashFile = v
	}

	// Backup
	if v := os.Getenv("TOPIKA_BACKUP_DIR"); v != "" {
		cfg.Backup.Dir = v
	}
	if v := os.Getenv("TOPIKA_MAX_BACKUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backup.MaxBackups = n
		}
	}
	if v := os.Getenv("TOPIKA_AUTO_BACKUP"); v != "" {
		cfg.Backup.Auto = v == "true" || v == "1"
	}
	if v := os.Getenv("TOPIKA_S3_BUCKET"); v != "" {
		cfg.Backup.Offsite.Bucket = v
	}
	if v := os.Getenv("TOPIKA_S3_ENDPOINT"); v != "" {
		cfg.Backup.Offsite.Endpoint = v
	}
	if v := os.Getenv("TOPIKA_S3_REGION"); v != "" {
		cfg.Backup.Offsite.Region = v
	}
	if v := os.Getenv("TOPIKA_S3_ACCESS_KEY"); v != "" {
		cfg.Backup.Offsite.AccessKey = v
	}
	if v := os.Getenv("TOPIKA_S3_SECRET_KEY"); v != "" {
		cfg.Backup.Offsite.SecretKey = v
	}
	if v := os.Getenv("TOPIKA_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Backup.Offsite.UseSSL = &useSSL
	}

	// Generator (OPENAI_API_KEY is industry convention)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv("TOPIKA_MODEL"); v != "" {
		cfg.Generator.Model = v
	}
	if v := os.Getenv("TOPIKA_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Generator.Temperature = f
		}
	}
	if v := os.Getenv("TOPIKA_MAX_TOKENS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Generator.MaxTokens = n
		}
	}

	// Log
	if v := os.Getenv("TOPIKA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TOPIKA_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that configuration values are usable. A missing API key
// is allowed: the generator falls back to mock content.
func (c *Config) validate() error {
	if c.Backup.MaxBackups < 1 {
		return fmt.Errorf("backup.max_backups must be at least 1, got %d", c.Backup.MaxBackups)
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		return fmt.Errorf("generator.temperature must be between 0 and 2, got %g", c.Generator.Temperature)
	}
	if c.Generator.MaxTokens < 1 {
		return fmt.Errorf("generator.max_tokens must be positive, got %d", c.Generator.MaxTokens)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
