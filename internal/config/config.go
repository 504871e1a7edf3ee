package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Database drivers. An empty driver disables pass history.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Config struct {
	Assets struct {
		Path           string   `yaml:"path"`
		BackupDir      string   `yaml:"backupDir"`
		AnalysisFile   string   `yaml:"analysisFile"`
		UpdateFlagFile string   `yaml:"updateFlagFile"`
		Extensions     []string `yaml:"extensions"`
	} `yaml:"assets"`

	App struct {
		ExePath string   `yaml:"exePath"`
		Args    []string `yaml:"args"`
	} `yaml:"app"`

	Schedule struct {
		Interval       time.Duration `yaml:"interval"`
		PollInterval   time.Duration `yaml:"pollInterval"`
		ForceReanalyze bool          `yaml:"forceReanalyze"`
		VerifyOnLoad   bool          `yaml:"verifyOnLoad"`
	} `yaml:"schedule"`

	AI struct {
		Provider    string        `yaml:"provider"`
		APIKey      string        `yaml:"apiKey"`
		BaseURL     string        `yaml:"baseURL"`
		Model       string        `yaml:"model"`
		ImageModel  string        `yaml:"imageModel"`
		Temperature *float32      `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"ai"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
		Prefix     string `yaml:"prefix"`
	} `yaml:"minio"`

	Database struct {
		Driver   string `yaml:"driver"`
		Path     string `yaml:"path"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Server struct {
		Port        int      `yaml:"port"`
		Token       string   `yaml:"token"`
		RateLimit   int      `yaml:"rateLimit"`
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Load reads the YAML file at path. A missing file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOptional is Load, but a missing file yields an empty Config.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	return cfg, err
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Assets.Path == "" {
		c.Assets.Path = "assets"
	}
	if c.Assets.BackupDir == "" {
		c.Assets.BackupDir = "texture_backups"
	}
	if len(c.Assets.Extensions) == 0 {
		c.Assets.Extensions = []string{".png", ".jpg", ".jpeg"}
	}
	if c.App.ExePath == "" {
		c.App.ExePath = "DirectX12Triangle.exe"
	}
	if c.Schedule.PollInterval <= 0 {
		c.Schedule.PollInterval = time.Second
	}
	if c.AI.Provider == "" {
		c.AI.Provider = ProviderGemini
	}
	if c.AI.Temperature == nil {
		t := float32(0.2)
		c.AI.Temperature = &t
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 2 * time.Minute
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = "texture_history.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Normalize tidies values and derives the analysis and flag file paths from
// the assets path when they are not set explicitly.
func (c *Config) Normalize() {
	c.Assets.Path = filepath.Clean(strings.TrimSpace(c.Assets.Path))
	c.Assets.BackupDir = filepath.Clean(strings.TrimSpace(c.Assets.BackupDir))
	if c.Assets.AnalysisFile == "" {
		c.Assets.AnalysisFile = filepath.Join(c.Assets.Path, "texture_analysis.json")
	}
	if c.Assets.UpdateFlagFile == "" {
		c.Assets.UpdateFlagFile = filepath.Join(c.Assets.Path, "UpdateTexture.txt")
	}
	for i, ext := range c.Assets.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Assets.Extensions[i] = ext
	}
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	c.AI.APIKey = strings.TrimSpace(c.AI.APIKey)
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "postgresql" {
		c.Database.Driver = DriverPostgres
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	// Any interval <= 0 means a single analysis and launch.
	if c.Schedule.Interval < 0 {
		c.Schedule.Interval = 0
	}
}

// Validate checks the values that make a run impossible.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("config: unknown ai provider %q", c.AI.Provider)
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("config: an API key is required for %s; set --api-key or %s", c.AI.Provider, APIKeyEnv(c.AI.Provider))
	}
	if info, err := os.Stat(c.Assets.Path); err != nil || !info.IsDir() {
		return fmt.Errorf("config: assets path does not exist: %s", c.Assets.Path)
	}
	if info, err := os.Stat(c.App.ExePath); err != nil || info.IsDir() {
		return fmt.Errorf("config: executable not found: %s", c.App.ExePath)
	}
	switch c.Database.Driver {
	case "", DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		return fmt.Errorf("config: minio endpoint and bucketName are required when minio is enabled")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("config: server rateLimit must not be negative")
	}
	return nil
}

// Overrides are command-line values; nil fields leave the file value alone.
type Overrides struct {
	AssetsPath     *string
	ExePath        *string
	Interval       *time.Duration
	ForceReanalyze *bool
	APIKey         *string
	Provider       *string
	StatusPort     *int
}

// Apply copies every set override into c.
func (c *Config) Apply(o Overrides) {
	if o.AssetsPath != nil {
		c.Assets.Path = *o.AssetsPath
	}
	if o.ExePath != nil {
		c.App.ExePath = *o.ExePath
	}
	if o.Interval != nil {
		c.Schedule.Interval = *o.Interval
	}
	if o.ForceReanalyze != nil {
		c.Schedule.ForceReanalyze = *o.ForceReanalyze
	}
	if o.APIKey != nil {
		c.AI.APIKey = *o.APIKey
	}
	if o.Provider != nil {
		c.AI.Provider = *o.Provider
	}
	if o.StatusPort != nil {
		c.Server.Port = *o.StatusPort
	}
}

// APIKeyEnv names the environment variable consulted for provider's key.
func APIKeyEnv(provider string) string {
	if provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GOOGLE_API_KEY"
}

// ResolveAPIKey falls back to the provider's environment variable when no
// key came from the flags or the file.
func (c *Config) ResolveAPIKey(getenv func(string) string) {
	if strings.TrimSpace(c.AI.APIKey) != "" {
		return
	}
	provider := strings.ToLower(strings.TrimSpace(c.AI.Provider))
	if provider == "" {
		provider = ProviderGemini
	}
	c.AI.APIKey = strings.TrimSpace(getenv(APIKeyEnv(provider)))
}

// MySQLDSN builds a go-sql-driver DSN.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq keyword/value connection string.
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}
