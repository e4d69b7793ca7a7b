package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Shopify    ShopifyConfig    `mapstructure:"shopify"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Extract    ExtractConfig    `mapstructure:"extract"`
	Replace    ReplaceConfig    `mapstructure:"replace"`
	Analyze    AnalyzeConfig    `mapstructure:"analyze"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port        int        `mapstructure:"port"`
	Mode        string     `mapstructure:"mode"`
	Environment string     `mapstructure:"environment"`
	MaxUploadMB int        `mapstructure:"max_upload_mb"`
	CORS        CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// PaginationConfig bounds every paginated listing.
type PaginationConfig struct {
	PageSize      int           `mapstructure:"page_size"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxPages      int           `mapstructure:"max_pages"`
	MemoryLimitMB int           `mapstructure:"memory_limit_mb"`
}

type ExtractConfig struct {
	Sources         []string `mapstructure:"sources"`
	Concurrent      bool     `mapstructure:"concurrent"`
	MetafieldSample int      `mapstructure:"metafield_sample"`
	HTMLScanner     string   `mapstructure:"html_scanner"` // regex, dom
}

type ReplaceConfig struct {
	FileReadyAttempts int           `mapstructure:"file_ready_attempts"`
	FileReadyDelay    time.Duration `mapstructure:"file_ready_delay"`
	SearchMaxPages    int           `mapstructure:"search_max_pages"`
	BackupEnabled     bool          `mapstructure:"backup_enabled"`
}

type AnalyzeConfig struct {
	Workers        int           `mapstructure:"workers"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxBytes       int64         `mapstructure:"max_bytes"`
	LargeThreshold int64         `mapstructure:"large_threshold"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets come from the environment only.
	v.BindEnv("shopify.api_key", "SHOPIFY_API_KEY")
	v.BindEnv("shopify.api_secret", "SHOPIFY_API_SECRET")
	v.BindEnv("shopify.api_version", "SHOPIFY_API_VERSION")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("storage.public_url", "S3_PUBLIC_URL")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "APP_ENV")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Shopify.ResolveEnvVars()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("shopify.api_version", "2023-10")
	v.SetDefault("shopify.request_timeout", 30*time.Second)
	v.SetDefault("shopify.throttle_interval", 2*time.Second)
	v.SetDefault("shopify.user_agent", "shopmedia/1.0")

	v.SetDefault("pagination.page_size", 250)
	v.SetDefault("pagination.max_attempts", 2)
	v.SetDefault("pagination.retry_delay", 2*time.Second)
	v.SetDefault("pagination.max_pages", 100)
	v.SetDefault("pagination.memory_limit_mb", 1024)

	v.SetDefault("extract.sources", []string{})
	v.SetDefault("extract.concurrent", true)
	v.SetDefault("extract.metafield_sample", 50)
	v.SetDefault("extract.html_scanner", "regex")

	v.SetDefault("replace.file_ready_attempts", 3)
	v.SetDefault("replace.file_ready_delay", 2*time.Second)
	v.SetDefault("replace.search_max_pages", 20)
	v.SetDefault("replace.backup_enabled", false)

	v.SetDefault("analyze.workers", 5)
	v.SetDefault("analyze.timeout", 5*time.Second)
	v.SetDefault("analyze.max_bytes", 50*1024*1024)
	v.SetDefault("analyze.large_threshold", 1024*1024)

	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "shopmedia-backups")
	v.SetDefault("storage.prefix", "originals")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if err := c.Shopify.Validate(); err != nil {
		return err
	}
	if c.Pagination.MaxAttempts < 1 {
		return fmt.Errorf("pagination: max_attempts must be at least 1")
	}
	if c.Pagination.PageSize < 1 || c.Pagination.PageSize > 250 {
		return fmt.Errorf("pagination: page_size must be between 1 and 250")
	}
	switch c.Extract.HTMLScanner {
	case "regex", "dom":
	default:
		return fmt.Errorf("extract: unknown html_scanner %q", c.Extract.HTMLScanner)
	}
	if c.Replace.BackupEnabled && c.Storage.Bucket == "" {
		return fmt.Errorf("replace: backup_enabled requires storage.bucket")
	}
	return nil
}
