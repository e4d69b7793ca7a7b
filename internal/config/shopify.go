package config

import (
	"fmt"
	"os"
	"time"

	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/storage"
)

// ShopifyConfig describes how the service talks to the Admin API.
type ShopifyConfig struct {
	APIVersion       string        `mapstructure:"api_version"`
	APIKey           string        `mapstructure:"api_key"`
	APIKeyEnv        string        `mapstructure:"api_key_env"`
	APISecret        string        `mapstructure:"api_secret"`
	BaseURL          string        `mapstructure:"base_url"` // overrides https://{shop}/admin/api/{version}
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	ThrottleInterval time.Duration `mapstructure:"throttle_interval"`
	UserAgent        string        `mapstructure:"user_agent"`
}

// ResolveEnvVars loads APIKey from APIKeyEnv when it is not set directly.
func (c *ShopifyConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}
}

// Validate checks the fields every upstream call depends on.
func (c *ShopifyConfig) Validate() error {
	if c.APIVersion == "" {
		return fmt.Errorf("shopify: api_version is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("shopify: request_timeout must be positive")
	}
	if c.ThrottleInterval < 0 {
		return fmt.Errorf("shopify: throttle_interval must not be negative")
	}
	return nil
}

// StorageConfig configures the S3-compatible bucket that keeps originals.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // r2, s3, s3compatible; empty detects from endpoint
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	Prefix    string `mapstructure:"prefix"`
}

// GetStorageConfig converts the settings into the storage package's form.
func (c *Config) GetStorageConfig() *storage.S3Config {
	return &storage.S3Config{
		Type:      storage.StorageType(c.Storage.Type),
		Endpoint:  c.Storage.Endpoint,
		AccessKey: c.Storage.AccessKey,
		SecretKey: c.Storage.SecretKey,
		UseSSL:    c.Storage.UseSSL,
		Bucket:    c.Storage.Bucket,
		Region:    c.Storage.Region,
		PublicURL: c.Storage.PublicURL,
	}
}

// GetShopifyConfig converts the Shopify and pagination settings into a
// gateway configuration. The resource guard is left to the caller.
func (c *Config) GetShopifyConfig() shopify.Config {
	return shopify.Config{
		APIVersion: c.Shopify.APIVersion,
		BaseURL:    c.Shopify.BaseURL,
		Timeout:    c.Shopify.RequestTimeout,
		UserAgent:  c.Shopify.UserAgent,
		Retry: shopify.RetryPolicy{
			MaxAttempts: c.Pagination.MaxAttempts,
			Delay:       c.Pagination.RetryDelay,
		},
		MaxPages: c.Pagination.MaxPages,
	}
}
