package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	MinUploadWorkers = 1
	MaxUploadWorkers = 32
	MinTimeout       = 1
	MaxTimeout       = 3600
	MinRetries       = 1
	MaxRetries       = 10

	EnvClientID     = "GOUSTREAM_CLIENT_ID"
	EnvClientSecret = "GOUSTREAM_CLIENT_SECRET"
	EnvAccessToken  = "GOUSTREAM_ACCESS_TOKEN"
)

// Config represents the main application configuration
type Config struct {
	BindAddress    string    `toml:"bind_address"`
	Port           int       `toml:"port"`
	Loglevel       string    `toml:"loglevel"`
	Username       string    `toml:"username"`
	Password       string    `toml:"password"`
	UploadWorkers  int       `toml:"upload_workers"`
	DefaultProtect string    `toml:"default_protect"`
	API            APIConfig `toml:"api"`
	FTP            FTPConfig `toml:"ftp"`
}

// APIConfig holds the streaming API endpoint and credentials. Either
// access_token or client_id + client_secret must be set.
type APIConfig struct {
	BaseURL      string   `toml:"base_url"`
	TokenURL     string   `toml:"token_url"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	AccessToken  string   `toml:"access_token"`
	Scopes       []string `toml:"scopes"`
	Timeout      int      `toml:"timeout"`
	MaxRetries   int      `toml:"max_retries"`
}

// FTPConfig tunes the ingest connection.
type FTPConfig struct {
	Timeout     int  `toml:"timeout"`
	DisableEPSV bool `toml:"disable_epsv"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		BindAddress:    "127.0.0.1",
		Port:           8080,
		Loglevel:       "info",
		UploadWorkers:  2,
		DefaultProtect: "private",
		API: APIConfig{
			BaseURL:    "https://api.video.ibm.com",
			TokenURL:   "https://video.ibm.com/oauth2/token",
			Timeout:    30,
			MaxRetries: 3,
		},
		FTP: FTPConfig{
			Timeout: 30,
		},
	}
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "goustream", "config.toml"), nil
}

// Load reads configuration from a TOML file. A .env file next to it, when
// present, is loaded into the environment first; credential variables from
// the environment override the file.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvClientID); v != "" {
		c.API.ClientID = v
	}
	if v := os.Getenv(EnvClientSecret); v != "" {
		c.API.ClientSecret = v
	}
	if v := os.Getenv(EnvAccessToken); v != "" {
		c.API.AccessToken = v
	}
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Loglevel); err != nil {
		return fmt.Errorf("loglevel must be one of: panic, fatal, error, warn, info, debug, trace")
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url is invalid: %v", err)
	}
	if c.API.AccessToken == "" {
		if c.API.ClientID == "" || c.API.ClientSecret == "" {
			return fmt.Errorf("api.access_token or api.client_id and api.client_secret are required")
		}
		if _, err := url.ParseRequestURI(c.API.TokenURL); err != nil {
			return fmt.Errorf("api.token_url is invalid: %v", err)
		}
	}
	if c.API.Timeout < MinTimeout || c.API.Timeout > MaxTimeout {
		return fmt.Errorf("api.timeout must be between %d and %d seconds", MinTimeout, MaxTimeout)
	}
	if c.API.MaxRetries < MinRetries || c.API.MaxRetries > MaxRetries {
		return fmt.Errorf("api.max_retries must be between %d and %d", MinRetries, MaxRetries)
	}
	if c.FTP.Timeout < MinTimeout || c.FTP.Timeout > MaxTimeout {
		return fmt.Errorf("ftp.timeout must be between %d and %d seconds", MinTimeout, MaxTimeout)
	}

	if c.UploadWorkers < MinUploadWorkers || c.UploadWorkers > MaxUploadWorkers {
		return fmt.Errorf("upload_workers must be between %d and %d", MinUploadWorkers, MaxUploadWorkers)
	}
	if c.DefaultProtect == "" {
		return fmt.Errorf("default_protect is required")
	}

	return nil
}

// ValidateServer checks the extra settings the upload proxy needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// APITimeout is api.timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

// FTPTimeout is ftp.timeout as a duration.
func (c *Config) FTPTimeout() time.Duration {
	return time.Duration(c.FTP.Timeout) * time.Second
}
