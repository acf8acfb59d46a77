package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the bot
type Config struct {
	// Telegram transport settings
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`

	// URL classification settings
	Classify ClassifyConfig `yaml:"classify" json:"classify"`

	// Page scraping settings
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Media download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Delivery shaping settings
	Delivery DeliveryConfig `yaml:"delivery" json:"delivery"`

	// Rate limiting configuration for outbound sends
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Staging area configuration
	Staging StagingConfig `yaml:"staging" json:"staging"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TelegramConfig holds Telegram Bot API configuration
type TelegramConfig struct {
	Token       string `yaml:"token" json:"token"`
	PollTimeout int    `yaml:"poll_timeout" json:"poll_timeout"`
	Debug       bool   `yaml:"debug" json:"debug"`
}

// ClassifyConfig holds the host lists that route URLs to strategy chains
type ClassifyConfig struct {
	ChoiceHosts       []string `yaml:"choice_hosts" json:"choice_hosts"`
	ImageHosts        []string `yaml:"image_hosts" json:"image_hosts"`
	VideoPathPatterns []string `yaml:"video_path_patterns" json:"video_path_patterns"`
}

// ScrapeConfig holds HTTP and rendered-page scraping configuration
type ScrapeConfig struct {
	UserAgent             string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout        time.Duration `yaml:"request_timeout" json:"request_timeout"`
	RenderTimeout         time.Duration `yaml:"render_timeout" json:"render_timeout"`
	MinImageBytes         int64         `yaml:"min_image_bytes" json:"min_image_bytes"`
	MaxBodyBytes          int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	RetryAttempts         int           `yaml:"retry_attempts" json:"retry_attempts"`
	HostRequestsPerMinute int           `yaml:"host_requests_per_minute" json:"host_requests_per_minute"`
}

// DownloadConfig holds downloader configuration
type DownloadConfig struct {
	YTDLPPath           string        `yaml:"ytdlp_path" json:"ytdlp_path"`
	SocketTimeout       time.Duration `yaml:"socket_timeout" json:"socket_timeout"`
	RetryAttempts       int           `yaml:"retry_attempts" json:"retry_attempts"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	AudioFormat         string        `yaml:"audio_format" json:"audio_format"`
	CookiesFile         string        `yaml:"cookies_file" json:"cookies_file"`
}

// DeliveryConfig holds message shaping configuration
type DeliveryConfig struct {
	BatchSize         int           `yaml:"batch_size" json:"batch_size"`
	DocumentThreshold int64         `yaml:"document_threshold" json:"document_threshold"`
	CaptionLimit      int           `yaml:"caption_limit" json:"caption_limit"`
	EphemeralDelay    time.Duration `yaml:"ephemeral_delay" json:"ephemeral_delay"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// StagingConfig holds the per-request staging area configuration
type StagingConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: 60,
			Debug:       false,
		},
		Classify: ClassifyConfig{
			ChoiceHosts: []string{
				"youtube.com", "www.youtube.com", "m.youtube.com",
				"music.youtube.com", "youtu.be",
			},
			ImageHosts: []string{
				"instagram.com", "www.instagram.com",
			},
			VideoPathPatterns: []string{"/reel/", "/reels/", "/stories/"},
		},
		Scrape: ScrapeConfig{
			UserAgent:             "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout:        30 * time.Second,
			RenderTimeout:         45 * time.Second,
			MinImageBytes:         10 * 1024,
			MaxBodyBytes:          10 * 1024 * 1024,
			RetryAttempts:         3,
			HostRequestsPerMinute: 60,
		},
		Download: DownloadConfig{
			YTDLPPath:           "yt-dlp",
			SocketTimeout:       30 * time.Second,
			RetryAttempts:       3,
			ConcurrentDownloads: 3,
			DownloadTimeout:     10 * time.Minute,
			AudioFormat:         "mp3",
		},
		Delivery: DeliveryConfig{
			BatchSize:         10,
			DocumentThreshold: 50 * 1024 * 1024,
			CaptionLimit:      100,
			EphemeralDelay:    5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 20,
			BurstSize:         5,
			BackoffMultiplier: 2.0,
			MaxRetries:        3,
			RetryDelay:        5 * time.Second,
		},
		Staging: StagingConfig{
			BaseDirectory: filepath.Join(os.TempDir(), "grabbot"),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("GRABBOT_TOKEN"); token != "" {
		c.Telegram.Token = token
	}
	if debug := os.Getenv("GRABBOT_DEBUG"); debug != "" {
		c.Telegram.Debug = strings.ToLower(debug) == "true"
	}
	if userAgent := os.Getenv("GRABBOT_USER_AGENT"); userAgent != "" {
		c.Scrape.UserAgent = userAgent
	}
	if ytdlp := os.Getenv("GRABBOT_YTDLP_PATH"); ytdlp != "" {
		c.Download.YTDLPPath = ytdlp
	}
	if cookies := os.Getenv("GRABBOT_COOKIES_FILE"); cookies != "" {
		c.Download.CookiesFile = cookies
	}
	if staging := os.Getenv("GRABBOT_STAGING_DIR"); staging != "" {
		c.Staging.BaseDirectory = staging
	}
	if concurrent := os.Getenv("GRABBOT_CONCURRENT_DOWNLOADS"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}
	if rpm := os.Getenv("GRABBOT_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if logLevel := os.Getenv("GRABBOT_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("GRABBOT_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".grabbot.yaml",
		".grabbot.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "grabbot", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "grabbot", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".grabbot.yaml"),
		filepath.Join(os.Getenv("HOME"), ".grabbot.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram bot token is required"))
	}
	if c.Telegram.PollTimeout <= 0 {
		errs = append(errs, errors.New("poll timeout must be positive"))
	}

	if c.Scrape.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Scrape.MinImageBytes < 0 {
		errs = append(errs, errors.New("min image bytes cannot be negative"))
	}
	if c.Scrape.RetryAttempts < 0 {
		errs = append(errs, errors.New("scrape retry attempts cannot be negative"))
	}
	if c.Scrape.HostRequestsPerMinute < 0 {
		errs = append(errs, errors.New("host requests per minute cannot be negative"))
	}

	if c.Download.YTDLPPath == "" {
		errs = append(errs, errors.New("yt-dlp path is required"))
	}
	if c.Download.RetryAttempts < 0 {
		errs = append(errs, errors.New("retry attempts cannot be negative"))
	}
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Delivery.BatchSize <= 0 || c.Delivery.BatchSize > 10 {
		errs = append(errs, errors.New("batch size must be between 1 and 10"))
	}
	if c.Delivery.DocumentThreshold <= 0 {
		errs = append(errs, errors.New("document threshold must be positive"))
	}
	if c.Delivery.CaptionLimit <= 0 {
		errs = append(errs, errors.New("caption limit must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Staging.BaseDirectory == "" {
		errs = append(errs, errors.New("staging directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["token"].(string); ok && token != "" {
		c.Telegram.Token = token
	}
	if ytdlp, ok := flags["ytdlp"].(string); ok && ytdlp != "" {
		c.Download.YTDLPPath = ytdlp
	}
	if staging, ok := flags["staging-dir"].(string); ok && staging != "" {
		c.Staging.BaseDirectory = staging
	}
	if cookies, ok := flags["cookies"].(string); ok && cookies != "" {
		c.Download.CookiesFile = cookies
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if debug, ok := flags["debug"].(bool); ok && debug {
		c.Telegram.Debug = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".grabbot.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
