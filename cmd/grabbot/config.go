package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"grabbot/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Grabbot configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'grabbot.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources:
  - Command line flags
  - Environment variables
  - Configuration file
  - Default values

Sensitive values like the bot token will be masked for security.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	// Determine config file path
	configPath := configFile
	if configPath == "" {
		configPath = "grabbot.yaml"
	}

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintln(os.Stderr, "Configuration file already exists:", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	// Create example configuration
	exampleConfig := `# Grabbot Configuration File
#
# This file contains all available configuration options.
# You can also use environment variables prefixed with GRABBOT_
# For example: GRABBOT_TOKEN, GRABBOT_YTDLP_PATH

# Telegram transport
telegram:
  # Bot token from @BotFather (required)
  token: "YOUR_BOT_TOKEN"

  # Long-poll timeout in seconds
  poll_timeout: 60

  # Log raw API traffic
  debug: false

# URL classification
classify:
  # Hosts that get a video/audio format prompt
  choice_hosts:
    - youtube.com
    - www.youtube.com
    - m.youtube.com
    - music.youtube.com
    - youtu.be

  # Hosts served by the gallery scrape strategies
  image_hosts:
    - instagram.com
    - www.instagram.com

  # Path fragments on image hosts that may carry video
  video_path_patterns:
    - /reel/
    - /reels/
    - /stories/

# Page scraping
scrape:
  # User agent for scrape requests
  # Leave empty to use default
  user_agent: ""

  # HTTP request timeout
  request_timeout: 30s

  # Rendered-page scrape budget
  render_timeout: 45s

  # Images smaller than this are discarded as thumbnails
  min_image_bytes: 10240

  # Response body size cap
  max_body_bytes: 10485760

  # Attempts for transient scrape failures
  retry_attempts: 3

  # Image download budget per source host
  host_requests_per_minute: 60

# Media downloads
download:
  # Path to the yt-dlp binary
  ytdlp_path: "yt-dlp"

  # Socket timeout passed to yt-dlp
  socket_timeout: 30s

  # Retry attempts passed to yt-dlp
  retry_attempts: 3

  # Number of concurrent downloads
  # Range: 1-10
  concurrent_downloads: 3

  # Overall download timeout per request
  download_timeout: 10m

  # Audio extraction format
  audio_format: "mp3"

  # Netscape cookies.txt file for private sources (optional)
  # Leave empty to use jars stored with 'grabbot auth login'
  cookies_file: ""

# Delivery shaping
delivery:
  # Maximum images per album
  # Range: 1-10
  batch_size: 10

  # Videos above this many bytes go out as documents
  document_threshold: 52428800

  # Caption length cap in runes
  caption_limit: 100

  # How long error notices stay visible
  ephemeral_delay: 5s

# Outbound send rate limiting
rate_limit:
  # Sends per minute
  requests_per_minute: 20

  # Burst size (number of sends allowed in burst)
  burst_size: 5

  # Backoff multiplier
  backoff_multiplier: 2.0

  # Maximum number of retry attempts
  max_retries: 3

  # Initial retry delay
  retry_delay: 5s

# Per-request staging
staging:
  # Base directory for staged downloads
  # Default: <tmp>/grabbot
  base_directory: ""

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional)
  # Leave empty to log to stderr only
  file: ""
`

	// Write configuration file
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create configuration file:", err)
		os.Exit(1)
	}

	fmt.Println("Configuration file created:", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file and add your bot token")
	fmt.Println("2. Run 'grabbot config validate' to check the configuration")
	fmt.Println("3. Start the bot with 'grabbot run'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	// Load configuration without failing on a missing token
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load environment variables:", err)
		os.Exit(1)
	}

	// Create a sanitized version for display
	displayCfg := *cfg

	// Mask the bot token
	if displayCfg.Telegram.Token != "" {
		if len(displayCfg.Telegram.Token) > 8 {
			displayCfg.Telegram.Token = displayCfg.Telegram.Token[:4] + "..." + displayCfg.Telegram.Token[len(displayCfg.Telegram.Token)-4:]
		} else {
			displayCfg.Telegram.Token = "***"
		}
	}

	// Convert to YAML for display
	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to format configuration:", err)
		os.Exit(1)
	}

	fmt.Println("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	// Show configuration sources
	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (GRABBOT_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	// Check if config file is specified
	if configFile == "" {
		// Try to find config file in common locations
		possiblePaths := []string{
			"grabbot.yaml",
			"grabbot.yml",
			".grabbot.yaml",
			".grabbot.yml",
			filepath.Join(os.Getenv("HOME"), ".grabbot.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "grabbot", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			fmt.Fprintln(os.Stderr, "No configuration file found. Specify a file with --config flag")
			os.Exit(1)
		}
	}

	fmt.Println("Validating configuration:", configFile)

	// Load without the token requirement so a file-only config can be checked
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		fmt.Fprintln(os.Stderr, "Configuration validation failed:", err)
		os.Exit(1)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Configuration validation failed:", err)
		os.Exit(1)
	}

	// Perform additional validation checks
	warnings := []string{}
	errors := []string{}

	// Check the token
	if cfg.Telegram.Token == "" || cfg.Telegram.Token == "YOUR_BOT_TOKEN" {
		warnings = append(warnings, "Telegram bot token not configured")
	}

	// Check paths
	if cfg.Staging.BaseDirectory != "" {
		if err := os.MkdirAll(cfg.Staging.BaseDirectory, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("Cannot create staging directory: %v", err))
		}
	}

	// Check logging file path
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	// Check cookie file if one is configured
	if cfg.Download.CookiesFile != "" {
		if _, err := os.Stat(cfg.Download.CookiesFile); err != nil {
			warnings = append(warnings, fmt.Sprintf("Cookie file not readable: %v", err))
		}
	}

	// Check value ranges
	if cfg.Download.ConcurrentDownloads < 1 || cfg.Download.ConcurrentDownloads > 10 {
		errors = append(errors, "concurrent_downloads must be between 1 and 10")
	}
	if cfg.Delivery.BatchSize < 1 || cfg.Delivery.BatchSize > 10 {
		errors = append(errors, "batch_size must be between 1 and 10")
	}
	if cfg.RateLimit.RequestsPerMinute < 1 {
		errors = append(errors, "requests_per_minute must be positive")
	}
	if cfg.Delivery.DocumentThreshold <= 0 {
		errors = append(errors, "document_threshold must be positive")
	}

	// Display results
	if len(errors) > 0 {
		fmt.Fprintln(os.Stderr, "Configuration has errors:")
		for _, err := range errors {
			fmt.Fprintf(os.Stderr, "  - %s\n", err)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		fmt.Println("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	fmt.Println("Configuration is valid")

	// Show summary
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Staging directory: %s\n", cfg.Staging.BaseDirectory)
	fmt.Printf("  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Printf("  Rate limit: %d sends/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Batch size: %d\n", cfg.Delivery.BatchSize)
	fmt.Printf("  Document threshold: %d bytes\n", cfg.Delivery.DocumentThreshold)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
