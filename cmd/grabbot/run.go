package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"grabbot/internal/bot"
	"grabbot/pkg/config"
	"grabbot/pkg/logger"
)

var (
	// Run command flags
	botToken   string
	ytdlpPath  string
	stagingDir string
	cookieFile string
	debugMode  bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot and poll for updates",
	Long: `Start the bot and poll Telegram for updates until interrupted.

The bot token is required and can be supplied through:
  - The --token flag
  - The GRABBOT_TOKEN environment variable
  - The configuration file

Private sources such as Instagram work better with stored browser
cookies. Run 'grabbot auth login' to store a cookies.txt export, or
point --cookies at one directly.`,
	Example: `  # Start with the token from the environment
  export GRABBOT_TOKEN=123456:ABC-DEF
  grabbot run

  # Start with an explicit token and cookie file
  grabbot run --token 123456:ABC-DEF --cookies ~/cookies.txt

  # Use a custom yt-dlp binary and staging directory
  grabbot run --ytdlp /usr/local/bin/yt-dlp --staging-dir /var/tmp/grabbot`,
	Run: runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&botToken, "token", "t", "", "Telegram bot token")
	runCmd.Flags().StringVar(&ytdlpPath, "ytdlp", "", "path to the yt-dlp binary")
	runCmd.Flags().StringVar(&stagingDir, "staging-dir", "", "base directory for per-request staging")
	runCmd.Flags().StringVar(&cookieFile, "cookies", "", "Netscape cookies.txt file passed to downloads")
	runCmd.Flags().BoolVar(&debugMode, "debug", false, "enable Telegram API debug output")
}

func runBot(cmd *cobra.Command, args []string) {
	// Build flags map from command line
	flags := make(map[string]interface{})
	if botToken != "" {
		flags["token"] = botToken
	}
	if ytdlpPath != "" {
		flags["ytdlp"] = ytdlpPath
	}
	if stagingDir != "" {
		flags["staging-dir"] = stagingDir
	}
	if cookieFile != "" {
		flags["cookies"] = cookieFile
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	if debugMode {
		flags["debug"] = true
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		if cfg == nil {
			fmt.Fprintln(os.Stderr, "\nTo supply the bot token, run:")
			fmt.Fprintln(os.Stderr, "  grabbot run --token <token>")
			fmt.Fprintln(os.Stderr, "\nOr set the environment variable:")
			fmt.Fprintln(os.Stderr, "  export GRABBOT_TOKEN=<token>")
		}
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("Grabbot starting")

	b, err := bot.New(cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize bot")
		fmt.Fprintln(os.Stderr, "Failed to initialize bot:", err)
		os.Exit(1)
	}

	// Stop polling on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("Bot stopped with error")
		os.Exit(1)
	}

	log.Info("Grabbot stopped")
}
