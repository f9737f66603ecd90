package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/shiftdesk/shiftbot/internal/api"
	"github.com/shiftdesk/shiftbot/internal/backend"
	"github.com/shiftdesk/shiftbot/internal/engine"
	"github.com/shiftdesk/shiftbot/internal/messaging"
)

// Default configuration constants
const (
	// DefaultAPIBaseURL is the backend base URL used when none is configured.
	DefaultAPIBaseURL = "http://web:3000"
	// DefaultSecretCode is the registration secret used when none is configured.
	DefaultSecretCode = "1517"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Build module options
	msgOpts := buildMessagingOptions(flags)
	backendOpts := buildBackendOptions(flags)
	engineOpts := buildEngineOptions(flags)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping shiftbot with configured modules")
	slog.Debug("Module options counts", "messaging", len(msgOpts), "backend", len(backendOpts), "engine", len(engineOpts), "api", len(apiOpts))
	if err := api.Run(msgOpts, backendOpts, engineOpts, apiOpts); err != nil {
		slog.Error("shiftbot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("shiftbot exited successfully")
}

// Config holds environment configuration
type Config struct {
	BotToken   string
	APIBaseURL string
	SecretCode string
	NotifyAddr string
}

// Flags holds command line flag values
type Flags struct {
	botToken   *string
	apiBaseURL *string
	secretCode *string
	notifyAddr *string
}

// initializeLogger sets up structured logging
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		BotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		APIBaseURL: os.Getenv("API_BASE_URL"),
		SecretCode: os.Getenv("SECRET_CODE"),
		NotifyAddr: os.Getenv("NOTIFY_ADDR"),
	}

	if config.APIBaseURL == "" {
		config.APIBaseURL = DefaultAPIBaseURL
		slog.Debug("No API_BASE_URL set, using default", "default_api_base_url", config.APIBaseURL)
	}
	if config.SecretCode == "" {
		config.SecretCode = DefaultSecretCode
		slog.Debug("No SECRET_CODE set, using default")
	}

	slog.Debug("environment variables loaded",
		"TELEGRAM_BOT_TOKEN_SET", config.BotToken != "",
		"API_BASE_URL", config.APIBaseURL,
		"SECRET_CODE_SET", config.SecretCode != "",
		"NOTIFY_ADDR", config.NotifyAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		botToken:   flag.String("token", config.BotToken, "Telegram bot token (overrides $TELEGRAM_BOT_TOKEN)"),
		apiBaseURL: flag.String("api-base-url", config.APIBaseURL, "backend API base URL (overrides $API_BASE_URL)"),
		secretCode: flag.String("secret-code", config.SecretCode, "registration secret code (overrides $SECRET_CODE)"),
		notifyAddr: flag.String("notify-addr", config.NotifyAddr, "notification API listen address (overrides $NOTIFY_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"tokenSet", *flags.botToken != "",
		"apiBaseURL", *flags.apiBaseURL,
		"secretCodeSet", *flags.secretCode != "",
		"notifyAddr", *flags.notifyAddr)

	return flags
}

// buildMessagingOptions constructs Telegram service configuration options
func buildMessagingOptions(flags Flags) []messaging.Option {
	var msgOpts []messaging.Option
	if *flags.botToken != "" {
		msgOpts = append(msgOpts, messaging.WithToken(*flags.botToken))
	}
	return msgOpts
}

// buildBackendOptions constructs backend client configuration options
func buildBackendOptions(flags Flags) []backend.Option {
	var backendOpts []backend.Option
	if *flags.apiBaseURL != "" {
		backendOpts = append(backendOpts, backend.WithBaseURL(*flags.apiBaseURL))
	}
	return backendOpts
}

// buildEngineOptions constructs conversation engine configuration options
func buildEngineOptions(flags Flags) []engine.Option {
	var engineOpts []engine.Option
	if *flags.secretCode != "" {
		engineOpts = append(engineOpts, engine.WithSecretCode(*flags.secretCode))
	}
	return engineOpts
}

// buildAPIOptions constructs notification API configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.notifyAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.notifyAddr))
	}
	return apiOpts
}
