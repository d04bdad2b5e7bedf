// Package main is the entry point for the email API server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shineum/email-api-lite/internal/config"
	"github.com/shineum/email-api-lite/internal/httpapi"
	"github.com/shineum/email-api-lite/internal/provider"
	"github.com/shineum/email-api-lite/internal/provider/graph"
	"github.com/shineum/email-api-lite/internal/provider/ses"
	"github.com/shineum/email-api-lite/internal/provider/smtprelay"
	"github.com/shineum/email-api-lite/internal/provider/stdout"
	"github.com/shineum/email-api-lite/internal/relay"
	"github.com/shineum/email-api-lite/internal/tlsutil"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Load or generate TLS certificates for the listener
	tlsConfig, err := tlsutil.LoadServerTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.SelfSigned)
	if err != nil {
		slog.Error("failed to setup TLS", "error", err)
		os.Exit(1)
	}

	// Select email delivery backend
	backend := selectProvider(cfg)

	dispatcher := relay.New(cfg.Backend.Sender, cfg.Limits.MaxAttachmentSize, backend)

	server := httpapi.New(httpapi.ServerConfig{
		ListenAddr:     cfg.HTTP.Listen,
		Dispatcher:     dispatcher,
		TLSConfig:      tlsConfig,
		MaxRequestSize: cfg.Limits.MaxRequestSize,
		AllowOrigins:   cfg.HTTP.AllowOrigins,
	})

	slog.Info("starting email-api-lite",
		"listen", cfg.HTTP.Listen,
		"provider", backend.Name(),
		"sender", cfg.Backend.Sender,
		"tls_enabled", tlsConfig != nil,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, initiating shutdown", "signal", sig)
		cancel()
	}()

	// Start the server (blocks until context is cancelled)
	if err := server.ListenAndServe(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("email-api-lite stopped")
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectProvider builds the delivery backend named by the configuration.
// Config.Validate has already checked that the required settings are present.
func selectProvider(cfg *config.Config) provider.Provider {
	switch cfg.Backend.Provider {
	case "smtp":
		slog.Info("using SMTP relay provider",
			"server", cfg.SMTP.Server,
			"port", cfg.SMTP.Port,
			"use_tls", cfg.SMTP.UseTLS,
		)
		return smtprelay.New(smtprelay.Config{
			Host:     cfg.SMTP.Server,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			UseTLS:   cfg.SMTP.UseTLS,
		})

	case "ses":
		slog.Info("using AWS SES provider", "region", cfg.SES.Region)
		p, err := ses.New(context.Background(), ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		})
		if err != nil {
			slog.Error("failed to create SES provider", "error", err)
			os.Exit(1)
		}
		return p

	case "msgraph":
		slog.Info("using Microsoft Graph provider", "sender", cfg.Backend.Sender)
		return graph.New(graph.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			Sender:       cfg.Backend.Sender,
		})

	case "stdout":
		slog.Info("using stdout provider")
		return stdout.New()

	default:
		slog.Error("unknown provider", "provider", cfg.Backend.Provider)
		os.Exit(1)
		return nil
	}
}
