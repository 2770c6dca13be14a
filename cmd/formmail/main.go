// Package main is the entry point for the form mail endpoint.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shineum/formmail-lite/internal/config"
	"github.com/shineum/formmail-lite/internal/envelope"
	"github.com/shineum/formmail-lite/internal/formmail"
	"github.com/shineum/formmail-lite/internal/provider"
	"github.com/shineum/formmail-lite/internal/validate"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "formmail",
	Short: "Turn web form submissions into email",
	Long: `formmail accepts contact form submissions over HTTP, renders the
fields into an HTML message and delivers it through AWS SES, Microsoft Graph,
an SMTP relay or stdout.

Example:
  formmail serve --config formmail.yaml
  formmail render --config formmail.yaml --input submission.json`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "formmail-lite", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to YAML configuration file (optional)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given, then validates it.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string, w io.Writer) {
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

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// newService wires the pipeline for cfg around prov.
func newService(cfg *config.Config, prov provider.Provider) *formmail.Service {
	v := validate.New(validate.Config{
		TrustedAppIDs:     cfg.Security.TrustedAppIDs,
		AllowedRecipients: cfg.Recipients.Allowed,
	})
	env := envelope.New(envelope.Config{
		MessageIDDomain: cfg.Site.MessageIDDomain,
		Mailer:          "formmail-lite/" + version,
		Site:            cfg.Site.Name,
	})
	return formmail.New(formmail.Config{
		Banner:           cfg.Banner(),
		From:             cfg.Mail.From,
		DefaultRecipient: cfg.Recipients.Default,
		DefaultSubject:   cfg.Mail.DefaultSubject,
		InternalFields:   cfg.Mail.InternalFields,
		SkipEmpty:        cfg.Mail.SkipEmpty,
		WrapThreshold:    cfg.Mail.WrapThreshold,
		DebugToken:       cfg.Security.DebugToken,
	}, v, env, prov)
}
