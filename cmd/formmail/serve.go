package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shineum/formmail-lite/internal/httpapi"
	formtls "github.com/shineum/formmail-lite/internal/tls"
)

// shutdownTimeout is the maximum time to wait for in-flight requests
// during graceful shutdown.
const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP form endpoint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}

	setupLogger(cfg.Logging.Level, os.Stdout)

	prov, err := selectProvider(ctx, cfg)
	if err != nil {
		slog.Error("failed to select provider", "error", err)
		return err
	}

	if len(cfg.Security.TrustedAppIDs) == 0 {
		slog.Warn("no trusted app ids configured, every submission will be rejected")
	}
	if len(cfg.Recipients.Allowed) == 0 {
		slog.Warn("no recipient allowlist configured, any valid recipient is accepted")
	}

	tlsConfig, tlsMode, err := formtls.ServerConfig(cfg.TLS.Enabled, cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.Site.MessageIDDomain)
	if err != nil {
		slog.Error("failed to setup TLS", "error", err)
		return err
	}

	handler := httpapi.New(httpapi.Config{
		MaxUploadSize: cfg.Server.MaxUploadSize,
		CORSOrigins:   cfg.Server.CORSOrigins,
	}, newService(cfg, prov))

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	slog.Info("starting formmail-lite",
		"listen", cfg.Server.Listen,
		"provider", prov.Name(),
		"tls_mode", string(tlsMode),
		"version", version,
	)

	errCh := make(chan error, 1)
	go func() {
		if tlsConfig != nil {
			errCh <- server.ListenAndServeTLS("", "")
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("received signal, initiating shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown timeout exceeded, forcing close", "error", err)
			server.Close()
		}
	}

	slog.Info("formmail-lite stopped")
	return nil
}
