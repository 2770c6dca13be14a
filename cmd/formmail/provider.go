package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shineum/formmail-lite/internal/config"
	"github.com/shineum/formmail-lite/internal/provider"
	"github.com/shineum/formmail-lite/internal/provider/graph"
	"github.com/shineum/formmail-lite/internal/provider/ses"
	"github.com/shineum/formmail-lite/internal/provider/smtp"
	"github.com/shineum/formmail-lite/internal/provider/stdout"
)

// selectProvider chooses the email delivery backend based on configuration.
// An explicit provider must be fully configured. Without one, the first
// configured backend of graph, ses and smtp is used, falling back to stdout.
func selectProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "ses":
		if !cfg.SESConfigured() {
			return nil, errors.New("SES provider selected but SES_REGION and SES_SENDER are required")
		}
		return newSES(ctx, cfg)

	case "graph":
		if !cfg.GraphConfigured() {
			return nil, errors.New("Graph provider selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET, and GRAPH_SENDER are required")
		}
		return newGraph(cfg), nil

	case "smtp":
		if !cfg.SMTPConfigured() {
			return nil, errors.New("SMTP provider selected but SMTP_HOST is required")
		}
		return newSMTP(cfg)

	case "stdout":
		slog.Info("using stdout provider")
		return stdout.New(), nil

	case "":
		// Auto-detection
		switch {
		case cfg.GraphConfigured():
			return newGraph(cfg), nil
		case cfg.SESConfigured():
			return newSES(ctx, cfg)
		case cfg.SMTPConfigured():
			return newSMTP(cfg)
		}
		slog.Info("no provider configured, using stdout provider")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newSES(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	slog.Info("using AWS SES provider",
		"region", cfg.SES.Region,
		"sender", cfg.SES.Sender,
	)
	p, err := ses.New(ctx, ses.SESProviderConfig{
		Region:          cfg.SES.Region,
		AccessKeyID:     cfg.SES.AccessKeyID,
		SecretAccessKey: cfg.SES.SecretAccessKey,
		Sender:          cfg.SES.Sender,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SES provider: %w", err)
	}
	return p, nil
}

func newGraph(cfg *config.Config) provider.Provider {
	slog.Info("using Microsoft Graph provider",
		"sender", cfg.Graph.Sender,
	)
	return graph.New(graph.GraphProviderConfig{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		Sender:       cfg.Graph.Sender,
	})
}

func newSMTP(cfg *config.Config) (provider.Provider, error) {
	slog.Info("using SMTP relay provider",
		"host", cfg.SMTP.Host,
		"port", cfg.SMTP.Port,
		"implicit_tls", cfg.SMTP.ImplicitTLS,
	)
	p, err := smtp.New(smtp.RelayConfig{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		Sender:      cfg.SMTP.Sender,
		ImplicitTLS: cfg.SMTP.ImplicitTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP provider: %w", err)
	}
	return p, nil
}
