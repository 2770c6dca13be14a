package graph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/shineum/formmail-lite/internal/email"
)

// requestTimeout bounds a single sendMail call including token acquisition.
const requestTimeout = 30 * time.Second

// graphScope is the client-credentials scope for application permissions.
const graphScope = "https://graph.microsoft.com/.default"

// GraphProviderConfig holds the configuration for creating a GraphProvider.
type GraphProviderConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Sender       string
}

// GraphProvider sends MIME messages through the Microsoft Graph sendMail
// endpoint, authenticating with the OAuth2 client credentials flow.
type GraphProvider struct {
	sender     string
	graphURL   string
	httpClient *http.Client
}

// New creates a new GraphProvider with the given configuration.
func New(cfg GraphProviderConfig) *GraphProvider {
	tokenURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		url.PathEscape(cfg.TenantID),
	)
	graphURL := fmt.Sprintf(
		"https://graph.microsoft.com/v1.0/users/%s/sendMail",
		url.PathEscape(cfg.Sender),
	)
	return newWithOverrides(cfg, graphURL, tokenURL)
}

// newWithOverrides creates a GraphProvider with custom endpoint URLs,
// used for testing.
func newWithOverrides(cfg GraphProviderConfig, graphURL, tokenURL string) *GraphProvider {
	credentials := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
	}

	client := credentials.Client(context.Background())
	client.Timeout = requestTimeout

	return &GraphProvider{
		sender:     cfg.Sender,
		graphURL:   graphURL,
		httpClient: client,
	}
}

// Send posts the base64-encoded MIME message to the sendMail endpoint.
// HTTP 202 Accepted (or 200) is success; anything else is returned as an error.
func (g *GraphProvider) Send(ctx context.Context, msg *email.Email) error {
	payload := base64.StdEncoding.EncodeToString(msg.Raw())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.graphURL, strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Graph API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)

	var graphErrResp graphErrorResponse
	if jsonErr := json.Unmarshal(body, &graphErrResp); jsonErr == nil && graphErrResp.Error.Message != "" {
		return &sendError{
			statusCode: resp.StatusCode,
			code:       graphErrResp.Error.Code,
			message:    graphErrResp.Error.Message,
		}
	}

	return &sendError{statusCode: resp.StatusCode, message: string(body)}
}

// Name returns the provider name.
func (g *GraphProvider) Name() string {
	return "msgraph"
}
