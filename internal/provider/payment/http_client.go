package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"genserver/internal/provider"
)

// HTTPClient queries a remote payment provider's status API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// Options configures the HTTP payment provider client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// NewHTTPClient builds a payment provider client for the given endpoint.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("payment provider base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		baseURL: opts.BaseURL,
		client:  client,
		logger:  opts.Logger.With().Str("component", "payment_provider").Logger(),
	}, nil
}

// GetStatus fetches the provider-side status of one payment.
func (c *HTTPClient) GetStatus(ctx context.Context, externalPaymentID string) (ProviderStatus, error) {
	endpoint := fmt.Sprintf("%s/payments/%s", c.baseURL, url.PathEscape(externalPaymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call payment provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &provider.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		Status ProviderStatus `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}

	c.logger.Debug().
		Str("external_payment_id", externalPaymentID).
		Str("status", string(payload.Status)).
		Msg("provider status fetched")
	return payload.Status, nil
}

var _ Provider = (*HTTPClient)(nil)
