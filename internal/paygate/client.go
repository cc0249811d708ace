// Package paygate implements the HTTP client for the external payment network.
package paygate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/pkg/configpkg"
	"github.com/rs/zerolog"
)

// Payment directions reported by the provider.
const (
	DirectionUserToApp = "user_to_app"
	DirectionAppToUser = "app_to_user"
)

// Status holds the provider-side lifecycle flags of a payment.
type Status struct {
	DeveloperCompleted  bool `json:"developer_completed"`
	TransactionVerified bool `json:"transaction_verified"`
	Cancelled           bool `json:"cancelled"`
	UserCancelled       bool `json:"user_cancelled"`
}

// Transaction holds the on-network transaction data of a payment.
type Transaction struct {
	TxID string `json:"txid"`
}

// Payment is the authoritative provider record of an external payment.
type Payment struct {
	PaymentID   string       `json:"identifier"`
	Amount      float64      `json:"amount"`
	Direction   string       `json:"direction"`
	UserUID     string       `json:"user_uid"`
	Status      Status       `json:"status"`
	Transaction *Transaction `json:"transaction"`
}

// Complete reports whether the provider considers the payment final on both
// the developer and the network side.
func (p Payment) Complete() bool {
	return p.Status.DeveloperCompleted && p.Status.TransactionVerified
}

// Client talks to the provider payment API. All calls carry the server API
// key plus the per-call user access token and share one bounded timeout.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New returns a gateway Client configured from the app config.
func New(config configpkg.Config) *Client {
	return &Client{
		baseURL: config.GatewayBaseURL,
		apiKey:  config.GatewayAPIKey,
		client: &http.Client{
			Timeout: config.GatewayTimeout,
		},
	}
}

// Approve acknowledges the payment to the provider before the user signs it.
// The provider treats repeated approvals of the same payment as a no-op.
func (c *Client) Approve(ctx context.Context, paymentID, userToken string) error {
	url := fmt.Sprintf("%s/payments/%s/approve", c.baseURL, paymentID)

	return c.post(ctx, url, nil, userToken)
}

// Complete acknowledges the signed payment to the provider, passing the
// on-network transaction id when known. Safe to call more than once.
func (c *Client) Complete(ctx context.Context, paymentID, txid, userToken string) error {
	url := fmt.Sprintf("%s/payments/%s/complete", c.baseURL, paymentID)

	var body any
	if txid != "" {
		body = map[string]string{"txid": txid}
	}

	return c.post(ctx, url, body, userToken)
}

// Payment fetches the authoritative payment record from the provider.
func (c *Client) Payment(ctx context.Context, paymentID, userToken string) (Payment, error) {
	l := zerolog.Ctx(ctx)

	var p Payment

	url := fmt.Sprintf("%s/payments/%s", c.baseURL, paymentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return p, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	c.setHeaders(req, userToken)

	res, err := c.client.Do(req)
	if err != nil {
		l.Warn().Err(err).Str("payment_id", paymentID).Msg("gateway status fetch failed")
		return p, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		l.Warn().Int("status_code", res.StatusCode).Str("payment_id", paymentID).Msg("gateway status fetch rejected")
		return p, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return p, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	return p, nil
}

func (c *Client) post(ctx context.Context, url string, body any, userToken string) error {
	l := zerolog.Ctx(ctx)

	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
		}

		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	c.setHeaders(req, userToken)

	res, err := c.client.Do(req)
	if err != nil {
		l.Warn().Err(err).Str("url", url).Msg("gateway call failed")
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		l.Warn().Int("status_code", res.StatusCode).Str("url", url).Msg("gateway call rejected")
		return fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, res.StatusCode)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request, userToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.apiKey)

	if userToken != "" {
		req.Header.Set("X-Access-Token", userToken)
	}
}
