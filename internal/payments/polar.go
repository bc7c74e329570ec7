package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	polargo "github.com/polarsource/polar-go"
	"github.com/polarsource/polar-go/models/components"
)

const (
	polarProductionAPI = "https://api.polar.sh/v1"
	polarSandboxAPI    = "https://sandbox-api.polar.sh/v1"
)

// PolarConfig configures the Polar provider.
type PolarConfig struct {
	AccessToken   string
	Server        string // "sandbox" or "production"
	WebhookSecret string
	APIBaseURL    string // overrides the orders API base URL, used in tests
}

// PolarProvider implements Provider with the official SDK for checkout
// creation and a direct orders lookup for confirmation.
type PolarProvider struct {
	client        *polargo.Polar
	accessToken   string
	webhookSecret string
	apiBaseURL    string
	httpClient    *http.Client
}

func NewPolarProvider(cfg PolarConfig) *PolarProvider {
	apiBaseURL := cfg.APIBaseURL
	if apiBaseURL == "" {
		if cfg.Server == "sandbox" {
			apiBaseURL = polarSandboxAPI
		} else {
			apiBaseURL = polarProductionAPI
		}
	}

	client := polargo.New(
		polargo.WithServer(cfg.Server),
		polargo.WithSecurity(cfg.AccessToken),
	)

	return &PolarProvider{
		client:        client,
		accessToken:   cfg.AccessToken,
		webhookSecret: cfg.WebhookSecret,
		apiBaseURL:    apiBaseURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *PolarProvider) Name() string {
	return ProviderPolar
}

// VerifyWebhook checks an x-polar-signature header value, an HMAC-SHA256 of
// the raw body in hex. Rejects everything when no secret is configured.
func (p *PolarProvider) VerifyWebhook(payload []byte, signature string) bool {
	if p.webhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(p.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (p *PolarProvider) CreateCheckout(ctx context.Context, cp CheckoutParams) (*CheckoutSession, error) {
	checkoutCreate := components.CheckoutCreate{
		Products:   []string{cp.ProductRef},
		SuccessURL: polargo.Pointer(cp.SuccessURL),
	}
	if cp.CancelURL != "" {
		checkoutCreate.ReturnURL = polargo.Pointer(cp.CancelURL)
	}
	if userID := cp.Metadata[MetaUserID]; userID != "" {
		checkoutCreate.ExternalCustomerID = polargo.Pointer(userID)
	}

	resp, err := p.client.Checkouts.Create(ctx, checkoutCreate)
	if err != nil {
		return nil, fmt.Errorf("polar: create checkout session: %w", err)
	}
	if resp.Checkout == nil {
		return nil, fmt.Errorf("polar: checkout response is nil")
	}

	return &CheckoutSession{ID: resp.Checkout.ID, URL: resp.Checkout.URL}, nil
}

// polarOrder is the subset of the order object the confirmation needs.
type polarOrder struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PaymentStatus string         `json:"payment_status"`
	TotalAmount   int64          `json:"total_amount"`
	Currency      string         `json:"currency"`
	Metadata      map[string]any `json:"metadata"`
	Customer      struct {
		ExternalID string `json:"external_id"`
	} `json:"customer"`
}

func (p *PolarProvider) ConfirmPayment(ctx context.Context, orderID string) (*Confirmation, error) {
	url := fmt.Sprintf("%s/orders/%s", p.apiBaseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("polar: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polar: fetch order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polar: read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("polar: order lookup failed with status %d: %s", resp.StatusCode, string(body))
	}

	var order polarOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("polar: parse order: %w", err)
	}

	status := order.PaymentStatus
	if status == "" {
		status = order.Status
	}

	metadata := make(map[string]string, len(order.Metadata)+1)
	for k, v := range order.Metadata {
		if s, ok := v.(string); ok {
			metadata[k] = s
		}
	}
	// The external customer id set at checkout identifies the buyer even when
	// checkout metadata did not propagate to the order.
	if _, ok := metadata[MetaUserID]; !ok && order.Customer.ExternalID != "" {
		metadata[MetaUserID] = order.Customer.ExternalID
	}

	return &Confirmation{
		SessionID:   order.ID,
		Status:      status,
		AmountCents: order.TotalAmount,
		Currency:    order.Currency,
		Metadata:    metadata,
	}, nil
}
