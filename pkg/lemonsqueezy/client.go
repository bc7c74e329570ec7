package lemonsqueezy

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.lemonsqueezy.com/v1"

// Config holds the LemonSqueezy client configuration
type Config struct {
	APIKey        string
	StoreID       string
	WebhookSecret string
	BaseURL       string // overrides the API base URL, used in tests
}

// Client is a LemonSqueezy API client
type Client struct {
	apiKey        string
	storeID       string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
}

// NewClient creates a new LemonSqueezy client
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:        cfg.APIKey,
		storeID:       cfg.StoreID,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// VerifyWebhookSignature verifies the webhook signature
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	if c.webhookSecret == "" {
		return true
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	expectedSignature := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedSignature))
}

// CreateCheckoutParams describes a hosted checkout session to create
type CreateCheckoutParams struct {
	VariantID   string
	CustomPrice int64             // in cents; zero means the variant's list price
	CustomData  map[string]string // echoed back in webhook meta.custom_data
	RedirectURL string
}

// CheckoutResponse is the subset of the created checkout the caller needs
type CheckoutResponse struct {
	ID  string
	URL string
}

// CreateCheckout creates a hosted checkout session and returns its URL
func (c *Client) CreateCheckout(ctx context.Context, params CreateCheckoutParams) (*CheckoutResponse, error) {
	variantID, err := strconv.Atoi(params.VariantID)
	if err != nil {
		return nil, fmt.Errorf("invalid variant id %q: %w", params.VariantID, err)
	}

	customData := params.CustomData
	if customData == nil {
		customData = map[string]string{}
	}

	attributes := map[string]any{
		"checkout_data": map[string]any{
			"custom":   customData,
			"currency": "USD",
		},
		"product_options": map[string]any{
			"redirect_url":     params.RedirectURL,
			"enabled_variants": []int{variantID},
		},
	}
	if params.CustomPrice > 0 {
		attributes["custom_price"] = params.CustomPrice
	}

	payload := map[string]any{
		"data": map[string]any{
			"type":       "checkouts",
			"attributes": attributes,
			"relationships": map[string]any{
				"store": map[string]any{
					"data": map[string]any{"type": "stores", "id": c.storeID},
				},
				"variant": map[string]any{
					"data": map[string]any{"type": "variants", "id": params.VariantID},
				},
			},
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/checkouts", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/vnd.api+json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				URL string `json:"url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &CheckoutResponse{ID: parsed.Data.ID, URL: parsed.Data.Attributes.URL}, nil
}

// Order represents the attributes of a fetched order
type Order struct {
	ID         string
	Identifier string
	Status     string
	Total      int64
	Currency   string
	UserEmail  string
}

// IsPaid reports whether the order has been paid
func (o *Order) IsPaid() bool {
	return o.Status == "paid"
}

// GetOrder fetches an order by ID to verify payment server-side
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	url := fmt.Sprintf("%s/orders/%s", c.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Identifier string `json:"identifier"`
				Status     string `json:"status"`
				Total      int64  `json:"total"`
				Currency   string `json:"currency"`
				UserEmail  string `json:"user_email"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &Order{
		ID:         parsed.Data.ID,
		Identifier: parsed.Data.Attributes.Identifier,
		Status:     parsed.Data.Attributes.Status,
		Total:      parsed.Data.Attributes.Total,
		Currency:   parsed.Data.Attributes.Currency,
		UserEmail:  parsed.Data.Attributes.UserEmail,
	}, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Accept", "application/vnd.api+json")
}
