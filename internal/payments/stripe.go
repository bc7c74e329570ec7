package payments

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider on the official Stripe SDK.
type StripeProvider struct {
	client        *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeProvider{client: sc, webhookSecret: webhookSecret}
}

// NewStripeProviderWithBackend points the SDK at a custom API URL, used in
// tests.
func NewStripeProviderWithBackend(secretKey, webhookSecret, apiURL string) *StripeProvider {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL: stripe.String(apiURL),
	})
	sc := &client.API{}
	sc.Init(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeProvider{client: sc, webhookSecret: webhookSecret}
}

func (p *StripeProvider) Name() string {
	return ProviderStripe
}

func (p *StripeProvider) CreateCheckout(ctx context.Context, cp CheckoutParams) (*CheckoutSession, error) {
	currency := cp.Currency
	if currency == "" {
		currency = "usd"
	}

	lineItem := &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(1),
	}
	if cp.ProductRef != "" {
		// Catalog entries may pin a Stripe price object instead of ad-hoc
		// price data.
		lineItem.Price = stripe.String(cp.ProductRef)
	} else {
		priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(currency),
			UnitAmount: stripe.Int64(cp.AmountCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(cp.Name),
			},
		}
		if cp.Description != "" {
			priceData.ProductData.Description = stripe.String(cp.Description)
		}
		lineItem.PriceData = priceData
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{lineItem},
		SuccessURL:         stripe.String(cp.SuccessURL),
		CancelURL:          stripe.String(cp.CancelURL),
	}
	params.Context = ctx
	for k, v := range cp.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := p.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) ConfirmPayment(ctx context.Context, sessionID string) (*Confirmation, error) {
	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx
	sess, err := p.client.CheckoutSessions.Get(sessionID, getParams)
	if err != nil {
		return nil, fmt.Errorf("stripe: retrieve checkout session: %w", err)
	}

	return &Confirmation{
		SessionID:   sess.ID,
		Status:      string(sess.PaymentStatus),
		AmountCents: sess.AmountTotal,
		Currency:    string(sess.Currency),
		Metadata:    sess.Metadata,
	}, nil
}

// VerifyWebhook validates a webhook payload against its Stripe-Signature
// header and returns the parsed event.
func (p *StripeProvider) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
}
