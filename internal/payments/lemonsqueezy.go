package payments

import (
	"context"
	"fmt"

	"github.com/buythelook/payments-api/pkg/lemonsqueezy"
)

// LemonSqueezyProvider implements Provider on the Lemon Squeezy JSON:API
// client. Order retrieval does not echo checkout custom data, so
// confirmations carry no metadata; the service layer falls back to the
// amount-match rule for this provider.
type LemonSqueezyProvider struct {
	client *lemonsqueezy.Client
}

func NewLemonSqueezyProvider(client *lemonsqueezy.Client) *LemonSqueezyProvider {
	return &LemonSqueezyProvider{client: client}
}

func (p *LemonSqueezyProvider) Name() string {
	return ProviderLemonSqueezy
}

func (p *LemonSqueezyProvider) CreateCheckout(ctx context.Context, cp CheckoutParams) (*CheckoutSession, error) {
	resp, err := p.client.CreateCheckout(ctx, lemonsqueezy.CreateCheckoutParams{
		VariantID:   cp.ProductRef,
		CustomPrice: cp.AmountCents,
		CustomData:  cp.Metadata,
		RedirectURL: cp.SuccessURL,
	})
	if err != nil {
		return nil, fmt.Errorf("lemonsqueezy: create checkout: %w", err)
	}
	return &CheckoutSession{ID: resp.ID, URL: resp.URL}, nil
}

func (p *LemonSqueezyProvider) ConfirmPayment(ctx context.Context, orderID string) (*Confirmation, error) {
	order, err := p.client.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("lemonsqueezy: get order: %w", err)
	}

	return &Confirmation{
		SessionID:   order.ID,
		Status:      order.Status,
		AmountCents: order.Total,
		Currency:    order.Currency,
	}, nil
}

// VerifyWebhook validates an incoming webhook body against its X-Signature
// header.
func (p *LemonSqueezyProvider) VerifyWebhook(payload []byte, signature string) bool {
	return p.client.VerifyWebhookSignature(payload, signature)
}
