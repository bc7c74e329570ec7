// Package payments abstracts the hosted-checkout providers behind a single
// capability interface so reconciliation is written once.
package payments

import "context"

// Provider names used in requests, the transaction ledger, and metrics.
const (
	ProviderStripe       = "stripe"
	ProviderLemonSqueezy = "lemonsqueezy"
	ProviderPolar        = "polar"
)

// Payment types carried in checkout metadata.
const (
	TypeCreditsPurchase = "credits_purchase"
	TypeLinksUnlock     = "links_unlock"
)

// Metadata keys passed to the provider at checkout and read back at
// confirmation.
const (
	MetaType      = "type"
	MetaUserID    = "userId"
	MetaCredits   = "credits"
	MetaOutfitID  = "outfitId"
	MetaPackageID = "packageId"
)

// CheckoutParams describes a hosted checkout session to create. The amount is
// always resolved server-side from the package catalog, never from a client
// request.
type CheckoutParams struct {
	ProductRef  string // provider-specific product/variant/price reference
	AmountCents int64
	Currency    string
	Name        string
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSession is a created hosted checkout session
type CheckoutSession struct {
	ID  string
	URL string
}

// Confirmation is the provider's own record of a payment, retrieved
// server-to-server. Metadata may be empty for providers whose retrieval API
// does not echo checkout custom data.
type Confirmation struct {
	SessionID   string
	Status      string
	AmountCents int64
	Currency    string
	Metadata    map[string]string
}

// Paid reports whether the provider considers the payment settled
func (c *Confirmation) Paid() bool {
	return c.Status == "paid"
}

// Provider is a payment provider capable of creating hosted checkouts and
// confirming payment outcomes.
type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	ConfirmPayment(ctx context.Context, sessionID string) (*Confirmation, error)
}
