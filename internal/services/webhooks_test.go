package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v82"

	"github.com/buythelook/payments-api/internal/payments"
	"github.com/buythelook/payments-api/internal/store"
)

func stripeCheckoutEvent(t *testing.T, eventID, sessionID string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"id": sessionID})
	if err != nil {
		t.Fatal(err)
	}
	return stripe.Event{
		ID:   eventID,
		Type: StripeEventCheckoutCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleStripeEvent(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["user-1"] = &store.Profile{ID: "user-1"}
	fp := &fakeProvider{
		name: payments.ProviderStripe,
		confs: map[string]*payments.Confirmation{
			"cs_123": {
				SessionID:   "cs_123",
				Status:      "paid",
				AmountCents: 499,
				Currency:    "usd",
				Metadata: map[string]string{
					payments.MetaType:    payments.TypeCreditsPurchase,
					payments.MetaUserID:  "user-1",
					payments.MetaCredits: "5",
				},
			},
		},
	}
	svc := newTestService(t, fs, fp)

	if err := svc.HandleStripeEvent(context.Background(), stripeCheckoutEvent(t, "evt_1", "cs_123")); err != nil {
		t.Fatalf("HandleStripeEvent: %v", err)
	}
	if fs.profiles["user-1"].Credits != 5 {
		t.Fatalf("balance = %d, want 5", fs.profiles["user-1"].Credits)
	}
}

func TestHandleStripeEventRedelivery(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["user-1"] = &store.Profile{ID: "user-1"}
	fp := &fakeProvider{
		name: payments.ProviderStripe,
		confs: map[string]*payments.Confirmation{
			"cs_123": {
				SessionID:   "cs_123",
				Status:      "paid",
				AmountCents: 499,
				Currency:    "usd",
				Metadata: map[string]string{
					payments.MetaUserID:  "user-1",
					payments.MetaCredits: "5",
				},
			},
		},
	}
	svc := newTestService(t, fs, fp)

	event := stripeCheckoutEvent(t, "evt_1", "cs_123")
	for i := 0; i < 3; i++ {
		if err := svc.HandleStripeEvent(context.Background(), event); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if fs.profiles["user-1"].Credits != 5 {
		t.Fatalf("balance = %d, want 5 after redeliveries", fs.profiles["user-1"].Credits)
	}
}

func TestHandleStripeEventAfterClientVerify(t *testing.T) {
	// A webhook and a client verify for the same session grant value once,
	// whichever lands first.
	fs := newFakeStore()
	fs.profiles["user-1"] = &store.Profile{ID: "user-1"}
	fp := &fakeProvider{
		name: payments.ProviderStripe,
		confs: map[string]*payments.Confirmation{
			"cs_123": {
				SessionID:   "cs_123",
				Status:      "paid",
				AmountCents: 2499,
				Currency:    "usd",
				Metadata: map[string]string{
					payments.MetaUserID:  "user-1",
					payments.MetaCredits: "50",
				},
			},
		},
	}
	svc := newTestService(t, fs, fp)

	if _, err := svc.VerifyCreditsPayment(context.Background(), VerifyCreditsParams{
		Provider:  payments.ProviderStripe,
		SessionID: "cs_123",
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.HandleStripeEvent(context.Background(), stripeCheckoutEvent(t, "evt_1", "cs_123")); err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if fs.profiles["user-1"].Credits != 50 {
		t.Fatalf("balance = %d, want 50", fs.profiles["user-1"].Credits)
	}
}

func TestHandleStripeEventIgnoresOtherTypes(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs, &fakeProvider{name: payments.ProviderStripe})

	event := stripe.Event{ID: "evt_2", Type: "invoice.paid", Data: &stripe.EventData{Raw: []byte(`{}`)}}
	if err := svc.HandleStripeEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleStripeEvent: %v", err)
	}
}

func TestHandleStripeEventRetriedAfterFailure(t *testing.T) {
	// A delivery whose handling fails must not be recorded as processed, so
	// the provider's redelivery of the same event id can still grant.
	fs := newFakeStore()
	fs.profiles["user-1"] = &store.Profile{ID: "user-1"}
	fp := &fakeProvider{
		name:       payments.ProviderStripe,
		confirmErr: errors.New("provider unavailable"),
		confs: map[string]*payments.Confirmation{
			"cs_123": {
				SessionID:   "cs_123",
				Status:      "paid",
				AmountCents: 499,
				Currency:    "usd",
				Metadata: map[string]string{
					payments.MetaUserID:  "user-1",
					payments.MetaCredits: "5",
				},
			},
		},
	}
	svc := newTestService(t, fs, fp)

	event := stripeCheckoutEvent(t, "evt_1", "cs_123")
	if err := svc.HandleStripeEvent(context.Background(), event); err == nil {
		t.Fatal("expected error from failed confirmation")
	}
	if fs.profiles["user-1"].Credits != 0 {
		t.Fatalf("balance = %d after failed delivery, want 0", fs.profiles["user-1"].Credits)
	}
	if len(fs.webhooks) != 0 {
		t.Fatal("failed delivery must not be recorded as processed")
	}

	fp.confirmErr = nil
	if err := svc.HandleStripeEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if fs.profiles["user-1"].Credits != 5 {
		t.Fatalf("balance = %d after redelivery, want 5", fs.profiles["user-1"].Credits)
	}
}

func TestHandleLemonSqueezyOrderCreated(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["user-1"] = &store.Profile{ID: "user-1"}
	fp := &fakeProvider{
		name: payments.ProviderLemonSqueezy,
		confs: map[string]*payments.Confirmation{
			"1234": {SessionID: "1234", Status: "paid", AmountCents: 999, Currency: "usd"},
		},
	}
	svc := newTestService(t, fs, fp)

	payload := &LemonSqueezyWebhookPayload{}
	payload.Meta.EventName = LemonSqueezyEventOrderCreated
	payload.Meta.WebhookID = "wh-1"
	payload.Meta.CustomData.Type = payments.TypeCreditsPurchase
	payload.Meta.CustomData.UserID = "user-1"
	payload.Meta.CustomData.Credits = "15"
	payload.Data.ID = "1234"

	if err := svc.HandleLemonSqueezyEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandleLemonSqueezyEvent: %v", err)
	}
	if fs.profiles["user-1"].Credits != 15 {
		t.Fatalf("balance = %d, want 15", fs.profiles["user-1"].Credits)
	}

	// Redelivery with the same webhook id is a no-op.
	if err := svc.HandleLemonSqueezyEvent(context.Background(), payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if fs.profiles["user-1"].Credits != 15 {
		t.Fatalf("balance = %d after redelivery, want 15", fs.profiles["user-1"].Credits)
	}
}

func TestHandleLemonSqueezyOrderLinksUnlock(t *testing.T) {
	fs := newFakeStore()
	fs.outfits["outfit-1"] = &store.Outfit{ID: "outfit-1", UserID: "user-1"}
	fp := &fakeProvider{
		name: payments.ProviderLemonSqueezy,
		confs: map[string]*payments.Confirmation{
			"5678": {SessionID: "5678", Status: "paid", AmountCents: 500, Currency: "usd"},
		},
	}
	svc := newTestService(t, fs, fp)

	payload := &LemonSqueezyWebhookPayload{}
	payload.Meta.EventName = LemonSqueezyEventOrderCreated
	payload.Meta.WebhookID = "wh-2"
	payload.Meta.CustomData.Type = payments.TypeLinksUnlock
	payload.Meta.CustomData.UserID = "user-1"
	payload.Meta.CustomData.OutfitID = "outfit-1"
	payload.Data.ID = "5678"

	if err := svc.HandleLemonSqueezyEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandleLemonSqueezyEvent: %v", err)
	}
	if !fs.outfits["outfit-1"].LinksUnlocked {
		t.Fatal("outfit not unlocked")
	}
}

func TestHandleLemonSqueezyIgnoresOtherEvents(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	payload := &LemonSqueezyWebhookPayload{}
	payload.Meta.EventName = "subscription_created"
	payload.Meta.WebhookID = "wh-3"

	if err := svc.HandleLemonSqueezyEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandleLemonSqueezyEvent: %v", err)
	}
}

func TestHandlePolarOrderCreated(t *testing.T) {
	// Polar orders come back without checkout metadata. The buyer is the
	// external customer id and the bundle is derived from the paid amount.
	fs := newFakeStore()
	fs.profiles["user-1"] = &store.Profile{ID: "user-1"}
	fp := &fakeProvider{
		name: payments.ProviderPolar,
		confs: map[string]*payments.Confirmation{
			"order-1": {
				SessionID:   "order-1",
				Status:      "paid",
				AmountCents: 2499,
				Currency:    "usd",
				Metadata:    map[string]string{payments.MetaUserID: "user-1"},
			},
		},
	}
	svc := newTestService(t, fs, fp)

	payload := &PolarWebhookPayload{ID: "evt-1", Type: PolarEventOrderCreated}
	payload.Data.ID = "order-1"

	if err := svc.HandlePolarEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandlePolarEvent: %v", err)
	}
	if fs.profiles["user-1"].Credits != 50 {
		t.Fatalf("balance = %d, want 50", fs.profiles["user-1"].Credits)
	}

	// Redelivery with the same event id is a no-op.
	if err := svc.HandlePolarEvent(context.Background(), payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if fs.profiles["user-1"].Credits != 50 {
		t.Fatalf("balance = %d after redelivery, want 50", fs.profiles["user-1"].Credits)
	}
}

func TestHandlePolarOrderUnknownAmount(t *testing.T) {
	// An amount matching no catalog package cannot be reconciled into a
	// grant and must not credit anyone.
	fs := newFakeStore()
	fs.profiles["user-1"] = &store.Profile{ID: "user-1"}
	fp := &fakeProvider{
		name: payments.ProviderPolar,
		confs: map[string]*payments.Confirmation{
			"order-2": {
				SessionID:   "order-2",
				Status:      "paid",
				AmountCents: 1234,
				Currency:    "usd",
				Metadata:    map[string]string{payments.MetaUserID: "user-1"},
			},
		},
	}
	svc := newTestService(t, fs, fp)

	payload := &PolarWebhookPayload{ID: "evt-2", Type: PolarEventOrderCreated}
	payload.Data.ID = "order-2"

	if err := svc.HandlePolarEvent(context.Background(), payload); err == nil {
		t.Fatal("expected error for unreconcilable amount")
	}
	if fs.profiles["user-1"].Credits != 0 {
		t.Fatalf("balance = %d, want 0", fs.profiles["user-1"].Credits)
	}
}

func TestHandlePolarIgnoresOtherEvents(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	payload := &PolarWebhookPayload{ID: "evt-3", Type: "subscription.created"}
	if err := svc.HandlePolarEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandlePolarEvent: %v", err)
	}
}
