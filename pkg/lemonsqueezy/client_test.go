package lemonsqueezy

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifyWebhookSignature(t *testing.T) {
	c := NewClient(Config{WebhookSecret: "whsec"})

	payload := []byte(`{"meta":{"event_name":"order_created"}}`)
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !c.VerifyWebhookSignature(payload, sig) {
		t.Error("expected valid signature to verify")
	}
	if c.VerifyWebhookSignature(payload, "deadbeef") {
		t.Error("expected invalid signature to fail")
	}
}

func TestVerifyWebhookSignatureNoSecret(t *testing.T) {
	c := NewClient(Config{})
	if !c.VerifyWebhookSignature([]byte("x"), "anything") {
		t.Error("expected verification to pass when no secret is configured")
	}
}

func TestCreateCheckout(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkouts" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Errorf("unexpected auth header: %s", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/vnd.api+json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"co_1","attributes":{"url":"https://checkout.lemonsqueezy.com/co_1"}}}`))
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "key-123", StoreID: "777", BaseURL: ts.URL})

	resp, err := c.CreateCheckout(context.Background(), CreateCheckoutParams{
		VariantID:   "1115018",
		CustomPrice: 499,
		CustomData:  map[string]string{"userId": "u1", "type": "credits_purchase"},
		RedirectURL: "https://app.example.com/payment/success",
	})
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if resp.URL != "https://checkout.lemonsqueezy.com/co_1" {
		t.Errorf("unexpected checkout URL: %s", resp.URL)
	}
	if resp.ID != "co_1" {
		t.Errorf("unexpected checkout ID: %s", resp.ID)
	}

	data := gotBody["data"].(map[string]any)
	attrs := data["attributes"].(map[string]any)
	if price := attrs["custom_price"].(float64); price != 499 {
		t.Errorf("custom_price = %v, want 499", price)
	}
	checkoutData := attrs["checkout_data"].(map[string]any)
	custom := checkoutData["custom"].(map[string]any)
	if custom["userId"] != "u1" {
		t.Errorf("custom data userId = %v, want u1", custom["userId"])
	}
	rels := data["relationships"].(map[string]any)
	storeData := rels["store"].(map[string]any)["data"].(map[string]any)
	if storeData["id"] != "777" {
		t.Errorf("store id = %v, want 777", storeData["id"])
	}
}

func TestCreateCheckoutInvalidVariant(t *testing.T) {
	c := NewClient(Config{APIKey: "k", StoreID: "1"})
	if _, err := c.CreateCheckout(context.Background(), CreateCheckoutParams{VariantID: "abc"}); err == nil {
		t.Error("expected error for non-numeric variant id")
	}
}

func TestGetOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":{"id":"42","attributes":{"identifier":"ord-42","status":"paid","total":999,"currency":"USD","user_email":"u1@example.com"}}}`))
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: ts.URL})
	order, err := c.GetOrder(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !order.IsPaid() {
		t.Error("expected order to be paid")
	}
	if order.Total != 999 {
		t.Errorf("Total = %d, want 999", order.Total)
	}
}

func TestGetOrderAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"status":"404"}]}`, http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: ts.URL})
	if _, err := c.GetOrder(context.Background(), "missing"); err == nil {
		t.Error("expected error for 404 response")
	}
}
