package services

import (
	"github.com/buythelook/payments-api/internal/apperrs"
	"github.com/buythelook/payments-api/internal/payments"
)

// LinksUnlockPriceCents is the fixed price of a one-off shopping links
// unlock.
const LinksUnlockPriceCents int64 = 500

// CreditPackage is a purchasable bundle of generation credits. Prices live
// here, server-side; client-supplied amounts are never trusted.
type CreditPackage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Credits     int64  `json:"credits"`
	PriceCents  int64  `json:"priceInCents"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

var creditPackages = []CreditPackage{
	{
		ID:          "starter",
		Name:        "Starter",
		Credits:     5,
		PriceCents:  499,
		Currency:    "usd",
		Description: "5 outfit generation credits",
	},
	{
		ID:          "popular",
		Name:        "Style Pack",
		Credits:     15,
		PriceCents:  999,
		Currency:    "usd",
		Description: "15 outfit generation credits",
	},
	{
		ID:          "pro",
		Name:        "Fashionista",
		Credits:     50,
		PriceCents:  2499,
		Currency:    "usd",
		Description: "50 outfit generation credits",
	},
}

// ListPackages returns the credit package catalog.
func (s *Service) ListPackages() []CreditPackage {
	out := make([]CreditPackage, len(creditPackages))
	copy(out, creditPackages)
	return out
}

// PackageByID looks up a credit package in the catalog.
func PackageByID(id string) (*CreditPackage, error) {
	for i := range creditPackages {
		if creditPackages[i].ID == id {
			return &creditPackages[i], nil
		}
	}
	return nil, apperrs.Client(apperrs.CodeInvalidInput, "unknown credit package: "+id)
}

// packageByCredits finds the catalog package granting exactly the given
// number of credits. Used to price-check claims from providers that do not
// echo checkout metadata.
func packageByCredits(credits int64) *CreditPackage {
	for i := range creditPackages {
		if creditPackages[i].Credits == credits {
			return &creditPackages[i]
		}
	}
	return nil
}

// packageByPrice finds the catalog package sold at exactly the given price.
// Used when a provider reports a completed order without checkout metadata
// and the grant has to be derived from the paid amount.
func packageByPrice(priceCents int64) *CreditPackage {
	for i := range creditPackages {
		if creditPackages[i].PriceCents == priceCents {
			return &creditPackages[i]
		}
	}
	return nil
}

// creditsProductRef returns the provider-side product reference for a credit
// package. Stripe checkouts use inline price data and need no reference.
func (s *Service) creditsProductRef(provider string, pkg *CreditPackage) string {
	switch provider {
	case payments.ProviderLemonSqueezy:
		return s.config.LemonSqueezy.VariantID
	case payments.ProviderPolar:
		switch pkg.ID {
		case "starter":
			return s.config.Polar.StarterProductID
		case "popular":
			return s.config.Polar.PackProductID
		case "pro":
			return s.config.Polar.FashionistaProductID
		}
	}
	return ""
}

// linksProductRef returns the provider-side product reference for the links
// unlock product.
func (s *Service) linksProductRef(provider string) string {
	switch provider {
	case payments.ProviderLemonSqueezy:
		return s.config.LemonSqueezy.VariantID
	case payments.ProviderPolar:
		return s.config.Polar.LinksProductID
	}
	return ""
}
