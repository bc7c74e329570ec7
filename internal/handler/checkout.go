package handler

import (
	"net/http"

	"github.com/buythelook/payments-api/internal/services"
)

type creditsCheckoutRequest struct {
	Provider  string `json:"provider"`
	PackageID string `json:"packageId"`
	UserID    string `json:"userId"`
}

type linksCheckoutRequest struct {
	Provider string `json:"provider"`
	OutfitID string `json:"outfitId"`
	UserID   string `json:"userId"`
}

// CreateCreditsCheckout starts a hosted checkout for a credit package
func (h *Handler) CreateCreditsCheckout(w http.ResponseWriter, r *http.Request) {
	var req creditsCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userID, err := requireBodyUser(r, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user := MustGetUser(r.Context())
	result, err := h.services.CreateCreditsCheckout(r.Context(), services.CreditsCheckoutParams{
		UserID:    userID,
		UserEmail: user.Email,
		Provider:  req.Provider,
		PackageID: req.PackageID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateLinksCheckout starts a hosted checkout for a shopping links unlock
func (h *Handler) CreateLinksCheckout(w http.ResponseWriter, r *http.Request) {
	var req linksCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userID, err := requireBodyUser(r, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user := MustGetUser(r.Context())
	result, err := h.services.CreateLinksCheckout(r.Context(), services.LinksCheckoutParams{
		UserID:    userID,
		UserEmail: user.Email,
		Provider:  req.Provider,
		OutfitID:  req.OutfitID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListPackages returns the credit package catalog
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"packages":              h.services.ListPackages(),
		"linksUnlockPriceCents": services.LinksUnlockPriceCents,
	})
}
