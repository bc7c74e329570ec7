package handler

import (
	"net/http"

	"github.com/buythelook/payments-api/internal/services"
)

type verifyCreditsRequest struct {
	Provider  string `json:"provider"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Credits   int64  `json:"credits"`
	PackageID string `json:"packageId"`
}

type verifyLinksRequest struct {
	Provider  string `json:"provider"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	OutfitID  string `json:"outfitId"`
}

// VerifyCreditsPayment confirms a checkout with the provider and grants the
// purchased credits exactly once
func (h *Handler) VerifyCreditsPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyCreditsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userID, err := requireBodyUser(r, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.services.VerifyCreditsPayment(r.Context(), services.VerifyCreditsParams{
		Provider:  req.Provider,
		SessionID: req.SessionID,
		UserID:    userID,
		Credits:   req.Credits,
		PackageID: req.PackageID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// VerifyLinksPayment confirms a checkout with the provider and unlocks the
// outfit's shopping links exactly once
func (h *Handler) VerifyLinksPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyLinksRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userID, err := requireBodyUser(r, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.services.VerifyLinksPayment(r.Context(), services.VerifyLinksParams{
		Provider:  req.Provider,
		SessionID: req.SessionID,
		UserID:    userID,
		OutfitID:  req.OutfitID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
