package handler

import "net/http"

type unlockRequest struct {
	OutfitID string `json:"outfitId"`
	UserID   string `json:"userId"`
}

type unlockResponse struct {
	Success    bool   `json:"success"`
	NewBalance int64  `json:"newBalance"`
	Message    string `json:"message"`
}

// GetBalance returns the authenticated user's credit balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	user := MustGetUser(r.Context())

	balance, err := h.services.GetBalance(r.Context(), user.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// UnlockWithCredit spends one credit to unlock an outfit's shopping links
func (h *Handler) UnlockWithCredit(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userID, err := requireBodyUser(r, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.services.UnlockWithCredit(r.Context(), userID, req.OutfitID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unlockResponse{
		Success:    result.Success,
		NewBalance: result.NewBalance,
		Message:    "Links unlocked",
	})
}
