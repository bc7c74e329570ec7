package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/buythelook/payments-api/internal/appctx"
	"github.com/buythelook/payments-api/internal/apperrs"
)

type errorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error onto an HTTP status and JSON body. Server-kind
// errors never leak their wrapped cause to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := appctx.GetLogger(r.Context())

	var appErr *apperrs.Error
	if !errors.As(err, &appErr) {
		log.Error("unhandled error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	if appErr.Kind == apperrs.KindServer {
		log.Error("request failed", "code", appErr.Code, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: appErr.Msg})
		return
	}

	status := http.StatusBadRequest
	switch appErr.Code {
	case apperrs.CodeNotFound:
		status = http.StatusNotFound
	case apperrs.CodeUnauthorized:
		status = http.StatusUnauthorized
	case apperrs.CodeForbidden:
		status = http.StatusForbidden
	case apperrs.CodeConflict:
		status = http.StatusConflict
	}

	resp := errorResponse{Error: appErr.Msg}
	if len(appErr.Meta) > 0 {
		resp.Details = appErr.Meta
	}
	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrs.Client(apperrs.CodeInvalidInput, "invalid request body")
	}
	return nil
}
