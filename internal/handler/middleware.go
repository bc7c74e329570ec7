package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/buythelook/payments-api/internal/appctx"
	"github.com/buythelook/payments-api/internal/apperrs"
	"github.com/buythelook/payments-api/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const userContextKey contextKey = "user"

// MustGetUser retrieves the authenticated user from context. Only valid
// behind requireAuthAPI.
func MustGetUser(ctx context.Context) *auth.Claims {
	user, ok := ctx.Value(userContextKey).(*auth.Claims)
	if !ok {
		panic("user not found in context - ensure requireAuthAPI is applied")
	}
	return user
}

// requireAuthAPI validates the bearer token and adds its claims to the
// request context. Returns 401 on missing or invalid tokens.
func (h *Handler) requireAuthAPI(handlerFunc http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, r, apperrs.Client(apperrs.CodeUnauthorized, "missing bearer token"))
			return
		}

		claims, err := h.verifier.VerifyToken(token)
		if err != nil {
			writeError(w, r, apperrs.Client(apperrs.CodeUnauthorized, "invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		handlerFunc(w, r.WithContext(ctx))
	}
}

// requireBodyUser rejects requests whose body names a different user than
// the token. An empty body user is filled from the token.
func requireBodyUser(r *http.Request, bodyUserID string) (string, error) {
	user := MustGetUser(r.Context())
	if bodyUserID == "" {
		return user.UserID, nil
	}
	if bodyUserID != user.UserID {
		return "", apperrs.Client(apperrs.CodeForbidden, "userId does not match authenticated user")
	}
	return bodyUserID, nil
}

// MetricsMiddleware records request counts and latency per response.
func (h *Handler) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.metrics.RecordHTTPRequest(r.Method, sw.status, time.Since(start))
	})
}

// RecoveryMiddleware converts panics into 500 responses.
func (h *Handler) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				appctx.GetLogger(r.Context()).Error("panic recovered", "panic", rec, "path", r.URL.Path)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
