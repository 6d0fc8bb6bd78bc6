// Package middleware holds the HTTP middleware chain: caller identity,
// access logging, panic recovery, rate limiting and metrics.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"lexdesk.app/credits/internal/common"
)

// AccountHeader carries the caller identity set by the upstream gateway.
const AccountHeader = "X-Account-ID"

type accountKey struct{}

// WithAccount returns a copy of ctx carrying accountID.
func WithAccount(ctx context.Context, accountID uuid.UUID) context.Context {
	return context.WithValue(ctx, accountKey{}, accountID)
}

// AccountFromContext returns the caller identity stored by RequireAccount.
func AccountFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// RequireAccount rejects requests without a valid X-Account-ID.
// Token verification happens upstream; this only parses the identity.
func RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(AccountHeader))
		if raw == "" {
			// Browsers cannot set headers on a WebSocket handshake.
			raw = r.URL.Query().Get("account_id")
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			common.RespondError(w, r, common.ErrMissingAccount)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), id)))
	})
}
