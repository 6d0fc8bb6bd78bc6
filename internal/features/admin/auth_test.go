package admin_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexdesk.app/credits/internal/features/admin"
	"lexdesk.app/credits/internal/server/middleware"
)

func TestHashKeyRoundTrip(t *testing.T) {
	hash, err := admin.HashKey("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$"))

	other, err := admin.HashKey("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts differ")

	v := admin.NewKeyVerifier(hash, nil)
	assert.True(t, v.Verify("correct horse"))
	assert.True(t, v.Verify("correct horse"), "cached")
	assert.False(t, v.Verify("battery staple"))
	assert.False(t, v.Verify(""))
}

func TestVerifyWithoutHashOrMalformedHash(t *testing.T) {
	assert.False(t, admin.NewKeyVerifier("", nil).Verify("anything"))
	assert.False(t, admin.NewKeyVerifier("$bcrypt$nope", nil).Verify("anything"))
}

func TestMiddlewareBlocksRepeatedFailures(t *testing.T) {
	hash, err := admin.HashKey("k3y")
	require.NoError(t, err)
	failures := middleware.NewRateLimiter(2, time.Minute)
	defer failures.Close()

	h := admin.NewKeyVerifier(hash, failures).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/grants", nil)
		if key != "" {
			req.Header.Set(admin.KeyHeader, key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do("k3y"))
	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("wrong"))
	assert.Equal(t, http.StatusTooManyRequests, do("k3y"), "blocked even with the right key")
}
