// Package admin: auth.go verifies the admin key against an Argon2id hash.
// Format: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
package admin

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/server/middleware"
)

// KeyHeader carries the admin key.
const KeyHeader = "X-Admin-Key"

// How long a verified key skips the Argon2id computation.
const verifiedTTL = 10 * time.Minute

// KeyVerifier guards admin routes. Failed attempts are counted per
// client; once over the limit the client is refused until the window passes.
type KeyVerifier struct {
	encodedHash string
	failures    *middleware.RateLimiter

	mu            sync.Mutex
	verified      [sha256.Size]byte
	verifiedUntil time.Time
}

// NewKeyVerifier creates a verifier. An empty hash disables admin access.
func NewKeyVerifier(encodedHash string, failures *middleware.RateLimiter) *KeyVerifier {
	return &KeyVerifier{encodedHash: encodedHash, failures: failures}
}

// Verify reports whether key matches the configured hash.
func (v *KeyVerifier) Verify(key string) bool {
	if v.encodedHash == "" || key == "" {
		return false
	}
	digest := sha256.Sum256([]byte(key))

	v.mu.Lock()
	if time.Now().Before(v.verifiedUntil) && subtle.ConstantTimeCompare(digest[:], v.verified[:]) == 1 {
		v.mu.Unlock()
		return true
	}
	v.mu.Unlock()

	if !verifyArgon2id(key, v.encodedHash) {
		return false
	}

	v.mu.Lock()
	v.verified = digest
	v.verifiedUntil = time.Now().Add(verifiedTTL)
	v.mu.Unlock()
	return true
}

// Middleware rejects requests without a valid X-Admin-Key.
func (v *KeyVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := "admin:" + middleware.ClientKey(r)
		if v.failures != nil && v.failures.Blocked(client) {
			common.RespondMessage(w, http.StatusTooManyRequests, "rate_limited", "too many failed attempts")
			return
		}

		if !v.Verify(r.Header.Get(KeyHeader)) {
			if v.failures != nil {
				v.failures.Allow(client)
			}
			log.WithFields(log.Fields{
				"client": client,
				"path":   r.URL.Path,
			}).Warn("Admin key rejected")
			common.RespondError(w, r, common.ErrUnauthorized)
			return
		}
		if v.failures != nil {
			v.failures.Reset(client)
		}
		next.ServeHTTP(w, r)
	})
}

// HashKey returns the encoded Argon2id hash of key with a random salt.
func HashKey(key string) (string, error) {
	salt := make([]byte, hashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(key), salt, hashIterations, hashMemory, hashParallelism, hashKeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, hashMemory, hashIterations, hashParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyArgon2id(key, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Malformed Argon2id hash")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Failed to parse Argon2id parameters")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Failed to decode Argon2id salt")
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Failed to decode Argon2id hash")
		return false
	}

	computed := argon2.IDKey([]byte(key), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
