package auth

import (
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	apperrors "github.com/supportdesk/host/internal/errors"
)

// Validator is the Credential Store consulted by the connection handshake.
// It never creates or modifies credentials apart from the last_seen stamp.
type Validator struct {
	store   CredentialStore
	limiter *rate.Limiter // nil disables throttling
	timeNow func() time.Time
}

// NewValidator creates a validator. A nil limiter disables handshake throttling.
func NewValidator(store CredentialStore, limiter *rate.Limiter) *Validator {
	return &Validator{
		store:   store,
		limiter: limiter,
		timeNow: time.Now,
	}
}

// Validate reports whether token is the credential issued to identity.
func (v *Validator) Validate(identity, token string) bool {
	return v.Check(identity, token) == nil
}

// Check is Validate with the reason for rejection. It returns an
// auth.rate_limited error when the handshake budget is exhausted,
// auth.invalid for an unknown identity or wrong token, and a
// storage.query_failed error when the store cannot be read.
func (v *Validator) Check(identity, token string) error {
	if v.limiter != nil && !v.limiter.Allow() {
		log.Printf("auth: handshake for %s rate limited", identity)
		return apperrors.New(apperrors.CodeAuthRateLimited, "too many handshake attempts")
	}

	cred, err := v.store.GetCredential(identity)
	if err != nil {
		log.Printf("auth: credential lookup for %s failed: %v", identity, err)
		return apperrors.Wrap(apperrors.CodeStorageQueryFailed, "credential lookup failed", err)
	}
	if cred == nil {
		log.Printf("auth: no credential issued for %s", identity)
		return apperrors.AuthInvalid(identity)
	}

	// bcrypt.CompareHashAndPassword is constant time with respect to the token.
	if err := bcrypt.CompareHashAndPassword([]byte(cred.TokenHash), []byte(token)); err != nil {
		log.Printf("auth: token mismatch for %s", identity)
		return apperrors.AuthInvalid(identity)
	}

	if err := v.store.UpdateLastSeen(identity, v.timeNow()); err != nil {
		log.Printf("auth: failed to update last_seen for %s: %v", identity, err)
	}

	log.Printf("auth: validated %s", identity)
	return nil
}
