package auth

import (
	"crypto/rand"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Issuer creates and revokes client credentials.
type Issuer struct {
	store   CredentialStore
	cost    int
	timeNow func() time.Time
}

// NewIssuer creates an issuer that hashes tokens at bcrypt.DefaultCost.
func NewIssuer(store CredentialStore) *Issuer {
	return &Issuer{
		store:   store,
		cost:    bcrypt.DefaultCost,
		timeNow: time.Now,
	}
}

// Issue generates a new token for identity, stores its hash and returns the
// plaintext. Any credential previously issued to identity stops working.
func (i *Issuer) Issue(identity string) (string, error) {
	if err := ValidateIdentity(identity); err != nil {
		return "", err
	}

	token := generateSecureToken()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), i.cost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}

	now := i.timeNow()
	cred := &Credential{
		Identity:  identity,
		TokenHash: string(hash),
		CreatedAt: now,
		LastSeen:  now,
	}
	if err := i.store.SaveCredential(cred); err != nil {
		return "", fmt.Errorf("save credential: %w", err)
	}

	log.Printf("auth: issued credential for %s", identity)
	return token, nil
}

// Revoke deletes the credential for identity. Connections that already
// authenticated stay open until they close.
func (i *Issuer) Revoke(identity string) error {
	if err := i.store.DeleteCredential(identity); err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	log.Printf("auth: revoked credential for %s", identity)
	return nil
}

// generateSecureToken returns 32 random bytes hex encoded.
func generateSecureToken() string {
	const tokenBytes = 32

	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}

	return fmt.Sprintf("%x", b)
}
