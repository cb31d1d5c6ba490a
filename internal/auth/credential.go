// Package auth checks and issues the credentials clients present in their
// handshake frame ("identity|token").
//
// Credentials are issued out of band with `supportdesk sessions issue`,
// which prints the plaintext token once and stores only its bcrypt hash.
// A connecting client is accepted only when the token matches the hash
// stored for the identity it claims.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/supportdesk/host/internal/errors"
	"github.com/supportdesk/host/internal/storage"
)

// Credential is an alias for storage.Credential to avoid import cycles.
type Credential = storage.Credential

// CredentialStore persists issued credentials.
// This interface is implemented by storage.SQLiteStore.
// Implementations must be safe for concurrent access.
type CredentialStore interface {
	// SaveCredential persists a credential, replacing any existing one for the identity.
	SaveCredential(cred *Credential) error

	// GetCredential returns nil, nil when the identity has no credential.
	GetCredential(identity string) (*Credential, error)

	// ListCredentials returns all issued credentials.
	ListCredentials() ([]*Credential, error)

	// DeleteCredential is idempotent.
	DeleteCredential(identity string) error

	// UpdateLastSeen returns storage.ErrCredentialNotFound for unknown identities.
	UpdateLastSeen(identity string, t time.Time) error
}

// maxIdentityLen matches the limit enforced on chat frames.
const maxIdentityLen = 256

// ErrInvalidIdentity is returned when an identity cannot be used in the wire format.
var ErrInvalidIdentity = errors.New("invalid identity")

// ValidateIdentity rejects identities the frame format cannot carry:
// empty names, names longer than 256 bytes, and names containing "|".
func ValidateIdentity(identity string) error {
	switch {
	case identity == "":
		return apperrors.Wrap(apperrors.CodeAuthIdentity, "identity cannot be empty", ErrInvalidIdentity)
	case len(identity) > maxIdentityLen:
		return apperrors.Wrap(apperrors.CodeAuthIdentity,
			fmt.Sprintf("identity longer than %d bytes", maxIdentityLen), ErrInvalidIdentity)
	case strings.Contains(identity, "|"):
		return apperrors.Wrap(apperrors.CodeAuthIdentity, "identity cannot contain '|'", ErrInvalidIdentity)
	case strings.TrimSpace(identity) != identity:
		return apperrors.Wrap(apperrors.CodeAuthIdentity, "identity cannot start or end with whitespace", ErrInvalidIdentity)
	}
	return nil
}
