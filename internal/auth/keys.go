package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
)

// ErrUnknownClient is returned when no configured key matches.
var ErrUnknownClient = errors.New("unknown client or key")

// KeyVerifier checks client API keys against their configured bcrypt
// hashes. Keys are distributed out of band; only hashes reach the
// service environment.
type KeyVerifier struct {
	clients map[string]clientEntry
}

type clientEntry struct {
	role domain.ClientRole
	hash string
}

// NewKeyVerifier parses "client-id:role:bcrypt-hash" entries.
func NewKeyVerifier(entries []string) (*KeyVerifier, error) {
	clients := make(map[string]clientEntry, len(entries))
	for _, entry := range entries {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed client key entry %q", entry)
		}
		role := domain.ClientRole(strings.ToUpper(parts[1]))
		switch role {
		case domain.ClientRolePipeline, domain.ClientRoleAdmin:
		default:
			return nil, fmt.Errorf("unknown client role %q", parts[1])
		}
		clients[parts[0]] = clientEntry{role: role, hash: parts[2]}
	}
	return &KeyVerifier{clients: clients}, nil
}

// Verify checks the key for the client and returns its identity.
func (v *KeyVerifier) Verify(clientID, key string) (*domain.APIClient, error) {
	entry, ok := v.clients[clientID]
	if !ok {
		return nil, ErrUnknownClient
	}
	if err := bcrypt.CompareHashAndPassword([]byte(entry.hash), []byte(key)); err != nil {
		return nil, ErrUnknownClient
	}
	return &domain.APIClient{ID: clientID, Role: entry.role}, nil
}

// HashKey hashes a plaintext API key for configuration.
func HashKey(key string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
