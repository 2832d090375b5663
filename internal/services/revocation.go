package services

import (
	"sync"
	"time"
)

// TokenRevoker remembers logged-out tokens until they expire on their own.
// Implementations must be safe for concurrent use.
type TokenRevoker interface {
	Revoke(token string, expiresAt time.Time)
	IsRevoked(token string) bool
}

type memoryTokenRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryTokenRevoker() TokenRevoker {
	return &memoryTokenRevoker{
		revoked: make(map[string]time.Time),
	}
}

func (r *memoryTokenRevoker) Revoke(token string, expiresAt time.Time) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Revocations become useless once the token itself expires,
	// so each write doubles as a sweep.
	for t, exp := range r.revoked {
		if exp.Before(now) {
			delete(r.revoked, t)
		}
	}

	if expiresAt.After(now) {
		r.revoked[token] = expiresAt
	}
}

func (r *memoryTokenRevoker) IsRevoked(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.revoked[token]
	if !ok {
		return false
	}
	if exp.Before(time.Now()) {
		delete(r.revoked, token)
		return false
	}
	return true
}
