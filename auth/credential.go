// Package auth manages the OAuth credential lifecycle: the device
// authorization grant, silent refresh and the in-memory token store.
package auth

import (
	"context"
	"sync"
	"time"
)

// expiryMargin guards against clock skew and in-flight request latency.
const expiryMargin = 30 * time.Second

// Credential is the OAuth state kept between runs. Zero values mean absent.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ValidAt reports whether the access token is usable at now.
func (c Credential) ValidAt(now time.Time) bool {
	if c.AccessToken == "" || c.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(c.ExpiresAt.Add(-expiryMargin))
}

// Persister durably saves a credential. The settings manager implements it.
type Persister interface {
	SaveCredential(ctx context.Context, c Credential) error
}

// TokenStore holds the current credential. Writes are persisted before Set
// and Clear return.
type TokenStore struct {
	// Clock defaults to SystemClock.
	Clock Clock

	mu      sync.RWMutex
	cred    Credential
	writeMu sync.Mutex
	persist Persister
}

// NewTokenStore creates a store seeded with a previously saved credential.
func NewTokenStore(initial Credential, p Persister) *TokenStore {
	return &TokenStore{cred: initial, persist: p}
}

// IsValid reports whether the cached access token can be used right now.
func (s *TokenStore) IsValid() bool {
	return s.Get().ValidAt(clockOrSystem(s.Clock).Now())
}

// HasSession reports whether a refresh token is on file.
func (s *TokenStore) HasSession() bool {
	return s.Get().RefreshToken != ""
}

func (s *TokenStore) Get() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// Set replaces the credential and persists it.
func (s *TokenStore) Set(ctx context.Context, c Credential) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.cred = c
	s.mu.Unlock()

	if s.persist == nil {
		return nil
	}
	return s.persist.SaveCredential(ctx, c)
}

// Clear removes every token field (sign-out) and persists the empty state.
func (s *TokenStore) Clear(ctx context.Context) error {
	return s.Set(ctx, Credential{})
}
