// Package identity establishes who owns the cart: a stable anonymous session
// id for guests, plus the authenticated user id once the shopper logs in.
package identity

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"leafcart/internal/model"
	"leafcart/internal/storage"
)

// Provider owns the shopper identity.
// The session id is created once and never regenerated; the user id is
// layered on top of it and never replaces it.
type Provider struct {
	store storage.Store

	mu      sync.RWMutex
	current model.Identity
}

// New loads the persisted session id from store, generating and persisting a
// new one on first use.
func New(store storage.Store) (*Provider, error) {
	sessionID, ok, err := store.Get(storage.KeySessionID)
	if err != nil {
		return nil, fmt.Errorf("reading session id: %w", err)
	}
	sessionID = strings.TrimSpace(sessionID)

	if !ok || sessionID == "" {
		sessionID = newSessionID()
		if err := store.Set(storage.KeySessionID, sessionID); err != nil {
			return nil, fmt.Errorf("persisting session id: %w", err)
		}
	}

	return &Provider{
		store:   store,
		current: model.Identity{SessionID: sessionID},
	}, nil
}

// newSessionID returns a random guest session identifier.
func newSessionID() string {
	return uuid.NewString()
}

// Current returns a snapshot of the identity.
func (p *Provider) Current() model.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// SessionID returns the persisted guest session id.
func (p *Provider) SessionID() string {
	return p.Current().SessionID
}

// SetUser records the authenticated user. The token may be empty.
// Returns true when the user id changed, which is the caller's cue to resync.
func (p *Provider) SetUser(userID, token string) bool {
	userID = strings.TrimSpace(userID)

	p.mu.Lock()
	defer p.mu.Unlock()

	changed := p.current.UserID != userID
	p.current.UserID = userID
	p.current.Token = token
	return changed
}

// ClearUser drops the authenticated user, falling back to the guest session.
// Returns true if a user was logged in.
func (p *Provider) ClearUser() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := p.current.UserID != ""
	p.current.UserID = ""
	p.current.Token = ""
	return changed
}
