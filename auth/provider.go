package auth

import (
	"club-chat/domain/account"
	"log/slog"
	"slices"
	"sync"
)

// Provider holds the signed-in user of one client and notifies auth changes.
// Listeners are called synchronously, in registration order, outside the lock.
type Provider struct {
	log    *slog.Logger
	tokens TokenManager

	mu        sync.RWMutex
	user      *account.User
	listeners map[uint64]func(*account.User)
	nextID    uint64
}

func NewProvider(log *slog.Logger, tokens TokenManager) *Provider {
	return &Provider{log: log, tokens: tokens, listeners: make(map[uint64]func(*account.User))}
}

// SignIn validates the token and makes its user current.
func (p *Provider) SignIn(token string) (*account.User, error) {
	claims, err := p.tokens.Validate(token)
	if err != nil {
		p.log.Debug("Rejected sign in", "error", err)
		return nil, err
	}
	user := claims.User()
	p.set(&user)
	return &user, nil
}

func (p *Provider) SignOut() {
	p.set(nil)
}

func (p *Provider) set(user *account.User) {
	p.mu.Lock()
	p.user = user
	listeners := make([]func(*account.User), 0, len(p.listeners))
	for id := uint64(1); id <= p.nextID; id++ {
		if listener, ok := p.listeners[id]; ok {
			listeners = append(listeners, listener)
		}
	}
	p.mu.Unlock()

	for _, listener := range listeners {
		listener(cloneUser(user))
	}
}

func (p *Provider) CurrentUser() *account.User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneUser(p.user)
}

func (p *Provider) OnAuthChange(listener func(*account.User)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = listener
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func cloneUser(user *account.User) *account.User {
	if user == nil {
		return nil
	}
	clone := *user
	clone.EnrolledClubs = slices.Clone(user.EnrolledClubs)
	return &clone
}
