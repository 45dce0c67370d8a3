// Package registry maps external honeytoken identifiers to internal
// token/drive pairs. Read-mostly: writes happen only during drive
// preparation, lookups happen on every webhook.
package registry

import (
	"sync"

	"github.com/dropsentry/campaign-backend/internal/apperrors"
	"github.com/dropsentry/campaign-backend/internal/repository"
)

type Registry struct {
	mu      sync.RWMutex
	entries map[string]*repository.RegisteredToken
	repo    repository.TokenRepositoryInterface
}

func New(repo repository.TokenRepositoryInterface) *Registry {
	return &Registry{
		entries: make(map[string]*repository.RegisteredToken),
		repo:    repo,
	}
}

// Warm loads every registered token from the database. Called once at
// startup; later registrations go through Register.
func (r *Registry) Warm() error {
	tokens, err := r.repo.ListRegistered()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tokens {
		r.entries[t.CanaryTokenID] = t
	}
	return nil
}

// Register binds an external identifier to a token. Re-registering the
// same token is a no-op; binding to a different token is a conflict.
func (r *Registry) Register(rt *repository.RegisteredToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[rt.CanaryTokenID]; ok {
		if existing.TokenID != rt.TokenID {
			return apperrors.NewConflict("token binding", rt.CanaryTokenID)
		}
		return nil
	}
	r.entries[rt.CanaryTokenID] = rt
	return nil
}

// Resolve returns the token bound to an external identifier, falling
// through to the database on a cache miss.
func (r *Registry) Resolve(externalID string) (*repository.RegisteredToken, error) {
	r.mu.RLock()
	rt, ok := r.entries[externalID]
	r.mu.RUnlock()
	if ok {
		return rt, nil
	}

	rt, err := r.repo.GetByExternalID(externalID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.entries[externalID] = rt
	r.mu.Unlock()
	return rt, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
