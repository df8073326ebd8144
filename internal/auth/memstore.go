package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]Profile // by user id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]Profile)}
}

func (r *MemoryRepository) Create(_ context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Matricule == p.Matricule {
			return errDuplicateMatricule
		}
		if u.Email == p.Email {
			return errDuplicateEmail
		}
	}
	p.CreatedAt = time.Now().UTC()
	r.users[p.ID] = *p
	return nil
}

func (r *MemoryRepository) FindByMatricule(_ context.Context, matricule string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Matricule == matricule {
			return u, nil
		}
	}
	return Profile{}, errUserNotFound
}

func (r *MemoryRepository) GetProfile(_ context.Context, userID string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.users[userID]
	if !ok {
		return Profile{}, errUserNotFound
	}
	return p, nil
}

// SetActive toggles an account, standing in for an administrator's console.
func (r *MemoryRepository) SetActive(userID string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.users[userID]; ok {
		p.Active = active
		r.users[userID] = p
	}
}
