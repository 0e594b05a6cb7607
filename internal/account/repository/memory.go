package repository

import (
	"context"
	"sync"
	"time"

	"github.com/AlibekovAA/authcore/internal/account/domain"
)

// MemoryStore keeps accounts in process memory. The uniqueness check and
// the insert run in one critical section.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[domain.ID]domain.Account
	byUsername map[string]domain.ID
	byEmail    map[string]domain.ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[domain.ID]domain.Account),
		byUsername: make(map[string]domain.ID),
		byEmail:    make(map[string]domain.ID),
	}
}

func (s *MemoryStore) Create(ctx context.Context, draft domain.Draft) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, storageError("create account", err)
	}

	account := draft.Account()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
		account.UpdatedAt = account.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[account.Username]; exists {
		return domain.Account{}, ErrDuplicateUsername
	}
	if _, exists := s.byEmail[account.Email]; exists {
		return domain.Account{}, ErrDuplicateEmail
	}

	s.byID[account.ID] = account
	s.byUsername[account.Username] = account.ID
	s.byEmail[account.Email] = account.ID

	return account, nil
}

func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return domain.Account{}, ErrAccountNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return domain.Account{}, ErrAccountNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id domain.ID) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return domain.Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (s *MemoryStore) SetActive(ctx context.Context, id domain.ID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.IsActive = active
	account.UpdatedAt = time.Now().UTC()
	s.byID[id] = account
	return nil
}
