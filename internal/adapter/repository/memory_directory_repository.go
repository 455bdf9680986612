package repository

import (
	"context"
	"sync"

	"marketchat/internal/domain/entity"
	"marketchat/pkg/errors"
)

// MemoryUserRepository holds profiles for STORE_DRIVER=memory. Profiles are
// registered by the development token endpoint or seeded by tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*entity.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*entity.User)}
}

func (r *MemoryUserRepository) Put(user *entity.User) {
	cp := *user
	r.mu.Lock()
	r.users[user.ID] = &cp
	r.mu.Unlock()
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	cp := *user
	return &cp, nil
}

type MemoryListingRepository struct {
	mu       sync.RWMutex
	listings map[string]*entity.Listing
}

func NewMemoryListingRepository() *MemoryListingRepository {
	return &MemoryListingRepository{listings: make(map[string]*entity.Listing)}
}

func (r *MemoryListingRepository) Put(listing *entity.Listing) {
	cp := *listing
	cp.Images = append([]string(nil), listing.Images...)
	r.mu.Lock()
	r.listings[listing.ID] = &cp
	r.mu.Unlock()
}

func (r *MemoryListingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listing, ok := r.listings[id]
	if !ok {
		return nil, errors.NotFound("Listing", nil)
	}
	cp := *listing
	cp.Images = append([]string(nil), listing.Images...)
	return &cp, nil
}
