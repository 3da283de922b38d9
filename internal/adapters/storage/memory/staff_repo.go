package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"breast-screening-service/internal/domain/staff"
	"breast-screening-service/internal/ports/auth"
)

type staffRepo struct {
	mu   sync.RWMutex
	byID map[string]staff.Account
}

func NewStaffRepo() staff.Repository {
	return &staffRepo{
		byID: make(map[string]staff.Account),
	}
}

func (r *staffRepo) Create(ctx context.Context, a staff.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(a.ID) == "" {
		return errors.New("account id required")
	}
	if _, exists := r.byID[a.ID]; exists {
		return errors.New("account already exists")
	}
	for _, other := range r.byID {
		if other.Email == a.Email {
			return errors.New("email already in use")
		}
	}
	r.byID[a.ID] = a
	return nil
}

func (r *staffRepo) GetByID(ctx context.Context, id string) (staff.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return staff.Account{}, staff.ErrNotFound
	}
	return a, nil
}

func (r *staffRepo) GetByEmail(ctx context.Context, email string) (staff.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return staff.Account{}, staff.ErrNotFound
}

func (r *staffRepo) ListByRole(ctx context.Context, role auth.Role) ([]staff.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]staff.Account, 0)
	for _, a := range r.byID {
		if a.Role == role {
			out = append(out, a)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (r *staffRepo) Update(ctx context.Context, a staff.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID]; !exists {
		return staff.ErrNotFound
	}
	r.byID[a.ID] = a
	return nil
}

func (r *staffRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return staff.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *staffRepo) CountByRole(ctx context.Context, role auth.Role) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, a := range r.byID {
		if a.Role == role {
			n++
		}
	}
	return n, nil
}
