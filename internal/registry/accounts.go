package registry

import (
	"fmt"
	"sync"

	"github.com/Shivanand-hulikatti/event-registry/internal/model"
)

// Accounts is the user directory keyed by normalized email.
type Accounts struct {
	mu    sync.RWMutex
	users map[string]model.User
	order []string
}

// NewAccounts constructs an empty directory.
func NewAccounts() *Accounts {
	return &Accounts{users: make(map[string]model.User)}
}

// Add stores u, failing with model.ErrDuplicateUser on an email collision.
func (a *Accounts) Add(u model.User) error {
	key := model.NormalizeEmail(u.Email)
	if key == "" {
		return fmt.Errorf("add user %s: email is required: %w", u.ID, model.ErrInvalidUser)
	}
	u.Email = key
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[key]; ok {
		return fmt.Errorf("add user %s: %w", key, model.ErrDuplicateUser)
	}
	a.users[key] = u
	a.order = append(a.order, key)
	return nil
}

// FindByEmail returns the account for email.
func (a *Accounts) FindByEmail(email string) (model.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if u, ok := a.users[model.NormalizeEmail(email)]; ok {
		return u, nil
	}
	return model.User{}, fmt.Errorf("user %s: %w", email, model.ErrNotFound)
}

// Remove deletes the account for email.
func (a *Accounts) Remove(email string) error {
	key := model.NormalizeEmail(email)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[key]; !ok {
		return fmt.Errorf("remove user %s: %w", email, model.ErrNotFound)
	}
	delete(a.users, key)
	for i, cur := range a.order {
		if cur == key {
			a.order = append(a.order[:i:i], a.order[i+1:]...)
			break
		}
	}
	return nil
}

// All returns every account in insertion order.
func (a *Accounts) All() []model.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.User, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, a.users[key])
	}
	return out
}

func (a *Accounts) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.users)
}

// ReplaceWith swaps this directory's contents for other's.
func (a *Accounts) ReplaceWith(other *Accounts) {
	other.mu.RLock()
	users := make(map[string]model.User, len(other.users))
	for k, u := range other.users {
		users[k] = u
	}
	order := append([]string(nil), other.order...)
	other.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.users = users
	a.order = order
}
