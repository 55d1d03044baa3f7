package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-memory Directory for tests and local development.
type MemoryDirectory struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]User
	byEmail map[string]User
}

// NewMemoryDirectory returns a directory pre-populated with the given users.
func NewMemoryDirectory(users ...User) *MemoryDirectory {
	d := &MemoryDirectory{
		byID:    make(map[uuid.UUID]User, len(users)),
		byEmail: make(map[string]User, len(users)),
	}
	for _, u := range users {
		d.Add(u)
	}
	return d
}

// Add registers a user, replacing any previous entry.
func (d *MemoryDirectory) Add(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[u.ID] = u
	if u.Email != "" {
		d.byEmail[strings.ToLower(u.Email)] = u
	}
}

func (d *MemoryDirectory) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (d *MemoryDirectory) UserByEmail(ctx context.Context, email string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}
