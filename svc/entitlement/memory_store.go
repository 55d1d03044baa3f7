package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and local development.
// It mirrors the conditional-update semantics of the PostgreSQL store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Entitlement
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]*Entitlement)}
}

func (s *MemoryStore) Get(ctx context.Context, userID uuid.UUID) (*Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return ent.Clone(), nil
}

func (s *MemoryStore) GetBySubscriptionRef(ctx context.Context, ref string) (*Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref == "" {
		return nil, ErrNotFound
	}
	for _, ent := range s.records {
		if ent.ExternalSubscriptionRef == ref {
			return ent.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Upsert(ctx context.Context, ent *Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := ent.Clone()
	cp.UpdatedAt = time.Now().UTC()
	if existing, ok := s.records[ent.UserID]; ok {
		cp.CreatedAt = existing.CreatedAt
		cp.Version = existing.Version + 1
	} else {
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = cp.UpdatedAt
		}
		cp.Version = 1
	}
	s.records[ent.UserID] = cp

	ent.Version = cp.Version
	return nil
}

func (s *MemoryStore) UpdateIf(ctx context.Context, ent *Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[ent.UserID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != ent.Version {
		return ErrVersionConflict
	}

	cp := ent.Clone()
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	cp.Version = existing.Version + 1
	s.records[ent.UserID] = cp

	ent.Version = cp.Version
	return nil
}
