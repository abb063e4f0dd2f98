package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// MemoryRegistry implements Registry using in-memory storage
type MemoryRegistry struct {
	logger *zap.Logger
	mu     sync.RWMutex
	metas  map[string]*Meta
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates a new in-memory session registry
func NewMemoryRegistry(logger *zap.Logger) *MemoryRegistry {
	return &MemoryRegistry{
		logger: logger.Named("session.registry.memory"),
		metas:  make(map[string]*Meta),
	}
}

// Register implements Registry.Register
func (r *MemoryRegistry) Register(_ context.Context, meta *Meta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.metas[meta.ID]; exists {
		return fmt.Errorf("%w: %s", ErrSessionExists, meta.ID)
	}
	r.metas[meta.ID] = meta
	return nil
}

// Get implements Registry.Get
func (r *MemoryRegistry) Get(_ context.Context, id string) (*Meta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.metas[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return meta, nil
}

// Unregister implements Registry.Unregister
func (r *MemoryRegistry) Unregister(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.metas[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.metas, id)
	return nil
}

// List implements Registry.List
func (r *MemoryRegistry) List(_ context.Context) ([]*Meta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metas := make([]*Meta, 0, len(r.metas))
	for _, meta := range r.metas {
		metas = append(metas, meta)
	}
	return metas, nil
}
