package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"synapse-project-api/internal/apperrors"
	"synapse-project-api/internal/models"
)

// MemoryRepository keeps projects in process memory. It stores and returns
// clones so callers never share state with the store.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*models.Project
	byName map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[uuid.UUID]*models.Project),
		byName: make(map[string]uuid.UUID),
	}
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, apperrors.ErrNotFound)
	}
	return p.Clone(), nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]*models.Project, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p.Clone())
	}
	r.mu.RUnlock()

	sortByUpdatedDesc(out)
	return out, nil
}

// Add checks and inserts under one write lock, so concurrent adds of the
// same name resolve to exactly one winner.
func (r *MemoryRepository) Add(ctx context.Context, p *models.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[p.Name()]; taken {
		return fmt.Errorf("project name %q: %w", p.Name(), apperrors.ErrConflict)
	}
	if _, taken := r.byID[p.ID()]; taken {
		return fmt.Errorf("project id %s: %w", p.ID(), apperrors.ErrConflict)
	}
	r.byID[p.ID()] = p.Clone()
	r.byName[p.Name()] = p.ID()
	return nil
}

func (r *MemoryRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error { return ctx.Err() }

func (r *MemoryRepository) Close() error { return nil }

// sortByUpdatedDesc orders newest first. Ties fall back to creation time and
// then id so the order is stable across calls.
func sortByUpdatedDesc(ps []*models.Project) {
	slices.SortStableFunc(ps, func(a, b *models.Project) int {
		if c := b.UpdatedAt().Compare(a.UpdatedAt()); c != 0 {
			return c
		}
		if c := b.CreatedAt().Compare(a.CreatedAt()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID().String(), b.ID().String())
	})
}

var _ ProjectStore = (*MemoryRepository)(nil)
