package repository

import (
	"context"
	"sync"

	"github.com/noah-isme/leadflow-api/internal/models"
)

// MemoryLeadRepository keeps the collection in process memory. Used for demos and tests.
type MemoryLeadRepository struct {
	mu    sync.Mutex
	leads []models.Lead
	saves int
}

// NewMemoryLeadRepository seeds the repository with an optional initial collection.
func NewMemoryLeadRepository(initial ...models.Lead) *MemoryLeadRepository {
	return &MemoryLeadRepository{leads: cloneLeads(initial)}
}

// Load returns a copy of the stored collection.
func (r *MemoryLeadRepository) Load(ctx context.Context) ([]models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneLeads(r.leads), nil
}

// Save replaces the stored collection.
func (r *MemoryLeadRepository) Save(ctx context.Context, leads []models.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads = cloneLeads(leads)
	r.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (r *MemoryLeadRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func cloneLeads(leads []models.Lead) []models.Lead {
	out := make([]models.Lead, len(leads))
	for i, l := range leads {
		out[i] = l.Clone()
	}
	return out
}
