package repository

import (
	"context"
	"sync"
	"time"

	"pawsit/internal/models"
)

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryReferenceCache keeps catalog entities in process memory with a TTL.
type MemoryReferenceCache struct {
	offerings sync.Map
	sitters   sync.Map
	ttl       time.Duration
}

func NewMemoryReferenceCache(ttl time.Duration) *MemoryReferenceCache {
	return &MemoryReferenceCache{ttl: ttl}
}

func (r *MemoryReferenceCache) GetOffering(ctx context.Context, id int64) (*models.ServiceOffering, error) {
	val, ok := r.offerings.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(*cacheEntry)
	if entry.expired(time.Now()) {
		r.offerings.Delete(id)
		return nil, nil
	}
	return entry.value.(*models.ServiceOffering), nil
}

func (r *MemoryReferenceCache) SetOffering(ctx context.Context, offering *models.ServiceOffering) error {
	r.offerings.Store(offering.ID, &cacheEntry{value: offering, expiresAt: time.Now().Add(r.ttl)})
	return nil
}

func (r *MemoryReferenceCache) GetSitter(ctx context.Context, id int64) (*models.Sitter, error) {
	val, ok := r.sitters.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(*cacheEntry)
	if entry.expired(time.Now()) {
		r.sitters.Delete(id)
		return nil, nil
	}
	return entry.value.(*models.Sitter), nil
}

func (r *MemoryReferenceCache) SetSitter(ctx context.Context, sitter *models.Sitter) error {
	r.sitters.Store(sitter.ID, &cacheEntry{value: sitter, expiresAt: time.Now().Add(r.ttl)})
	return nil
}

func (r *MemoryReferenceCache) InvalidateOffering(ctx context.Context, id int64) error {
	r.offerings.Delete(id)
	return nil
}

func (r *MemoryReferenceCache) InvalidateSitter(ctx context.Context, id int64) error {
	r.sitters.Delete(id)
	return nil
}
