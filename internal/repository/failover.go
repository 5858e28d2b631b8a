package repository

import (
	"context"
	"sync/atomic"
	"time"

	"pawsit/internal/domain"
	"pawsit/internal/models"

	"github.com/rs/zerolog"
)

// FailoverReferenceCache serves from the primary cache until it fails, then
// falls back to the secondary and probes the primary once a minute.
type FailoverReferenceCache struct {
	primary   domain.ReferenceCache
	fallback  domain.ReferenceCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverReferenceCache(primary, fallback domain.ReferenceCache, logger *zerolog.Logger) *FailoverReferenceCache {
	return &FailoverReferenceCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverReferenceCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary reference cache failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverReferenceCache) shouldRetryPrimary() bool {
	return r.isDown.Load() && time.Since(r.lastCheck) > time.Minute
}

func (r *FailoverReferenceCache) GetOffering(ctx context.Context, id int64) (*models.ServiceOffering, error) {
	if !r.isDown.Load() {
		offering, err := r.primary.GetOffering(ctx, id)
		if err == nil {
			return offering, nil
		}
		r.markDown(err)
	}

	if r.shouldRetryPrimary() {
		offering, err := r.primary.GetOffering(ctx, id)
		if err == nil {
			r.isDown.Store(false)
			return offering, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetOffering(ctx, id)
}

func (r *FailoverReferenceCache) SetOffering(ctx context.Context, offering *models.ServiceOffering) error {
	if !r.isDown.Load() {
		if err := r.primary.SetOffering(ctx, offering); err != nil {
			r.markDown(err)
		}
	}
	return r.fallback.SetOffering(ctx, offering)
}

func (r *FailoverReferenceCache) GetSitter(ctx context.Context, id int64) (*models.Sitter, error) {
	if !r.isDown.Load() {
		sitter, err := r.primary.GetSitter(ctx, id)
		if err == nil {
			return sitter, nil
		}
		r.markDown(err)
	}

	if r.shouldRetryPrimary() {
		sitter, err := r.primary.GetSitter(ctx, id)
		if err == nil {
			r.isDown.Store(false)
			return sitter, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetSitter(ctx, id)
}

func (r *FailoverReferenceCache) SetSitter(ctx context.Context, sitter *models.Sitter) error {
	if !r.isDown.Load() {
		if err := r.primary.SetSitter(ctx, sitter); err != nil {
			r.markDown(err)
		}
	}
	return r.fallback.SetSitter(ctx, sitter)
}

func (r *FailoverReferenceCache) InvalidateOffering(ctx context.Context, id int64) error {
	if !r.isDown.Load() {
		if err := r.primary.InvalidateOffering(ctx, id); err != nil {
			r.markDown(err)
		}
	}
	return r.fallback.InvalidateOffering(ctx, id)
}

func (r *FailoverReferenceCache) InvalidateSitter(ctx context.Context, id int64) error {
	if !r.isDown.Load() {
		if err := r.primary.InvalidateSitter(ctx, id); err != nil {
			r.markDown(err)
		}
	}
	return r.fallback.InvalidateSitter(ctx, id)
}
