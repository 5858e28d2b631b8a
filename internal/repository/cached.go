package repository

import (
	"context"

	"pawsit/internal/domain"
	"pawsit/internal/models"

	"github.com/rs/zerolog"
)

// CachedRepository decorates a Repository with a reference cache for the
// read-mostly catalog lookups. Cache failures are logged and degrade to the
// database; they never fail the lookup.
type CachedRepository struct {
	domain.Repository
	cache  domain.ReferenceCache
	logger *zerolog.Logger
}

func NewCachedRepository(repo domain.Repository, cache domain.ReferenceCache, logger *zerolog.Logger) *CachedRepository {
	return &CachedRepository{Repository: repo, cache: cache, logger: logger}
}

func (r *CachedRepository) GetOffering(ctx context.Context, id int64) (*models.ServiceOffering, error) {
	if cached, err := r.cache.GetOffering(ctx, id); err != nil {
		r.logger.Debug().Err(err).Int64("offering_id", id).Msg("offering cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	offering, err := r.Repository.GetOffering(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetOffering(ctx, offering); err != nil {
		r.logger.Debug().Err(err).Int64("offering_id", id).Msg("offering cache write failed")
	}
	return offering, nil
}

func (r *CachedRepository) GetSitter(ctx context.Context, id int64) (*models.Sitter, error) {
	if cached, err := r.cache.GetSitter(ctx, id); err != nil {
		r.logger.Debug().Err(err).Int64("sitter_id", id).Msg("sitter cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	sitter, err := r.Repository.GetSitter(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetSitter(ctx, sitter); err != nil {
		r.logger.Debug().Err(err).Int64("sitter_id", id).Msg("sitter cache write failed")
	}
	return sitter, nil
}
