package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/sma-electives-api/internal/models"
	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
)

const catalogCachePrefix = "catalog:"

type classLister interface {
	ListByLevel(ctx context.Context, level string) ([]models.ClassSection, error)
}

type electiveLister interface {
	ListByLevel(ctx context.Context, level string) ([]models.Elective, error)
	ListGEByLevel(ctx context.Context, level string) ([]models.GEElective, error)
}

// CatalogService serves the class and elective catalog of a level from the
// lookup cache. Entries may be stale for up to the cache TTL.
type CatalogService struct {
	classes   classLister
	electives electiveLister
	cache     *CacheService
	group     singleflight.Group
	logger    *zap.Logger
}

// NewCatalogService constructs the catalog service.
func NewCatalogService(classes classLister, electives electiveLister, cache *CacheService, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{classes: classes, electives: electives, cache: cache, logger: logger}
}

// Catalog returns the offer of level, loading it from the store on a cache miss.
// Concurrent misses for the same level share one load.
func (s *CatalogService) Catalog(ctx context.Context, level string) (*models.Catalog, error) {
	key := catalogCachePrefix + level

	var cached models.Catalog
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		loadCtx, cancel := sharedLoadContext(ctx)
		defer cancel()
		catalog, err := s.load(loadCtx, level)
		if err != nil {
			return nil, err
		}
		_ = s.cache.Set(loadCtx, key, catalog, 0)
		return catalog, nil
	})
	if err != nil {
		return nil, appErrors.Unavailable(err)
	}
	return v.(*models.Catalog), nil
}

func (s *CatalogService) load(ctx context.Context, level string) (*models.Catalog, error) {
	catalog := &models.Catalog{Level: level}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		classes, err := s.classes.ListByLevel(gctx, level)
		if err != nil {
			return fmt.Errorf("load classes: %w", err)
		}
		catalog.Classes = classes
		return nil
	})
	g.Go(func() error {
		electives, err := s.electives.ListByLevel(gctx, level)
		if err != nil {
			return fmt.Errorf("load electives: %w", err)
		}
		catalog.Electives = electives
		return nil
	})
	g.Go(func() error {
		ge, err := s.electives.ListGEByLevel(gctx, level)
		if err != nil {
			return fmt.Errorf("load ge electives: %w", err)
		}
		catalog.GEElectives = ge
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("catalog load failed", zap.String("enrollment_level", level), zap.Error(err))
		return nil, err
	}
	s.logger.Debug("catalog loaded",
		zap.String("enrollment_level", level),
		zap.Int("classes", len(catalog.Classes)),
		zap.Int("electives", len(catalog.Electives)),
		zap.Int("ge_electives", len(catalog.GEElectives)),
	)
	return catalog, nil
}

// Invalidate drops every cached catalog.
func (s *CatalogService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, catalogCachePrefix)
}
