package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/sma-electives-api/internal/models"
	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
)

const identityCachePrefix = "identity:email:"

type studentFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
}

// identityEntry caches negative lookups too.
type identityEntry struct {
	Found   bool           `json:"found"`
	Student models.Student `json:"student"`
}

// IdentityService looks students up by email through the lookup cache.
type IdentityService struct {
	students studentFinder
	cache    *CacheService
	group    singleflight.Group
	logger   *zap.Logger
}

// NewIdentityService constructs the identity service.
func NewIdentityService(students studentFinder, cache *CacheService, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{students: students, cache: cache, logger: logger}
}

// FindByEmail returns the student registered with email, or nil when none is.
func (s *IdentityService) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	key := identityCachePrefix + email

	var cached identityEntry
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		if !cached.Found {
			return nil, nil
		}
		return &cached.Student, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		loadCtx, cancel := sharedLoadContext(ctx)
		defer cancel()
		student, err := s.students.FindByEmail(loadCtx, email)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		entry := identityEntry{}
		if student != nil {
			entry = identityEntry{Found: true, Student: *student}
		}
		_ = s.cache.Set(loadCtx, key, entry, 0)
		return entry, nil
	})
	if err != nil {
		s.logger.Error("identity lookup failed", zap.Error(err))
		return nil, appErrors.Unavailable(err)
	}
	entry := v.(identityEntry)
	if !entry.Found {
		return nil, nil
	}
	student := entry.Student
	return &student, nil
}

// Invalidate drops every cached identity lookup.
func (s *IdentityService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, identityCachePrefix)
}
