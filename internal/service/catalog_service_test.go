package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-electives-api/internal/models"
	"github.com/noah-isme/sma-electives-api/internal/repository"
	"github.com/noah-isme/sma-electives-api/pkg/cache"
	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
)

type countingCatalogRepo struct {
	catalog *models.Catalog
	err     error
	delay   time.Duration
	calls   int32
}

func (r *countingCatalogRepo) ListByLevel(ctx context.Context, level string) ([]models.ClassSection, error) {
	atomic.AddInt32(&r.calls, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.catalog.Classes, nil
}

type electiveRepoStub struct{ catalog *models.Catalog }

func (r electiveRepoStub) ListByLevel(context.Context, string) ([]models.Elective, error) {
	return r.catalog.Electives, nil
}

func (r electiveRepoStub) ListGEByLevel(context.Context, string) ([]models.GEElective, error) {
	return r.catalog.GEElectives, nil
}

func newMemoryCache(metrics *MetricsService) *CacheService {
	repo := repository.NewCacheRepository(cache.NewMemoryStore(), nil)
	return NewCacheService(repo, metrics, time.Minute, nil, true)
}

func TestCatalogServiceCachesLoads(t *testing.T) {
	classes := &countingCatalogRepo{catalog: testCatalog()}
	metrics := NewMetricsService()
	svc := NewCatalogService(classes, electiveRepoStub{catalog: testCatalog()}, newMemoryCache(metrics), nil)

	first, err := svc.Catalog(context.Background(), models.LevelThird)
	require.NoError(t, err)
	second, err := svc.Catalog(context.Background(), models.LevelThird)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&classes.calls))
	assert.Equal(t, first.Electives, second.Electives)
	assert.Len(t, second.GEElectives, 2)
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheHits)

	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.Catalog(context.Background(), models.LevelThird)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&classes.calls))
}

func TestCatalogServiceSharesConcurrentLoads(t *testing.T) {
	classes := &countingCatalogRepo{catalog: testCatalog(), delay: 50 * time.Millisecond}
	svc := NewCatalogService(classes, electiveRepoStub{catalog: testCatalog()}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Catalog(context.Background(), models.LevelThird)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Less(t, atomic.LoadInt32(&classes.calls), int32(8))
}

func TestCatalogServiceMapsLoadFailure(t *testing.T) {
	classes := &countingCatalogRepo{catalog: testCatalog(), err: errors.New("dial tcp: connection refused")}
	svc := NewCatalogService(classes, electiveRepoStub{catalog: testCatalog()}, nil, nil)

	_, err := svc.Catalog(context.Background(), models.LevelThird)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
}

func TestCatalogServiceLoadOutlivesCanceledCaller(t *testing.T) {
	classes := &countingCatalogRepo{catalog: testCatalog()}
	svc := NewCatalogService(classes, electiveRepoStub{catalog: testCatalog()}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	catalog, err := svc.Catalog(ctx, models.LevelThird)
	require.NoError(t, err)
	assert.Len(t, catalog.Classes, 2)
}

type countingStudentFinder struct {
	students map[string]models.Student
	err      error
	calls    int32
}

func (f *countingStudentFinder) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	atomic.AddInt32(&f.calls, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.students[email]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func TestIdentityServiceNormalizesAndCaches(t *testing.T) {
	finder := &countingStudentFinder{students: map[string]models.Student{
		anaEmail: {RUN: anaRUN, Email: anaEmail, FullName: "Ana Pérez", ClassID: 4},
	}}
	svc := NewIdentityService(finder, newMemoryCache(nil), nil)

	student, err := svc.FindByEmail(context.Background(), "  Ana.Perez@Estudiantes.ColegioTGS.cl ")
	require.NoError(t, err)
	require.NotNil(t, student)
	assert.Equal(t, anaRUN, student.RUN)

	student, err = svc.FindByEmail(context.Background(), anaEmail)
	require.NoError(t, err)
	require.NotNil(t, student)
	assert.Equal(t, int64(4), student.ClassID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&finder.calls))
}

func TestIdentityServiceCachesUnknownEmail(t *testing.T) {
	finder := &countingStudentFinder{students: map[string]models.Student{}}
	svc := NewIdentityService(finder, newMemoryCache(nil), nil)

	for i := 0; i < 3; i++ {
		student, err := svc.FindByEmail(context.Background(), "nadie@estudiantes.colegiotgs.cl")
		require.NoError(t, err)
		assert.Nil(t, student)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&finder.calls))

	require.NoError(t, svc.Invalidate(context.Background()))
	_, err := svc.FindByEmail(context.Background(), "nadie@estudiantes.colegiotgs.cl")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&finder.calls))
}

func TestIdentityServiceMapsStoreFailure(t *testing.T) {
	svc := NewIdentityService(&countingStudentFinder{err: errors.New("too many connections")}, nil, nil)

	student, err := svc.FindByEmail(context.Background(), anaEmail)
	assert.Nil(t, student)
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
}

func TestIdentityServiceLoadOutlivesCanceledCaller(t *testing.T) {
	finder := &countingStudentFinder{students: map[string]models.Student{
		anaEmail: {RUN: anaRUN, Email: anaEmail, FullName: "Ana Pérez", ClassID: 4},
	}}
	svc := NewIdentityService(finder, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	student, err := svc.FindByEmail(ctx, anaEmail)
	require.NoError(t, err)
	require.NotNil(t, student)
	assert.Equal(t, anaRUN, student.RUN)
}
