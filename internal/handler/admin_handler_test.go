package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-electives-api/internal/models"
	"github.com/noah-isme/sma-electives-api/internal/service"
	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
)

type fakeRoster struct {
	filter models.RosterFilter
	format string
	err    error
}

func (f *fakeRoster) List(_ context.Context, filter models.RosterFilter) ([]models.RosterEntry, *models.Pagination, error) {
	f.filter = filter
	if f.err != nil {
		return nil, nil, f.err
	}
	return []models.RosterEntry{{StudentRUN: "11222333-K", StudentName: "Ana Pérez"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (f *fakeRoster) Export(_ context.Context, filter models.RosterFilter, format string) (*service.ExportFile, error) {
	f.filter = filter
	f.format = format
	if format != service.ExportFormatCSV {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv, pdf or xlsx")
	}
	return &service.ExportFile{Filename: "inscripciones-2026.csv", ContentType: "text/csv; charset=utf-8", Content: []byte("RUN;Nombre\n")}, nil
}

func (f *fakeRoster) Capacity(context.Context) (*service.CapacitySummary, error) {
	return &service.CapacitySummary{ProcessYear: 2026, Level: models.LevelThird}, f.err
}

type fakeInvalidator struct {
	calls int
	err   error
}

func (f *fakeInvalidator) Invalidate(context.Context) error {
	f.calls++
	return f.err
}

func adminRouter(h *AdminHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/enrollments", h.Enrollments)
	r.GET("/admin/enrollments/export", h.Export)
	r.GET("/admin/capacity", h.Capacity)
	r.GET("/admin/metrics", h.Metrics)
	r.POST("/admin/cache/invalidate", h.InvalidateCache)
	return r
}

func TestAdminEnrollmentsParsesFilter(t *testing.T) {
	roster := &fakeRoster{}
	r := adminRouter(NewAdminHandler(roster, nil, nil))

	rec := doRequest(r, http.MethodGet, "/admin/enrollments?year=2025&classId=4&search=%20ana%20&page=2&pageSize=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RosterFilter{ProcessYear: 2025, ClassID: 4, Search: "ana", Page: 2, PageSize: 10}, roster.filter)
	env := decode(t, rec)
	assert.Equal(t, float64(1), env.Pagination["total_count"])
}

func TestAdminEnrollmentsRejectsBadQuery(t *testing.T) {
	r := adminRouter(NewAdminHandler(&fakeRoster{}, nil, nil))

	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/admin/enrollments?classId=abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/admin/enrollments?page=-1", nil).Code)
}

func TestAdminExport(t *testing.T) {
	roster := &fakeRoster{}
	r := adminRouter(NewAdminHandler(roster, nil, nil))

	rec := doRequest(r, http.MethodGet, "/admin/enrollments/export?format=CSV", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", roster.format)
	assert.Equal(t, `attachment; filename="inscripciones-2026.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "RUN;Nombre\n", rec.Body.String())

	rec = doRequest(r, http.MethodGet, "/admin/enrollments/export?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminCapacityAndMetrics(t *testing.T) {
	r := adminRouter(NewAdminHandler(&fakeRoster{}, service.NewMetricsService(), nil))

	rec := doRequest(r, http.MethodGet, "/admin/capacity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2026), decode(t, rec).Data["process_year"])

	rec = doRequest(r, http.MethodGet, "/admin/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec).Data, "emails_failed")
}

func TestAdminInvalidateCache(t *testing.T) {
	catalog, identity := &fakeInvalidator{}, &fakeInvalidator{}
	r := adminRouter(NewAdminHandler(&fakeRoster{}, nil, nil, catalog, identity))

	rec := doRequest(r, http.MethodPost, "/admin/cache/invalidate", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, catalog.calls)
	assert.Equal(t, 1, identity.calls)

	catalog.err = errors.New("redis down")
	rec = doRequest(r, http.MethodPost, "/admin/cache/invalidate", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1, identity.calls)
}
