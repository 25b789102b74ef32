package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-electives-api/internal/middleware"
	"github.com/noah-isme/sma-electives-api/internal/models"
	"github.com/noah-isme/sma-electives-api/internal/service"
	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
	"github.com/noah-isme/sma-electives-api/pkg/response"
)

type rosterService interface {
	List(ctx context.Context, filter models.RosterFilter) ([]models.RosterEntry, *models.Pagination, error)
	Export(ctx context.Context, filter models.RosterFilter, format string) (*service.ExportFile, error)
	Capacity(ctx context.Context) (*service.CapacitySummary, error)
}

type metricsSnapshotter interface {
	Snapshot() models.SystemMetrics
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// AdminHandler serves the staff views of the enrollment process.
type AdminHandler struct {
	roster  rosterService
	metrics metricsSnapshotter
	caches  []cacheInvalidator
	logger  *zap.Logger
}

// NewAdminHandler constructs the handler. caches are flushed by InvalidateCache.
func NewAdminHandler(roster rosterService, metrics metricsSnapshotter, logger *zap.Logger, caches ...cacheInvalidator) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{roster: roster, metrics: metrics, caches: caches, logger: logger}
}

// Enrollments godoc
// @Summary List enrollments
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param year query int false "Process year, defaults to the open window"
// @Param classId query int false "Class section ID"
// @Param search query string false "Name, RUN or email fragment"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/enrollments [get]
func (h *AdminHandler) Enrollments(c *gin.Context) {
	filter, err := parseRosterFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, pagination, err := h.roster.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Export godoc
// @Summary Export enrollments
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param format query string true "csv, pdf or xlsx"
// @Param year query int false "Process year"
// @Param classId query int false "Class section ID"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/enrollments/export [get]
func (h *AdminHandler) Export(c *gin.Context) {
	filter, err := parseRosterFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", service.ExportFormatCSV)))
	file, err := h.roster.Export(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims, ok := middleware.CurrentUser(c); ok {
		h.logger.Info("roster export requested", zap.String("user_id", claims.UserID), zap.String("format", format))
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// Capacity godoc
// @Summary Capacity usage
// @Description Enrolled and remaining places per elective and per general education elective and class
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/capacity [get]
func (h *AdminHandler) Capacity(c *gin.Context) {
	summary, err := h.roster.Capacity(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Metrics godoc
// @Summary Service metrics summary
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/metrics [get]
func (h *AdminHandler) Metrics(c *gin.Context) {
	if h.metrics == nil {
		response.Error(c, appErrors.ErrUnavailable)
		return
	}
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// InvalidateCache godoc
// @Summary Flush lookup caches
// @Description Drops cached catalog and identity lookups after the school data changed
// @Tags Admin
// @Security BearerAuth
// @Success 204
// @Router /admin/cache/invalidate [post]
func (h *AdminHandler) InvalidateCache(c *gin.Context) {
	for _, cache := range h.caches {
		if err := cache.Invalidate(c.Request.Context()); err != nil {
			response.Error(c, appErrors.Unavailable(err))
			return
		}
	}
	response.NoContent(c)
}

func parseRosterFilter(c *gin.Context) (models.RosterFilter, error) {
	filter := models.RosterFilter{Search: strings.TrimSpace(c.Query("search"))}
	ints := []struct {
		name string
		dest *int
	}{
		{"year", &filter.ProcessYear},
		{"page", &filter.Page},
		{"pageSize", &filter.PageSize},
	}
	for _, p := range ints {
		raw := strings.TrimSpace(c.Query(p.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return filter, appErrors.Clone(appErrors.ErrValidation, p.name+" must be a positive integer")
		}
		*p.dest = v
	}
	if raw := strings.TrimSpace(c.Query("classId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, appErrors.Clone(appErrors.ErrValidation, "classId must be a positive integer")
		}
		filter.ClassID = id
	}
	return filter, nil
}
