package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-electives-api/internal/dto"
	"github.com/noah-isme/sma-electives-api/internal/models"
	"github.com/noah-isme/sma-electives-api/internal/service"
	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
	"github.com/noah-isme/sma-electives-api/pkg/response"
)

type admissionService interface {
	Window() service.AdmissionWindow
	Validate(ctx context.Context, sub models.Submission) (models.Decision, error)
	Submit(ctx context.Context, sub models.Submission) (*service.SubmissionOutcome, error)
}

type catalogProvider interface {
	Catalog(ctx context.Context, level string) (*models.Catalog, error)
}

// EnrollmentHandler serves the student enrollment form.
type EnrollmentHandler struct {
	admission admissionService
	catalog   catalogProvider
	validator *validator.Validate
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(admission admissionService, catalog catalogProvider, validate *validator.Validate) *EnrollmentHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentHandler{admission: admission, catalog: catalog, validator: validate}
}

// Form godoc
// @Summary Enrollment form options
// @Description Classes, elective groups and general education electives of the open window
// @Tags Enrollment
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /enrollment/form [get]
func (h *EnrollmentHandler) Form(c *gin.Context) {
	window := h.admission.Window()
	catalog, err := h.catalog.Catalog(c.Request.Context(), window.Level)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewFormOptions(catalog, window.ProcessYear), nil)
}

// Validate godoc
// @Summary Dry-run a submission
// @Description Runs every enrollment rule without writing anything
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param payload body dto.SubmissionRequest true "Enrollment form"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /enrollment/validate [post]
func (h *EnrollmentHandler) Validate(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	decision, err := h.admission.Validate(c.Request.Context(), req.ToSubmission())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewDecisionResponse(decision), nil)
}

// Submit godoc
// @Summary Submit an enrollment
// @Description Validates, records and confirms an elective enrollment
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param payload body dto.SubmissionRequest true "Enrollment form"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /enrollment/submissions [post]
func (h *EnrollmentHandler) Submit(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	outcome, err := h.admission.Submit(c.Request.Context(), req.ToSubmission())
	if err != nil {
		response.Error(c, err)
		return
	}

	res := dto.NewSubmissionResponse(outcome.Decision, outcome.Admission, outcome.EmailSent, outcome.SubmittedAt)
	response.JSON(c, submissionStatus(outcome.Decision), res, nil)
}

func (h *EnrollmentHandler) bind(c *gin.Context) (dto.SubmissionRequest, bool) {
	var req dto.SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return req, false
	}
	return req, true
}

func submissionStatus(d models.Decision) int {
	switch {
	case d.Admitted():
		return http.StatusCreated
	case d.Rejection.Code == models.CodeAlreadyEnrolled:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}
