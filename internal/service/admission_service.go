package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-electives-api/internal/models"
	"github.com/noah-isme/sma-electives-api/internal/repository"
	"github.com/noah-isme/sma-electives-api/pkg/database"
	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
)

const admitAttempts = 3

type enrollmentLedger interface {
	repository.LedgerReader
	Admit(ctx context.Context, params repository.AdmissionParams, check repository.AdmissionCheck) (models.Decision, error)
}

type confirmationSender interface {
	SendConfirmation(ctx context.Context, c models.Confirmation) bool
}

// AdmissionWindow is the process year and level submissions are evaluated against.
type AdmissionWindow struct {
	ProcessYear int
	Level       string
}

// SubmissionOutcome is the result of a submission.
type SubmissionOutcome struct {
	Decision    models.Decision
	Admission   *models.Admission
	EmailSent   bool
	SubmittedAt time.Time
}

// AdmissionService validates submissions and admits them atomically.
type AdmissionService struct {
	engine   *RulesEngine
	ledger   enrollmentLedger
	notifier confirmationSender
	window   AdmissionWindow
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewAdmissionService constructs the admission service.
func NewAdmissionService(engine *RulesEngine, ledger enrollmentLedger, notifier confirmationSender, window AdmissionWindow, metrics *MetricsService, logger *zap.Logger) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionService{
		engine:   engine,
		ledger:   ledger,
		notifier: notifier,
		window:   window,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Window returns the open enrollment window.
func (s *AdmissionService) Window() AdmissionWindow {
	return s.window
}

// Validate runs every rule read-only. Nothing is written.
func (s *AdmissionService) Validate(ctx context.Context, sub models.Submission) (models.Decision, error) {
	_, decision, err := s.engine.Evaluate(ctx, s.scoped(sub), s.ledger)
	if err != nil {
		return models.Decision{}, s.fail(err, sub)
	}
	return decision, nil
}

// Submit evaluates sub and, when every rule passes, writes its enrollment rows
// and sends the confirmation email. Rejections are returned in the outcome with
// a nil error.
func (s *AdmissionService) Submit(ctx context.Context, sub models.Submission) (*SubmissionOutcome, error) {
	start := s.now()
	sub = s.scoped(sub)

	ev, decision, err := s.engine.Prepare(ctx, sub)
	if err != nil {
		return nil, s.fail(err, sub)
	}
	if !decision.Admitted() {
		return s.rejected(decision, ev, start), nil
	}

	params := repository.AdmissionParams{
		StudentRUN:   ev.Submission.RUN,
		ClassID:      ev.Class.ID,
		GEElectiveID: ev.GEElective.ID,
		ProcessYear:  ev.Submission.ProcessYear,
		AdmittedAt:   start.UTC(),
	}
	for i, elective := range ev.Electives {
		params.ElectiveIDs[i] = elective.ID
	}

	check := func(ctx context.Context, ledger repository.LedgerReader) (models.Decision, error) {
		return s.engine.CheckLedger(ctx, ev, ledger)
	}
	for attempt := 1; ; attempt++ {
		decision, err = s.ledger.Admit(ctx, params, check)
		if err == nil || !database.IsRetryable(err) || attempt == admitAttempts {
			break
		}
		s.logger.Warn("admission transaction conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}
	if err != nil {
		return nil, s.fail(err, sub)
	}
	if !decision.Admitted() {
		return s.rejected(decision, ev, start), nil
	}

	admission := ev.Admission()
	admission.AdmittedAt = params.AdmittedAt
	s.metrics.RecordSubmission("", s.now().Sub(start))
	s.logger.Info("enrollment admitted",
		zap.String("run", params.StudentRUN),
		zap.Int64("class_id", params.ClassID),
		zap.Int64s("elective_ids", params.ElectiveIDs[:]),
		zap.Int64("ge_elective_id", params.GEElectiveID),
	)

	sent := false
	if s.notifier != nil {
		sent = s.notifier.SendConfirmation(ctx, models.Confirmation{
			Name:        ev.Submission.Name,
			RUN:         ev.Submission.RUN,
			Email:       ev.Submission.Email,
			ClassName:   ev.Class.Name,
			Electives:   ev.Submission.Electives(),
			GEElective:  ev.Submission.GEElective,
			ProcessYear: ev.Submission.ProcessYear,
			SubmittedAt: params.AdmittedAt,
		})
	}

	return &SubmissionOutcome{
		Decision:    decision,
		Admission:   &admission,
		EmailSent:   sent,
		SubmittedAt: params.AdmittedAt,
	}, nil
}

func (s *AdmissionService) scoped(sub models.Submission) models.Submission {
	sub.ProcessYear = s.window.ProcessYear
	sub.Level = s.window.Level
	return sub
}

func (s *AdmissionService) rejected(decision models.Decision, ev *Evaluation, start time.Time) *SubmissionOutcome {
	s.metrics.RecordSubmission(decision.Rejection.Code, s.now().Sub(start))
	s.logger.Info("enrollment rejected",
		zap.String("run", ev.Submission.RUN),
		zap.String("rule", string(decision.Rejection.Rule)),
		zap.String("code", string(decision.Rejection.Code)),
		zap.Int("which", decision.Rejection.Which),
	)
	return &SubmissionOutcome{Decision: decision, SubmittedAt: start.UTC()}
}

// fail logs err and maps it to a client-safe error. Invalid selections and
// catalog problems keep their error; everything else is reported as a transient
// outage.
func (s *AdmissionService) fail(err error, sub models.Submission) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && errors.Is(appErr, appErrors.ErrInvalidSelection) {
		s.logger.Info("invalid elective selection", zap.String("run", sub.RUN), zap.Error(err))
		s.metrics.RecordSubmissionError(appErr.Code)
		return appErr
	}
	if errors.As(err, &appErr) && errors.Is(appErr, appErrors.ErrCatalogResolution) {
		s.logger.Error("catalog resolution failed", zap.String("run", sub.RUN), zap.Error(err))
		s.metrics.RecordSubmissionError(appErr.Code)
		return appErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	s.logger.Error("enrollment infrastructure failure", zap.String("run", sub.RUN), zap.Error(err))
	s.metrics.RecordSubmissionError(appErrors.ErrUnavailable.Code)
	if errors.As(err, &appErr) && errors.Is(appErr, appErrors.ErrUnavailable) {
		return appErr
	}
	return appErrors.Unavailable(err)
}
