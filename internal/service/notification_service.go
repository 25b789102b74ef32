package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-electives-api/internal/models"
	"github.com/noah-isme/sma-electives-api/pkg/jobs"
	"github.com/noah-isme/sma-electives-api/pkg/mailer"
)

// ConfirmationTimeLayout renders timestamps as day-month-year hour:minute:second.
const ConfirmationTimeLayout = "02-01-2006 15:04:05"

//go:embed templates/confirmation.*
var confirmationFS embed.FS

var templateFuncs = map[string]interface{}{
	"inc": func(i int) int { return i + 1 },
}

var (
	confirmationHTML = htmltemplate.Must(htmltemplate.New("confirmation.html").Funcs(templateFuncs).ParseFS(confirmationFS, "templates/confirmation.html"))
	confirmationText = texttemplate.Must(texttemplate.New("confirmation.txt").Funcs(templateFuncs).ParseFS(confirmationFS, "templates/confirmation.txt"))
)

type mailSender interface {
	Enabled() bool
	Send(ctx context.Context, msg mailer.Message) error
}

type mailRetryQueue interface {
	Enqueue(msg mailer.Message) (string, error)
}

// NotificationService sends admission confirmations. Delivery problems are
// reported as false and never fail the caller.
type NotificationService struct {
	mailer   mailSender
	queue    mailRetryQueue
	location *time.Location
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationService constructs the notification service. A nil location uses UTC.
func NewNotificationService(m mailSender, location *time.Location, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{mailer: m, location: location, metrics: metrics, logger: logger}
}

// UseRetryQueue hands failed deliveries to q for later attempts.
func (s *NotificationService) UseRetryQueue(q mailRetryQueue) {
	s.queue = q
}

// SendConfirmation composes and sends the confirmation email and reports
// whether this attempt delivered it.
func (s *NotificationService) SendConfirmation(ctx context.Context, c models.Confirmation) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("confirmation email panicked", zap.Any("panic", r))
			sent = false
		}
		s.metrics.RecordNotification(sent)
	}()

	if s.mailer == nil || !s.mailer.Enabled() {
		s.logger.Warn("confirmation email skipped, mailer disabled", zap.String("run", c.RUN))
		return false
	}

	msg, err := s.Compose(c)
	if err != nil {
		s.logger.Warn("compose confirmation email", zap.String("run", c.RUN), zap.Error(err))
		return false
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("send confirmation email", zap.String("run", c.RUN), zap.Error(err))
		s.scheduleRetry(msg)
		return false
	}
	return true
}

// Deliver is the retry queue handler.
func (s *NotificationService) Deliver(ctx context.Context, job jobs.Job[mailer.Message]) error {
	if err := s.mailer.Send(ctx, job.Payload); err != nil {
		return err
	}
	s.logger.Info("confirmation email delivered on retry", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

func (s *NotificationService) scheduleRetry(msg mailer.Message) {
	if s.queue == nil {
		return
	}
	id, err := s.queue.Enqueue(msg)
	if err != nil {
		s.logger.Warn("queue confirmation retry", zap.Error(err))
		return
	}
	s.logger.Info("confirmation retry queued", zap.String("job_id", id))
}

// Compose renders the confirmation email for c.
func (s *NotificationService) Compose(c models.Confirmation) (mailer.Message, error) {
	data := struct {
		models.Confirmation
		Timestamp string
	}{Confirmation: c, Timestamp: c.SubmittedAt.In(s.location).Format(ConfirmationTimeLayout)}

	var html, text bytes.Buffer
	if err := confirmationHTML.Execute(&html, data); err != nil {
		return mailer.Message{}, fmt.Errorf("render html body: %w", err)
	}
	if err := confirmationText.Execute(&text, data); err != nil {
		return mailer.Message{}, fmt.Errorf("render text body: %w", err)
	}

	return mailer.Message{
		To:      c.Email,
		Subject: fmt.Sprintf("Confirmación de Inscripción de Electivos %d", c.ProcessYear),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
