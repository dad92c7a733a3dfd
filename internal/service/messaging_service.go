package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/leadflow-api/internal/models"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
	"github.com/noah-isme/leadflow-api/pkg/jobs"
)

// CustomTemplateKey marks a message whose body is supplied by the caller.
const CustomTemplateKey = "custom"

const messageJobType = "lead_message"

// DefaultMessageTemplates is the built-in template catalogue.
var DefaultMessageTemplates = []models.MessageTemplate{
	{Key: "welcome", Name: "Welcome Message", Body: "Hi {{name}}, welcome to our software training institute!"},
	{Key: "followup", Name: "Follow-up Message", Body: "Hi {{name}}, how was your experience with the demo session?"},
	{Key: "reminder", Name: "Class Reminder", Body: "Hi {{name}}, reminder for your upcoming class tomorrow!"},
	{Key: "admission", Name: "Admission Details", Body: "Hi {{name}}, here are your admission details for {{course}}."},
}

// MessageSender delivers one composed message.
type MessageSender interface {
	Send(ctx context.Context, msg models.ComposedMessage) error
}

// LogMessageSender writes messages to the log instead of a gateway.
type LogMessageSender struct {
	logger *zap.Logger
}

// NewLogMessageSender constructs a LogMessageSender.
func NewLogMessageSender(logger *zap.Logger) *LogMessageSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMessageSender{logger: logger}
}

// Send logs the message.
func (s *LogMessageSender) Send(ctx context.Context, msg models.ComposedMessage) error {
	s.logger.Info("message sent",
		zap.String("lead_id", msg.LeadID),
		zap.String("phone_number", msg.PhoneNumber),
		zap.String("body", msg.Body))
	return nil
}

type leadReader interface {
	Get(user models.User, id string) (*models.Lead, error)
}

type messageJob struct {
	Template string
	Message  models.ComposedMessage
}

// MessageRequest selects a template (or a custom body) and its recipients.
type MessageRequest struct {
	Template string
	Body     string
	LeadIDs  []string
}

// MessagingServiceParams groups constructor dependencies.
type MessagingServiceParams struct {
	Leads     leadReader
	Sender    MessageSender
	Metrics   *MetricsService
	Logger    *zap.Logger
	Queue     jobs.QueueConfig
	Templates []models.MessageTemplate
}

// MessagingService resolves templates per lead and delivers them through a job queue.
type MessagingService struct {
	leads     leadReader
	sender    MessageSender
	metrics   *MetricsService
	logger    *zap.Logger
	queue     *jobs.Queue
	templates []models.MessageTemplate
	byKey     map[string]models.MessageTemplate
}

// NewMessagingService constructs the service and its delivery queue. Call Start before Send.
func NewMessagingService(params MessagingServiceParams) *MessagingService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sender := params.Sender
	if sender == nil {
		sender = NewLogMessageSender(logger)
	}
	templates := params.Templates
	if len(templates) == 0 {
		templates = DefaultMessageTemplates
	}
	s := &MessagingService{
		leads:     params.Leads,
		sender:    sender,
		metrics:   params.Metrics,
		logger:    logger,
		templates: append([]models.MessageTemplate(nil), templates...),
		byKey:     make(map[string]models.MessageTemplate, len(templates)),
	}
	for _, t := range s.templates {
		s.byKey[t.Key] = t
	}

	qcfg := params.Queue
	if qcfg.Logger == nil {
		qcfg.Logger = logger
	}
	qcfg.OnResult = s.record
	s.queue = jobs.NewQueue("messages", s.deliver, qcfg)
	return s
}

// Start launches delivery workers.
func (s *MessagingService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for delivery workers to exit.
func (s *MessagingService) Stop() {
	s.queue.Stop()
}

// Templates lists the catalogue in display order.
func (s *MessagingService) Templates() []models.MessageTemplate {
	out := make([]models.MessageTemplate, len(s.templates))
	copy(out, s.templates)
	return out
}

// Compose resolves the named template for every lead, in lead order.
func (s *MessagingService) Compose(key string, leads []models.Lead) ([]models.ComposedMessage, error) {
	t, ok := s.byKey[key]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown template %q", key))
	}
	return resolveTemplate(t.Body, leads), nil
}

// resolveTemplate substitutes {{name}} and {{course}} per lead.
func resolveTemplate(body string, leads []models.Lead) []models.ComposedMessage {
	out := make([]models.ComposedMessage, 0, len(leads))
	for _, l := range leads {
		r := strings.NewReplacer("{{name}}", l.StudentName, "{{course}}", l.CourseSelected)
		out = append(out, models.ComposedMessage{
			LeadID:      l.ID,
			StudentName: l.StudentName,
			PhoneNumber: l.PhoneNumber,
			Body:        r.Replace(body),
		})
	}
	return out
}

// Preview composes the request for the leads the user can see. Missing ids are skipped.
func (s *MessagingService) Preview(user models.User, req MessageRequest) ([]models.ComposedMessage, []string, error) {
	key, body, err := s.resolveBody(req)
	if err != nil {
		return nil, nil, err
	}
	leads, skipped := s.recipients(user, req.LeadIDs)
	s.logger.Debug("message preview", zap.String("template", key), zap.Int("recipients", len(leads)))
	return resolveTemplate(body, leads), skipped, nil
}

// Send composes the request and enqueues one delivery job per recipient.
func (s *MessagingService) Send(ctx context.Context, user models.User, req MessageRequest) (*models.DispatchResult, error) {
	key, body, err := s.resolveBody(req)
	if err != nil {
		return nil, err
	}
	leads, skipped := s.recipients(user, req.LeadIDs)
	result := &models.DispatchResult{Skipped: skipped}
	for _, msg := range resolveTemplate(body, leads) {
		job := jobs.Job{Type: messageJobType, Payload: messageJob{Template: key, Message: msg}}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.logger.Error("enqueue message failed", zap.String("lead_id", msg.LeadID), zap.Error(err))
			return result, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "message queue unavailable")
		}
		result.Queued++
	}
	s.logger.Info("messages queued", zap.String("template", key), zap.String("actor", user.Username),
		zap.Int("queued", result.Queued), zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func (s *MessagingService) resolveBody(req MessageRequest) (string, string, error) {
	if len(req.LeadIDs) == 0 {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "lead_ids must not be empty")
	}
	key := strings.TrimSpace(req.Template)
	if key == "" || key == CustomTemplateKey {
		body := strings.TrimSpace(req.Body)
		if body == "" {
			return "", "", appErrors.Clone(appErrors.ErrValidation, "template or body is required")
		}
		return CustomTemplateKey, body, nil
	}
	t, ok := s.byKey[key]
	if !ok {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown template %q", key))
	}
	return t.Key, t.Body, nil
}

// recipients returns visible leads with a phone number, plus the ids that were
// skipped: unknown, invisible, without a phone, or repeated.
func (s *MessagingService) recipients(user models.User, ids []string) ([]models.Lead, []string) {
	leads := make([]models.Lead, 0, len(ids))
	var skipped []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			skipped = append(skipped, id)
			continue
		}
		seen[id] = struct{}{}
		lead, err := s.leads.Get(user, id)
		if err != nil || strings.TrimSpace(lead.PhoneNumber) == "" {
			skipped = append(skipped, id)
			continue
		}
		leads = append(leads, *lead)
	}
	return leads, skipped
}

func (s *MessagingService) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(messageJob)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	return s.sender.Send(ctx, payload.Message)
}

func (s *MessagingService) record(job jobs.Job, err error) {
	template := "unknown"
	if payload, ok := job.Payload.(messageJob); ok {
		template = payload.Template
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	s.metrics.RecordMessage(template, status)
}
