package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventlane/backend/config"
	"github.com/eventlane/backend/internal/emaillogs"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/pkg/queue"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, to, subject, bodyHTML string) error
}

// SMTPSender sends through a plain SMTP relay.
type SMTPSender struct {
	cfg config.EmailConfig
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers one HTML email via SMTP.
func (s *SMTPSender) Send(ctx context.Context, to, subject, bodyHTML string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.cfg.FromName, s.cfg.FromAddress, to, subject, bodyHTML)

	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}
	return smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{to}, []byte(msg))
}

// LogSender logs instead of sending. Used when no SMTP relay is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the email and reports success.
func (s *LogSender) Send(ctx context.Context, to, subject, bodyHTML string) error {
	s.logger.Info("email (no SMTP configured)", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// EmailProcessor delivers queued emails and records each attempt in
// email_logs.
type EmailProcessor struct {
	logs   *emaillogs.Repository
	sender Sender
	logger *zap.Logger
}

// NewEmailProcessor creates an email processor.
func NewEmailProcessor(logs *emaillogs.Repository, sender Sender, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{logs: logs, sender: sender, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.RecipientEmail == "" {
		return fmt.Errorf("email job %s has no recipient", job.ID)
	}

	l := &models.EmailLog{
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
		BodyHTML:       payload.BodyHTML,
	}
	if payload.EventID != uuid.Nil {
		eventID := payload.EventID
		l.EventID = &eventID
	}
	if payload.RegistrationID != uuid.Nil {
		regID := payload.RegistrationID
		l.RegistrationID = &regID
	}
	if err := p.logs.Create(ctx, l); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}

	if err := p.sender.Send(ctx, payload.RecipientEmail, payload.Subject, payload.BodyHTML); err != nil {
		if markErr := p.logs.MarkFailed(ctx, l.ID, err.Error()); markErr != nil {
			p.logger.Error("mark email failed errored", zap.Error(markErr), zap.String("email_log_id", l.ID.String()))
		}
		return fmt.Errorf("send: %w", err)
	}
	if err := p.logs.MarkSent(ctx, l.ID, time.Now()); err != nil {
		p.logger.Error("mark email sent errored", zap.Error(err), zap.String("email_log_id", l.ID.String()))
	}

	p.logger.Info("email sent",
		zap.String("email_type", payload.EmailType),
		zap.String("to", payload.RecipientEmail),
	)
	return nil
}
