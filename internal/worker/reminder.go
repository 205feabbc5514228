package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/emaillogs"
	"github.com/eventlane/backend/internal/events"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/internal/registrations"
	"github.com/eventlane/backend/pkg/queue"
)

const (
	reminderLead     = 24 * time.Hour
	reminderInterval = 30 * time.Minute
)

// ReminderScheduler enqueues a 24h reminder email for every registration of
// an upcoming event. At most one reminder is sent per registration; the
// email log is the dedupe record.
type ReminderScheduler struct {
	events *events.Repository
	regs   *registrations.Repository
	logs   *emaillogs.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewReminderScheduler creates a reminder scheduler.
func NewReminderScheduler(eventRepo *events.Repository, regRepo *registrations.Repository,
	logRepo *emaillogs.Repository, q *queue.Queue, logger *zap.Logger) *ReminderScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderScheduler{events: eventRepo, regs: regRepo, logs: logRepo, queue: q, logger: logger}
}

// Run scans for events starting within the reminder lead on a fixed
// interval. Blocks until ctx is cancelled.
func (s *ReminderScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(reminderInterval)
	defer ticker.Stop()

	s.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopping")
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *ReminderScheduler) scan(ctx context.Context) {
	now := time.Now()
	upcoming, err := s.events.ListStartingBetween(ctx, now, now.Add(reminderLead))
	if err != nil {
		s.logger.Warn("reminder scan failed", zap.Error(err))
		return
	}

	for _, event := range upcoming {
		regs, err := s.regs.ListByEvent(ctx, event.ID, registrations.ListFilter{})
		if err != nil {
			s.logger.Warn("reminder list registrations failed", zap.Error(err), zap.String("event_id", event.ID.String()))
			continue
		}
		for _, reg := range regs {
			if reg.PaymentStatus == models.PaymentStatusRefunded {
				continue
			}
			sent, err := s.logs.HasLog(ctx, reg.ID, models.EmailTypeReminder24h)
			if err != nil || sent {
				continue
			}
			err = s.queue.EnqueueEmail(ctx, queue.EmailPayload{
				EmailType:      models.EmailTypeReminder24h,
				EventID:        event.ID,
				RegistrationID: reg.ID,
				RecipientEmail: reg.Email,
				Subject:        fmt.Sprintf("Reminder: %s starts soon", event.Name),
				BodyHTML: fmt.Sprintf("<p>Hi %s,</p><p><strong>%s</strong> starts at %s.</p>",
					reg.FullName, event.Name, event.StartsAt.Format("15:04 on Jan 2, 2006")),
			})
			if err != nil {
				s.logger.Warn("failed to enqueue reminder", zap.Error(err), zap.String("registration_id", reg.ID.String()))
			}
		}
	}
}
