// Package jobs runs the service's scheduled background work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultReminderSpec runs the reminder job every day at 18:00.
const DefaultReminderSpec = "0 18 * * *"

// ReminderSender queues reminders for the approved bookings on a date.
type ReminderSender interface {
	SendReminders(ctx context.Context, date time.Time) (int, error)
}

// Scheduler runs the booking reminder job on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sender  ReminderSender
	now     func() time.Time
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler creates a Scheduler. now may be nil. Cron specs fire in the
// location of the times now returns, and "tomorrow" is taken from that same
// calendar.
func NewScheduler(sender ReminderSender, now func() time.Time, logger *zap.Logger) *Scheduler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(now().Location())),
		sender:  sender,
		now:     now,
		timeout: time.Minute,
		logger:  logger,
	}
}

// Start registers the reminder job under spec and starts the scheduler.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		spec = DefaultReminderSpec
	}
	if _, err := s.cron.AddFunc(spec, s.runReminders); err != nil {
		return fmt.Errorf("failed to schedule reminder job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("reminder job scheduled", zap.String("spec", spec))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// runReminders queues reminders for tomorrow's approved bookings.
func (s *Scheduler) runReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	tomorrow := s.now().AddDate(0, 0, 1)
	n, err := s.sender.SendReminders(ctx, tomorrow)
	if err != nil {
		s.logger.Error("reminder job failed", zap.Error(err))
		return
	}
	s.logger.Info("reminder job finished",
		zap.Int("reminders", n),
		zap.Duration("duration", time.Since(start)),
	)
}
