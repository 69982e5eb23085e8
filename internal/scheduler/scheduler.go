package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/fasecards/internal/clock"
	"github.com/example/fasecards/internal/database"
)

// Notifier sends review reminders to learners
type Notifier interface {
	SendReminder(chatID int64, name string, dueCollections int) error
}

// ReminderSource finds learners with collections due for review
type ReminderSource interface {
	DueReminders(ctx context.Context, now time.Time) ([]database.DueReminder, error)
}

// Window is the range of UTC hours, both inclusive, in which reminders may be sent
type Window struct {
	StartHour int
	EndHour   int
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	h := t.UTC().Hour()
	return h >= w.StartHour && h <= w.EndHour
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	source    ReminderSource
	notifier  Notifier
	clock     clock.Clock
	window    Window
	log       logrus.FieldLogger
}

// New creates a new scheduler instance
func New(source ReminderSource, notifier Notifier, clk clock.Clock, window Window, log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		source:    source,
		notifier:  notifier,
		clock:     clk,
		window:    window,
		log:       log,
	}
}

// Start runs the reminder sweep every hour until ctx is done or Stop is called
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(1).Hour().Do(func() {
		if _, err := s.CheckAndSendReminders(ctx); err != nil {
			s.log.WithError(err).Error("reminder sweep failed")
		}
	})
	if err != nil {
		return errors.Wrap(err, "failed to schedule reminder sweep")
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// CheckAndSendReminders notifies every learner with due collections and returns how many were notified.
// Outside the notification window it does nothing.
func (s *Scheduler) CheckAndSendReminders(ctx context.Context) (int, error) {
	now := s.clock.Now()
	if !s.window.Contains(now) {
		s.log.WithFields(logrus.Fields{
			"hour":  now.UTC().Hour(),
			"start": s.window.StartHour,
			"end":   s.window.EndHour,
		}).Debug("outside notification hours, skipping reminders")
		return 0, nil
	}

	due, err := s.source.DueReminders(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get due reminders")
	}

	sent := 0
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := s.notifier.SendReminder(r.TelegramChatID, r.Name, r.DueCollections); err != nil {
			s.log.WithError(err).WithField("learner_id", r.LearnerID).Warn("failed to send reminder")
			continue
		}
		sent++
	}

	s.log.WithField("sent", sent).Info("reminders sent")
	return sent, nil
}
