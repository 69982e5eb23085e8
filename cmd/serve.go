package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/fasecards/internal/bot"
	"github.com/example/fasecards/internal/scheduler"
)

// serveCmd runs the reminder sweep until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hourly review reminder job",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if !a.cfg.EnableScheduler {
			a.log.Warn("ENABLE_SCHEDULER is off, nothing to run")
			return nil
		}

		notifier, err := bot.New(a.cfg.TelegramToken, a.log)
		if err != nil {
			return err
		}

		s := scheduler.New(a.store.Learners, notifier, a.clock, scheduler.Window{
			StartHour: a.cfg.NotificationStartHour,
			EndHour:   a.cfg.NotificationEndHour,
		}, a.log)
		if err := s.Start(ctx); err != nil {
			return err
		}
		a.log.Info("reminder job started, press Ctrl+C to stop")

		<-ctx.Done()
		s.Stop()
		a.log.Info("reminder job stopped")
		if err := ctx.Err(); err != nil && err != context.Canceled {
			return err
		}
		return nil
	}),
}
