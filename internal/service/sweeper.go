package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartSweeper runs the lifecycle sweep on a fixed interval until the
// context is cancelled.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.RunSweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunSweep(ctx)
			}
		}
	}()
}

// RunSweep archives every budget past its expiry, then reminds clients whose
// budgets expire within the reminder window. Expiry runs first so a budget
// crossing the boundary during the sweep is archived, not reminded.
func (s *Service) RunSweep(ctx context.Context) {
	now := s.now().UTC()

	expired, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		s.logger.Error("list expired budgets", zap.Error(err))
	} else {
		for _, b := range expired {
			if err := s.repo.ExpireBudget(ctx, b.ID, now); err != nil {
				s.logger.Error("archive expired budget", zap.String("code", b.Code), zap.Error(err))
				continue
			}
			s.logger.Info("budget archived", zap.String("code", b.Code))
		}
	}

	due, err := s.repo.ListDueForReminder(ctx, now, s.opts.ReminderWindow)
	if err != nil {
		s.logger.Error("list budgets due for reminder", zap.Error(err))
		return
	}
	for i := range due {
		b := &due[i]
		s.remind(ctx, b)
		// Marked regardless of delivery outcome so a flaky relay cannot
		// cause a reminder storm.
		if err := s.repo.SetReminderSent(ctx, b.ID, now); err != nil {
			s.logger.Error("mark reminder sent", zap.String("code", b.Code), zap.Error(err))
			continue
		}
		b.RemindSentAt = &now
	}
}
