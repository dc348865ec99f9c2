package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/repository"
	"github.com/taskstream/backend/usecase"
)

// SweeperConfig controls the reminder sweep.
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// ReminderSweeper finds tasks whose reminder time has passed and turns each
// into a reminder.triggered event, exactly once. The due-and-unfired condition
// lives in storage, so a failed tick loses nothing: the same reminders are
// picked up again on the next run.
type ReminderSweeper struct {
	tasks  repository.TaskRepository
	sink   usecase.EventSink
	logger *zap.Logger
	cfg    SweeperConfig
}

func NewReminderSweeper(tasks repository.TaskRepository, sink usecase.EventSink, logger *zap.Logger, cfg SweeperConfig) *ReminderSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderSweeper{
		tasks:  tasks,
		sink:   sink,
		logger: logger,
		cfg:    cfg,
	}
}

// Interval exposes the configured tick period for the scheduler.
func (s *ReminderSweeper) Interval() time.Duration {
	return s.cfg.Interval
}

// Run executes one sweep with a tick-bounded context; meant for the scheduler.
func (s *ReminderSweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
	defer cancel()
	if err := s.Sweep(ctx); err != nil {
		s.logger.Error("reminder sweep failed", zap.Error(err))
	}
}

// Sweep fires every due reminder found in one batch. Per-task failures are
// logged and skipped; the next tick retries them.
func (s *ReminderSweeper) Sweep(ctx context.Context) error {
	due, err := s.tasks.DueReminders(ctx, time.Now(), s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for i := range due {
		task := &due[i]
		event, err := domain.NewEvent(task, domain.EventReminderTriggered, domain.ReminderPayload{
			TaskID: task.ID,
			Title:  task.Title,
		})
		if err != nil {
			s.logger.Error("failed to build reminder event",
				zap.Int64("task_id", task.ID), zap.Error(err))
			continue
		}

		consumed, err := s.tasks.ConsumeReminder(ctx, task.UserID, task.ID, event)
		if err != nil {
			s.logger.Error("failed to consume reminder",
				zap.Int64("task_id", task.ID), zap.Error(err))
			continue
		}
		if !consumed {
			// Another sweep got there first.
			continue
		}

		if s.sink != nil {
			s.sink.Dispatch(event)
		}
		s.logger.Info("reminder fired",
			zap.Int64("task_id", task.ID), zap.String("user_id", task.UserID))
	}
	return nil
}
