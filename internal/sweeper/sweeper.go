// Package sweeper runs the periodic maintenance jobs: the 48-hour
// auto-confirm, expired notification cleanup and refresh-token expiry.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rosterly/rosterd/internal/broadcast"
	"github.com/rosterly/rosterd/internal/repository"
)

// Config tunes the sweeper. Zero values take the defaults.
type Config struct {
	// ConfirmWindow is how long an assignment waits for a response before
	// auto-confirming. Zero disables auto-confirm.
	ConfirmWindow time.Duration
	// JobTimeout bounds each sweep run.
	JobTimeout time.Duration
}

type Sweeper struct {
	assignments   repository.AssignmentRepository
	notifications repository.NotificationRepository
	tokens        repository.TokenRepository
	hub           *broadcast.Hub
	cfg           Config
	cron          *cron.Cron
	logger        *slog.Logger
}

func New(
	assignments repository.AssignmentRepository,
	notifications repository.NotificationRepository,
	tokens repository.TokenRepository,
	hub *broadcast.Hub,
	cfg Config,
	logger *slog.Logger,
) *Sweeper {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	return &Sweeper{
		assignments:   assignments,
		notifications: notifications,
		tokens:        tokens,
		hub:           hub,
		cfg:           cfg,
		cron:          cron.New(),
		logger:        logger.With("component", "sweeper"),
	}
}

// Start registers the jobs and begins the schedule. Auto-confirm runs every
// five minutes; the cleanups run hourly.
func (s *Sweeper) Start() error {
	if s.cfg.ConfirmWindow > 0 {
		if _, err := s.cron.AddFunc("*/5 * * * *", s.runAutoConfirm); err != nil {
			return err
		}
	}
	if _, err := s.cron.AddFunc("@hourly", s.runCleanup); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("sweeper started", "confirm_window", s.cfg.ConfirmWindow)
	return nil
}

// Stop halts the schedule and waits for running jobs.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) runAutoConfirm() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	cutoff := time.Now().Add(-s.cfg.ConfirmWindow)
	confirmed, err := s.assignments.AutoConfirm(ctx, cutoff)
	if err != nil {
		s.logger.Error("auto-confirm sweep failed", "error", err)
		return
	}
	if len(confirmed) == 0 {
		return
	}
	s.logger.Info("auto-confirmed assignments past the response window",
		"count", len(confirmed), "cutoff", cutoff)
	for _, a := range confirmed {
		s.hub.Publish(broadcast.ScheduleTopic(a.ScheduleID), broadcast.EventAssignmentConfirmed, a)
		s.hub.Publish(broadcast.EmployeeTopic(a.EmployeeID), broadcast.EventAssignmentConfirmed, a)
	}
}

func (s *Sweeper) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	now := time.Now()
	if n, err := s.notifications.DeleteExpired(ctx, now); err != nil {
		s.logger.Error("notification cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Info("removed expired notifications", "count", n)
	}
	if n, err := s.tokens.DeleteExpired(ctx, now); err != nil {
		s.logger.Error("refresh token cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Info("removed expired refresh tokens", "count", n)
	}
}
