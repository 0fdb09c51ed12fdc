// Package scheduler runs periodic herd maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"herdcore/internal/blob"
	"herdcore/internal/core"
)

// Snapshotter stores a backup of the herd state.
type Snapshotter interface {
	Snapshot(ctx context.Context) (blob.Info, error)
}

// PendingValidator validates draft events whose time has come.
type PendingValidator interface {
	ValidatePendingEvents(ctx context.Context) ([]core.BatchOutcome, error)
}

// Config holds cron expressions; an empty expression disables the job.
type Config struct {
	BackupSpec  string
	PendingSpec string
	Timeout     time.Duration
}

// Scheduler owns a cron runner and the herd jobs registered on it.
type Scheduler struct {
	cron    *cron.Cron
	backups Snapshotter
	pending PendingValidator
	cfg     Config
	logger  *zap.Logger
}

// New creates a scheduler. Jobs are registered by Start.
func New(cfg Config, backups Snapshotter, pending PendingValidator, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(),
		backups: backups,
		pending: pending,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start registers the configured jobs and starts the runner.
func (s *Scheduler) Start() error {
	if s.cfg.BackupSpec != "" && s.backups != nil {
		if _, err := s.cron.AddFunc(s.cfg.BackupSpec, s.runBackup); err != nil {
			return fmt.Errorf("schedule backup %q: %w", s.cfg.BackupSpec, err)
		}
	}
	if s.cfg.PendingSpec != "" && s.pending != nil {
		if _, err := s.cron.AddFunc(s.cfg.PendingSpec, s.runPending); err != nil {
			return fmt.Errorf("schedule pending validation %q: %w", s.cfg.PendingSpec, err)
		}
	}
	s.logger.Info("starting scheduler", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
	return nil
}

// Stop halts the runner and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	info, err := s.backups.Snapshot(ctx)
	if err != nil {
		s.logger.Error("backup failed", zap.Error(err))
		return
	}
	s.logger.Info("backup completed", zap.String("key", info.Key), zap.Int64("size", info.Size))
}

func (s *Scheduler) runPending() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	outcomes, err := s.pending.ValidatePendingEvents(ctx)
	if err != nil {
		s.logger.Error("pending validation failed", zap.Error(err))
		return
	}
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			s.logger.Warn("pending event rejected", zap.String("event_id", o.EventID), zap.Error(o.Err))
		}
	}
	s.logger.Info("pending validation completed", zap.Int("events", len(outcomes)), zap.Int("failed", failed))
}
