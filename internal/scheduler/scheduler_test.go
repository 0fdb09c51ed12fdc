package scheduler

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"herdcore/internal/blob"
	"herdcore/internal/core"
)

type fakeSnapshotter struct {
	calls int
	err   error
}

func (f *fakeSnapshotter) Snapshot(context.Context) (blob.Info, error) {
	f.calls++
	return blob.Info{Key: "backups/x.json", Size: 42}, f.err
}

type fakeValidator struct {
	outcomes []core.BatchOutcome
	err      error
}

func (f fakeValidator) ValidatePendingEvents(context.Context) ([]core.BatchOutcome, error) {
	return f.outcomes, f.err
}

func observed() (*zap.Logger, *observer.ObservedLogs) {
	obs, logs := observer.New(zapcore.DebugLevel)
	return zap.New(obs), logs
}

func TestStartRegistersConfiguredJobs(t *testing.T) {
	s := New(Config{BackupSpec: "@daily", PendingSpec: "*/15 * * * *"}, &fakeSnapshotter{}, fakeValidator{}, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if got := len(s.cron.Entries()); got != 2 {
		t.Fatalf("expected 2 jobs, got %d", got)
	}
}

func TestStartSkipsDisabledJobs(t *testing.T) {
	s := New(Config{BackupSpec: "@daily"}, nil, fakeValidator{}, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if got := len(s.cron.Entries()); got != 0 {
		t.Fatalf("expected no jobs, got %d", got)
	}
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := New(Config{BackupSpec: "every tuesday"}, &fakeSnapshotter{}, nil, nil)
	if err := s.Start(); err == nil {
		t.Fatalf("expected invalid spec error")
	}
}

func TestRunBackupLogsOutcome(t *testing.T) {
	logger, logs := observed()
	snap := &fakeSnapshotter{}
	s := New(Config{}, snap, nil, logger)
	s.runBackup()
	if snap.calls != 1 || logs.FilterMessage("backup completed").Len() != 1 {
		t.Fatalf("expected completed backup log, got %v", logs.All())
	}

	snap.err = errors.New("bucket gone")
	s.runBackup()
	if logs.FilterMessage("backup failed").Len() != 1 {
		t.Fatalf("expected failure log")
	}
}

func TestRunPendingCountsFailures(t *testing.T) {
	logger, logs := observed()
	v := fakeValidator{outcomes: []core.BatchOutcome{
		{EventID: "a"},
		{EventID: "b", Err: errors.New("not enough feed")},
	}}
	s := New(Config{}, nil, v, logger)
	s.runPending()
	if logs.FilterMessage("pending event rejected").Len() != 1 {
		t.Fatalf("expected one rejection log, got %v", logs.All())
	}
	done := logs.FilterMessage("pending validation completed").All()
	if len(done) != 1 || done[0].ContextMap()["failed"] != int64(1) {
		t.Fatalf("unexpected completion log %v", done)
	}
}
