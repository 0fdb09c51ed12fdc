package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

var catalogPath = filepath.Join("..", "..", "internal", "catalog", "testdata", "farm.yaml")

func setEnv(t *testing.T, driver string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HERDCORE_STORAGE_DRIVER", driver)
	t.Setenv("HERDCORE_SQLITE_PATH", filepath.Join(dir, "herd.db"))
	t.Setenv("HERDCORE_BLOB_DRIVER", "fs")
	t.Setenv("HERDCORE_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("HERDCORE_LOG_MODE", "development")
	t.Setenv("HERDCORE_CATALOG", "")
	t.Setenv("HERDCORE_BACKUP_CRON", "")
	t.Setenv("HERDCORE_PENDING_CRON", "")
	return dir
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestSeedCommand(t *testing.T) {
	setEnv(t, "memory")
	out, err := runCmd(t, "seed", "--catalog", catalogPath)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if strings.TrimSpace(out) != "created 25, skipped 0" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSeedRequiresCatalog(t *testing.T) {
	setEnv(t, "memory")
	if _, err := runCmd(t, "seed"); err == nil || !strings.Contains(err.Error(), "no catalog") {
		t.Fatalf("expected missing catalog error, got %v", err)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	setEnv(t, "sqlite")
	if _, err := runCmd(t, "seed", "--catalog", catalogPath); err != nil {
		t.Fatalf("seed: %v", err)
	}
	out, err := runCmd(t, "backup")
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	key := strings.Fields(out)[0]
	if !strings.HasPrefix(key, "backups/herdcore-") {
		t.Fatalf("unexpected snapshot key %q", key)
	}

	out, err = runCmd(t, "backup", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.HasPrefix(out, key) || strings.Count(out, "\n") != 1 {
		t.Fatalf("unexpected listing %q", out)
	}

	out, err = runCmd(t, "backup", "restore", key)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if strings.TrimSpace(out) != "restored "+key {
		t.Fatalf("unexpected restore output %q", out)
	}

	out, err = runCmd(t, "seed", "--catalog", catalogPath)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if strings.TrimSpace(out) != "created 0, skipped 25" {
		t.Fatalf("expected restored catalog to be complete, got %q", out)
	}
}

func TestValidatePendingOnEmptyStore(t *testing.T) {
	setEnv(t, "memory")
	out, err := runCmd(t, "validate-pending")
	if err != nil {
		t.Fatalf("validate-pending: %v", err)
	}
	if strings.TrimSpace(out) != "validated 0 of 0 events" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestInvalidConfiguration(t *testing.T) {
	setEnv(t, "bogus")
	if _, err := runCmd(t, "validate-pending"); err == nil || !strings.Contains(err.Error(), "unknown storage driver") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestServeRejectsBadCron(t *testing.T) {
	setEnv(t, "memory")
	t.Setenv("HERDCORE_PENDING_CRON", "not a cron")
	if _, err := runCmd(t, "serve"); err == nil || !strings.Contains(err.Error(), "schedule pending validation") {
		t.Fatalf("expected cron error, got %v", err)
	}
}
