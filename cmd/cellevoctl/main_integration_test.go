//go:build sqlite

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCommandSQLitePersistsAcrossCommands(t *testing.T) {
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})

	cfgPath := writeSmallConfig(t)
	dbPath := filepath.Join(workdir, "cellevo.db")
	common := []string{"--config", cfgPath, "--store", "sqlite", "--db-path", dbPath}

	if _, err := captureStdout(func() error {
		return run(context.Background(), append([]string{"run", "--ticks", "150", "--seed", "3"}, common...))
	}); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}

	out, err := captureStdout(func() error {
		return run(context.Background(), append([]string{"runs", "--limit", "1"}, common...))
	})
	if err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(out, "run_id=") || !strings.Contains(out, "final_tick=150") {
		t.Fatalf("unexpected runs output: %s", out)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), append([]string{"lineage", "--latest", "--limit", "3"}, common...))
	})
	if err != nil {
		t.Fatalf("lineage command: %v", err)
	}
	if strings.Count(out, "agent_id=") != 3 || !strings.Contains(out, "bootstrap=true") {
		t.Fatalf("unexpected lineage output: %s", out)
	}

	if _, err := captureStdout(func() error {
		return run(context.Background(), append([]string{"fitness", "--latest"}, common...))
	}); err != nil {
		t.Fatalf("fitness command: %v", err)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), append([]string{"export", "--latest", "--out", "exports"}, common...))
	})
	if err != nil {
		t.Fatalf("export command: %v", err)
	}
	if !strings.Contains(out, "exported run_id=") {
		t.Fatalf("unexpected export output: %s", out)
	}
	entries, err := os.ReadDir(filepath.Join(workdir, "exports"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one exported run directory, got %v (%v)", entries, err)
	}
	if _, err := os.Stat(filepath.Join(workdir, "exports", entries[0].Name(), "ticks.csv")); err != nil {
		t.Fatalf("expected ticks.csv in export: %v", err)
	}
}
