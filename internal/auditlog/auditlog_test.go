package auditlog_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"offload/internal/auditlog"
	"offload/internal/testsupport"
)

func TestAppendWritesOneLinePerEvent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}

	log, err := auditlog.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer log.Close()

	ctx := context.Background()
	if err := log.Append(ctx, auditlog.ActionRunStarted, "", "", "discovery", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(ctx, auditlog.ActionMove, "sha256:abc", "/src/a.mov", "moved", errors.New("boom")); err != nil {
		t.Fatalf("append with error: %v", err)
	}

	file, err := os.Open(cfg.AuditLogPath())
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer file.Close()

	var events []auditlog.Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event auditlog.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Action != auditlog.ActionRunStarted || events[0].RunID != log.RunID() {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].IdentityKey != "sha256:abc" || events[1].Error != "boom" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestReopenAppends(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}

	ctx := context.Background()

	first, err := auditlog.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Append(ctx, auditlog.ActionRunStarted, "", "", "", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := auditlog.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if err := second.Append(ctx, auditlog.ActionRunFinished, "", "", "", nil); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}

	if second.RunID() == first.RunID() {
		t.Fatal("each open should mint a fresh run ID")
	}

	data, err := os.ReadFile(cfg.AuditLogPath())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Fatalf("reopen must append, not truncate: %d lines", lines)
	}
}
