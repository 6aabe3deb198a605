package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"offload/internal/testsupport"
)

// writeTestConfig lays out a complete runnable configuration on temp
// directories and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	sourceDir := filepath.Join(base, "source")
	testsupport.MkdirAll(t, sourceDir)
	indexPath := testsupport.NewCatalogIndex(t)

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
source_dir = %q
review_dir = %q
log_dir = %q

[scan]
extensions = [".mov", ".mp4"]
min_size_mb = 0

[catalog]
index_path = %q
`, sourceDir, filepath.Join(base, "review"), filepath.Join(base, "logs"), indexPath)
	testsupport.WriteFile(t, configPath, []byte(content))
	return configPath
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output should name the target: %q", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "source_dir") {
		t.Fatal("sample config should document source_dir")
	}

	// A second init without --overwrite refuses.
	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestConfigValidate(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", configPath, "config", "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestScanCommandEndToEnd(t *testing.T) {
	configPath := writeTestConfig(t)

	// Place one candidate in the source tree.
	var cfgBase string
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "source_dir = ") {
			cfgBase = strings.Trim(strings.TrimPrefix(line, "source_dir = "), `"`)
		}
	}
	testsupport.WriteSizedFile(t, filepath.Join(cfgBase, "clip.mov"), 64, 'a')

	out, err := runCommand(t, "--config", configPath, "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, ".mov") {
		t.Fatalf("scan table should list the extension: %q", out)
	}
	if !strings.Contains(out, "Absent") {
		t.Fatalf("verdict table missing: %q", out)
	}
}

func TestLedgerListEmpty(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", configPath, "ledger", "list")
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	if !strings.Contains(out, "ledger is empty") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLedgerRetryReportsCount(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", configPath, "ledger", "retry")
	if err != nil {
		t.Fatalf("ledger retry: %v", err)
	}
	if !strings.Contains(out, "reset 0 failed entries") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRunWithoutDecisionsIsNoop(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", configPath, "run")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Moved") {
		t.Fatalf("run summary table missing: %q", out)
	}
}
