package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--data-dir", dataDir, "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestIngestAndStats(t *testing.T) {
	t.Parallel()
	dataDir := t.TempDir()
	input := filepath.Join(dataDir, "snapshots.jsonl")
	writeFile(t, input, `{"timestamp": 1700000000000, "battery_level": 90, "package_name": "com.example.mail", "consumer_id": 10001, "consume_power_mah": 1.5}
{"timestamp": 1700003600000, "battery_level": 85, "package_name": "com.example.mail", "consumer_id": 10001, "consume_power_mah": 3}
{"timestamp": 1700007200000}
`)
	metricsFile := filepath.Join(dataDir, "metrics.prom")

	out, err := runCLI(t, dataDir, "--metrics-file", metricsFile, "ingest", "snapshots", input)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, "read=3 stored=2 dropped=1") {
		t.Fatalf("unexpected ingest output: %q", out)
	}
	raw, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), "batteryusage_snapshots_dropped_total 1") {
		t.Fatalf("metrics textfile missing drop counter:\n%s", raw)
	}

	out, err = runCLI(t, dataDir, "snapshots", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "snapshots: 2") || !strings.Contains(out, "timestamps: 2") {
		t.Fatalf("unexpected stats output: %q", out)
	}
}

func TestResolverLookupAgainstInventory(t *testing.T) {
	t.Parallel()
	dataDir := t.TempDir()
	writeFile(t, filepath.Join(dataDir, "packages.yaml"), `version: "1"
packages:
  - name: com.example.mail
    label: Mail
`)
	out, err := runCLI(t, dataDir, "resolver", "lookup", "com.example.mail", "com.example.gone")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !strings.Contains(out, `com.example.mail label="Mail" installed=true resolved=true`) {
		t.Fatalf("unexpected lookup output: %q", out)
	}
	if !strings.Contains(out, "com.example.gone") || !strings.Contains(out, "resolved=false") {
		t.Fatalf("expected unresolved package in output: %q", out)
	}

	out, err = runCLI(t, dataDir, "resolver", "doctor")
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if !strings.HasPrefix(out, "inventory@1 packages=1") {
		t.Fatalf("unexpected doctor output: %q", out)
	}
}

func TestResolverDisabled(t *testing.T) {
	t.Parallel()
	dataDir := t.TempDir()
	writeFile(t, filepath.Join(dataDir, "config.yaml"), "resolver:\n  kind: none\n")
	if _, err := runCLI(t, dataDir, "resolver", "clear"); err == nil {
		t.Fatalf("expected disabled resolver error")
	}
}

func TestAnomalyCommands(t *testing.T) {
	t.Parallel()
	dataDir := t.TempDir()
	writeFile(t, filepath.Join(dataDir, "anomaly", "events.json"), `[{"key": "wakelock", "kind": "app", "score": 0.9, "hint": "Restrict background activity"}]`)

	out, err := runCLI(t, dataDir, "anomaly", "top")
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if !strings.HasPrefix(out, "wakelock kind=app score=0.90") || !strings.Contains(out, "Restrict background activity") {
		t.Fatalf("unexpected top output: %q", out)
	}
	if _, err := runCLI(t, dataDir, "anomaly", "dismiss", "wakelock"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	out, err = runCLI(t, dataDir, "anomaly", "top")
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if !strings.Contains(out, "no anomalies (candidates=1 dismissed=1)") {
		t.Fatalf("unexpected top output after dismiss: %q", out)
	}
}

func TestUsageRunWithoutHistory(t *testing.T) {
	t.Parallel()
	if _, err := runCLI(t, t.TempDir(), "usage", "run"); err == nil {
		t.Fatalf("expected no usage data error on an empty store")
	}
}
