package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boshang1988/arena/pkg/telemetry"
	"github.com/boshang1988/arena/pkg/upgrade"
)

func sampleReport() *upgrade.Report {
	return &upgrade.Report{
		RunID:     "01TESTRUN",
		Mode:      "dual-rl-tournament",
		StartedAt: time.Now(),
		Status:    upgrade.StatusCompleted,
	}
}

func TestWriteReport_Stdout(t *testing.T) {
	runReportPath = ""
	var out bytes.Buffer
	if err := writeReport(&out, sampleReport()); err != nil {
		t.Fatalf("writeReport() error = %v", err)
	}
	if !strings.Contains(out.String(), "01TESTRUN") {
		t.Errorf("output = %q, want run id", out.String())
	}
}

func TestWriteReport_File(t *testing.T) {
	runReportPath = filepath.Join(t.TempDir(), "report.md")
	defer func() { runReportPath = "" }()

	var out bytes.Buffer
	if err := writeReport(&out, sampleReport()); err != nil {
		t.Fatalf("writeReport() error = %v", err)
	}
	data, err := os.ReadFile(runReportPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "## Upgrade Report") {
		t.Error("report file should contain the markdown header")
	}
	if !strings.Contains(out.String(), "report written to") {
		t.Errorf("stdout = %q, want confirmation line", out.String())
	}
}

func TestStartEventPrinter(t *testing.T) {
	hub := telemetry.NewHub()
	var out bytes.Buffer
	done := startEventPrinter(hub, &out)

	hub.Publish(telemetry.Event{
		Type:     telemetry.EventWinnerSelected,
		ModuleID: "core",
		Step:     "apply",
		Data:     map[string]any{"winner": "refiner"},
	})
	hub.Close()
	<-done

	line := out.String()
	if !strings.Contains(line, "step.winner") || !strings.Contains(line, "core/apply") || !strings.Contains(line, "winner=refiner") {
		t.Errorf("printed line = %q", line)
	}
}
