package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/boshang1988/arena/pkg/config"
	"github.com/boshang1988/arena/pkg/telemetry"
	"github.com/boshang1988/arena/pkg/upgrade"
	"github.com/boshang1988/arena/pkg/workspace"
)

var (
	runConfigPath string
	runBaseDir    string
	runReportPath string
	runQuiet      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute an upgrade run from a config file",
	RunE:  runUpgrade,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "arena.yaml", "run configuration file")
	runCmd.Flags().StringVarP(&runBaseDir, "dir", "d", ".", "repository directory to upgrade")
	runCmd.Flags().StringVarP(&runReportPath, "report", "o", "", "write the markdown report to a file instead of stdout")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "suppress progress events")
}

func runUpgrade(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}
	if len(cfg.Modules) == 0 {
		return fmt.Errorf("%s configures no modules", runConfigPath)
	}

	baseDir, err := filepath.Abs(runBaseDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := telemetry.NewHub()
	printerDone := startEventPrinter(hub, cmd.ErrOrStderr())

	runID := upgrade.NewRunID()
	manager := workspace.NewManager(workspace.Config{
		BaseDir:     baseDir,
		RunID:       runID,
		Root:        cfg.WorkspaceRoot,
		ExcludeDirs: cfg.ExcludeDirs,
		Hub:         hub,
	})
	executor := &workspace.CommandExecutor{Manager: manager, Timeout: cfg.CommandTimeout}

	orch, err := upgrade.New(upgrade.Options{
		Config:     cfg,
		Workspaces: manager,
		Executor:   executor,
		Hub:        hub,
		RunID:      runID,
	})
	if err != nil {
		return err
	}

	report, runErr := orch.Run(ctx)
	hub.Close()
	<-printerDone

	if report != nil {
		if err := writeReport(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if report.Status != upgrade.StatusCompleted {
		return fmt.Errorf("run %s finished with status %s", runID, report.Status)
	}
	return nil
}

// startEventPrinter streams hub events to w until the hub closes.
func startEventPrinter(hub *telemetry.Hub, w io.Writer) <-chan struct{} {
	done := make(chan struct{})
	events, _ := hub.Subscribe()
	go func() {
		defer close(done)
		for ev := range events {
			if runQuiet {
				continue
			}
			line := fmt.Sprintf("%s  %-18s", ev.Timestamp.Format("15:04:05"), ev.Type)
			if ev.ModuleID != "" {
				line += " " + ev.ModuleID
			}
			if ev.Step != "" {
				line += "/" + ev.Step
			}
			if winner, ok := ev.Data["winner"].(string); ok {
				line += " winner=" + winner
			}
			fmt.Fprintln(w, line)
		}
	}()
	return done
}

func writeReport(stdout io.Writer, report *upgrade.Report) error {
	md := report.Markdown()
	if runReportPath == "" {
		_, err := fmt.Fprint(stdout, md)
		return err
	}
	if err := os.WriteFile(runReportPath, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(stdout, "report written to %s\n", runReportPath)
	return nil
}
