package workspace

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/boshang1988/arena/pkg/telemetry"
	"github.com/boshang1988/arena/pkg/variant"
)

// MergeMethod names how winner changes reached the primary workspace.
type MergeMethod string

const (
	MergeMethodNone     MergeMethod = "none"
	MergeMethodBranch   MergeMethod = "branch-merge"
	MergeMethodFileCopy MergeMethod = "file-copy"
)

// MergeOutcome reports a winner merge.
type MergeOutcome struct {
	Winner variant.Variant
	Method MergeMethod
	Files  []string
}

// ApplyWinnerChanges propagates the winning variant's changes into the
// canonical (primary) workspace. A primary win is a no-op. Branch-backed
// winners are committed and merged natively; merge failure or copy-based
// isolation degrades to copying each changed file's bytes, skipping files
// the winner deleted.
func (m *Manager) ApplyWinnerChanges(winner variant.Variant) (*MergeOutcome, error) {
	if winner == variant.VariantPrimary {
		return &MergeOutcome{Winner: winner, Method: MergeMethodNone}, nil
	}

	m.mergeMu.Lock()
	defer m.mergeMu.Unlock()

	info, ok := m.Workspace(winner)
	if !ok {
		return nil, fmt.Errorf("no workspace for winner %s", winner)
	}

	// The change set must be captured before committing: a committed
	// worktree reports a clean status.
	diff, err := m.GetVariantDiff(winner)
	if err != nil {
		return nil, fmt.Errorf("diff winner %s: %w", winner, err)
	}
	if len(diff.Files) == 0 {
		return &MergeOutcome{Winner: winner, Method: MergeMethodNone}, nil
	}

	if info.Kind == KindIsolated {
		if err := m.mergeBranch(info); err == nil {
			m.publishMerge(telemetry.EventMergeApplied, winner, MergeMethodBranch, len(diff.Files))
			return &MergeOutcome{Winner: winner, Method: MergeMethodBranch, Files: diff.Files}, nil
		}
		m.publishMerge(telemetry.EventMergeFallback, winner, MergeMethodFileCopy, len(diff.Files))
	}

	copied, err := m.copyChangedFiles(info, diff.Files)
	if err != nil {
		return nil, fmt.Errorf("copy winner changes: %w", err)
	}
	m.publishMerge(telemetry.EventMergeApplied, winner, MergeMethodFileCopy, len(copied))
	return &MergeOutcome{Winner: winner, Method: MergeMethodFileCopy, Files: copied}, nil
}

// mergeBranch commits the winner worktree's changes and merges its branch
// into the primary workspace.
func (m *Manager) mergeBranch(info Info) error {
	if err := commitAll(info.Path, fmt.Sprintf("arena: %s changes for run %s", info.Variant, m.cfg.RunID)); err != nil {
		return err
	}

	message := fmt.Sprintf("Merge %s variant (run %s)", info.Variant, m.cfg.RunID)
	cmd := exec.Command("git", "merge", "--no-ff", "-m", message, info.Branch)
	cmd.Dir = m.cfg.BaseDir
	if output, err := cmd.CombinedOutput(); err != nil {
		m.abortMerge()
		return fmt.Errorf("merge failed: %s", output)
	}
	return nil
}

func (m *Manager) abortMerge() {
	cmd := exec.Command("git", "merge", "--abort")
	cmd.Dir = m.cfg.BaseDir
	_ = cmd.Run()
}

// commitAll stages and commits every change in the workspace.
func commitAll(path, message string) error {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("stage all: %w", err)
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "arena",
			Email: "arena@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// copyChangedFiles copies each changed file's bytes from the winner's
// workspace into the primary one. Files absent in the source were deleted
// by the winner and are skipped.
func (m *Manager) copyChangedFiles(info Info, files []string) ([]string, error) {
	var copied []string
	for _, file := range files {
		src := filepath.Join(info.Path, file)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := copyFile(src, filepath.Join(m.cfg.BaseDir, file)); err != nil {
			return copied, err
		}
		copied = append(copied, file)
	}
	return copied, nil
}

func (m *Manager) publishMerge(eventType telemetry.EventType, winner variant.Variant, method MergeMethod, files int) {
	m.cfg.Hub.Publish(telemetry.Event{
		Type:  eventType,
		RunID: m.cfg.RunID,
		Data: map[string]any{
			"winner": string(winner),
			"method": string(method),
			"files":  files,
		},
	})
}
