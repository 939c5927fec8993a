package workspace

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	git "github.com/go-git/go-git/v5"

	"github.com/boshang1988/arena/pkg/telemetry"
	"github.com/boshang1988/arena/pkg/variant"
)

// SyncVariantWorkspaces re-points every non-primary workspace at the
// canonical workspace's current state. Call it at each step boundary, after
// the winner's changes have been applied: a losing variant's changes are
// discarded, and every variant's next step starts from the step's winning
// result. Diff baselines move forward with the sync so later diffs cover
// only later changes.
func (m *Manager) SyncVariantWorkspaces() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	head := m.currentHead()

	for v, info := range m.workspaces {
		if info.Kind == KindOriginal {
			if head != "" {
				info.BaseRevision = head
			}
			continue
		}

		var err error
		switch info.Kind {
		case KindIsolated:
			err = m.resetWorktree(info, head)
		default:
			err = m.remirrorCopy(info, v)
		}
		if err != nil {
			return fmt.Errorf("sync workspace %s: %w", v, err)
		}
		m.publish(telemetry.EventWorkspaceSynced, v, string(info.Kind))
	}

	if head != "" {
		m.baseRevision = head
	}
	return nil
}

// currentHead returns the canonical workspace's HEAD hash, empty when the
// base directory has no usable history.
func (m *Manager) currentHead() string {
	if !m.gitBacked {
		return ""
	}
	repo, err := git.PlainOpen(m.cfg.BaseDir)
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}

// resetWorktree discards the worktree's local state and points its branch at
// the canonical HEAD, untracked files included.
func (m *Manager) resetWorktree(info *Info, head string) error {
	if head == "" {
		return fmt.Errorf("no canonical revision to reset %s to", info.Path)
	}

	cmd := exec.Command("git", "reset", "--hard", head)
	cmd.Dir = info.Path
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git reset: %w\nOutput: %s", err, output)
	}

	cmd = exec.Command("git", "clean", "-fd")
	cmd.Dir = info.Path
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clean: %w\nOutput: %s", err, output)
	}

	info.BaseRevision = head
	return nil
}

// remirrorCopy rebuilds a copy workspace and its baseline mirror from the
// canonical directory.
func (m *Manager) remirrorCopy(info *Info, v variant.Variant) error {
	dir := m.variantDir(v)
	source := filepath.Join(dir, "source")
	baseline := filepath.Join(dir, "baseline")

	if err := os.RemoveAll(source); err != nil {
		return err
	}
	if err := os.RemoveAll(baseline); err != nil {
		return err
	}
	if err := copyTree(m.cfg.BaseDir, source, m.cfg.ExcludeDirs); err != nil {
		return err
	}
	return copyTree(source, baseline, m.cfg.ExcludeDirs)
}
