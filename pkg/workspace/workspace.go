// Package workspace allocates, tracks, and tears down one isolated filesystem
// workspace per variant, computes diffs against the run baseline, and merges
// the winning variant's changes back into the canonical workspace.
//
// Isolation prefers branch-backed git worktrees (cheap, shares history) and
// degrades to a full filesystem copy whenever git tooling is unavailable or
// fails. Tooling degradation is never surfaced as a run failure.
package workspace

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"

	"github.com/boshang1988/arena/pkg/telemetry"
	"github.com/boshang1988/arena/pkg/variant"
)

// Kind describes how a workspace is isolated.
type Kind string

const (
	// KindOriginal is the real repository directory; exactly one per run.
	KindOriginal Kind = "original"
	// KindIsolated is a branch-backed git worktree.
	KindIsolated Kind = "isolated"
	// KindCopy is a full filesystem duplication fallback.
	KindCopy Kind = "copy"
)

// Info describes one variant's workspace.
type Info struct {
	Variant      variant.Variant
	Path         string
	Kind         Kind
	Branch       string
	BaseRevision string
	CreatedAt    time.Time
}

// Config configures a workspace manager.
type Config struct {
	// BaseDir is the canonical repository directory.
	BaseDir string
	// RunID scopes branch names and workspace directories to one run.
	RunID string
	// Root is where ephemeral workspaces live. Defaults to
	// <BaseDir>/.arena/workspaces.
	Root string
	// ExcludeDirs are directory names skipped by the copy fallback.
	// Defaults to common dependency caches and build output.
	ExcludeDirs []string
	// Hub receives workspace lifecycle events. May be nil.
	Hub *telemetry.Hub
}

// DefaultExcludeDirs are the noise directories the copy fallback skips.
func DefaultExcludeDirs() []string {
	return []string{".git", ".arena", "node_modules", "vendor", "dist", "build", "target", "__pycache__"}
}

// Manager owns all workspace state for a single run. Construct one per run;
// it is never shared across runs.
type Manager struct {
	cfg Config

	// mergeMu serializes winner merges into the canonical workspace;
	// concurrent git merges or file copies into one directory corrupt it.
	mergeMu sync.Mutex

	mu           sync.Mutex
	gitBacked    bool
	baseRevision string
	workspaces   map[variant.Variant]*Info
}

// NewManager constructs a manager for one run rooted at cfg.BaseDir.
func NewManager(cfg Config) *Manager {
	if cfg.Root == "" {
		cfg.Root = filepath.Join(cfg.BaseDir, ".arena", "workspaces")
	}
	if len(cfg.ExcludeDirs) == 0 {
		cfg.ExcludeDirs = DefaultExcludeDirs()
	}
	return &Manager{
		cfg:        cfg,
		workspaces: make(map[variant.Variant]*Info),
	}
}

// Initialize detects whether the base directory is a git tree and, if so,
// records the current HEAD as the run's baseline revision. Detection failure
// is not an error; the run proceeds with copy-based isolation.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo, err := git.PlainOpen(m.cfg.BaseDir)
	if err != nil {
		return nil
	}
	head, err := repo.Head()
	if err != nil {
		return nil
	}
	m.gitBacked = true
	m.baseRevision = head.Hash().String()
	return nil
}

// GitBacked reports whether the base directory has usable revision history.
func (m *Manager) GitBacked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gitBacked
}

// BaseRevision returns the baseline revision recorded at initialization,
// empty for copy-based runs.
func (m *Manager) BaseRevision() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseRevision
}

// branchName derives a run-scoped branch for a variant.
func (m *Manager) branchName(v variant.Variant) string {
	return fmt.Sprintf("arena/%s/%s", m.cfg.RunID, v)
}

func (m *Manager) variantDir(v variant.Variant) string {
	return filepath.Join(m.cfg.Root, m.cfg.RunID, string(v))
}

// CreateVariantWorkspace returns the variant's workspace, creating it on
// first use. Idempotent: a second call in the same run returns the same
// workspace. For primary this is always the original directory. For other
// variants a branch-backed worktree is attempted first; any failure falls
// back to a recursive filesystem copy and never propagates past this
// boundary.
func (m *Manager) CreateVariantWorkspace(v variant.Variant) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.workspaces[v]; ok {
		return *existing, nil
	}

	info := &Info{
		Variant:      v,
		BaseRevision: m.baseRevision,
		CreatedAt:    time.Now(),
	}

	if v == variant.VariantPrimary {
		info.Path = m.cfg.BaseDir
		info.Kind = KindOriginal
		m.workspaces[v] = info
		m.publish(telemetry.EventWorkspaceCreated, v, string(KindOriginal))
		return *info, nil
	}

	if m.gitBacked {
		if err := m.addWorktree(info, v); err == nil {
			m.workspaces[v] = info
			m.publish(telemetry.EventWorkspaceCreated, v, string(KindIsolated))
			return *info, nil
		}
	}

	if err := m.copyWorkspace(info, v); err != nil {
		return Info{}, fmt.Errorf("copy fallback for %s: %w", v, err)
	}
	m.workspaces[v] = info
	m.publish(telemetry.EventWorkspaceFallback, v, string(KindCopy))
	return *info, nil
}

// addWorktree creates a branch-backed git worktree for the variant.
func (m *Manager) addWorktree(info *Info, v variant.Variant) error {
	branch := m.branchName(v)
	path := filepath.Join(m.variantDir(v), "source")

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("worktree path already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create worktree directory: %w", err)
	}

	cmd := exec.Command("git", "worktree", "add", "-b", branch, path, "HEAD")
	cmd.Dir = m.cfg.BaseDir
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git worktree add: %w\nOutput: %s", err, output)
	}

	info.Path = path
	info.Kind = KindIsolated
	info.Branch = branch
	return nil
}

// copyWorkspace duplicates the base directory, keeping a pristine baseline
// mirror alongside the working copy so diffs stay available without
// revision history.
func (m *Manager) copyWorkspace(info *Info, v variant.Variant) error {
	dir := m.variantDir(v)
	source := filepath.Join(dir, "source")
	baseline := filepath.Join(dir, "baseline")

	if err := copyTree(m.cfg.BaseDir, source, m.cfg.ExcludeDirs); err != nil {
		return err
	}
	if err := copyTree(source, baseline, m.cfg.ExcludeDirs); err != nil {
		return err
	}

	info.Path = source
	info.Kind = KindCopy
	return nil
}

// Workspace returns the variant's workspace if it was created.
func (m *Manager) Workspace(v variant.Variant) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info, ok := m.workspaces[v]; ok {
		return *info, true
	}
	return Info{}, false
}

// WorkspaceRoots returns the path of every created workspace, keyed by
// variant, for parallel-eligibility checks.
func (m *Manager) WorkspaceRoots() map[variant.Variant]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	roots := make(map[variant.Variant]string, len(m.workspaces))
	for v, info := range m.workspaces {
		roots[v] = info.Path
	}
	return roots
}

// Cleanup removes every non-primary workspace: the worktree and its branch,
// or the filesystem copy. Best-effort and safe to call repeatedly; a
// workspace already removed externally is not an error.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for v, info := range m.workspaces {
		if info.Kind == KindOriginal {
			continue
		}

		if info.Kind == KindIsolated {
			cmd := exec.Command("git", "worktree", "remove", "--force", info.Path)
			cmd.Dir = m.cfg.BaseDir
			_, _ = cmd.CombinedOutput()

			if info.Branch != "" {
				cmd = exec.Command("git", "branch", "-D", info.Branch)
				cmd.Dir = m.cfg.BaseDir
				_, _ = cmd.CombinedOutput()
			}
		}

		_ = os.RemoveAll(m.variantDir(v))
		delete(m.workspaces, v)
		m.publish(telemetry.EventWorkspaceCleaned, v, string(info.Kind))
	}

	// Drop the run directory if nothing else lives there.
	_ = os.Remove(filepath.Join(m.cfg.Root, m.cfg.RunID))
}

func (m *Manager) publish(eventType telemetry.EventType, v variant.Variant, kind string) {
	m.cfg.Hub.Publish(telemetry.Event{
		Type:  eventType,
		RunID: m.cfg.RunID,
		Data: map[string]any{
			"variant": string(v),
			"kind":    kind,
		},
	})
}
