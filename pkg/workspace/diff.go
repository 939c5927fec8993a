package workspace

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/boshang1988/arena/pkg/variant"
)

// Diff describes a variant's changes relative to the run baseline.
type Diff struct {
	Variant    variant.Variant
	Files      []string
	Insertions int
	Deletions  int
	Patch      string
}

// Comparison is the overlap between the primary's and refiner's change sets.
type Comparison struct {
	PrimaryOnly []string
	RefinerOnly []string
	Overlap     []string
	// Conflicts are overlapping files whose contents differ between the two
	// workspaces and need manual resolution before a naive merge.
	Conflicts []string
}

// GetVariantDiff computes the variant's changes against the baseline
// revision. Worktree-backed workspaces use git; copy workspaces diff their
// working tree against the pristine baseline mirror kept at creation time.
// The original workspace without revision history yields an empty diff,
// a documented limitation callers must tolerate.
func (m *Manager) GetVariantDiff(v variant.Variant) (*Diff, error) {
	info, ok := m.Workspace(v)
	if !ok {
		return nil, fmt.Errorf("no workspace for variant %s", v)
	}

	switch info.Kind {
	case KindCopy:
		return m.copyDiff(v, info)
	case KindOriginal:
		if !m.GitBacked() {
			return &Diff{Variant: v}, nil
		}
		return m.gitDiff(v, info)
	default:
		return m.gitDiff(v, info)
	}
}

// gitDiff collects changed files from worktree status and patch text from
// the git CLI. Untracked files are diffed against empty content so they
// still show up in the patch.
func (m *Manager) gitDiff(v variant.Variant, info Info) (*Diff, error) {
	diff := &Diff{Variant: v}
	base := info.BaseRevision
	if base == "" {
		base = m.BaseRevision()
	}

	repo, err := git.PlainOpenWithOptions(info.Path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open workspace repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	var untracked []string
	for file, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		diff.Files = append(diff.Files, file)
		if st.Worktree == git.Untracked {
			untracked = append(untracked, file)
		}
	}
	sort.Strings(diff.Files)

	if base != "" {
		cmd := exec.Command("git", "diff", base)
		cmd.Dir = info.Path
		if output, err := cmd.Output(); err == nil {
			diff.Patch = string(output)
		}

		cmd = exec.Command("git", "diff", "--numstat", base)
		cmd.Dir = info.Path
		if output, err := cmd.Output(); err == nil {
			insertions, deletions := parseNumstat(string(output))
			diff.Insertions += insertions
			diff.Deletions += deletions
		}
	}

	sort.Strings(untracked)
	for _, file := range untracked {
		content, err := os.ReadFile(filepath.Join(info.Path, file))
		if err != nil {
			continue
		}
		patch, added := newFilePatch(file, string(content))
		diff.Patch += patch
		diff.Insertions += added
	}

	return diff, nil
}

// copyDiff walks the working copy against its baseline mirror, comparing
// content hashes, and builds unified diffs for changed files.
func (m *Manager) copyDiff(v variant.Variant, info Info) (*Diff, error) {
	diff := &Diff{Variant: v}
	baseline := filepath.Join(filepath.Dir(info.Path), "baseline")

	currentHashes, err := hashTree(info.Path, m.cfg.ExcludeDirs)
	if err != nil {
		return nil, fmt.Errorf("hash working copy: %w", err)
	}
	baselineHashes, err := hashTree(baseline, m.cfg.ExcludeDirs)
	if err != nil {
		return nil, fmt.Errorf("hash baseline: %w", err)
	}

	changed := make(map[string]struct{})
	for file, hash := range currentHashes {
		if baseHash, ok := baselineHashes[file]; !ok || baseHash != hash {
			changed[file] = struct{}{}
		}
	}
	for file := range baselineHashes {
		if _, ok := currentHashes[file]; !ok {
			changed[file] = struct{}{}
		}
	}

	diff.Files = make([]string, 0, len(changed))
	for file := range changed {
		diff.Files = append(diff.Files, file)
	}
	sort.Strings(diff.Files)

	var patch strings.Builder
	for _, file := range diff.Files {
		oldContent := readFileOrEmpty(filepath.Join(baseline, file))
		newContent := readFileOrEmpty(filepath.Join(info.Path, file))

		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(oldContent),
			B:        difflib.SplitLines(newContent),
			FromFile: "a/" + file,
			ToFile:   "b/" + file,
			Context:  3,
		})
		if err != nil {
			continue
		}
		patch.WriteString(text)

		added, removed := countPatchLines(text)
		diff.Insertions += added
		diff.Deletions += removed
	}
	diff.Patch = patch.String()

	return diff, nil
}

// CompareVariants intersects the changed-file sets of primary and refiner
// and byte-compares overlapping files to flag conflicts.
func (m *Manager) CompareVariants() (*Comparison, error) {
	primaryDiff, err := m.GetVariantDiff(variant.VariantPrimary)
	if err != nil {
		return nil, err
	}
	refinerDiff, err := m.GetVariantDiff(variant.VariantRefiner)
	if err != nil {
		return nil, err
	}

	primaryInfo, _ := m.Workspace(variant.VariantPrimary)
	refinerInfo, _ := m.Workspace(variant.VariantRefiner)

	refinerSet := make(map[string]struct{}, len(refinerDiff.Files))
	for _, file := range refinerDiff.Files {
		refinerSet[file] = struct{}{}
	}

	comparison := &Comparison{}
	primarySet := make(map[string]struct{}, len(primaryDiff.Files))
	for _, file := range primaryDiff.Files {
		primarySet[file] = struct{}{}
		if _, both := refinerSet[file]; !both {
			comparison.PrimaryOnly = append(comparison.PrimaryOnly, file)
			continue
		}
		comparison.Overlap = append(comparison.Overlap, file)

		primaryContent := readBytesOrNil(filepath.Join(primaryInfo.Path, file))
		refinerContent := readBytesOrNil(filepath.Join(refinerInfo.Path, file))
		if !bytes.Equal(primaryContent, refinerContent) {
			comparison.Conflicts = append(comparison.Conflicts, file)
		}
	}
	for _, file := range refinerDiff.Files {
		if _, both := primarySet[file]; !both {
			comparison.RefinerOnly = append(comparison.RefinerOnly, file)
		}
	}

	sort.Strings(comparison.PrimaryOnly)
	sort.Strings(comparison.RefinerOnly)
	sort.Strings(comparison.Overlap)
	sort.Strings(comparison.Conflicts)
	return comparison, nil
}

// hashTree maps relative file path to content hash for every regular file
// under root, skipping excluded directories.
func hashTree(root string, excludeDirs []string) (map[string]string, error) {
	excluded := make(map[string]struct{}, len(excludeDirs))
	for _, name := range excludeDirs {
		excluded[name] = struct{}{}
	}

	hashes := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := excluded[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		hash, err := fileHash(path)
		if err != nil {
			return err
		}
		hashes[rel] = hash
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func readFileOrEmpty(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func readBytesOrNil(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return data
}

func newFilePatch(file, content string) (string, int) {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        nil,
		B:        difflib.SplitLines(content),
		FromFile: "/dev/null",
		ToFile:   "b/" + file,
		Context:  3,
	})
	if err != nil {
		return "", 0
	}
	added, _ := countPatchLines(text)
	return text, added
}

// countPatchLines counts insertions and deletions in a unified diff.
func countPatchLines(patch string) (added, removed int) {
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

// parseNumstat sums the insertion/deletion columns of git diff --numstat.
func parseNumstat(output string) (insertions, deletions int) {
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if n, err := strconv.Atoi(fields[0]); err == nil {
			insertions += n
		}
		if n, err := strconv.Atoi(fields[1]); err == nil {
			deletions += n
		}
	}
	return insertions, deletions
}
