// Package git reads repository metadata recorded in run reports.
package git

import (
	"os/exec"
	"strings"
)

// Operations defines the git queries remedy needs.
// This allows mocking git commands in tests.
type Operations interface {
	// CurrentBranch returns the current branch name.
	// For detached HEAD, returns "detached-{short-hash}".
	// Returns "unknown" if all git commands fail.
	CurrentBranch(projectPath string) string

	// HeadCommit returns the short hash of HEAD, or "" outside a repository.
	HeadCommit(projectPath string) string

	// ChangedFiles returns paths with uncommitted changes, as reported by
	// git status relative to the worktree root.
	ChangedFiles(projectPath string) ([]string, error)

	// WorktreeRoot returns the git worktree root path.
	// Falls back to projectPath if not a git repository.
	WorktreeRoot(projectPath string) string
}

// gitOps is the real implementation using exec.Command.
type gitOps struct{}

// NewOperations returns the default git operations implementation.
func NewOperations() Operations {
	return &gitOps{}
}

func run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

func (g *gitOps) CurrentBranch(projectPath string) string {
	branch, err := run(projectPath, "branch", "--show-current")
	if err == nil && branch != "" {
		return branch
	}
	// Might be detached HEAD
	hash, err := run(projectPath, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "unknown"
	}
	return "detached-" + hash
}

func (g *gitOps) HeadCommit(projectPath string) string {
	hash, err := run(projectPath, "rev-parse", "--short", "HEAD")
	if err != nil {
		return ""
	}
	return hash
}

func (g *gitOps) ChangedFiles(projectPath string) ([]string, error) {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = projectPath
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(string(output), "\n") {
		// Porcelain lines are "XY path" or "XY old -> new".
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		files = append(files, strings.Trim(path, `"`))
	}
	return files, nil
}

func (g *gitOps) WorktreeRoot(projectPath string) string {
	root, err := run(projectPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return projectPath
	}
	return root
}

// Info is the repository state captured at the start of a run.
type Info struct {
	Branch  string   `json:"branch"`
	Commit  string   `json:"commit,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

// Dirty reports whether the worktree had uncommitted changes.
func (i Info) Dirty() bool {
	return len(i.Changed) > 0
}

// Describe collects Info for projectPath. Outside a repository the
// branch is "unknown" and nothing else is set.
func Describe(ops Operations, projectPath string) Info {
	if ops == nil {
		ops = defaultGitOps
	}
	info := Info{
		Branch: ops.CurrentBranch(projectPath),
		Commit: ops.HeadCommit(projectPath),
	}
	if info.Commit == "" {
		return info
	}
	if changed, err := ops.ChangedFiles(projectPath); err == nil {
		info.Changed = changed
	}
	return info
}

// Package-level variable for dependency injection.
// Tests can replace this with a mock implementation.
var defaultGitOps Operations = NewOperations()
