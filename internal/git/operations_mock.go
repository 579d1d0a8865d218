package git

// MockGitOps is a mock implementation of Operations for testing.
type MockGitOps struct {
	Branch       string
	Commit       string
	Changed      []string
	ChangedError error
	Root         string
}

// NewMockGitOps creates a mock with sensible defaults.
func NewMockGitOps() *MockGitOps {
	return &MockGitOps{
		Branch: "main",
		Commit: "abc1234",
		Root:   "/tmp/test-repo",
	}
}

func (m *MockGitOps) CurrentBranch(projectPath string) string {
	return m.Branch
}

func (m *MockGitOps) HeadCommit(projectPath string) string {
	return m.Commit
}

func (m *MockGitOps) ChangedFiles(projectPath string) ([]string, error) {
	if m.ChangedError != nil {
		return nil, m.ChangedError
	}
	return m.Changed, nil
}

func (m *MockGitOps) WorktreeRoot(projectPath string) string {
	return m.Root
}
