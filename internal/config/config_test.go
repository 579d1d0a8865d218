package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/project-remedy/internal/knowledge"
	"github.com/mvp-joe/project-remedy/internal/typemodel"
)

// Test Plan for Config System:
// - Default() returns valid configuration with all expected defaults
// - Load() uses defaults when no config file exists
// - Load() loads from .remedy/config.yml and .remedy/config.yaml
// - Load() merges a partial config file with defaults
// - Environment variables override config file values and defaults
// - OPENAI_API_KEY feeds drafter.api_key
// - Load() returns error for malformed YAML and invalid values
// - NewFileLoader requires the named file to exist
// - Validate() rejects each out-of-range field and reports several at once
// - Conversion helpers map onto knowledge and analysis options
// - SourceExtensions derives watched extensions from code patterns

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, ".remedy")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	return root
}

func TestDefault_ReturnsValidConfiguration(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NotNil(t, cfg)

	assert.Equal(t, []string{"**/*.ts", "**/*.tsx"}, cfg.Paths.Code)
	assert.Contains(t, cfg.Paths.Ignore, "node_modules/**")
	assert.NotContains(t, cfg.Paths.Ignore, "**/*.d.ts")

	assert.Equal(t, "npx", cfg.Checker.Command)
	assert.Equal(t, []string{"tsc", "--noEmit", "--pretty", "false"}, cfg.Checker.Args)
	assert.Equal(t, 120*time.Second, cfg.Checker.Timeout)

	assert.Equal(t, ProviderOpenAI, cfg.Drafter.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Drafter.Endpoint)
	assert.Equal(t, 60*time.Second, cfg.Drafter.Timeout)

	assert.Equal(t, 0.8, cfg.Policy.AutoApplyConfidence)
	assert.Equal(t, 0.8, cfg.Policy.KnowledgeThreshold)
	assert.Equal(t, 0.5, cfg.Policy.LearnedThreshold)
	assert.Equal(t, 5, cfg.Policy.ContextLines)
	assert.Equal(t, typemodel.SeverityBands{Medium: 5, High: 10, Critical: 20}, cfg.Policy.SeverityBands)
	assert.Equal(t, 0.1, cfg.Policy.ConfidenceStep)
	assert.Equal(t, 0.99, cfg.Policy.MaxConfidence)

	assert.Equal(t, filepath.Join(".remedy", "knowledge.db"), cfg.Storage.KnowledgePath)
	assert.Equal(t, filepath.Join(".remedy", "backups"), cfg.Storage.BackupDir)

	assert.NoError(t, Validate(cfg))
}

func TestLoad_UsesDefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader(t.TempDir()).Load()
	require.NoError(t, err)

	expected := Default()
	assert.Equal(t, expected.Paths, cfg.Paths)
	assert.Equal(t, expected.Checker, cfg.Checker)
	assert.Equal(t, expected.Policy, cfg.Policy)
	assert.Equal(t, expected.Storage, cfg.Storage)
}

func TestLoad_FromConfigYml(t *testing.T) {
	t.Parallel()

	root := writeConfig(t, "config.yml", `
paths:
  code: ["src/**/*.ts"]
  ignore: ["src/generated/**"]
checker:
  command: node
  args: ["node_modules/.bin/tsc", "--noEmit"]
  timeout: 90s
drafter:
  provider: none
policy:
  auto_apply_confidence: 0.9
  context_lines: 3
  severity_bands:
    medium: 2
    high: 4
    critical: 8
storage:
  backup_dir: /tmp/remedy-backups
`)

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"src/**/*.ts"}, cfg.Paths.Code)
	assert.Equal(t, []string{"src/generated/**"}, cfg.Paths.Ignore)
	assert.Equal(t, "node", cfg.Checker.Command)
	assert.Equal(t, []string{"node_modules/.bin/tsc", "--noEmit"}, cfg.Checker.Args)
	assert.Equal(t, 90*time.Second, cfg.Checker.Timeout)
	assert.Equal(t, ProviderNone, cfg.Drafter.Provider)
	assert.Equal(t, 0.9, cfg.Policy.AutoApplyConfidence)
	assert.Equal(t, 3, cfg.Policy.ContextLines)
	assert.Equal(t, typemodel.SeverityBands{Medium: 2, High: 4, Critical: 8}, cfg.Policy.SeverityBands)

	assert.Equal(t, "/tmp/remedy-backups", cfg.BackupDir(root))
	assert.Equal(t, filepath.Join(root, ".remedy", "knowledge.db"), cfg.KnowledgePath(root))
}

func TestLoad_FromConfigYaml(t *testing.T) {
	t.Parallel()

	root := writeConfig(t, "config.yaml", `
drafter:
  model: llama3
`)

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)
	assert.Equal(t, "llama3", cfg.Drafter.Model)
}

func TestLoad_MergesConfigWithDefaults(t *testing.T) {
	t.Parallel()

	root := writeConfig(t, "config.yml", `
policy:
  learned_threshold: 0.6
`)

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Policy.LearnedThreshold)
	assert.Equal(t, 0.8, cfg.Policy.KnowledgeThreshold)
	assert.Equal(t, Default().Paths.Code, cfg.Paths.Code)
	assert.Equal(t, "npx", cfg.Checker.Command)
}

func TestLoad_EnvironmentOverridesConfigFile(t *testing.T) {
	// Note: Cannot use t.Parallel() with t.Setenv()
	root := writeConfig(t, "config.yml", `
drafter:
  model: file-model
policy:
  auto_apply_confidence: 0.7
`)

	t.Setenv("REMEDY_DRAFTER_MODEL", "env-model")
	t.Setenv("REMEDY_POLICY_AUTO_APPLY_CONFIDENCE", "0.95")
	t.Setenv("REMEDY_CHECKER_TIMEOUT", "30s")

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.Equal(t, "env-model", cfg.Drafter.Model)
	assert.Equal(t, 0.95, cfg.Policy.AutoApplyConfidence)
	assert.Equal(t, 30*time.Second, cfg.Checker.Timeout)
}

func TestLoad_APIKeyFromEnvironment(t *testing.T) {
	// Note: Cannot use t.Parallel() with t.Setenv()
	t.Setenv("REMEDY_DRAFTER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := NewLoader(t.TempDir()).Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Drafter.APIKey)

	t.Setenv("REMEDY_DRAFTER_API_KEY", "sk-remedy")
	cfg, err = NewLoader(t.TempDir()).Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-remedy", cfg.Drafter.APIKey)
}

func TestLoad_ReturnsErrorForMalformedYaml(t *testing.T) {
	t.Parallel()

	root := writeConfig(t, "config.yml", "policy: [unterminated\n")

	_, err := NewLoader(root).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_ReturnsErrorForInvalidValues(t *testing.T) {
	t.Parallel()

	root := writeConfig(t, "config.yml", `
policy:
  knowledge_threshold: 1.5
`)

	_, err := NewLoader(root).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestNewFileLoader(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, err := NewFileLoader(root, filepath.Join(root, "missing.yml")).Load()
	require.Error(t, err)

	file := filepath.Join(root, "custom.yml")
	require.NoError(t, os.WriteFile(file, []byte("drafter:\n  provider: none\n"), 0644))
	cfg, err := NewFileLoader(root, file).Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderNone, cfg.Drafter.Provider)
}

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty code patterns", func(c *Config) { c.Paths.Code = nil }, ErrEmptyPatterns},
		{"empty command", func(c *Config) { c.Checker.Command = " " }, ErrEmptyCommand},
		{"zero checker timeout", func(c *Config) { c.Checker.Timeout = 0 }, ErrInvalidTimeout},
		{"unknown provider", func(c *Config) { c.Drafter.Provider = "anthropic" }, ErrInvalidProvider},
		{"openai without model", func(c *Config) { c.Drafter.Model = "" }, ErrEmptyModel},
		{"negative drafter timeout", func(c *Config) { c.Drafter.Timeout = -time.Second }, ErrInvalidTimeout},
		{"auto apply above one", func(c *Config) { c.Policy.AutoApplyConfidence = 1.1 }, ErrInvalidThreshold},
		{"negative learned threshold", func(c *Config) { c.Policy.LearnedThreshold = -0.1 }, ErrInvalidThreshold},
		{"zero confidence step", func(c *Config) { c.Policy.ConfidenceStep = 0 }, ErrInvalidThreshold},
		{"initial above max", func(c *Config) { c.Policy.InitialConfidence = 0.9; c.Policy.MaxConfidence = 0.8 }, ErrInvalidThreshold},
		{"negative context lines", func(c *Config) { c.Policy.ContextLines = -1 }, ErrInvalidThreshold},
		{"bands out of order", func(c *Config) { c.Policy.SeverityBands.High = 30 }, ErrInvalidBands},
		{"empty backup dir", func(c *Config) { c.Storage.BackupDir = "" }, ErrEmptyStoragePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, Validate(cfg), tt.want)
		})
	}
}

func TestValidate_NoneProviderNeedsNoModel(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Drafter.Provider = ProviderNone
	cfg.Drafter.Model = ""
	assert.NoError(t, Validate(cfg))
}

func TestValidate_ReturnsMultipleErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Checker.Command = ""
	cfg.Drafter.Provider = "bogus"
	cfg.Policy.KnowledgeThreshold = 2

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.ErrorIs(t, err, ErrEmptyCommand)
	assert.ErrorIs(t, err, ErrInvalidProvider)
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestConversions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Policy.KnowledgeThreshold = 0.85

	assert.Equal(t, knowledge.Policy{
		KnowledgeThreshold: 0.85,
		LearnedThreshold:   0.5,
		InitialConfidence:  0.5,
		ConfidenceStep:     0.1,
		MaxConfidence:      0.99,
	}, cfg.KnowledgePolicy())

	opts := cfg.AnalysisOptions()
	assert.Equal(t, cfg.Paths.Code, opts.Code)
	assert.Equal(t, 5, opts.ContextLines)

	oc := cfg.OpenAIConfig()
	assert.Equal(t, cfg.Drafter.Endpoint, oc.Endpoint)
	assert.Equal(t, cfg.Drafter.Model, oc.Model)
}

func TestSourceExtensions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Paths.Code = []string{"**/*.ts", "src/**/*.tsx", "lib/*.ts", "scripts/**"}
	assert.Equal(t, []string{".ts", ".tsx"}, cfg.SourceExtensions())

	assert.Equal(t, ".ts", extractExtension("**/*.ts"))
	assert.Equal(t, "", extractExtension("src/**"))
}
