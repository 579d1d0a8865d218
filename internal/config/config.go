// Package config loads remedy's project configuration.
//
// Configuration is read from <root>/.remedy/config.yml (or .yaml) with
// environment overrides:
//
//  1. Environment variables (REMEDY_*, nested keys joined with _)
//  2. Config file
//  3. Built-in defaults
//
// Every scoring threshold lives under policy so it can be tuned per
// project.
package config

import (
	"path/filepath"
	"time"

	"github.com/mvp-joe/project-remedy/internal/analysis"
	"github.com/mvp-joe/project-remedy/internal/checker"
	"github.com/mvp-joe/project-remedy/internal/drafter"
	"github.com/mvp-joe/project-remedy/internal/graph"
	"github.com/mvp-joe/project-remedy/internal/knowledge"
	"github.com/mvp-joe/project-remedy/internal/typemodel"
)

// Config represents the complete remedy configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	Checker CheckerConfig `yaml:"checker" mapstructure:"checker"`
	Drafter DrafterConfig `yaml:"drafter" mapstructure:"drafter"`
	Policy  PolicyConfig  `yaml:"policy" mapstructure:"policy"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
}

// PathsConfig defines which files are analysed.
type PathsConfig struct {
	Code   []string `yaml:"code" mapstructure:"code"`     // glob patterns for source files
	Ignore []string `yaml:"ignore" mapstructure:"ignore"` // glob patterns to skip
}

// CheckerConfig describes the external type-checker command.
type CheckerConfig struct {
	Command string        `yaml:"command" mapstructure:"command"`
	Args    []string      `yaml:"args" mapstructure:"args"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DrafterConfig configures the fix-drafting oracle.
type DrafterConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // "openai" or "none"
	Endpoint    string        `yaml:"endpoint" mapstructure:"endpoint"` // OpenAI-compatible base URL
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
}

// PolicyConfig holds the tunable thresholds.
type PolicyConfig struct {
	AutoApplyConfidence float64                 `yaml:"auto_apply_confidence" mapstructure:"auto_apply_confidence"`
	KnowledgeThreshold  float64                 `yaml:"knowledge_threshold" mapstructure:"knowledge_threshold"`
	LearnedThreshold    float64                 `yaml:"learned_threshold" mapstructure:"learned_threshold"`
	InitialConfidence   float64                 `yaml:"initial_confidence" mapstructure:"initial_confidence"`
	ContextLines        int                     `yaml:"context_lines" mapstructure:"context_lines"`
	SeverityBands       typemodel.SeverityBands `yaml:"severity_bands" mapstructure:"severity_bands"`
	ConfidenceStep      float64                 `yaml:"confidence_step" mapstructure:"confidence_step"`
	MaxConfidence       float64                 `yaml:"max_confidence" mapstructure:"max_confidence"`
}

// StorageConfig locates persistent state. Relative paths resolve
// against the project root.
type StorageConfig struct {
	KnowledgePath string `yaml:"knowledge_path" mapstructure:"knowledge_path"`
	BackupDir     string `yaml:"backup_dir" mapstructure:"backup_dir"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	kp := knowledge.DefaultPolicy()
	return &Config{
		Paths: PathsConfig{
			Code: []string{
				"**/*.ts",
				"**/*.tsx",
			},
			Ignore: []string{
				"node_modules/**",
				"dist/**",
				"build/**",
				".git/**",
				"coverage/**",
			},
		},
		Checker: CheckerConfig{
			Command: "npx",
			Args:    []string{"tsc", "--noEmit", "--pretty", "false"},
			Timeout: checker.DefaultTimeout,
		},
		Drafter: DrafterConfig{
			Provider: ProviderOpenAI,
			Endpoint: "http://localhost:11434/v1",
			Model:    "qwen2.5-coder",
			Timeout:  drafter.DefaultTimeout,
		},
		Policy: PolicyConfig{
			AutoApplyConfidence: 0.8,
			KnowledgeThreshold:  kp.KnowledgeThreshold,
			LearnedThreshold:    kp.LearnedThreshold,
			InitialConfidence:   kp.InitialConfidence,
			ContextLines:        5,
			SeverityBands:       typemodel.DefaultSeverityBands(),
			ConfidenceStep:      kp.ConfidenceStep,
			MaxConfidence:       kp.MaxConfidence,
		},
		Storage: StorageConfig{
			KnowledgePath: filepath.Join(graph.StateDir, "knowledge.db"),
			BackupDir:     filepath.Join(graph.StateDir, "backups"),
		},
	}
}

// Drafter providers.
const (
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// KnowledgePolicy converts the policy section for the knowledge store.
func (c *Config) KnowledgePolicy() knowledge.Policy {
	return knowledge.Policy{
		KnowledgeThreshold: c.Policy.KnowledgeThreshold,
		LearnedThreshold:   c.Policy.LearnedThreshold,
		InitialConfidence:  c.Policy.InitialConfidence,
		ConfidenceStep:     c.Policy.ConfidenceStep,
		MaxConfidence:      c.Policy.MaxConfidence,
	}
}

// AnalysisOptions converts the paths and policy sections for the
// analysis builder.
func (c *Config) AnalysisOptions() analysis.Options {
	return analysis.Options{
		Code:         c.Paths.Code,
		Ignore:       c.Paths.Ignore,
		Bands:        c.Policy.SeverityBands,
		ContextLines: c.Policy.ContextLines,
	}
}

// OpenAIConfig converts the drafter section for the OpenAI drafter.
func (c *Config) OpenAIConfig() drafter.Config {
	return drafter.Config{
		Endpoint:    c.Drafter.Endpoint,
		Model:       c.Drafter.Model,
		APIKey:      c.Drafter.APIKey,
		Timeout:     c.Drafter.Timeout,
		Temperature: c.Drafter.Temperature,
	}
}

// KnowledgePath returns the knowledge database path under root.
func (c *Config) KnowledgePath(root string) string {
	return resolve(root, c.Storage.KnowledgePath)
}

// BackupDir returns the backup directory under root.
func (c *Config) BackupDir(root string) string {
	return resolve(root, c.Storage.BackupDir)
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// SourceExtensions extracts the unique file extensions named by the code
// patterns, with leading dot, in pattern order.
func (c *Config) SourceExtensions() []string {
	seen := make(map[string]bool)
	var extensions []string
	for _, pattern := range c.Paths.Code {
		if ext := extractExtension(pattern); ext != "" && !seen[ext] {
			seen[ext] = true
			extensions = append(extensions, ext)
		}
	}
	return extensions
}

// extractExtension extracts the file extension from a glob pattern.
// Examples: "**/*.ts" -> ".ts", "src/*.tsx" -> ".tsx", "src/**" -> ""
func extractExtension(pattern string) string {
	for i := len(pattern) - 1; i >= 1; i-- {
		if pattern[i] == '.' && pattern[i-1] == '*' {
			return pattern[i:]
		}
	}
	return ""
}
