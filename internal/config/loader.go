package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mvp-joe/project-remedy/internal/graph"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
	file    string
}

// NewLoader creates a loader that searches <rootDir>/.remedy for
// config.yml or config.yaml.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// NewFileLoader creates a loader that reads an explicit config file. The
// file must exist.
func NewFileLoader(rootDir, file string) Loader {
	return &loader{rootDir: rootDir, file: file}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (REMEDY_*)
// 2. Config file (.remedy/config.yml or .remedy/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, graph.StateDir))
	}

	v.SetEnvPrefix("REMEDY")
	v.AutomaticEnv()
	// REMEDY_POLICY_AUTO_APPLY_CONFIDENCE -> policy.auto_apply_confidence
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range envKeys {
		v.BindEnv(key)
	}
	v.BindEnv("drafter.api_key", "REMEDY_DRAFTER_API_KEY", "OPENAI_API_KEY")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Only a missing file from the default search is acceptable.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || l.file != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// envKeys are the scalar keys that may be overridden from the environment.
var envKeys = []string{
	"checker.command",
	"checker.timeout",
	"drafter.provider",
	"drafter.endpoint",
	"drafter.model",
	"drafter.timeout",
	"drafter.temperature",
	"policy.auto_apply_confidence",
	"policy.knowledge_threshold",
	"policy.learned_threshold",
	"policy.initial_confidence",
	"policy.context_lines",
	"policy.confidence_step",
	"policy.max_confidence",
	"storage.knowledge_path",
	"storage.backup_dir",
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("paths.code", d.Paths.Code)
	v.SetDefault("paths.ignore", d.Paths.Ignore)

	v.SetDefault("checker.command", d.Checker.Command)
	v.SetDefault("checker.args", d.Checker.Args)
	v.SetDefault("checker.timeout", d.Checker.Timeout)

	v.SetDefault("drafter.provider", d.Drafter.Provider)
	v.SetDefault("drafter.endpoint", d.Drafter.Endpoint)
	v.SetDefault("drafter.model", d.Drafter.Model)
	v.SetDefault("drafter.api_key", d.Drafter.APIKey)
	v.SetDefault("drafter.timeout", d.Drafter.Timeout)
	v.SetDefault("drafter.temperature", d.Drafter.Temperature)

	v.SetDefault("policy.auto_apply_confidence", d.Policy.AutoApplyConfidence)
	v.SetDefault("policy.knowledge_threshold", d.Policy.KnowledgeThreshold)
	v.SetDefault("policy.learned_threshold", d.Policy.LearnedThreshold)
	v.SetDefault("policy.initial_confidence", d.Policy.InitialConfidence)
	v.SetDefault("policy.context_lines", d.Policy.ContextLines)
	v.SetDefault("policy.severity_bands.medium", d.Policy.SeverityBands.Medium)
	v.SetDefault("policy.severity_bands.high", d.Policy.SeverityBands.High)
	v.SetDefault("policy.severity_bands.critical", d.Policy.SeverityBands.Critical)
	v.SetDefault("policy.confidence_step", d.Policy.ConfidenceStep)
	v.SetDefault("policy.max_confidence", d.Policy.MaxConfidence)

	v.SetDefault("storage.knowledge_path", d.Storage.KnowledgePath)
	v.SetDefault("storage.backup_dir", d.Storage.BackupDir)
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
