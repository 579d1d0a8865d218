package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidProvider indicates an unsupported drafter provider
	ErrInvalidProvider = errors.New("invalid drafter provider")

	// ErrEmptyModel indicates a missing drafter model
	ErrEmptyModel = errors.New("empty drafter model")

	// ErrEmptyCommand indicates a missing checker command
	ErrEmptyCommand = errors.New("empty checker command")

	// ErrInvalidTimeout indicates a non-positive timeout
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidThreshold indicates a policy value outside its range
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidBands indicates severity bands that are not ascending
	ErrInvalidBands = errors.New("invalid severity bands")

	// ErrEmptyPatterns indicates no source patterns
	ErrEmptyPatterns = errors.New("empty code patterns")

	// ErrEmptyStoragePath indicates a missing storage location
	ErrEmptyStoragePath = errors.New("empty storage path")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if len(cfg.Paths.Code) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one pattern required", ErrEmptyPatterns))
	}
	if err := validateChecker(&cfg.Checker); err != nil {
		errs = append(errs, err)
	}
	if err := validateDrafter(&cfg.Drafter); err != nil {
		errs = append(errs, err)
	}
	if err := validatePolicy(&cfg.Policy); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(cfg.Storage.KnowledgePath) == "" {
		errs = append(errs, fmt.Errorf("%w: knowledge_path is required", ErrEmptyStoragePath))
	}
	if strings.TrimSpace(cfg.Storage.BackupDir) == "" {
		errs = append(errs, fmt.Errorf("%w: backup_dir is required", ErrEmptyStoragePath))
	}

	return joinErrors(errs)
}

func validateChecker(cfg *CheckerConfig) error {
	var errs []error
	if strings.TrimSpace(cfg.Command) == "" {
		errs = append(errs, fmt.Errorf("%w: command is required", ErrEmptyCommand))
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: checker timeout must be positive, got %s", ErrInvalidTimeout, cfg.Timeout))
	}
	return joinErrors(errs)
}

func validateDrafter(cfg *DrafterConfig) error {
	var errs []error

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.Model) == "" {
			errs = append(errs, fmt.Errorf("%w: model is required for provider openai", ErrEmptyModel))
		}
	case ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("%w: must be 'openai' or 'none', got '%s'", ErrInvalidProvider, cfg.Provider))
	}

	if cfg.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: drafter timeout must be positive, got %s", ErrInvalidTimeout, cfg.Timeout))
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		errs = append(errs, fmt.Errorf("%w: temperature must be in [0, 2], got %v", ErrInvalidThreshold, cfg.Temperature))
	}

	return joinErrors(errs)
}

func validatePolicy(cfg *PolicyConfig) error {
	var errs []error

	unit := map[string]float64{
		"auto_apply_confidence": cfg.AutoApplyConfidence,
		"knowledge_threshold":   cfg.KnowledgeThreshold,
		"learned_threshold":     cfg.LearnedThreshold,
		"initial_confidence":    cfg.InitialConfidence,
		"max_confidence":        cfg.MaxConfidence,
	}
	for _, name := range []string{"auto_apply_confidence", "knowledge_threshold", "learned_threshold", "initial_confidence", "max_confidence"} {
		if v := unit[name]; v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%w: %s must be in [0, 1], got %v", ErrInvalidThreshold, name, v))
		}
	}
	if cfg.ConfidenceStep <= 0 || cfg.ConfidenceStep > 1 {
		errs = append(errs, fmt.Errorf("%w: confidence_step must be in (0, 1], got %v", ErrInvalidThreshold, cfg.ConfidenceStep))
	}
	if cfg.InitialConfidence > cfg.MaxConfidence {
		errs = append(errs, fmt.Errorf("%w: initial_confidence %v exceeds max_confidence %v", ErrInvalidThreshold, cfg.InitialConfidence, cfg.MaxConfidence))
	}
	if cfg.ContextLines < 0 {
		errs = append(errs, fmt.Errorf("%w: context_lines cannot be negative, got %d", ErrInvalidThreshold, cfg.ContextLines))
	}

	b := cfg.SeverityBands
	if b.Medium <= 0 || b.High <= b.Medium || b.Critical <= b.High {
		errs = append(errs, fmt.Errorf("%w: need 0 < medium < high < critical, got %v/%v/%v", ErrInvalidBands, b.Medium, b.High, b.Critical))
	}

	return joinErrors(errs)
}

// joinErrors combines multiple errors into a single error, or nil when
// there are none. The result still matches each sentinel with errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	return validationErrors(errs)
}

type validationErrors []error

func (e validationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e validationErrors) Unwrap() []error {
	return e
}
