package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mvp-joe/project-remedy/internal/parsers"
)

// ProgressReporter receives scan progress notifications.
type ProgressReporter interface {
	OnDiscoveryComplete(total int)
	OnFileScanned(path string)
	OnScanComplete(files, failures int, duration time.Duration)
}

// NoOpProgressReporter discards all notifications.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnDiscoveryComplete(int)                {}
func (NoOpProgressReporter) OnFileScanned(string)                   {}
func (NoOpProgressReporter) OnScanComplete(int, int, time.Duration) {}

// Scanner discovers and parses every matching source file under a root.
type Scanner struct {
	rootDir   string
	discovery *FileDiscovery
	parser    *parsers.Parser
	progress  ProgressReporter
	logger    *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithProgress sets the progress reporter.
func WithProgress(p ProgressReporter) ScannerOption {
	return func(s *Scanner) {
		if p != nil {
			s.progress = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScanner creates a scanner for rootDir using the given code and
// ignore glob patterns.
func NewScanner(rootDir string, codePatterns, ignorePatterns []string, opts ...ScannerOption) (*Scanner, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", rootDir, err)
	}

	discovery, err := NewFileDiscovery(absRoot, codePatterns, ignorePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid file patterns: %w", err)
	}

	s := &Scanner{
		rootDir:   absRoot,
		discovery: discovery,
		parser:    parsers.NewParser(),
		progress:  NoOpProgressReporter{},
		logger:    slog.Default().With("component", "graph"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute project root.
func (s *Scanner) Root() string {
	return s.rootDir
}

// Discovery returns the scanner's file discovery rules.
func (s *Scanner) Discovery() *FileDiscovery {
	return s.discovery
}

// Scan reads and parses every discovered file. Files that cannot be read
// or parsed are recorded in ScanResult.Failures and skipped.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	start := time.Now()

	paths, failures, err := s.discovery.Discover()
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	s.progress.OnDiscoveryComplete(len(paths))

	result := &ScanResult{
		Root:     s.rootDir,
		Files:    make(FileMap, len(paths)),
		Failures: failures,
	}

	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		file, err := s.ScanFile(ctx, rel)
		if err != nil {
			s.logger.Warn("skipping file", "path", rel, "error", err)
			result.Failures = append(result.Failures, ScanFailure{Path: rel, Err: err})
			continue
		}
		result.Files[rel] = file
		s.progress.OnFileScanned(rel)
	}

	result.Duration = time.Since(start)
	s.progress.OnScanComplete(len(result.Files), len(result.Failures), result.Duration)
	s.logger.Debug("scan complete", "files", len(result.Files), "failures", len(result.Failures), "duration", result.Duration)

	return result, nil
}

// ScanFile reads and parses a single file given its relative path.
func (s *Scanner) ScanFile(ctx context.Context, rel string) (*SourceFile, error) {
	abs := filepath.Join(s.rootDir, filepath.FromSlash(rel))

	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	facts, err := s.parser.Parse(ctx, rel, content)
	if err != nil {
		return nil, err
	}

	file := &SourceFile{
		Path:    filepath.ToSlash(rel),
		Size:    info.Size(),
		Hash:    HashContent(content),
		ModTime: info.ModTime(),
		Lines:   facts.LineCount,
		Facts:   facts,
		Content: content,
	}
	for _, imp := range facts.Imports {
		file.Imports = append(file.Imports, Import{Import: imp})
	}
	return file, nil
}

// HashContent returns the hex SHA-256 of file content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
