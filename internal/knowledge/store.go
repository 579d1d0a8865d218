package knowledge

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
)

// Store is the persisted cross-run memory of diagnostic patterns and
// verified remedies. All collections are held in memory and every
// mutation is written through to SQLite before the call returns.
type Store struct {
	db     *sql.DB
	path   string
	policy Policy
	logger *slog.Logger
	now    func() time.Time
	noSeed bool

	mu       sync.Mutex
	entries  map[string]*Entry
	patterns map[string]*LearnedPattern
	fixes    []VerifiedFix
	project  map[string]string
	contexts map[string]ContextRecord
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy overrides the scoring policy.
func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithoutSeed leaves an empty store empty.
func WithoutSeed() Option {
	return func(s *Store) { s.noSeed = true }
}

// Open opens (or creates) the store at path. ":memory:" opens a
// transient in-memory store. A missing database file is an empty store.
func Open(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create knowledge directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge database: %w", err)
	}
	// One connection keeps ":memory:" a single database and serialises writers.
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:       db,
		path:     path,
		policy:   DefaultPolicy(),
		logger:   slog.Default().With("component", "knowledge"),
		now:      time.Now,
		entries:  map[string]*Entry{},
		patterns: map[string]*LearnedPattern{},
		project:  map[string]string{},
		contexts: map[string]ContextRecord{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}

	if !s.noSeed && len(s.entries) == 0 {
		if err := s.seed(); err != nil {
			db.Close()
			return nil, err
		}
	}

	s.logger.Debug("knowledge store opened",
		"path", path,
		"entries", len(s.entries),
		"patterns", len(s.patterns),
		"fixes", len(s.fixes))
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Policy returns the active scoring policy.
func (s *Store) Policy() Policy {
	return s.policy
}

func (s *Store) seed() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	for _, e := range SeedEntries() {
		entry := e
		entry.UpdatedAt = now
		if err := upsertEntry(tx, &entry); err != nil {
			return err
		}
		s.entries[entry.ID] = &entry
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	s.logger.Info("seeded curated knowledge", "entries", len(s.entries))
	return nil
}

// AddEntry inserts or replaces a curated entry.
func (s *Store) AddEntry(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		return fmt.Errorf("knowledge entry requires an id")
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = s.now().UTC()
	}
	if err := s.withTx(func(tx *sql.Tx) error { return upsertEntry(tx, &e) }); err != nil {
		return err
	}
	s.entries[e.ID] = &e
	return nil
}

// PatternID returns the learned-pattern key for a diagnostic.
func PatternID(code string, category diagnostic.Category, ext string) string {
	sum := sha256.Sum256([]byte(code + "|" + string(category) + "|" + ext))
	return hex.EncodeToString(sum[:])[:16]
}

// StoreErrorPattern records a sighting of d. An empty scope keeps the
// scope already recorded. candidate, when non-nil, is remembered as the
// pattern's most recent unverified attempt.
func (s *Store) StoreErrorPattern(d diagnostic.Diagnostic, scope string, candidate *Solution) (*LearnedPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pattern(d)
	p.UsageCount++
	p.Message = d.Message
	if scope != "" {
		p.Scope = scope
	}
	p.LastSeen = s.now().UTC()
	if candidate != nil {
		c := *candidate
		p.LastAttempt = &c
	}

	if err := s.withTx(func(tx *sql.Tx) error { return upsertPattern(tx, p) }); err != nil {
		return nil, err
	}
	s.patterns[p.ID] = p

	out := *p
	return &out, nil
}

// StoreVerifiedFix records a fix that passed verification. The owning
// pattern's success count and confidence rise; a rule-sourced fix also
// raises its curated entry's confidence.
func (s *Store) StoreVerifiedFix(d diagnostic.Diagnostic, scope string, sol Solution) (*VerifiedFix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	p := s.pattern(d)
	if p.UsageCount == 0 {
		p.UsageCount = 1
	}
	p.SuccessCount++
	p.Confidence = s.raise(p.Confidence)
	p.Message = d.Message
	p.Scope = scope
	p.LastSeen = now
	solution := sol
	p.Solution = &solution

	fix := VerifiedFix{
		ID:          uuid.New().String(),
		PatternID:   p.ID,
		File:        d.File,
		Code:        d.Code,
		Message:     d.Message,
		Original:    sol.Original,
		Replacement: sol.Replacement,
		Origin:      sol.Origin,
		SourceID:    sol.SourceID,
		VerifiedAt:  now,
	}

	var entry *Entry
	if sol.Origin == "rule" {
		if e, ok := s.entries[sol.SourceID]; ok {
			updated := *e
			updated.Confidence = s.raise(updated.Confidence)
			updated.UpdatedAt = now
			entry = &updated
		}
	}

	err := s.withTx(func(tx *sql.Tx) error {
		if err := upsertPattern(tx, p); err != nil {
			return err
		}
		if err := insertFix(tx, fix); err != nil {
			return err
		}
		if entry != nil {
			return upsertEntry(tx, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.patterns[p.ID] = p
	s.fixes = append(s.fixes, fix)
	if entry != nil {
		s.entries[entry.ID] = entry
	}

	s.logger.Info("verified fix recorded",
		"file", d.File,
		"code", d.Code,
		"pattern", p.ID,
		"confidence", p.Confidence)
	return &fix, nil
}

// pattern returns a working copy of the pattern for d, creating it when
// absent. Callers must hold mu.
func (s *Store) pattern(d diagnostic.Diagnostic) *LearnedPattern {
	id := PatternID(d.Code, d.Category, d.Extension())
	if existing, ok := s.patterns[id]; ok {
		cp := *existing
		return &cp
	}
	return &LearnedPattern{
		ID:         id,
		Code:       d.Code,
		Category:   d.Category,
		Extension:  d.Extension(),
		Confidence: s.policy.InitialConfidence,
	}
}

func (s *Store) raise(c float64) float64 {
	c += s.policy.ConfidenceStep
	if c > s.policy.MaxConfidence {
		c = s.policy.MaxConfidence
	}
	return c
}

// SetProjectMemory stores a project-scoped value.
func (s *Store) SetProjectMemory(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	err := s.withTx(func(tx *sql.Tx) error {
		_, err := sq.Insert("project_memory").
			Columns("key", "value", "updated_at").
			Values(key, value, now.Format(time.RFC3339Nano)).
			Options("OR REPLACE").
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to store project memory %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.project[key] = value
	return nil
}

// ProjectMemory returns a project-scoped value.
func (s *Store) ProjectMemory(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.project[key]
	return v, ok
}

// RecordContext remembers the last context summary for a file.
func (s *Store) RecordContext(rec ContextRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now().UTC()
	}
	err := s.withTx(func(tx *sql.Tx) error { return upsertContext(tx, rec) })
	if err != nil {
		return err
	}
	s.contexts[rec.File] = rec
	return nil
}

// ContextMemory returns the last context recorded for file.
func (s *Store) ContextMemory(file string) (ContextRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.contexts[file]
	return rec, ok
}

// Entries returns the curated entries sorted by id.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LearnedPatterns returns the learned patterns, most used first.
func (s *Store) LearnedPatterns() []LearnedPattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LearnedPattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// VerifiedFixes returns every recorded verified fix in insertion order.
func (s *Store) VerifiedFixes() []VerifiedFix {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]VerifiedFix(nil), s.fixes...)
}

// Stats summarizes the store.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Entries:         len(s.entries),
		LearnedPatterns: len(s.patterns),
		VerifiedFixes:   len(s.fixes),
	}
	var total float64
	for _, p := range s.patterns {
		st.TotalUsage += p.UsageCount
		st.TotalSuccesses += p.SuccessCount
		total += p.Confidence
	}
	if len(s.patterns) > 0 {
		st.AvgConfidence = total / float64(len(s.patterns))
	}
	return st
}

// Persist rewrites every collection from the in-memory state.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(func(tx *sql.Tx) error {
		for _, table := range []string{"knowledge_entries", "error_patterns", "verified_fixes", "project_memory", "context_memory"} {
			if _, err := sq.Delete(table).RunWith(tx).Exec(); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		for _, e := range s.entries {
			if err := upsertEntry(tx, e); err != nil {
				return err
			}
		}
		for _, p := range s.patterns {
			if err := upsertPattern(tx, p); err != nil {
				return err
			}
		}
		for _, f := range s.fixes {
			if err := insertFix(tx, f); err != nil {
				return err
			}
		}
		now := s.now().UTC().Format(time.RFC3339Nano)
		for k, v := range s.project {
			_, err := sq.Insert("project_memory").
				Columns("key", "value", "updated_at").
				Values(k, v, now).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("failed to write project memory: %w", err)
			}
		}
		for _, rec := range s.contexts {
			if err := upsertContext(tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func upsertEntry(tx *sql.Tx, e *Entry) error {
	keywords, err := json.Marshal(e.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	remediations, err := json.Marshal(e.Remediations)
	if err != nil {
		return fmt.Errorf("failed to encode remediations: %w", err)
	}
	_, err = sq.Insert("knowledge_entries").
		Columns("id", "pattern", "category", "keywords", "remediations", "confidence", "rule", "updated_at").
		Values(e.ID, e.Pattern, string(e.Category), string(keywords), string(remediations), e.Confidence, e.Rule, e.UpdatedAt.Format(time.RFC3339Nano)).
		Options("OR REPLACE").
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to upsert knowledge entry %s: %w", e.ID, err)
	}
	return nil
}

func upsertPattern(tx *sql.Tx, p *LearnedPattern) error {
	solution, err := encodeSolution(p.Solution)
	if err != nil {
		return err
	}
	attempt, err := encodeSolution(p.LastAttempt)
	if err != nil {
		return err
	}
	_, err = sq.Insert("error_patterns").
		Columns("id", "code", "category", "extension", "message", "scope", "usage_count", "success_count", "confidence", "last_seen", "solution", "last_attempt").
		Values(p.ID, p.Code, string(p.Category), p.Extension, p.Message, p.Scope, p.UsageCount, p.SuccessCount, p.Confidence, p.LastSeen.Format(time.RFC3339Nano), solution, attempt).
		Options("OR REPLACE").
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to upsert error pattern %s: %w", p.ID, err)
	}
	return nil
}

func insertFix(tx *sql.Tx, f VerifiedFix) error {
	_, err := sq.Insert("verified_fixes").
		Columns("id", "pattern_id", "file", "code", "message", "original", "replacement", "origin", "source_id", "verified_at").
		Values(f.ID, f.PatternID, f.File, f.Code, f.Message, f.Original, f.Replacement, f.Origin, f.SourceID, f.VerifiedAt.Format(time.RFC3339Nano)).
		Options("OR REPLACE").
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to insert verified fix: %w", err)
	}
	return nil
}

func upsertContext(tx *sql.Tx, rec ContextRecord) error {
	_, err := sq.Insert("context_memory").
		Columns("file", "line", "scope", "summary", "updated_at").
		Values(rec.File, rec.Line, rec.Scope, rec.Summary, rec.UpdatedAt.Format(time.RFC3339Nano)).
		Options("OR REPLACE").
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to upsert context memory %s: %w", rec.File, err)
	}
	return nil
}

func encodeSolution(sol *Solution) (sql.NullString, error) {
	if sol == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(sol)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode solution: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeSolution(ns sql.NullString) (*Solution, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var sol Solution
	if err := json.Unmarshal([]byte(ns.String), &sol); err != nil {
		return nil, fmt.Errorf("failed to decode solution: %w", err)
	}
	return &sol, nil
}
