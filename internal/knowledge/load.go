package knowledge

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
)

// load reads every collection into memory.
func (s *Store) load() error {
	if err := s.loadEntries(); err != nil {
		return err
	}
	if err := s.loadPatterns(); err != nil {
		return err
	}
	if err := s.loadFixes(); err != nil {
		return err
	}
	if err := s.loadProjectMemory(); err != nil {
		return err
	}
	return s.loadContexts()
}

func (s *Store) loadEntries() error {
	rows, err := sq.Select("id", "pattern", "category", "keywords", "remediations", "confidence", "rule", "updated_at").
		From("knowledge_entries").
		RunWith(s.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query knowledge entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e                      Entry
			category, updated      string
			keywords, remediations string
		)
		if err := rows.Scan(&e.ID, &e.Pattern, &category, &keywords, &remediations, &e.Confidence, &e.Rule, &updated); err != nil {
			return fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		e.Category = diagnostic.Category(category)
		if err := json.Unmarshal([]byte(keywords), &e.Keywords); err != nil {
			return fmt.Errorf("failed to decode keywords for %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(remediations), &e.Remediations); err != nil {
			return fmt.Errorf("failed to decode remediations for %s: %w", e.ID, err)
		}
		e.UpdatedAt = parseTime(updated)
		s.entries[e.ID] = &e
	}
	return rows.Err()
}

func (s *Store) loadPatterns() error {
	rows, err := sq.Select("id", "code", "category", "extension", "message", "scope", "usage_count", "success_count", "confidence", "last_seen", "solution", "last_attempt").
		From("error_patterns").
		RunWith(s.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query error patterns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p                  LearnedPattern
			category, lastSeen string
			solution, attempt  sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Code, &category, &p.Extension, &p.Message, &p.Scope, &p.UsageCount, &p.SuccessCount, &p.Confidence, &lastSeen, &solution, &attempt); err != nil {
			return fmt.Errorf("failed to scan error pattern: %w", err)
		}
		p.Category = diagnostic.Category(category)
		p.LastSeen = parseTime(lastSeen)
		if p.Solution, err = decodeSolution(solution); err != nil {
			return err
		}
		if p.LastAttempt, err = decodeSolution(attempt); err != nil {
			return err
		}
		s.patterns[p.ID] = &p
	}
	return rows.Err()
}

func (s *Store) loadFixes() error {
	rows, err := sq.Select("id", "pattern_id", "file", "code", "message", "original", "replacement", "origin", "source_id", "verified_at").
		From("verified_fixes").
		OrderBy("verified_at", "id").
		RunWith(s.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query verified fixes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f        VerifiedFix
			verified string
		)
		if err := rows.Scan(&f.ID, &f.PatternID, &f.File, &f.Code, &f.Message, &f.Original, &f.Replacement, &f.Origin, &f.SourceID, &verified); err != nil {
			return fmt.Errorf("failed to scan verified fix: %w", err)
		}
		f.VerifiedAt = parseTime(verified)
		s.fixes = append(s.fixes, f)
	}
	return rows.Err()
}

func (s *Store) loadProjectMemory() error {
	rows, err := sq.Select("key", "value").
		From("project_memory").
		RunWith(s.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query project memory: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("failed to scan project memory: %w", err)
		}
		s.project[k] = v
	}
	return rows.Err()
}

func (s *Store) loadContexts() error {
	rows, err := sq.Select("file", "line", "scope", "summary", "updated_at").
		From("context_memory").
		RunWith(s.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query context memory: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec     ContextRecord
			updated string
		)
		if err := rows.Scan(&rec.File, &rec.Line, &rec.Scope, &rec.Summary, &updated); err != nil {
			return fmt.Errorf("failed to scan context memory: %w", err)
		}
		rec.UpdatedAt = parseTime(updated)
		s.contexts[rec.File] = rec
	}
	return rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
