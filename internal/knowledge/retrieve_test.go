package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
)

// Test Plan for retrieval scoring:
// - Curated score adds 0.8 for a match, 0.3 for category and 0.4 x keyword fraction, clipped to 1
// - A bare predicate match (0.8) is not above the curated threshold
// - Learned score combines Jaccard, scope, extension and verification
// - Learned patterns below 0.5 are not returned
// - Results are ordered by score
// - The seeded store answers a missing-module diagnostic with the fix-module-path rule

func TestCuratedScore(t *testing.T) {
	t.Parallel()

	entry := &Entry{
		ID:       "widget",
		Pattern:  `widget failed`,
		Category: diagnostic.CategoryTypes,
		Keywords: []string{"widget", "failed"},
	}

	tests := []struct {
		name  string
		query Query
		want  float64
	}{
		{
			name:  "match only",
			query: Query{Message: "gadget widget failed now", Category: diagnostic.CategoryOther},
			want:  0.8 + 0.4*2.0/4.0,
		},
		{
			name:  "match and category clipped",
			query: Query{Message: "widget failed", Category: diagnostic.CategoryTypes},
			want:  1.0,
		},
		{
			name:  "category and keywords without match",
			query: Query{Message: "failed widget", Category: diagnostic.CategoryTypes},
			want:  0.3 + 0.4,
		},
		{
			name:  "nothing",
			query: Query{Message: "unrelated", Category: diagnostic.CategoryOther},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CuratedScore(entry, tt.query, Tokenize(tt.query.Message))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRetrieve_CuratedThreshold(t *testing.T) {
	t.Parallel()

	s := openMemory(t, WithoutSeed())
	require.NoError(t, s.AddEntry(Entry{
		ID:       "bare",
		Pattern:  `widget failed`,
		Category: diagnostic.CategoryTypes,
		Keywords: []string{"zzz"},
	}))

	// Predicate match alone scores exactly 0.8, which is not above the threshold.
	assert.Empty(t, s.Retrieve(Query{Message: "widget failed", Category: diagnostic.CategoryOther}))

	results := s.Retrieve(Query{Message: "widget failed", Category: diagnostic.CategoryTypes})
	require.Len(t, results, 1)
	assert.Equal(t, SourceCurated, results[0].Source)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestLearnedScore(t *testing.T) {
	t.Parallel()

	p := &LearnedPattern{
		Message:   "Cannot find name 'Logger'.",
		Scope:     "function",
		Extension: ".ts",
	}
	words := Tokenize("Cannot find name 'Logger'.")

	assert.InDelta(t, 0.9, LearnedScore(p, Query{Scope: "function", Extension: ".ts"}, words), 1e-9)
	assert.InDelta(t, 0.6, LearnedScore(p, Query{Scope: "class", Extension: ".tsx"}, words), 1e-9)

	p.Solution = &Solution{Original: "a", Replacement: "b"}
	p.SuccessCount = 1
	assert.InDelta(t, 1.0, LearnedScore(p, Query{Scope: "function", Extension: ".ts"}, words), 1e-9)

	// Three shared words out of five distinct ones.
	half := Tokenize("Cannot find name 'Config'.")
	assert.InDelta(t, 0.6*3.0/5.0+0.1, LearnedScore(p, Query{}, half), 1e-9)
}

func TestRetrieve_LearnedThreshold(t *testing.T) {
	t.Parallel()

	s := openMemory(t, WithoutSeed())
	d := missingName()
	_, err := s.StoreErrorPattern(d, "function", nil)
	require.NoError(t, err)

	results := s.Retrieve(QueryFor(d, "function"))
	require.Len(t, results, 1)
	assert.Equal(t, SourceLearned, results[0].Source)
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
	assert.Nil(t, results[0].Solution)

	// No shared words and no scope or extension match.
	assert.Empty(t, s.Retrieve(Query{Message: "Unexpected token", Scope: "class", Extension: ".tsx"}))
}

func TestRetrieve_SeededMissingModule(t *testing.T) {
	t.Parallel()

	s := openMemory(t)
	d := diagnostic.Diagnostic{
		File:     "x.ts",
		Code:     "TS2307",
		Message:  "Cannot find module './util' or its corresponding type declarations.",
		Category: diagnostic.CategoryImports,
	}

	results := s.Retrieve(QueryFor(d, "file"))
	require.NotEmpty(t, results)
	assert.Equal(t, "imports-missing-module", results[0].ID)
	assert.Equal(t, RuleFixModulePath, results[0].Rule)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.NotEmpty(t, results[0].Remediations)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestTokenizeAndJaccard(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"cannot", "find", "module", "util"}, Tokenize("Cannot find module './util'"))
	assert.Equal(t, []string{"a", "b"}, Tokenize("a b a"))
	assert.InDelta(t, 1.0/3.0, Jaccard([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
	assert.Zero(t, Jaccard(nil, nil))
}
