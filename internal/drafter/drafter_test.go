package drafter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
	"github.com/mvp-joe/project-remedy/internal/scope"
)

// Test Plan for drafter:
// - ParseResponse accepts bare and fenced JSON, clamps confidence and defaults it
// - Non-JSON answers fall back to the first fenced block, then the raw text
// - Empty answers yield ErrNoProposal
// - BuildPrompt carries the diagnostic, hints and rendered context
// - OpenAIDrafter posts a chat completion and parses the reply
// - OpenAIDrafter maps a slow endpoint to ErrTimeout and no choices to ErrNoProposal
// - Nop never proposes

func TestParseResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Draft
	}{
		{
			name: "bare json",
			text: `{"original":"a","replacement":"b","explanation":"e","confidence":0.6}`,
			want: Draft{Original: "a", Replacement: "b", Explanation: "e", Confidence: 0.6},
		},
		{
			name: "fenced json",
			text: "Here you go:\n```json\n{\"original\":\"x\",\"replacement\":\"y\",\"confidence\":0.7}\n```\n",
			want: Draft{Original: "x", Replacement: "y", Confidence: 0.7},
		},
		{
			name: "json with surrounding prose",
			text: "Answer: {\"replacement\":\"z\",\"confidence\":0.4} hope that helps",
			want: Draft{Replacement: "z", Confidence: 0.4},
		},
		{
			name: "missing confidence",
			text: `{"original":"a","replacement":"b"}`,
			want: Draft{Original: "a", Replacement: "b", Confidence: 0.5},
		},
		{
			name: "confidence clamped",
			text: `{"original":"a","replacement":"b","confidence":3}`,
			want: Draft{Original: "a", Replacement: "b", Confidence: 1},
		},
		{
			name: "fenced code",
			text: "Try this:\n```ts\nconst x = 1;\n```",
			want: Draft{Replacement: "const x = 1;", Confidence: 0.5},
		},
		{
			name: "raw text",
			text: "  const x = 1;\n",
			want: Draft{Replacement: "const x = 1;", Confidence: 0.3},
		},
		{
			name: "malformed json",
			text: "{not json",
			want: Draft{Replacement: "{not json", Confidence: 0.3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Original, got.Original)
			assert.Equal(t, tt.want.Replacement, got.Replacement)
			assert.Equal(t, tt.want.Explanation, got.Explanation)
			assert.InDelta(t, tt.want.Confidence, got.Confidence, 1e-9)
			assert.Equal(t, tt.text, got.Raw)
		})
	}
}

func TestParseResponse_Empty(t *testing.T) {
	t.Parallel()

	_, err := ParseResponse("  \n ")
	assert.ErrorIs(t, err, ErrNoProposal)
}

func sampleRequest() Request {
	d := diagnostic.Diagnostic{
		File:     "src/x.ts",
		Line:     2,
		Column:   5,
		Code:     "TS2307",
		Message:  "Cannot find module './util'",
		Category: diagnostic.CategoryImports,
	}
	return Request{
		Diagnostic: d,
		Hints:      []string{"Check the relative path."},
		Context: &scope.Bundle{
			Diagnostic: d,
			File:       d.File,
			Line:       d.Line,
			Scope:      scope.ScopeSummary{Kind: scope.KindFile, Name: "src/x.ts", StartLine: 1, EndLine: 3},
			Window:     scope.ExtractWindow([]byte("// head\nimport { u } from './util';\nu();\n"), 2, 5),
		},
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt(sampleRequest())
	assert.Contains(t, prompt, "TS2307 Cannot find module './util'")
	assert.Contains(t, prompt, "src/x.ts line 2, column 5")
	assert.Contains(t, prompt, "- Check the relative path.")
	assert.Contains(t, prompt, "import { u } from './util';")

	bare := BuildPrompt(Request{Diagnostic: diagnostic.Diagnostic{File: "a.ts", Line: 1, Code: "TS1005", Message: "';' expected."}})
	assert.NotContains(t, bare, "Known remedies")
	assert.NotContains(t, bare, "Code:")
}

func TestOpenAIDrafter_Draft(t *testing.T) {
	t.Parallel()

	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID: "cmpl-1",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: `{"original":"./util","replacement":"./utils","explanation":"file is utils.ts","confidence":0.6}`,
				},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	defer srv.Close()

	d, err := NewOpenAIDrafter(Config{Endpoint: srv.URL + "/v1", Model: "local-coder", APIKey: "test"})
	require.NoError(t, err)

	draft, err := d.Draft(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "./util", draft.Original)
	assert.Equal(t, "./utils", draft.Replacement)
	assert.InDelta(t, 0.6, draft.Confidence, 1e-9)

	assert.Equal(t, "local-coder", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "Cannot find module './util'")
}

func TestOpenAIDrafter_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	d, err := NewOpenAIDrafter(Config{Endpoint: srv.URL + "/v1", Model: "local-coder", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = d.Draft(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestOpenAIDrafter_NoChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-2","choices":[]}`))
	}))
	defer srv.Close()

	d, err := NewOpenAIDrafter(Config{Endpoint: srv.URL + "/v1", Model: "local-coder"})
	require.NoError(t, err)

	_, err = d.Draft(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrNoProposal)
}

func TestNewOpenAIDrafter_RequiresModel(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAIDrafter(Config{Endpoint: "http://localhost:1/v1"})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	t.Parallel()

	_, err := Nop{}.Draft(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrNoProposal)
}
