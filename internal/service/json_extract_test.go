package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "plain object",
			text: `{"band": 6.5}`,
			want: `{"band": 6.5}`,
		},
		{
			name: "markdown fence and prose",
			text: "Here you go:\n```json\n{\"a\": {\"b\": [1, 2]}}\n```\nGood luck!",
			want: `{"a": {"b": [1, 2]}}`,
		},
		{
			name: "braces inside strings",
			text: `result: {"feedback": "use } and { carefully \" ok", "n": 1} trailing {"x": 2}`,
			want: `{"feedback": "use } and { carefully \" ok", "n": 1}`,
		},
		{
			name: "top level array",
			text: `  [1, 2, 3]  `,
			want: `[1, 2, 3]`,
		},
		{
			name: "array of objects is kept whole",
			text: `[{"a":1},{"b":2}]`,
			want: `[{"a":1},{"b":2}]`,
		},
		{
			name: "fenced array of objects",
			text: "```json\n[{\"id\": 1}, {\"id\": 2}]\n```",
			want: `[{"id": 1}, {"id": 2}]`,
		},
		{
			name: "bracketed prose before object",
			text: `Score [final]: {"band": 6}`,
			want: `{"band": 6}`,
		},
		{
			name: "object containing arrays",
			text: `note {"items": [{"x": 1}], "n": [2]} end`,
			want: `{"items": [{"x": 1}], "n": [2]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.text)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtractJSON_ParseError(t *testing.T) {
	text := "Sorry, I cannot help with that. " + strings.Repeat("x", 300)

	_, err := ExtractJSON(text)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Len(t, []rune(perr.Snippet), 200)
	assert.True(t, strings.HasPrefix(text, perr.Snippet))
}

func TestExtractJSON_UnbalancedObject(t *testing.T) {
	_, err := ExtractJSON(`{"a": {"b": 1}`)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}
