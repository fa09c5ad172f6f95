package llmjson

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stringArray accepts only a JSON array of strings.
func stringArray(raw []byte) ([]string, error) {
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type payload struct {
	Queries []string `json:"queries"`
}

// queriesObject accepts only an object carrying a non-nil queries key.
func queriesObject(raw []byte) (payload, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return payload{}, err
	}
	if p.Queries == nil {
		return payload{}, errors.New("missing queries")
	}
	return p, nil
}

func TestExtract_Strategies(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		want         []string
		wantStrategy Strategy
	}{
		{
			name:         "direct parse",
			input:        `["a", "b"]`,
			want:         []string{"a", "b"},
			wantStrategy: StrategyDirect,
		},
		{
			name:         "json fence",
			input:        "```json\n[\"lisbon food\"]\n```",
			want:         []string{"lisbon food"},
			wantStrategy: StrategyFenceStrip,
		},
		{
			name:         "bare fence on one line",
			input:        "```[\"x\"]```",
			want:         []string{"x"},
			wantStrategy: StrategyFenceStrip,
		},
		{
			name:         "prose around array",
			input:        `Sure! Here you go: ["porto wine cellars", "porto ribeira walk"] Enjoy.`,
			want:         []string{"porto wine cellars", "porto ribeira walk"},
			wantStrategy: StrategyBalancedArray,
		},
		{
			name:         "brackets inside strings",
			input:        `Result: ["a ] tricky", "b \" [quoted"] done`,
			want:         []string{"a ] tricky", `b " [quoted`},
			wantStrategy: StrategyBalancedArray,
		},
		{
			name:         "first span invalid, second accepted",
			input:        `[not json] then ["ok"]`,
			want:         []string{"ok"},
			wantStrategy: StrategyBalancedArray,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Extract(tt.input, stringArray, FirstOpening)

			require.True(t, r.IsOk(), "reason: %v", r.Reason)
			assert.Equal(t, Ok, r.Kind)
			assert.Equal(t, tt.want, r.Value)
			assert.Equal(t, tt.wantStrategy, r.Strategy)
		})
	}
}

func TestExtract_Malformed(t *testing.T) {
	for _, input := range []string{"", "   ", "no json here", `{"unterminated": [1, 2`} {
		r := Extract(input, stringArray, FirstOpening)

		assert.Equal(t, Malformed, r.Kind, "input %q", input)
		assert.False(t, r.IsOk())
		assert.Error(t, r.Reason)
		assert.Equal(t, "malformed", r.Kind.String())
	}
}

func TestExtract_ShapeValidation(t *testing.T) {
	// Given an object that parses but lacks the expected key, followed by one
	// that has it.
	input := `{"note": "thinking"} {"queries": ["a"]}`

	// When extracting with an object decoder.
	r := Extract(input, queriesObject, ObjectsFirst)

	// Then the second object is chosen.
	require.True(t, r.IsOk())
	assert.Equal(t, []string{"a"}, r.Value.Queries)
	assert.Equal(t, StrategyBalancedObject, r.Strategy)
}

func TestExtract_ObjectsFirstOrder(t *testing.T) {
	decodeAny := func(raw []byte) (any, error) {
		var v any
		err := json.Unmarshal(raw, &v)
		return v, err
	}

	input := `scores: [1] and {"scores": []}`

	objFirst := Extract(input, decodeAny, ObjectsFirst)
	require.True(t, objFirst.IsOk())
	assert.Equal(t, StrategyBalancedObject, objFirst.Strategy)

	firstOpening := Extract(input, decodeAny, FirstOpening)
	require.True(t, firstOpening.IsOk())
	assert.Equal(t, StrategyBalancedArray, firstOpening.Strategy)
}

func TestBalancedSpan(t *testing.T) {
	text := `xx {"a": {"b": "}"}} yy`

	start, end, ok := BalancedSpan(text, '{', 0)
	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": "}"}}`, text[start:end])

	_, _, ok = BalancedSpan(text, '[', 0)
	assert.False(t, ok)

	_, _, ok = BalancedSpan(text, '(', 0)
	assert.False(t, ok)

	_, _, ok = BalancedSpan(text, '{', len(text))
	assert.False(t, ok)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("Answer:\n```\n{\"a\":1}\n```\ntrailing"))
	assert.Equal(t, "plain", StripFences("  plain  "))
}
