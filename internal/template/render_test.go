package template

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanAndRender_NoTemplate(t *testing.T) {
	inputs := []string{
		"select 1 as x",
		"SELECT a,\n  b\nFROM t -- trailing } brace",
		"select '{' || '}' as braces",
	}

	for _, input := range inputs {
		r, err := ScanAndRender(input)
		require.NoError(t, err)

		assert.Equal(t, input, r.Output, "output should be identical to input")
		segments := r.Map.Segments()
		require.Len(t, segments, 1)
		assert.Equal(t, Literal, segments[0].Kind)
		assert.Equal(t, token.Span{Start: 0, End: len(input)}, segments[0].Original)
		assert.Equal(t, token.Span{Start: 0, End: len(input)}, segments[0].Output)
	}
}

func TestScanAndRender_Ref(t *testing.T) {
	input := "select * from {{ ref('orders') }} where x = 1"

	r, err := ScanAndRender(input)
	require.NoError(t, err)

	assert.Equal(t, "select * from  orders  where x = 1", r.Output)

	segments := r.Map.Segments()
	require.Len(t, segments, 3)
	assert.Equal(t, token.Span{Start: 0, End: 14}, segments[0].Output)
	assert.Equal(t, token.Span{Start: 14, End: 22}, segments[1].Output)
	assert.Equal(t, token.Span{Start: 22, End: 34}, segments[2].Output)
}

func TestScanAndRender_CommentDropped(t *testing.T) {
	input := "{# header #}\nselect id from {{ ref(\"raw_customers\") }}"

	r, err := ScanAndRender(input)
	require.NoError(t, err)

	assert.Equal(t, "\nselect id from  raw_customers ", r.Output)

	segments := r.Map.Segments()
	require.Len(t, segments, 3)
	assert.Equal(t, Comment, segments[0].Kind)
	assert.True(t, segments[0].Output.IsEmpty(), "comment must not produce output")
	assert.Equal(t, token.Span{Start: 12, End: 28}, segments[1].Original)
	assert.Equal(t, token.Span{Start: 0, End: 16}, segments[1].Output)
	assert.Equal(t, token.Span{Start: 16, End: 31}, segments[2].Output)
}

func TestScanAndRender_OutputSpansPartitionOutput(t *testing.T) {
	input := "{# a #}with x as (select 1 as id from {{ ref('t') }}) {# b #}select * from x{{ ref('u') }}"

	r, err := ScanAndRender(input)
	require.NoError(t, err)

	next := 0
	prevOrig := -1
	for i, seg := range r.Map.Segments() {
		assert.Equal(t, next, seg.Output.Start, "segment[%d] must start where the previous ended", i)
		assert.Greater(t, seg.Original.Start, prevOrig, "segment[%d] original spans must increase", i)
		next = seg.Output.End
		prevOrig = seg.Original.Start
	}
	assert.Equal(t, len(r.Output), next, "segments must cover the whole output")
}

func TestScanAndRender_RejectsUnsupported(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantStart int
	}{
		{"config", "{{ config(materialized='table') }}\nselect 1", 0},
		{"if block", "select {% if x %}1{% endif %}", 7},
		{"after ref", "select * from {{ ref('a') }} where {{ var('x') }}", 35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ScanAndRender(tt.input)
			require.Error(t, err)
			assert.Nil(t, r, "no partial output may be returned")

			var unsupported *UnsupportedConstructError
			require.True(t, errors.As(err, &unsupported), "expected UnsupportedConstructError, got %T", err)
			assert.Equal(t, tt.wantStart, unsupported.Span().Start)
		})
	}
}

func TestScanAndRender_GrammarFailureBeatsUnsupported(t *testing.T) {
	_, err := ScanAndRender("{{ config() }} select {{ ref('a')")

	var grammarErr *GrammarError
	assert.True(t, errors.As(err, &grammarErr), "expected GrammarError, got %T", err)
}

func TestRendered_Refs(t *testing.T) {
	r, err := ScanAndRender("select * from {{ ref('b') }} union all select * from {{ ref('a') }} union all select * from {{ ref('b') }}")
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a"}, r.Refs())
}
