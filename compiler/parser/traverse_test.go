package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logica-lang/logica/compiler/srcfiles"
)

func span(text string) srcfiles.Span {
	return srcfiles.NewSource("", text).Whole()
}

func TestIsWhole(t *testing.T) {
	assert.True(t, IsWhole(span("a + b")))
	assert.True(t, IsWhole(span("(a, b)")))
	assert.True(t, IsWhole(span(`{x: [1, 2], y: "("}`)))
	assert.False(t, IsWhole(span("(a")))
	assert.False(t, IsWhole(span("a)(b")))
	assert.False(t, IsWhole(span(`"unterminated`)))
	assert.True(t, IsWhole(span("`weird name`")))
}

func TestTraverseUnmatched(t *testing.T) {
	tr := NewTraverser(span("f(x))"))
	for {
		if _, ok := tr.Next(); !ok {
			break
		}
	}
	require.Error(t, tr.Err())
	assert.Contains(t, tr.Err().Error(), "parenthesis matches nothing")
}

func TestTraverseEolInString(t *testing.T) {
	tr := NewTraverser(span("\"broken\nstring\""))
	for {
		if _, ok := tr.Next(); !ok {
			break
		}
	}
	require.Error(t, tr.Err())
	assert.Contains(t, tr.Err().Error(), "end of line in string")
}

func TestRemoveComments(t *testing.T) {
	source, err := RemoveComments("f.l",
		"A(1); # comment\nB(2); /* block\ncomment */ C(3);")
	require.NoError(t, err)
	assert.Equal(t, "A(1); \nB(2);  C(3);", source.Text)
	// Comment markers inside strings stay.
	source, err = RemoveComments("f.l", `A("#not a comment");`)
	require.NoError(t, err)
	assert.Equal(t, `A("#not a comment");`, source.Text)
	// Triple quoted strings pass through whole.
	source, err = RemoveComments("f.l", `A("""multi
line");
""");`)
	require.NoError(t, err)
	assert.Contains(t, source.Text, "multi\nline")
}

func TestSplitRespectsNesting(t *testing.T) {
	parts, err := Split(span("[a,b],[c,d]"), ",")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "[a,b]", parts[0].Str())
	assert.Equal(t, "[c,d]", parts[1].Str())

	parts, err = Split(span(`f("x;y"); g(1)`), ";")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, `f("x;y")`, parts[0].Str())
}

func TestSplitPipeDisambiguation(t *testing.T) {
	// "||" is not a disjunction separator.
	parts, err := Split(span("a || b"), "|")
	require.NoError(t, err)
	assert.Len(t, parts, 1)
	parts, err = Split(span("a | b | c"), "|")
	require.NoError(t, err)
	assert.Len(t, parts, 3)
}

func TestSplitWordSeparator(t *testing.T) {
	// Word separators require non-alphanumeric neighbors.
	parts, err := Split(span("x in l"), "in")
	require.NoError(t, err)
	assert.Len(t, parts, 2)
	parts, err = Split(span("xinl"), "in")
	require.NoError(t, err)
	assert.Len(t, parts, 1)
	parts, err = Split(span("interesting in invitations"), "in")
	require.NoError(t, err)
	assert.Len(t, parts, 2)
}

// Split soundness: joining the raw parts with the separator reproduces
// the input.
func TestSplitRawRoundTrip(t *testing.T) {
	inputs := []string{
		"a,b,c",
		"f(x, y), g([1, 2], z), h",
		`p("quoted, comma"), q`,
		"",
		"one",
	}
	for _, input := range inputs {
		parts, err := SplitRaw(span(input), ",")
		require.NoError(t, err)
		var texts []string
		for _, p := range parts {
			texts = append(texts, p.Str())
		}
		assert.Equal(t, input, strings.Join(texts, ","), "input %q", input)
	}
}

func TestStrip(t *testing.T) {
	assert.Equal(t, "a + b", Strip(span(" ((a + b)) ")).Str())
	// Parens that are not redundant stay.
	assert.Equal(t, "(a)(b)", Strip(span("(a)(b)")).Str())
	assert.Equal(t, "", Strip(span("  ")).Str())
}

func TestHeritageOffsets(t *testing.T) {
	text := "Grandparent(a, b)"
	s := span(text)
	parts, err := Split(s.Sub(12, 16), ",")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	// The spans point back into the original buffer.
	assert.Equal(t, "a", parts[0].Str())
	assert.Equal(t, text[parts[1].Pos:parts[1].End], parts[1].Str())
}
