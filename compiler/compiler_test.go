package compiler_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logica-lang/logica/compiler"
	"github.com/logica-lang/logica/ltest"
)

func TestScenarios(t *testing.T) {
	ltest.RunFile(t, filepath.Join("testdata", "scenarios.yaml"))
}

func TestCompileDeterminism(t *testing.T) {
	program := `
	@Engine("sqlite");
	Parent("A", "B");
	Parent("B", "C");
	Grandparent(a, b) :- Parent(a, x), Parent(x, b);
	Count() += 1 :- Parent(x, y);
	`
	opts := compiler.Options{}
	first, err := compiler.CompilePredicate(program, "Grandparent", opts)
	require.NoError(t, err)
	for range 5 {
		again, err := compiler.CompilePredicate(program, "Grandparent", opts)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestUnknownPredicateSuggestion(t *testing.T) {
	program := `@Engine("sqlite"); Grandparent(a) :- Person(a);`
	_, err := compiler.CompilePredicate(program, "Grandprnt", compiler.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rules are defining Grandprnt")
	assert.Contains(t, err.Error(), "did you mean Grandparent?")
}

func TestEngineOverride(t *testing.T) {
	program := `T("x");`
	sql, err := compiler.CompilePredicate(program, "T",
		compiler.Options{Engine: "sqlite"})
	require.NoError(t, err)
	assert.Contains(t, sql, "'x'")
	sql, err = compiler.CompilePredicate(program, "T", compiler.Options{})
	require.NoError(t, err)
	assert.Contains(t, sql, `"x"`)
}

func TestUnrecognizedEngine(t *testing.T) {
	program := `@Engine("oracle"); T("x");`
	_, err := compiler.CompilePredicate(program, "T", compiler.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized engine")
}

func TestParseToJSONDeterminism(t *testing.T) {
	program := `Parent("A", "B"); Grandparent(a, b) :- Parent(a, x), Parent(x, b);`
	first, err := compiler.ParseToJSON(program, "main.l", compiler.Options{})
	require.NoError(t, err)
	second, err := compiler.ParseToJSON(program, "main.l", compiler.Options{})
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestSemanticStabilityUnderInjection(t *testing.T) {
	// Forcing @NoInject on every callee must not change the result.
	base := `
	@Engine("sqlite");
	@OrderBy(Q, "col0");
	T("a", 1);
	T("b", 2);
	S(x) :- T(x, 2);
	Q(x) :- S(x);
	`
	noInject := base + "@NoInject(S); @NoInject(T);"
	for _, program := range []string{base, noInject} {
		lt := &ltest.Ltest{
			Program:   program,
			Predicate: "Q",
			Output:    "col0\nb",
		}
		lt.Run(t)
	}
}
