package functors_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/functors"
	"github.com/logica-lang/logica/compiler/parser"
	"github.com/logica-lang/logica/compiler/rewrite"
)

func parseRules(t *testing.T, program string) []*ast.Rule {
	t.Helper()
	source, err := parser.RemoveComments("", program)
	require.NoError(t, err)
	file, err := parser.ParseStatements(source)
	require.NoError(t, err)
	rules, err := rewrite.All(file.Rules)
	require.NoError(t, err)
	return rules
}

func makeAll(t *testing.T, rules []*ast.Rule) *functors.Functors {
	t.Helper()
	fs := functors.New(rules)
	var instructions []*functors.MakeInstruction
	for _, r := range rules {
		if r.Head.PredicateName != "@Make" {
			continue
		}
		instruction, err := functors.ParseMakeInstruction(r)
		require.NoError(t, err)
		instructions = append(instructions, instruction)
	}
	require.NoError(t, fs.MakeAll(instructions))
	return fs
}

func headNames(rules []*ast.Rule) map[string]int {
	names := map[string]int{}
	for _, r := range rules {
		names[r.Head.PredicateName]++
	}
	return names
}

func TestArgsOf(t *testing.T) {
	rules := parseRules(t, `F(x) :- A(x), B(x); A(x) :- C(x);`)
	fs := functors.New(rules)
	args := fs.ArgsOf("F")
	assert.True(t, args["A"])
	assert.True(t, args["B"])
	assert.True(t, args["C"])
	assert.False(t, args["F"])
}

func TestCallFunctor(t *testing.T) {
	rules := parseRules(t, `F(x) :- A(x) | B(x); G := F(A: C, B: D);`)
	fs := makeAll(t, rules)
	names := headNames(fs.ExtendedRules)
	assert.Equal(t, 2, names["G"])
	// The original template stays.
	assert.Equal(t, 2, names["F"])
}

func TestCallFunctorIntermediatePredicates(t *testing.T) {
	// H uses A through F, so instantiating H renames F too.
	rules := parseRules(t, `
	F(x) :- A(x);
	H(x) :- F(x);
	G := H(A: C);
	C(1);`)
	fs := makeAll(t, rules)
	names := headNames(fs.ExtendedRules)
	assert.Equal(t, 1, names["G"])
	assert.Equal(t, 1, names["F_f1"])
}

func TestMakeDeterminism(t *testing.T) {
	program := `
	F(x) :- A(x) | B(x);
	G := F(A: C, B: D);
	H := F(A: D, B: C);
	C(1); D(2);`
	render := func() string {
		fs := makeAll(t, parseRules(t, program))
		var docs []any
		for _, r := range fs.ExtendedRules {
			docs = append(docs, ast.RuleJSON(r))
		}
		rendered, err := json.Marshal(docs)
		require.NoError(t, err)
		return string(rendered)
	}
	first := render()
	for range 3 {
		assert.Equal(t, first, render())
	}
}

func TestBadFunctorArgument(t *testing.T) {
	rules := parseRules(t, `F(x) :- A(x); G := F(Z: C);`)
	fs := functors.New(rules)
	var instruction *functors.MakeInstruction
	for _, r := range rules {
		if r.Head.PredicateName == "@Make" {
			var err error
			instruction, err = functors.ParseMakeInstruction(r)
			require.NoError(t, err)
		}
	}
	err := fs.MakeAll([]*functors.MakeInstruction{instruction})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "which it does not have")
}

func TestRecursiveAnalysis(t *testing.T) {
	rules := parseRules(t, `N(0); N(n + 1) :- N(n); M(x) :- N(x);`)
	fs := functors.New(rules)
	shouldRecurse, cover := fs.RecursiveAnalysis(nil)
	require.Equal(t, []string{"N"}, shouldRecurse)
	assert.True(t, cover["N"]["N"])
	assert.False(t, cover["N"]["M"])
}

func TestUnfoldRecursions(t *testing.T) {
	rules := parseRules(t, `N(0); N(n + 1) :- N(n);`)
	fs := functors.New(rules)
	unfolded, err := fs.UnfoldRecursions(rules, nil)
	require.NoError(t, err)
	names := headNames(unfolded)
	assert.Equal(t, 2, names["N_recursive_head"])
	// Default depth 8: seeds r0..r8 plus the final N make.
	assert.Equal(t, 10, names["@Make"])
}
