package translate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/parser"
	"github.com/logica-lang/logica/compiler/rewrite"
	"github.com/logica-lang/logica/compiler/translate"
)

func parseRule(t *testing.T, statement string) *ast.Rule {
	t.Helper()
	source, err := parser.RemoveComments("", statement)
	require.NoError(t, err)
	file, err := parser.ParseStatements(source)
	require.NoError(t, err)
	rules, err := rewrite.All(file.Rules)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	return rules[0]
}

func TestNamesAllocator(t *testing.T) {
	a := translate.NewNamesAllocator(nil)
	assert.Equal(t, "x_0", a.AllocateVar("hint"))
	assert.Equal(t, "x_1", a.AllocateVar(""))
	assert.Equal(t, "Parent", a.AllocateTable("Parent"))
	// The second table for the same predicate gets a numbered name.
	assert.Equal(t, "t_0_Parent", a.AllocateTable("Parent"))
	assert.Equal(t, "a_b_l", a.AllocateTable("a.b/l"))
}

func TestFunctionExists(t *testing.T) {
	a := translate.NewNamesAllocator(map[string]string{"MyUdf": "MyUdf({x})"})
	assert.True(t, a.FunctionExists("Agg+"))
	assert.True(t, a.FunctionExists("=="))
	assert.True(t, a.FunctionExists("MyUdf"))
	assert.False(t, a.FunctionExists("Parent"))
}

func TestExtractRuleStructure(t *testing.T) {
	rule := parseRule(t, `Grandparent(a, b) :- Parent(a, x), Parent(x, b);`)
	allocator := translate.NewNamesAllocator(nil)
	s, err := translate.ExtractRuleStructure(rule, allocator, nil)
	require.NoError(t, err)
	assert.Equal(t, "Grandparent", s.ThisPredicateName)
	assert.Equal(t, 2, s.Tables.Size())
	// Two tables of two columns each, plus two head extractions.
	assert.Len(t, s.VarsMap, 4)
	assert.Len(t, s.VarsUnification, 6)
	require.Len(t, s.Select, 2)
	assert.Equal(t, "col0", s.Select[0].Field.SqlName())
}

func TestConstraintCallsBecomeConstraints(t *testing.T) {
	rule := parseRule(t, `Adult(p) :- Person(p, age), age >= 18;`)
	s, err := translate.ExtractRuleStructure(rule,
		translate.NewNamesAllocator(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Tables.Size())
	require.Len(t, s.Constraints, 1)
	call, ok := s.Constraints[0].(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, ">=", call.PredicateName)
}

func TestAggregatingRequiresDistinct(t *testing.T) {
	// An aggregation without distinct cannot be built by the parser,
	// so fabricate the rule.
	rule := parseRule(t, `Total() += x :- Item(x);`)
	rule.DistinctDenoted = false
	_, err := translate.ExtractRuleStructure(rule,
		translate.NewNamesAllocator(nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distinct")
}

func TestEliminateInternalVariables(t *testing.T) {
	rule := parseRule(t, `P(x) :- Q(x, y), y == 2;`)
	s, err := translate.ExtractRuleStructure(rule,
		translate.NewNamesAllocator(nil), nil)
	require.NoError(t, err)
	require.NoError(t, s.EliminateInternalVariables(true))
	s.UnificationsToConstraints()
	// Every remaining reference resolves through the vocabulary.
	vocabulary := s.VarsVocabulary()
	for v := range s.AllVariables() {
		_, ok := vocabulary[v]
		assert.True(t, ok, "variable %s is unresolved", v)
	}
}

func TestDistinctVars(t *testing.T) {
	rule := parseRule(t, `Stat(name:, total? += v) distinct :- Row(name:, v:);`)
	s, err := translate.ExtractRuleStructure(rule,
		translate.NewNamesAllocator(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, s.DistinctVars)
	assert.True(t, s.DistinctDenoted)
}
