package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logica-lang/logica/compiler/ast"
)

func parseProgram(t *testing.T, program string) *ast.File {
	t.Helper()
	source, err := RemoveComments("", program)
	require.NoError(t, err)
	file, err := ParseStatements(source)
	require.NoError(t, err)
	return file
}

func TestParseFact(t *testing.T) {
	file := parseProgram(t, `Parent("A", "B");`)
	require.Len(t, file.Rules, 1)
	rule := file.Rules[0]
	assert.Equal(t, "Parent", rule.Head.PredicateName)
	assert.Nil(t, rule.Body)
	require.Len(t, rule.Head.Record.FieldValues, 2)
	first := rule.Head.Record.FieldValues[0]
	assert.True(t, first.Field.IsPositional())
	lit, ok := first.Value.Expression.(*ast.StringLiteral)
	require.True(t, ok)
	assert.Equal(t, "A", lit.Value)
}

func TestParseRuleWithBody(t *testing.T) {
	file := parseProgram(t, `Grandparent(a, b) :- Parent(a, x), Parent(x, b);`)
	rule := file.Rules[0]
	require.NotNil(t, rule.Body)
	require.Len(t, rule.Body.Conjuncts, 2)
	call, ok := rule.Body.Conjuncts[0].(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "Parent", call.PredicateName)
	// Heritage round-trip: the rule's full text is the statement.
	assert.Equal(t, "Grandparent(a, b) :- Parent(a, x), Parent(x, b)",
		rule.FullText.Str())
}

func TestParseHeadForms(t *testing.T) {
	// Value-producing head.
	file := parseProgram(t, `Square(x) = x * x;`)
	rule := file.Rules[0]
	fvs := rule.Head.Record.FieldValues
	require.Len(t, fvs, 2)
	assert.Equal(t, "logica_value", fvs[1].Field.Name)
	assert.False(t, rule.DistinctDenoted)

	// Aggregating head implies distinct.
	file = parseProgram(t, `Total() += x :- Item(x);`)
	rule = file.Rules[0]
	assert.True(t, rule.DistinctDenoted)
	agg := rule.Head.Record.FieldValues[0].Value.Aggregation
	require.NotNil(t, agg)
	assert.Equal(t, "+", agg.Operator)

	// Explicit distinct.
	file = parseProgram(t, `Fruit(fruit:) distinct :- Purchase(fruit:);`)
	assert.True(t, file.Rules[0].DistinctDenoted)
}

func TestParseAggregatingField(t *testing.T) {
	file := parseProgram(t, `Stat(name:, total? += value) distinct :- Row(name:, value:);`)
	rule := file.Rules[0]
	fvs := rule.Head.Record.FieldValues
	require.Len(t, fvs, 2)
	assert.Equal(t, "total", fvs[1].Field.Name)
	require.NotNil(t, fvs[1].Value.Aggregation)
	assert.Equal(t, "+", fvs[1].Value.Aggregation.Operator)
}

func TestParseRecordForms(t *testing.T) {
	file := parseProgram(t, `P(1, 2, name: v, short:, ..rest);`)
	fvs := file.Rules[0].Head.Record.FieldValues
	require.Len(t, fvs, 5)
	assert.True(t, fvs[0].Field.IsPositional())
	assert.Equal(t, 1, fvs[1].Field.Ordinal)
	assert.Equal(t, "name", fvs[2].Field.Name)
	short := fvs[3]
	v, ok := short.Value.Expression.(*ast.Variable)
	require.True(t, ok)
	assert.Equal(t, "short", v.Name)
	splat := fvs[4]
	assert.True(t, splat.Field.IsSplat())
	assert.Equal(t, []string{"col0", "col1", "name", "short"}, splat.Except)
}

func TestParseRecordErrors(t *testing.T) {
	source, err := RemoveComments("", `P(..rest, x);`)
	require.NoError(t, err)
	_, err = ParseStatements(source)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must go last")

	source, err = RemoveComments("", `P(name: v, 1);`)
	require.NoError(t, err)
	_, err = ParseStatements(source)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positional argument")
}

func TestParseFunctorRule(t *testing.T) {
	file := parseProgram(t, `G := F(A: C, B: D);`)
	rule := file.Rules[0]
	assert.Equal(t, "@Make", rule.Head.PredicateName)
	fvs := rule.Head.Record.FieldValues
	require.Len(t, fvs, 3)
	name := fvs[0].Value.Expression.(*ast.PredicateLiteral)
	assert.Equal(t, "G", name.PredicateName)
	applicant := fvs[1].Value.Expression.(*ast.PredicateLiteral)
	assert.Equal(t, "F", applicant.PredicateName)
}

func TestParseFunctionRule(t *testing.T) {
	file := parseProgram(t, `Add(a, b) --> a + b;`)
	require.Len(t, file.Rules, 2)
	assert.Equal(t, "@CompileAsUdf", file.Rules[0].Head.PredicateName)
	rule := file.Rules[1]
	assert.Equal(t, "Add", rule.Head.PredicateName)
	fvs := rule.Head.Record.FieldValues
	assert.Equal(t, "logica_value", fvs[len(fvs)-1].Field.Name)
}

func TestParseDisjunction(t *testing.T) {
	file := parseProgram(t, `F(x) :- A(x) | B(x);`)
	rule := file.Rules[0]
	require.Len(t, rule.Body.Conjuncts, 1)
	_, ok := rule.Body.Conjuncts[0].(*ast.Disjunction)
	assert.True(t, ok)
}

func TestParseNegation(t *testing.T) {
	file := parseProgram(t, `Good(x) :- Bird(x), ~CanFly(x);`)
	rule := file.Rules[0]
	require.Len(t, rule.Body.Conjuncts, 2)
	call, ok := rule.Body.Conjuncts[1].(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "IsNull", call.PredicateName)
	combine, ok := call.Record.FieldValues[0].Value.Expression.(*ast.Combine)
	require.True(t, ok)
	assert.Equal(t, "Combine", combine.Rule.Head.PredicateName)
	agg := combine.Rule.Head.Record.FieldValues[0].Value.Aggregation
	require.NotNil(t, agg)
	assert.Equal(t, "Min", agg.Operator)
}

func TestParseCombineExpression(t *testing.T) {
	file := parseProgram(t, `Best(x) = combine Max= v :- Score(x, v);`)
	rule := file.Rules[0]
	fvs := rule.Head.Record.FieldValues
	value := fvs[len(fvs)-1]
	combine, ok := value.Value.Expression.(*ast.Combine)
	require.True(t, ok)
	assert.True(t, combine.Rule.DistinctDenoted)
}

func TestParseImplication(t *testing.T) {
	file := parseProgram(t, `Sign(x) = (if x > 0 then 1 else if x < 0 then -1 else 0);`)
	rule := file.Rules[0]
	fvs := rule.Head.Record.FieldValues
	imp, ok := fvs[len(fvs)-1].Value.Expression.(*ast.Implication)
	require.True(t, ok)
	assert.Len(t, imp.IfThens, 2)

	source, err := RemoveComments("", `P(x) :- if x then A(x) else B(x);`)
	require.NoError(t, err)
	_, err = ParseStatements(source)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only supported as an expression")
}

func TestParseSubscriptChain(t *testing.T) {
	file := parseProgram(t, `V(r) = r.address.city;`)
	rule := file.Rules[0]
	fvs := rule.Head.Record.FieldValues
	sub, ok := fvs[len(fvs)-1].Value.Expression.(*ast.Subscript)
	require.True(t, ok)
	assert.Equal(t, "city", sub.Symbol.Symbol)
	inner, ok := sub.Rec.(*ast.Subscript)
	require.True(t, ok)
	assert.Equal(t, "address", inner.Symbol.Symbol)
}

func TestParseInclusion(t *testing.T) {
	file := parseProgram(t, `P(x) :- x in [1, 2, 3];`)
	rule := file.Rules[0]
	inclusion, ok := rule.Body.Conjuncts[0].(*ast.Inclusion)
	require.True(t, ok)
	_, ok = inclusion.List.(*ast.ListLiteral)
	assert.True(t, ok)
}

func TestParseImportStatements(t *testing.T) {
	file := parseProgram(t, `import path.to.lib.Predicate as P; Q(x) :- P(x);`)
	require.Len(t, file.ImportedPredicates, 1)
	imp := file.ImportedPredicates[0]
	assert.Equal(t, "path.to.lib", imp.FilePath)
	assert.Equal(t, "Predicate", imp.PredicateName)
	assert.Equal(t, "P", imp.Synonym)
}

func TestReservedVariablePrefix(t *testing.T) {
	source, err := RemoveComments("", `P(x_0);`)
	require.NoError(t, err)
	_, err = ParseStatements(source)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestExpressionHeritageRoundTrip(t *testing.T) {
	program := `Value(x) = x * (x + 1) :- Source(x);`
	file := parseProgram(t, program)
	rule := file.Rules[0]
	var check func(e ast.Expr)
	seen := 0
	check = func(e ast.Expr) {
		span := e.HeritageSpan()
		if span.Source == nil {
			return
		}
		seen++
		assert.Equal(t, span.Source.Text[span.Pos:span.End], span.Str())
	}
	ast.VisitExprs(rule, true, check)
	assert.Greater(t, seen, 3)
}

func TestMarshalFileContract(t *testing.T) {
	file := parseProgram(t, `Parent("A", "B");`)
	document, err := ast.MarshalFile(file)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(document, &decoded))
	for _, key := range []string{"rule", "imported_predicates",
		"predicates_prefix", "file_name"} {
		_, ok := decoded[key]
		assert.True(t, ok, "missing key %s", key)
	}
	rules := decoded["rule"].([]any)
	rule := rules[0].(map[string]any)
	head := rule["head"].(map[string]any)
	assert.Equal(t, "Parent", head["predicate_name"])
	record := head["record"].(map[string]any)
	fieldValues := record["field_value"].([]any)
	first := fieldValues[0].(map[string]any)
	assert.Equal(t, float64(0), first["field"])
	value := first["value"].(map[string]any)
	expression := value["expression"].(map[string]any)
	assert.Equal(t, `"A"`, expression["expression_heritage"])
}
