package rewrite_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/parser"
	"github.com/logica-lang/logica/compiler/rewrite"
)

func parseRules(t *testing.T, program string) []*ast.Rule {
	t.Helper()
	source, err := parser.RemoveComments("", program)
	require.NoError(t, err)
	file, err := parser.ParseStatements(source)
	require.NoError(t, err)
	return file.Rules
}

func rulesJSON(t *testing.T, rules []*ast.Rule) string {
	t.Helper()
	var docs []any
	for _, r := range rules {
		docs = append(docs, ast.RuleJSON(r))
	}
	rendered, err := json.MarshalIndent(docs, "", " ")
	require.NoError(t, err)
	return string(rendered)
}

func TestDNFExpandsDisjunction(t *testing.T) {
	rules := parseRules(t, `F(x) :- A(x) | B(x);`)
	result := rewrite.DisjunctiveNormalForm(rules)
	require.Len(t, result, 2)
	for _, r := range result {
		assert.Equal(t, "F", r.Head.PredicateName)
		require.Len(t, r.Body.Conjuncts, 1)
		_, ok := r.Body.Conjuncts[0].(*ast.Call)
		assert.True(t, ok)
	}
}

func TestDNFDistributesConjunction(t *testing.T) {
	rules := parseRules(t, `F(x) :- (A(x) | B(x)), (C(x) | D(x));`)
	result := rewrite.DisjunctiveNormalForm(rules)
	require.Len(t, result, 4)
	for _, r := range result {
		assert.Len(t, r.Body.Conjuncts, 2)
	}
}

func TestDNFIdempotent(t *testing.T) {
	rules := parseRules(t, `F(x) :- A(x) | (B(x), C(x)); G(y) :- D(y);`)
	once := rewrite.DisjunctiveNormalForm(rules)
	twice := rewrite.DisjunctiveNormalForm(once)
	if diff := cmp.Diff(rulesJSON(t, once), rulesJSON(t, twice)); diff != "" {
		t.Fatalf("DNF is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestMultiBodyAggregation(t *testing.T) {
	rules := parseRules(t, `A() += 1; A() += 2;`)
	result, err := rewrite.MultiBodyAggregation(rules)
	require.NoError(t, err)
	var auxRules, aggregating []*ast.Rule
	for _, r := range result {
		switch r.Head.PredicateName {
		case "A" + rewrite.MultiBodyAggSuffix:
			auxRules = append(auxRules, r)
		case "A":
			aggregating = append(aggregating, r)
		}
	}
	require.Len(t, auxRules, 2)
	require.Len(t, aggregating, 1)
	assert.True(t, aggregating[0].DistinctDenoted)
	require.NotNil(t,
		aggregating[0].Head.Record.FieldValues[0].Value.Aggregation)
	for _, aux := range auxRules {
		assert.False(t, aux.DistinctDenoted)
		assert.Nil(t, aux.Head.Record.FieldValues[0].Value.Aggregation)
	}
}

func TestMultiBodySignatureMismatch(t *testing.T) {
	rules := parseRules(t, `A() += 1; A() Max= 2;`)
	_, err := rewrite.MultiBodyAggregation(rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature differs")
}

func TestMultiBodyIdempotent(t *testing.T) {
	rules := parseRules(t, `A() += 1; A() += 2; B(x) :- C(x);`)
	once, err := rewrite.MultiBodyAggregation(rules)
	require.NoError(t, err)
	twice, err := rewrite.MultiBodyAggregation(once)
	require.NoError(t, err)
	if diff := cmp.Diff(rulesJSON(t, once), rulesJSON(t, twice)); diff != "" {
		t.Fatalf("multi-body rewrite is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestAggregationsAsExpressions(t *testing.T) {
	rules := parseRules(t, `Total() += x :- Item(x);`)
	result := rewrite.AggregationsAsExpressions(rules)
	agg := result[0].Head.Record.FieldValues[0].Value.Aggregation
	require.NotNil(t, agg)
	assert.Empty(t, agg.Operator)
	assert.Nil(t, agg.Argument)
	call, ok := agg.Expression.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "Agg+", call.PredicateName)
}

func TestAggregationsAsExpressionsIdempotent(t *testing.T) {
	rules := parseRules(t, `Total() Max= x :- Item(x); List() ++= [x] :- Item(x);`)
	once := rewrite.AggregationsAsExpressions(rules)
	twice := rewrite.AggregationsAsExpressions(once)
	if diff := cmp.Diff(rulesJSON(t, once), rulesJSON(t, twice)); diff != "" {
		t.Fatalf("aggregation rewrite is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestAllAppliesEverything(t *testing.T) {
	rules := parseRules(t, `A() += 1 ; A() += 2; F(x) :- B(x) | C(x);`)
	result, err := rewrite.All(rules)
	require.NoError(t, err)
	names := map[string]int{}
	for _, r := range result {
		names[r.Head.PredicateName]++
	}
	assert.Equal(t, 1, names["A"])
	assert.Equal(t, 2, names["A"+rewrite.MultiBodyAggSuffix])
	assert.Equal(t, 2, names["F"])
}
