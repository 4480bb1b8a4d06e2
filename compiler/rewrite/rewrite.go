// Package rewrite implements the syntactic rewrites applied to parsed
// rules before program assembly: disjunctive normal form expansion,
// multi-body aggregation merging and the aggregation-as-expression
// rewrite.  All rewrites are idempotent.
package rewrite

import (
	"github.com/logica-lang/logica/compiler/ast"
)

// All applies the standard rewrite sequence.  DNF must run first so
// that multi-body aggregation sees one conjunctive body per rule; the
// aggregation-as-expression rewrite runs last because the multi-body
// rewrite relies on the concise operator/argument structure.
func All(rules []*ast.Rule) ([]*ast.Rule, error) {
	rules = DisjunctiveNormalForm(rules)
	rules, err := MultiBodyAggregation(rules)
	if err != nil {
		return nil, err
	}
	return AggregationsAsExpressions(rules), nil
}
