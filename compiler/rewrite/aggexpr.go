package rewrite

import (
	"github.com/logica-lang/logica/compiler/ast"
)

// AggregationOperator maps a concise aggregation operator to the name of
// the aggregating function it denotes.
func AggregationOperator(raw string) string {
	switch raw {
	case "+":
		return "Agg+"
	case "++":
		return "Agg++"
	}
	return raw
}

// AggregationsAsExpressions replaces every concise "Op= argument"
// aggregation with an expression calling the aggregating function, so
// later stages deal with a single value shape.
func AggregationsAsExpressions(rules []*ast.Rule) []*ast.Rule {
	rules = ast.CopyRules(rules)
	for _, rule := range rules {
		aggregationsInRule(rule)
	}
	return rules
}

func aggregationsInRule(rule *ast.Rule) {
	convertRecord(rule.Head.Record)
	ast.VisitExprs(rule, true, func(e ast.Expr) {
		switch e := e.(type) {
		case *ast.Combine:
			convertRecord(e.Rule.Head.Record)
		case *ast.RecordExpr:
			convertRecord(e.Record)
		case *ast.Call:
			convertRecord(e.Record)
		}
	})
}

func convertRecord(record *ast.Record) {
	if record == nil {
		return
	}
	for _, fv := range record.FieldValues {
		agg := fv.Value.Aggregation
		if agg == nil || agg.Expression != nil {
			continue
		}
		agg.Expression = &ast.Call{
			PredicateName: AggregationOperator(agg.Operator),
			Record: &ast.Record{FieldValues: []*ast.FieldValue{{
				Field: ast.Positional(0),
				Value: &ast.Value{Expression: agg.Argument},
			}}},
			Heritage: ast.NewHeritage(agg.Argument.HeritageSpan()),
		}
		agg.Operator = ""
		agg.Argument = nil
	}
}
