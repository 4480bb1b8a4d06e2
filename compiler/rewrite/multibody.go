package rewrite

import (
	"encoding/json"

	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/srcfiles"
)

// MultiBodyAggSuffix names the auxiliary per-row predicate introduced by
// the multi-body aggregation rewrite.
const MultiBodyAggSuffix = "_MultBodyAggAux"

// MultiBodyAggregation enables aggregating predicates defined by several
// rules.  Each body is rewritten into a non-aggregating auxiliary
// predicate emitting the per-row argument values, and a single
// aggregating rule over the auxiliary is synthesized.  All bodies must
// share the same aggregation signature (operators and field names).
func MultiBodyAggregation(rules []*ast.Rule) ([]*ast.Rule, error) {
	rulesByPredicate, order := definedPredicatesRules(rules)
	multiBody := map[string]bool{}
	for _, name := range order {
		rs := rulesByPredicate[name]
		if len(rs) > 1 && rs[0].DistinctDenoted {
			multiBody[name] = true
		}
	}
	if len(multiBody) == 0 {
		return rules, nil
	}
	var newRules []*ast.Rule
	signatures := map[string][]*ast.FieldValue{}
	fullTexts := map[string]srcfiles.Span{}
	for _, rule := range rules {
		name := rule.Head.PredicateName
		fullTexts[name] = rule.FullText
		if !multiBody[name] {
			newRules = append(newRules, rule)
			continue
		}
		signature, newRule, err := splitAggregation(rule)
		if err != nil {
			return nil, err
		}
		if expected, ok := signatures[name]; ok {
			if !signaturesEqual(expected, signature) {
				return nil, srcfiles.ErrorAt("Parsing", rule.FullText,
					"signature differs for bodies of %s", name)
			}
		} else {
			signatures[name] = signature
		}
		newRules = append(newRules, newRule)
	}
	for _, name := range order {
		if !multiBody[name] {
			continue
		}
		signature := signatures[name]
		passFieldValues := make([]*ast.FieldValue, len(signature))
		for i, fv := range signature {
			passFieldValues[i] = &ast.FieldValue{
				Field: fv.Field,
				Value: &ast.Value{Expression: &ast.Variable{Name: fv.Field.SqlName()}},
			}
		}
		aggregatingRule := &ast.Rule{
			Head: &ast.Call{
				PredicateName: name,
				Record:        &ast.Record{FieldValues: copyFieldValues(signature)},
			},
			Body: &ast.Conjunction{Conjuncts: []ast.Proposition{
				&ast.Call{
					PredicateName: name + MultiBodyAggSuffix,
					Record:        &ast.Record{FieldValues: passFieldValues},
				},
			}},
			FullText:        fullTexts[name],
			DistinctDenoted: true,
		}
		newRules = append(newRules, aggregatingRule)
	}
	return newRules, nil
}

// splitAggregation replaces aggregations of the head with their
// arguments, renaming the rule to the auxiliary predicate, and returns
// the aggregation signature of the original head.
func splitAggregation(rule *ast.Rule) ([]*ast.FieldValue, *ast.Rule, error) {
	if !rule.DistinctDenoted {
		return nil, nil, srcfiles.ErrorAt("Parsing", rule.FullText,
			"inconsistency in \"distinct\" denoting for predicate %s",
			rule.Head.PredicateName)
	}
	rule = rule.Copy()
	rule.DistinctDenoted = false
	rule.Head.PredicateName += MultiBodyAggSuffix
	var transformation, signature []*ast.FieldValue
	for _, fieldValue := range rule.Head.Record.FieldValues {
		if fieldValue.Value.Aggregation != nil {
			signature = append(signature, &ast.FieldValue{
				Field: fieldValue.Field,
				Value: &ast.Value{Aggregation: &ast.Aggregation{
					Operator: fieldValue.Value.Aggregation.Operator,
					Argument: &ast.Variable{Name: fieldValue.Field.SqlName()},
				}},
			})
			transformation = append(transformation, &ast.FieldValue{
				Field: fieldValue.Field,
				Value: &ast.Value{Expression: fieldValue.Value.Aggregation.Argument},
			})
		} else {
			signature = append(signature, &ast.FieldValue{
				Field: fieldValue.Field,
				Value: &ast.Value{Expression: &ast.Variable{Name: fieldValue.Field.SqlName()}},
			})
			transformation = append(transformation, fieldValue)
		}
	}
	rule.Head.Record.FieldValues = transformation
	return signature, rule, nil
}

// signaturesEqual compares aggregation signatures structurally.  The
// synthesized signatures carry no heritage, so the JSON renderings are
// canonical.
func signaturesEqual(a, b []*ast.FieldValue) bool {
	return fieldValuesJSON(a) == fieldValuesJSON(b)
}

func fieldValuesJSON(fvs []*ast.FieldValue) string {
	record := &ast.Record{FieldValues: fvs}
	rendered, _ := json.Marshal(ast.ExprJSON(&ast.RecordExpr{Record: record}))
	return string(rendered)
}

func copyFieldValues(fvs []*ast.FieldValue) []*ast.FieldValue {
	out := make([]*ast.FieldValue, len(fvs))
	for i, fv := range fvs {
		out[i] = fv.Copy()
	}
	return out
}

func definedPredicatesRules(rules []*ast.Rule) (map[string][]*ast.Rule, []string) {
	result := map[string][]*ast.Rule{}
	var order []string
	for _, r := range rules {
		name := r.Head.PredicateName
		if _, ok := result[name]; !ok {
			order = append(order, name)
		}
		result[name] = append(result[name], r)
	}
	return result, order
}
