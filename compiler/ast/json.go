package ast

// JSON export of the syntax tree for external tooling.  This is the
// single place where the closed variants are serialized back to
// string-keyed objects.  Maps are used throughout so encoding/json
// emits lexicographically sorted keys.

import (
	"encoding/json"
	"fmt"
)

// MarshalFile renders the parsed file as the stable JSON document with
// top-level keys rule, imported_predicates, predicates_prefix and
// file_name.
func MarshalFile(f *File) ([]byte, error) {
	return json.Marshal(FileJSON(f))
}

func FileJSON(f *File) map[string]any {
	rules := make([]any, len(f.Rules))
	for i, r := range f.Rules {
		rules[i] = RuleJSON(r)
	}
	imports := make([]any, len(f.ImportedPredicates))
	for i, imp := range f.ImportedPredicates {
		m := map[string]any{
			"file":           imp.FilePath,
			"predicate_name": imp.PredicateName,
		}
		if imp.Synonym != "" {
			m["synonym"] = imp.Synonym
		}
		imports[i] = m
	}
	return map[string]any{
		"rule":                rules,
		"imported_predicates": imports,
		"predicates_prefix":   f.PredicatesPrefix,
		"file_name":           f.FileName,
	}
}

func RuleJSON(r *Rule) map[string]any {
	m := map[string]any{
		"head":      callJSON(r.Head),
		"full_text": r.FullText.Str(),
	}
	if r.Body != nil {
		m["body"] = map[string]any{"conjunction": conjunctionJSON(r.Body)}
	}
	if r.DistinctDenoted {
		m["distinct_denoted"] = true
	}
	return m
}

func callJSON(c *Call) map[string]any {
	return map[string]any{
		"predicate_name": c.PredicateName,
		"record":         recordJSON(c.Record),
	}
}

func recordJSON(r *Record) map[string]any {
	fvs := make([]any, len(r.FieldValues))
	for i, fv := range r.FieldValues {
		fvs[i] = fieldValueJSON(fv)
	}
	return map[string]any{"field_value": fvs}
}

func fieldValueJSON(fv *FieldValue) map[string]any {
	var field any
	if fv.Field.IsPositional() {
		field = fv.Field.Ordinal
	} else {
		field = fv.Field.Name
	}
	m := map[string]any{
		"field": field,
		"value": valueJSON(fv.Value),
	}
	if len(fv.Except) > 0 {
		m["except"] = fv.Except
	}
	return m
}

func valueJSON(v *Value) map[string]any {
	if v.Aggregation != nil {
		a := map[string]any{}
		if v.Aggregation.Expression != nil {
			a["expression"] = ExprJSON(v.Aggregation.Expression)
		} else {
			a["operator"] = v.Aggregation.Operator
			a["argument"] = ExprJSON(v.Aggregation.Argument)
		}
		return map[string]any{"aggregation": a}
	}
	return map[string]any{"expression": ExprJSON(v.Expression)}
}

// ExprJSON renders an expression with its expression_heritage.
func ExprJSON(e Expr) map[string]any {
	m := exprBodyJSON(e)
	if span := e.HeritageSpan(); span.Source != nil {
		m["expression_heritage"] = span.Str()
	}
	return m
}

func exprBodyJSON(e Expr) map[string]any {
	switch e := e.(type) {
	case *NumberLiteral:
		return literalJSON("the_number", map[string]any{"number": e.Text})
	case *StringLiteral:
		return literalJSON("the_string", map[string]any{"the_string": e.Value})
	case *BoolLiteral:
		return literalJSON("the_bool", map[string]any{"the_bool": e.Text})
	case *NullLiteral:
		return literalJSON("the_null", map[string]any{"the_null": "null"})
	case *ListLiteral:
		elements := make([]any, len(e.Elements))
		for i, el := range e.Elements {
			elements[i] = ExprJSON(el)
		}
		return literalJSON("the_list", map[string]any{"element": elements})
	case *PredicateLiteral:
		return literalJSON("the_predicate", map[string]any{"predicate_name": e.PredicateName})
	case *SymbolLiteral:
		return literalJSON("the_symbol", map[string]any{"symbol": e.Symbol})
	case *Variable:
		return map[string]any{"variable": map[string]any{"var_name": e.Name}}
	case *RecordExpr:
		return map[string]any{"record": recordJSON(e.Record)}
	case *Call:
		return map[string]any{"call": callJSON(e)}
	case *Subscript:
		return map[string]any{"subscript": map[string]any{
			"record":    ExprJSON(e.Rec),
			"subscript": exprBodyJSON(e.Symbol),
		}}
	case *Combine:
		return map[string]any{"combine": RuleJSON(e.Rule)}
	case *Implication:
		ifThens := make([]any, len(e.IfThens))
		for i, it := range e.IfThens {
			ifThens[i] = map[string]any{
				"condition":   ExprJSON(it.Condition),
				"consequence": ExprJSON(it.Consequence),
			}
		}
		return map[string]any{"implication": map[string]any{
			"if_then":   ifThens,
			"otherwise": ExprJSON(e.Otherwise),
		}}
	}
	panic(fmt.Sprintf("ast: unknown expression type %T", e))
}

func literalJSON(kind string, body map[string]any) map[string]any {
	return map[string]any{"literal": map[string]any{kind: body}}
}

func PropositionJSON(p Proposition) map[string]any {
	switch p := p.(type) {
	case *Call:
		return map[string]any{"predicate": callJSON(p)}
	case *Conjunction:
		return map[string]any{"conjunction": conjunctionJSON(p)}
	case *Disjunction:
		disjuncts := make([]any, len(p.Disjuncts))
		for i, d := range p.Disjuncts {
			disjuncts[i] = PropositionJSON(d)
		}
		return map[string]any{"disjunction": map[string]any{"disjunct": disjuncts}}
	case *Unification:
		return map[string]any{"unification": map[string]any{
			"left_hand_side":  ExprJSON(p.Left),
			"right_hand_side": ExprJSON(p.Right),
		}}
	case *Inclusion:
		return map[string]any{"inclusion": map[string]any{
			"element": ExprJSON(p.Element),
			"list":    ExprJSON(p.List),
		}}
	}
	panic(fmt.Sprintf("ast: unknown proposition type %T", p))
}

func conjunctionJSON(c *Conjunction) map[string]any {
	conjuncts := make([]any, len(c.Conjuncts))
	for i, cj := range c.Conjuncts {
		conjuncts[i] = PropositionJSON(cj)
	}
	return map[string]any{"conjunct": conjuncts}
}
