package parser

import (
	"fmt"

	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/srcfiles"
)

func functorSyntaxError(s srcfiles.Span) error {
	return srcfiles.ErrorAt(stage, s,
		"incorrect syntax for functor call; a functor call is made as\n"+
			"  R := F(A: V, ...)\n"+
			"or\n"+
			"  @Make(R, F, {A: V, ...})\n"+
			"where R, F, A's and V's are all predicate names")
}

// parseHeadCall parses a rule head, excluding "distinct".  The second
// result reports whether the head aggregates.
func parseHeadCall(s srcfiles.Span) (*ast.Call, bool, error) {
	t := NewTraverser(s)
	sawOpen := false
	idx := -1
	found := false
	for {
		i, ok := t.Next()
		if !ok {
			break
		}
		idx = i
		if t.InSingleParen() {
			sawOpen = true
		}
		if sawOpen && t.TopLevel() {
			found = true
			break
		}
	}
	if err := t.Err(); err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, srcfiles.ErrorAt(stage, s, "found no call in rule head")
	}
	callSpan := s.Sub(0, idx+1)
	postCallSpan := s.SubFrom(idx + 1)
	call, err := parseCall(callSpan)
	if err != nil {
		return nil, false, err
	}
	if call == nil {
		return nil, false, srcfiles.ErrorAt(stage, callSpan, "could not parse predicate call")
	}
	operatorExpression, err := Split(postCallSpan, "=")
	if err != nil {
		return nil, false, err
	}
	if len(operatorExpression) == 1 {
		if !operatorExpression[0].IsEmpty() {
			return nil, false, srcfiles.ErrorAt(stage, operatorExpression[0],
				"unexpected text in the head of a rule")
		}
		return call, false, nil
	}
	if len(operatorExpression) > 2 {
		return nil, false, srcfiles.ErrorAt(stage, postCallSpan,
			"too many \"=\" in predicate value")
	}
	operatorSpan, expressionSpan := operatorExpression[0], operatorExpression[1]
	value, err := ParseExpression(expressionSpan)
	if err != nil {
		return nil, false, err
	}
	if operatorSpan.IsEmpty() {
		call.Record.FieldValues = append(call.Record.FieldValues, &ast.FieldValue{
			Field: ast.Named("logica_value"),
			Value: &ast.Value{Expression: value},
		})
		return call, false, nil
	}
	call.Record.FieldValues = append(call.Record.FieldValues, &ast.FieldValue{
		Field: ast.Named("logica_value"),
		Value: &ast.Value{Aggregation: &ast.Aggregation{
			Operator: operatorSpan.Str(),
			Argument: value,
		}},
	})
	return call, true, nil
}

// ParseRule parses one rule statement.
func ParseRule(s srcfiles.Span) (*ast.Rule, error) {
	parts, err := Split(s, ":-")
	if err != nil {
		return nil, err
	}
	if len(parts) > 2 {
		return nil, srcfiles.ErrorAt(stage, s,
			"too many :- in a rule; did you forget a semicolon?")
	}
	head := parts[0]
	headDistinct, err := Split(head, "distinct")
	if err != nil {
		return nil, err
	}
	result := &ast.Rule{FullText: s}
	if len(headDistinct) == 1 {
		call, isDistinct, err := parseHeadCall(head)
		if err != nil {
			return nil, err
		}
		result.Head = call
		result.DistinctDenoted = isDistinct || hasAggregatedField(call)
	} else {
		if len(headDistinct) != 2 || !headDistinct[1].IsEmpty() {
			return nil, srcfiles.ErrorAt(stage, head,
				"can not parse rule head; something is wrong with how \"distinct\" is used")
		}
		call, _, err := parseHeadCall(headDistinct[0])
		if err != nil {
			return nil, err
		}
		result.Head = call
		result.DistinctDenoted = true
	}
	if len(parts) == 2 {
		body, err := parseConjunction(parts[1], true)
		if err != nil {
			return nil, err
		}
		result.Body = body
	}
	return result, nil
}

// hasAggregatedField reports whether any head field aggregates, which
// makes the rule implicitly distinct.
func hasAggregatedField(call *ast.Call) bool {
	for _, fv := range call.Record.FieldValues {
		if fv.Value.Aggregation != nil {
			return true
		}
	}
	return false
}

// parseFunctorRule parses "NewName := Template(Slot: Value, ...)" into
// its "@Make" form.
func parseFunctorRule(s srcfiles.Span) (*ast.Rule, error) {
	parts, err := Split(s, ":=")
	if err != nil {
		return nil, err
	}
	if len(parts) != 2 {
		return nil, nil
	}
	newPredicate, err := ParseExpression(parts[0])
	if err != nil {
		return nil, err
	}
	definitionExpr, err := ParseExpression(parts[1])
	if err != nil {
		return nil, err
	}
	definition, ok := definitionExpr.(*ast.Call)
	if !ok {
		return nil, functorSyntaxError(parts[1])
	}
	if _, ok := newPredicate.(*ast.PredicateLiteral); !ok {
		return nil, functorSyntaxError(parts[0])
	}
	applicant := &ast.PredicateLiteral{
		PredicateName: definition.PredicateName,
		Heritage:      definition.Heritage,
	}
	arguments := &ast.RecordExpr{Record: definition.Record, Heritage: definition.Heritage}
	return &ast.Rule{
		FullText: s,
		Head: &ast.Call{
			PredicateName: "@Make",
			Record: &ast.Record{FieldValues: []*ast.FieldValue{
				{Field: ast.Positional(0), Value: &ast.Value{Expression: newPredicate}},
				{Field: ast.Positional(1), Value: &ast.Value{Expression: applicant}},
				{Field: ast.Positional(2), Value: &ast.Value{Expression: arguments}},
			}},
			Heritage: ast.NewHeritage(s),
		},
	}, nil
}

// parseFunctionRule parses "P(...) --> expr", producing the
// @CompileAsUdf annotation and the value rule.
func parseFunctionRule(s srcfiles.Span) ([]*ast.Rule, error) {
	parts, err := SplitRaw(s, "-->")
	if err != nil {
		return nil, err
	}
	if len(parts) != 2 {
		return nil, nil
	}
	call, err := parseCall(parts[0])
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, srcfiles.ErrorAt(stage, parts[0],
			"left hand side of function definition must be a predicate call")
	}
	annotation, err := ParseSynthetic(
		fmt.Sprintf("@CompileAsUdf(%s)", call.PredicateName))
	if err != nil {
		return nil, err
	}
	rule, err := ParseSynthetic(parts[0].Str() + " = " + Strip(parts[1]).Str())
	if err != nil {
		return nil, err
	}
	return []*ast.Rule{annotation, rule}, nil
}

// ParseSynthetic parses a rule from compiler-generated source text.
func ParseSynthetic(text string) (*ast.Rule, error) {
	src := srcfiles.NewSource("", text)
	return ParseRule(Strip(src.Whole()))
}
