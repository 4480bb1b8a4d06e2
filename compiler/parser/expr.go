package parser

import (
	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/srcfiles"
)

// infixOperators is the operator precedence list, loosest first.
var infixOperators = []string{
	"||", "&&", "->", "==", "<=", ">=", "<", ">", "!=", "=", "~",
	"in", "is not", "is", "++?", "++", "+", "-", "*", "/", "%", "^", "!",
}

var unaryOperators = map[string]bool{"-": true, "!": true}

// ParseExpression parses a Logica expression.
func ParseExpression(s srcfiles.Span) (ast.Expr, error) {
	if v, err := parseCombineExpr(s); v != nil || err != nil {
		return v, err
	}
	if v, err := parseImplication(s); v != nil || err != nil {
		return v, err
	}
	if v, err := parseLiteral(s); v != nil || err != nil {
		return v, err
	}
	if v, err := parseVariable(s); v != nil || err != nil {
		return v, err
	}
	if v, err := parseRecord(s); v != nil || err != nil {
		return v, err
	}
	if v, err := parseCall(s); v != nil || err != nil {
		return v, err
	}
	if v, err := parseInfix(s, infixOperators); v != nil || err != nil {
		return v, err
	}
	if v, err := parseSubscript(s); v != nil || err != nil {
		return v, err
	}
	if v, err := parseNegationExpression(s); v != nil || err != nil {
		return v, err
	}
	return nil, srcfiles.ErrorAt(stage, s, "could not parse expression of a value")
}

// parseInfix parses an infix operator expression.  Operators associate
// to the left: a / b / c parses as (a / b) / c.
func parseInfix(s srcfiles.Span, operators []string) (ast.Expr, error) {
	for _, op := range operators {
		parts, err := SplitRaw(s, op)
		if err != nil {
			return nil, err
		}
		if len(parts) <= 1 {
			continue
		}
		// Right is the rightmost operand and left all the others.
		left := Strip(srcfiles.Span{Source: s.Source, Pos: s.Pos, End: parts[len(parts)-2].End})
		right := Strip(srcfiles.Span{Source: s.Source, Pos: parts[len(parts)-1].Pos, End: s.End})
		if left.IsEmpty() {
			if unaryOperators[op] {
				record, err := parseRecordInternals(right, false)
				if err != nil {
					return nil, err
				}
				return &ast.Call{
					PredicateName: op,
					Record:        record,
					Heritage:      ast.NewHeritage(s),
				}, nil
			}
			// "~" with no left-hand side is negation, handled elsewhere.
			continue
		}
		leftExpr, err := ParseExpression(left)
		if err != nil {
			return nil, err
		}
		rightExpr, err := ParseExpression(right)
		if err != nil {
			return nil, err
		}
		return &ast.Call{
			PredicateName: op,
			Record: &ast.Record{FieldValues: []*ast.FieldValue{
				{Field: ast.Named("left"), Value: &ast.Value{Expression: leftExpr}},
				{Field: ast.Named("right"), Value: &ast.Value{Expression: rightExpr}},
			}},
			Heritage: ast.NewHeritage(s),
		}, nil
	}
	return nil, nil
}

// isGoodCallChar reports whether the byte is allowed in a predicate name
// position.
func isGoodCallChar(c byte) bool {
	return isLetterByte(c) || isDigitByte(c) ||
		c == '@' || c == '_' || c == '.' || c == '$' ||
		c == '{' || c == '}' || c == '+' || c == '-' || c == '`'
}

// parseCall parses a predicate call "P(...)".
func parseCall(s srcfiles.Span) (*ast.Call, error) {
	s = Strip(s)
	if s.IsEmpty() {
		return nil, nil
	}
	predicate := ""
	idx := 0
	if s.HasPrefix("->") {
		// Special case for the arrow operator used in definitions.
		idx = 2
		predicate = "->"
	} else {
		t := NewTraverser(s)
		found := false
		for {
			i, ok := t.Next()
			if !ok {
				break
			}
			idx = i
			if t.InSingleParen() {
				head := s.Sub(0, idx).Str()
				good := idx > 0
				for j := 0; j < idx; j++ {
					if !isGoodCallChar(s.At(j)) {
						good = false
						break
					}
				}
				if good || head == "!" || head == "++?" ||
					idx >= 2 && s.At(0) == '`' && s.At(idx-1) == '`' {
					predicate = head
					found = true
					break
				}
				return nil, nil
			}
			if st := t.State(); len(st) > 0 && !(len(st) == 1 && st[0] == '{') && st[0] != '`' {
				return nil, nil
			}
		}
		if err := t.Err(); err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
	}
	if idx >= s.Len() || s.At(idx) != '(' || s.At(s.Len()-1) != ')' ||
		!IsWhole(s.Sub(idx+1, s.Len()-1)) {
		return nil, nil
	}
	record, err := parseRecordInternals(s.Sub(idx+1, s.Len()-1), false)
	if err != nil {
		return nil, err
	}
	return &ast.Call{
		PredicateName: unquotePredicate(predicate),
		Record:        record,
		Heritage:      ast.NewHeritage(s),
	}, nil
}

func unquotePredicate(name string) string {
	if len(name) >= 2 && name[0] == '`' && name[len(name)-1] == '`' {
		return name[1 : len(name)-1]
	}
	return name
}

// buildCombine constructs the combine rule for the parsed components.
func buildCombine(expression ast.Expr, operator string, body *ast.Conjunction,
	fullText srcfiles.Span) *ast.Rule {
	return &ast.Rule{
		Head: &ast.Call{
			PredicateName: "Combine",
			Record: &ast.Record{FieldValues: []*ast.FieldValue{{
				Field: ast.Named("logica_value"),
				Value: &ast.Value{Aggregation: &ast.Aggregation{
					Operator: operator,
					Argument: expression,
				}},
			}}},
			Heritage: ast.NewHeritage(fullText),
		},
		Body:            body,
		DistinctDenoted: true,
		FullText:        fullText,
	}
}

// parseCombineExpr parses a "combine Op= expr [:- body]" expression.
func parseCombineExpr(s srcfiles.Span) (ast.Expr, error) {
	if !s.HasPrefix("combine ") && !s.HasPrefix("combine\n") {
		return nil, nil
	}
	inner := Strip(s.SubFrom(len("combine ")))
	value, body, hasBody, err := SplitInOneOrTwo(inner, ":-")
	if err != nil {
		return nil, err
	}
	operator, expression, err := SplitInTwo(value, "=")
	if err != nil {
		return nil, err
	}
	parsedExpression, err := ParseExpression(expression)
	if err != nil {
		return nil, err
	}
	var parsedBody *ast.Conjunction
	if hasBody {
		parsedBody, err = parseConjunction(body, true)
		if err != nil {
			return nil, err
		}
	}
	rule := buildCombine(parsedExpression, Strip(operator).Str(), parsedBody, inner)
	return &ast.Combine{Rule: rule, Heritage: ast.NewHeritage(s)}, nil
}

// parseConciseCombine parses the proposition "x Op= expr [:- body]",
// equivalent to "x == (combine Op= expr [:- body])".
func parseConciseCombine(s srcfiles.Span) (ast.Proposition, error) {
	parts, err := Split(s, "=")
	if err != nil || len(parts) != 2 {
		return nil, err
	}
	lhsAndOp, combine := parts[0], parts[1]
	leftParts, err := SplitOnWhitespace(lhsAndOp)
	if err != nil {
		return nil, err
	}
	if len(leftParts) < 2 {
		return nil, nil
	}
	lhs := Strip(srcfiles.Span{
		Source: s.Source, Pos: s.Pos, End: leftParts[len(leftParts)-2].End})
	operator := leftParts[len(leftParts)-1].Str()
	// These arise from comparison operators; bail out if we see them.
	if operator == "!" || operator == "<" || operator == ">" {
		return nil, nil
	}
	leftExpr, err := ParseExpression(lhs)
	if err != nil {
		return nil, err
	}
	expression, body, hasBody, err := SplitInOneOrTwo(combine, ":-")
	if err != nil {
		return nil, err
	}
	parsedExpression, err := ParseExpression(expression)
	if err != nil {
		return nil, err
	}
	var parsedBody *ast.Conjunction
	if hasBody {
		parsedBody, err = parseConjunction(body, true)
		if err != nil {
			return nil, err
		}
	}
	rule := buildCombine(parsedExpression, operator, parsedBody, s)
	return &ast.Unification{
		Left:     leftExpr,
		Right:    &ast.Combine{Rule: rule, Heritage: ast.NewHeritage(s)},
		Heritage: ast.NewHeritage(s),
	}, nil
}

// parseImplication parses "if c then e else if ... else e".
func parseImplication(s srcfiles.Span) (ast.Expr, error) {
	if !s.HasPrefix("if ") && !s.HasPrefix("if\n") {
		return nil, nil
	}
	inner := s.SubFrom(3)
	ifThens, err := Split(inner, "else if")
	if err != nil {
		return nil, err
	}
	lastIfThen, lastElse, err := SplitInTwo(ifThens[len(ifThens)-1], "else")
	if err != nil {
		return nil, err
	}
	ifThens[len(ifThens)-1] = lastIfThen
	result := &ast.Implication{Heritage: ast.NewHeritage(s)}
	for _, conditionConsequence := range ifThens {
		condition, consequence, err := SplitInTwo(conditionConsequence, "then")
		if err != nil {
			return nil, err
		}
		conditionExpr, err := ParseExpression(condition)
		if err != nil {
			return nil, err
		}
		consequenceExpr, err := ParseExpression(consequence)
		if err != nil {
			return nil, err
		}
		result.IfThens = append(result.IfThens, &ast.IfThen{
			Condition:   conditionExpr,
			Consequence: consequenceExpr,
		})
	}
	result.Otherwise, err = ParseExpression(lastElse)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parseSubscript parses "record.field".
func parseSubscript(s srcfiles.Span) (ast.Expr, error) {
	path, err := SplitRaw(s, ".")
	if err != nil {
		return nil, err
	}
	if len(path) < 2 {
		return nil, nil
	}
	recordSpan := Strip(srcfiles.Span{
		Source: s.Source, Pos: s.Pos, End: path[len(path)-2].End})
	last := StripSpaces(path[len(path)-1])
	for i := 0; i < last.Len(); i++ {
		c := last.At(i)
		if !isLowerByte(c) && !isDigitByte(c) && c != '_' {
			return nil, srcfiles.ErrorAt(stage, s, "subscript must be lowercase")
		}
	}
	record, err := ParseExpression(recordSpan)
	if err != nil {
		return nil, err
	}
	return &ast.Subscript{
		Rec:      record,
		Symbol:   &ast.SymbolLiteral{Symbol: last.Str(), Heritage: ast.NewHeritage(last)},
		Heritage: ast.NewHeritage(s),
	}, nil
}

// parseNegationExpression wraps a parsed negation as an expression.
func parseNegationExpression(s srcfiles.Span) (ast.Expr, error) {
	proposition, err := parseNegation(s)
	if err != nil || proposition == nil {
		return nil, err
	}
	return proposition.(*ast.Call), nil
}

// parseNegation parses "~P" as IsNull(combine Min= 1 :- P).
func parseNegation(s srcfiles.Span) (ast.Proposition, error) {
	parts, err := Split(s, "~")
	if err != nil {
		return nil, err
	}
	if len(parts) == 1 {
		return nil, nil
	}
	if len(parts) != 2 || !parts[0].IsEmpty() {
		return nil, srcfiles.ErrorAt(stage, s, "negation \"~\" is a unary operator")
	}
	negated := Strip(parts[1])
	negatedBody, err := parseConjunction(negated, true)
	if err != nil {
		return nil, err
	}
	one := &ast.NumberLiteral{Text: "1", Heritage: ast.NewHeritage(s)}
	combineRule := buildCombine(one, "Min", negatedBody, s)
	return &ast.Call{
		PredicateName: "IsNull",
		Record: &ast.Record{FieldValues: []*ast.FieldValue{{
			Field: ast.Positional(0),
			Value: &ast.Value{Expression: &ast.Combine{
				Rule:     combineRule,
				Heritage: ast.NewHeritage(s),
			}},
		}}},
		Heritage: ast.NewHeritage(s),
	}, nil
}
