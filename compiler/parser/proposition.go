package parser

import (
	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/srcfiles"
)

// ParseProposition parses one proposition of a rule body.
func ParseProposition(s srcfiles.Span) (ast.Proposition, error) {
	if d, err := parseDisjunction(s); d != nil || err != nil {
		return d, err
	}
	conjuncts, err := Split(s, ",")
	if err != nil {
		return nil, err
	}
	if len(conjuncts) > 1 {
		return parseConjunction(s, false)
	}
	if v, err := parseImplication(s); err != nil {
		return nil, err
	} else if v != nil {
		return nil, srcfiles.ErrorAt(stage, s,
			"if-then-else clause is only supported as an expression, not as a proposition")
	}
	if c, err := parseCall(s); c != nil || err != nil {
		return c, err
	}
	if c, err := parseInfix(s, []string{"&&", "||"}); err != nil {
		return nil, err
	} else if c != nil {
		return c.(*ast.Call), nil
	}
	if u, err := parseUnification(s); u != nil || err != nil {
		return u, err
	}
	if i, err := parseInclusion(s); i != nil || err != nil {
		return i, err
	}
	// "x Op= (...)" parses to "x == (combine Op= ...)".
	if u, err := parseConciseCombine(s); u != nil || err != nil {
		return u, err
	}
	if c, err := parseInfix(s, infixOperators); err != nil {
		return nil, err
	} else if c != nil {
		return c.(*ast.Call), nil
	}
	if n, err := parseNegation(s); n != nil || err != nil {
		return n, err
	}
	return nil, srcfiles.ErrorAt(stage, s, "could not parse proposition")
}

func parseConjunction(s srcfiles.Span, allowSingleton bool) (*ast.Conjunction, error) {
	conjuncts, err := Split(s, ",")
	if err != nil {
		return nil, err
	}
	if len(conjuncts) == 1 && !allowSingleton {
		return nil, nil
	}
	result := &ast.Conjunction{Heritage: ast.NewHeritage(s)}
	for _, c := range conjuncts {
		p, err := ParseProposition(c)
		if err != nil {
			return nil, err
		}
		result.Conjuncts = append(result.Conjuncts, p)
	}
	return result, nil
}

func parseDisjunction(s srcfiles.Span) (ast.Proposition, error) {
	disjuncts, err := Split(s, "|")
	if err != nil {
		return nil, err
	}
	if len(disjuncts) == 1 {
		return nil, nil
	}
	result := &ast.Disjunction{Heritage: ast.NewHeritage(s)}
	for _, d := range disjuncts {
		p, err := ParseProposition(d)
		if err != nil {
			return nil, err
		}
		result.Disjuncts = append(result.Disjuncts, p)
	}
	return result, nil
}

func parseUnification(s srcfiles.Span) (ast.Proposition, error) {
	parts, err := Split(s, "==")
	if err != nil || len(parts) != 2 {
		return nil, err
	}
	left, err := ParseExpression(parts[0])
	if err != nil {
		return nil, err
	}
	right, err := ParseExpression(parts[1])
	if err != nil {
		return nil, err
	}
	return &ast.Unification{Left: left, Right: right, Heritage: ast.NewHeritage(s)}, nil
}

func parseInclusion(s srcfiles.Span) (ast.Proposition, error) {
	parts, err := Split(s, "in")
	if err != nil || len(parts) != 2 {
		return nil, err
	}
	element, err := ParseExpression(parts[0])
	if err != nil {
		return nil, err
	}
	list, err := ParseExpression(parts[1])
	if err != nil {
		return nil, err
	}
	return &ast.Inclusion{Element: element, List: list, Heritage: ast.NewHeritage(s)}, nil
}
