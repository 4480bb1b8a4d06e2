package parser

import (
	"strconv"
	"strings"

	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/srcfiles"
)

func isLowerByte(c byte) bool  { return c >= 'a' && c <= 'z' }
func isUpperByte(c byte) bool  { return c >= 'A' && c <= 'Z' }
func isDigitByte(c byte) bool  { return c >= '0' && c <= '9' }
func isLetterByte(c byte) bool { return isLowerByte(c) || isUpperByte(c) }

// parseVariable recognizes a variable: lowercase or '_' first byte,
// lowercase/digits/'_' throughout.  The "x_" prefix is reserved for
// compiler-introduced variables.
func parseVariable(s srcfiles.Span) (ast.Expr, error) {
	if s.IsEmpty() {
		return nil, nil
	}
	if !isLowerByte(s.At(0)) && s.At(0) != '_' {
		return nil, nil
	}
	for i := 0; i < s.Len(); i++ {
		c := s.At(i)
		if !isLowerByte(c) && !isDigitByte(c) && c != '_' {
			return nil, nil
		}
	}
	if strings.HasPrefix(s.Str(), "x_") {
		return nil, srcfiles.ErrorAt(stage, s,
			"variable names starting with x_ are reserved for the compiler")
	}
	return &ast.Variable{Name: s.Str(), Heritage: ast.NewHeritage(s)}, nil
}

func parseNumber(s srcfiles.Span) ast.Expr {
	text := s.Str()
	numeric := strings.TrimSuffix(text, "u")
	if numeric == "" {
		return nil
	}
	if _, err := strconv.ParseFloat(numeric, 64); err != nil {
		return nil
	}
	return &ast.NumberLiteral{Text: numeric, Heritage: ast.NewHeritage(s)}
}

// parseString recognizes single and triple quoted strings.  Escaping is
// not supported; a quote ends the string.
func parseString(s srcfiles.Span) ast.Expr {
	text := s.Str()
	if len(text) >= 6 && strings.HasPrefix(text, `"""`) && strings.HasSuffix(text, `"""`) &&
		!strings.Contains(text[3:len(text)-3], `"""`) {
		return &ast.StringLiteral{Value: text[3 : len(text)-3], Heritage: ast.NewHeritage(s)}
	}
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' &&
		!strings.Contains(text[1:len(text)-1], `"`) {
		return &ast.StringLiteral{Value: text[1 : len(text)-1], Heritage: ast.NewHeritage(s)}
	}
	return nil
}

func parseBoolean(s srcfiles.Span) ast.Expr {
	if text := s.Str(); text == "true" || text == "false" {
		return &ast.BoolLiteral{Text: text, Heritage: ast.NewHeritage(s)}
	}
	return nil
}

func parseNull(s srcfiles.Span) ast.Expr {
	if s.Str() == "null" {
		return &ast.NullLiteral{Heritage: ast.NewHeritage(s)}
	}
	return nil
}

func parseList(s srcfiles.Span) (ast.Expr, error) {
	if s.Len() < 2 || s.At(0) != '[' || s.At(s.Len()-1) != ']' ||
		!IsWhole(s.Sub(1, s.Len()-1)) {
		return nil, nil
	}
	inside := Strip(s.Sub(1, s.Len()-1))
	var elements []ast.Expr
	if !inside.IsEmpty() {
		parts, err := Split(inside, ",")
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			e, err := ParseExpression(p)
			if err != nil {
				return nil, err
			}
			elements = append(elements, e)
		}
	}
	return &ast.ListLiteral{Elements: elements, Heritage: ast.NewHeritage(s)}, nil
}

// parsePredicateLiteral recognizes a capitalized predicate name, plus the
// special names "++?" and "nil".
func parsePredicateLiteral(s srcfiles.Span) ast.Expr {
	text := s.Str()
	if text == "++?" || text == "nil" {
		return &ast.PredicateLiteral{PredicateName: text, Heritage: ast.NewHeritage(s)}
	}
	if text == "" || !isUpperByte(text[0]) {
		return nil
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !isLetterByte(c) && !isDigitByte(c) && c != '_' {
			return nil
		}
	}
	return &ast.PredicateLiteral{PredicateName: text, Heritage: ast.NewHeritage(s)}
}

func parseLiteral(s srcfiles.Span) (ast.Expr, error) {
	if v := parseNumber(s); v != nil {
		return v, nil
	}
	if v := parseString(s); v != nil {
		return v, nil
	}
	v, err := parseList(s)
	if v != nil || err != nil {
		return v, err
	}
	if v := parseBoolean(s); v != nil {
		return v, nil
	}
	if v := parseNull(s); v != nil {
		return v, nil
	}
	if v := parsePredicateLiteral(s); v != nil {
		return v, nil
	}
	return nil, nil
}
