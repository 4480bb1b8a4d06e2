package parser

import (
	"strings"

	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/srcfiles"
)

// ParseStatements parses the statements of a single file without
// resolving imports or applying rewrites.
func ParseStatements(source *srcfiles.Source) (*ast.File, error) {
	file := &ast.File{FileName: source.Name}
	statements, err := Split(source.Whole(), ";")
	if err != nil {
		return nil, err
	}
	for _, statement := range statements {
		if statement.IsEmpty() {
			continue
		}
		if statement.HasPrefix("import ") {
			imp, err := parseImportStatement(statement.SubFrom(len("import ")))
			if err != nil {
				return nil, err
			}
			file.ImportedPredicates = append(file.ImportedPredicates, imp)
			continue
		}
		annotationAndRule, err := parseFunctionRule(statement)
		if err != nil {
			return nil, err
		}
		if annotationAndRule != nil {
			file.Rules = append(file.Rules, annotationAndRule...)
			continue
		}
		rule, err := parseFunctorRule(statement)
		if err != nil {
			return nil, err
		}
		if rule == nil {
			rule, err = ParseRule(statement)
			if err != nil {
				return nil, err
			}
		}
		file.Rules = append(file.Rules, rule)
	}
	return file, nil
}

// parseImportStatement splits "path.to.Predicate [as Synonym]".
func parseImportStatement(s srcfiles.Span) (*ast.Import, error) {
	pathSynonym, err := Split(s, "as")
	if err != nil {
		return nil, err
	}
	if len(pathSynonym) > 2 {
		return nil, srcfiles.ErrorAt(stage, s, "too many \"as\" in import")
	}
	importPath := pathSynonym[0].Str()
	synonym := ""
	if len(pathSynonym) == 2 {
		synonym = pathSynonym[1].Str()
	}
	parts := strings.Split(importPath, ".")
	predicate := parts[len(parts)-1]
	if predicate == "" || !isUpperByte(predicate[0]) {
		return nil, srcfiles.ErrorAt(stage, s,
			"one import per predicate please; the imported name must be capitalized")
	}
	return &ast.Import{
		FilePath:      strings.Join(parts[:len(parts)-1], "."),
		PredicateName: predicate,
		Synonym:       synonym,
	}, nil
}

// DefinedPredicatesRules indexes rules by head predicate name, in rule
// order.  Iteration must follow ruleOrder: the multi-body aggregation
// rewrite and CTE emission depend on first-seen order.
func DefinedPredicatesRules(rules []*ast.Rule) (map[string][]*ast.Rule, []string) {
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

// DefinedPredicates returns the set of head predicate names.
func DefinedPredicates(rules []*ast.Rule) ast.VarSet {
	s := ast.VarSet{}
	for _, r := range rules {
		s[r.Head.PredicateName] = true
	}
	return s
}

// MadePredicates returns the set of predicates created by @Make rules.
func MadePredicates(rules []*ast.Rule) ast.VarSet {
	s := ast.VarSet{}
	for _, r := range rules {
		if r.Head.PredicateName != "@Make" {
			continue
		}
		if name, ok := madePredicateName(r); ok {
			s[name] = true
		}
	}
	return s
}

func madePredicateName(r *ast.Rule) (string, bool) {
	fvs := r.Head.Record.FieldValues
	if len(fvs) == 0 || fvs[0].Value == nil || fvs[0].Value.Expression == nil {
		return "", false
	}
	lit, ok := fvs[0].Value.Expression.(*ast.PredicateLiteral)
	if !ok {
		return "", false
	}
	return lit.PredicateName, true
}
