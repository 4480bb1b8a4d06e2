package universe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/sqlgen"
	"github.com/logica-lang/logica/compiler/translate"
)

// buildUdfs compiles every @CompileAsUdf predicate into a CREATE TEMP
// FUNCTION definition and an application template.  Compilation runs
// twice: the first pass uses dummy definitions so functions can call
// each other.
func (p *Program) buildUdfs() error {
	udfs := p.annotations.UdfNames()
	if len(udfs) == 0 {
		return nil
	}
	p.initializeExecution("@FunctionsCheck")
	p.execution.compilingUdf = true
	for _, f := range udfs {
		p.customUDFs[f] = "DUMMY()"
	}
	for range 2 {
		for _, f := range udfs {
			application, sql, err := p.functionSqlInternal(f, nil)
			if err != nil {
				return err
			}
			p.customUDFs[f] = application
			p.customUDFDefinitions[f] = sql
		}
	}
	// Function compilation may have added irrelevant defines.
	p.execution = nil
	return nil
}

// FunctionSql prints the SQL function creation statement for the
// predicate.
func (p *Program) FunctionSql(name string,
	allocator *translate.NamesAllocator) (string, error) {
	_, sql, err := p.functionSqlInternal(name, allocator)
	return sql, err
}

func (p *Program) functionSqlInternal(name string,
	allocator *translate.NamesAllocator) (string, string, error) {
	if allocator == nil {
		allocator = p.NewNamesAllocator()
	}
	rules, _ := p.rulesOf(name)
	if len(rules) == 0 {
		return "", "", annotationError(noSpan,
			"no rules are defining %s, but compilation was requested", name)
	}
	if len(rules) > 1 {
		return "", "", translate.CompileError(rules[0].FullText,
			"predicate %s is defined by more than 1 rule "+
				"and can not be compiled into a function", name)
	}
	rule := rules[0]
	s, err := translate.ExtractRuleStructure(rule, allocator, nil)
	if err != nil {
		return "", "", err
	}
	var udfVariables []string
	for _, entry := range s.Select {
		if entry.Field.SqlName() != "logica_value" {
			udfVariables = append(udfVariables, entry.Field.SqlName())
		}
	}
	// UDF signatures are named: positional arguments take the name of
	// the variable standing in them.
	for _, entry := range s.Select {
		if !entry.Field.IsPositional() {
			continue
		}
		v, ok := entry.Expr.(*ast.Variable)
		if !ok {
			return "", "", translate.CompileError(rule.FullText,
				"predicate %s must have all arguments named for "+
					"compilation as a function", name)
		}
		entry.Field = ast.Named(v.Name)
	}
	var variables []string
	for _, entry := range s.Select {
		if entry.Field.Name == "logica_value" {
			continue
		}
		v, ok := entry.Expr.(*ast.Variable)
		if !ok || v.Name != entry.Field.Name {
			return "", "", translate.CompileError(rule.FullText,
				"predicate %s must not rename arguments for "+
					"compilation as a function", name)
		}
		variables = append(variables, entry.Field.Name)
	}
	vocabulary := map[string]string{}
	for _, v := range variables {
		vocabulary[v] = v
	}
	s.ExternalVocabulary = vocabulary
	if err := p.runInjections(s, allocator); err != nil {
		return "", "", err
	}
	if err := s.EliminateInternalVariables(true); err != nil {
		return "", "", err
	}
	s.UnificationsToConstraints()
	sql, err := s.AsSql(p.makeSubqueryTranslator(allocator))
	if err != nil {
		return "", "", err
	}
	if len(s.Constraints) > 0 || len(s.Unnestings) > 0 || s.Tables.Size() > 0 {
		return "", "", translate.CompileError(rule.FullText,
			"predicate %s is not a simple function, but compilation as "+
				"function was requested; full SQL:\n%s", name, sql)
	}
	valueEntry := s.SelectEntryOf(ast.Named("logica_value"))
	if valueEntry == nil {
		return "", "", translate.CompileError(rule.FullText,
			"predicate %s does not have a value, but compilation as "+
				"function was requested; full SQL:\n%s", name, sql)
	}
	ql := sqlgen.NewQL(vocabulary, p.makeSubqueryTranslator(allocator),
		func(format string, args ...any) error {
			return translate.CompileError(rule.FullText, format, args...)
		},
		p.flagValues, p.customUDFs, p.dialect)
	valueSql, err := ql.ConvertToSql(valueEntry.Expr)
	if err != nil {
		return "", "", err
	}
	var signature []string
	for _, v := range variables {
		signature = append(signature, v+" ANY TYPE")
	}
	definition := fmt.Sprintf("CREATE TEMP FUNCTION %s(%s) AS (%s);",
		name, strings.Join(signature, ", "), valueSql)
	var placeholders []string
	for _, v := range udfVariables {
		placeholders = append(placeholders, "{"+v+"}")
	}
	application := fmt.Sprintf("%s(%s)", name, strings.Join(placeholders, ", "))
	return application, definition, nil
}

// neededUdfDefinitions returns the definitions of the UDFs transitively
// used by the main predicate.
func (p *Program) neededUdfDefinitions() []string {
	var result []string
	for _, f := range p.execution.usedPredicates {
		if definition, ok := p.customUDFDefinitions[f]; ok {
			result = append(result, definition)
		}
	}
	sort.Strings(result)
	return result
}
