package universe

import (
	"fmt"
	"strings"

	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/sqlgen"
	"github.com/logica-lang/logica/compiler/translate"
)

// subqueryTranslator converts tables and combine rules to SQL in the
// context of the program's current execution.  It implements
// translate.Context.
type subqueryTranslator struct {
	program   *Program
	allocator *translate.NamesAllocator
}

func (p *Program) makeSubqueryTranslator(
	allocator *translate.NamesAllocator) *subqueryTranslator {
	return &subqueryTranslator{program: p, allocator: allocator}
}

func (t *subqueryTranslator) Dialect() sqlgen.Dialect { return t.program.dialect }

func (t *subqueryTranslator) CustomUDFs() map[string]string {
	return t.program.customUDFs
}

func (t *subqueryTranslator) FlagValues() map[string]string {
	return t.program.flagValues
}

// TranslateRule compiles a combine rule as a correlated sub-query.
// Combine rules are first decorated by the dialect to resolve
// aggregation-scope ambiguity.
func (t *subqueryTranslator) TranslateRule(rule *ast.Rule,
	externalVocabulary map[string]string) (string, error) {
	if rule.Head.PredicateName == "Combine" {
		rule = t.program.dialect.DecorateCombineRule(
			rule, t.allocator.AllocateVar("combine_entangle"))
	}
	return t.program.singleRuleSql(rule, t.allocator, externalVocabulary)
}

// TranslateTable renders a table for the FROM clause.
func (t *subqueryTranslator) TranslateTable(table string,
	externalVocabulary map[string]string) (string, error) {
	p := t.program
	if alias, ok := p.tableAliases[table]; ok {
		return alias, nil
	}
	if ground := p.annotations.GroundOf(table); ground != nil {
		return t.translateGroundedTable(table, ground, externalVocabulary)
	}
	if p.definedPredicates[table] {
		with, err := p.annotations.With(table)
		if err != nil {
			return "", err
		}
		if with && !p.execution.compilingUdf {
			return t.translateWithedTable(table)
		}
		sql, err := p.PredicateSql(table, t.allocator, externalVocabulary)
		if err != nil {
			return "", err
		}
		return "(" + sql + ")", nil
	}
	// Undefined predicates reference engine tables directly; backticked
	// parenthesized names are raw SQL and pass through as written.
	return table, nil
}

// translateGroundedTable renders a table attached to a physical table,
// appending export and define statements.
func (t *subqueryTranslator) translateGroundedTable(table string, ground *Ground,
	externalVocabulary map[string]string) (string, error) {
	p := t.program
	e := p.execution
	e.dependencyEdges = append(e.dependencyEdges, [2]string{table, e.parentTable()})
	if defined, ok := e.tableToDefined[table]; ok {
		return defined, nil
	}
	tableName := ground.TableName
	e.tableToDefined[table] = tableName
	defineStatement := fmt.Sprintf("-- Interacting with table %s", tableName)
	e.defines = append(e.defines, defineStatement)
	exportStatement := ""
	if p.definedPredicates[table] {
		e.workflowStack = append(e.workflowStack, table)
		dependencySql, err := p.PredicateSql(table, t.allocator, externalVocabulary)
		if err != nil {
			return "", err
		}
		if withSignature := p.generateWithClauses(table); withSignature != "" {
			dependencySql = withSignature + "\n" + dependencySql
		}
		dependencySql = p.useFlagsAsParameters(dependencySql)
		e.workflowStack = e.workflowStack[:len(e.workflowStack)-1]
		maybeDrop := ""
		if ground.Overwrite {
			maybeDrop = fmt.Sprintf("DROP TABLE IF EXISTS %s;\n", ground.TableName)
		}
		exportStatement = maybeDrop + fmt.Sprintf("CREATE TABLE %s AS %s;",
			ground.TableName, dependencySql)
		e.tableToExportMap[table] = exportStatement
		e.exportStatements = append(e.exportStatements, exportStatement)
	}
	if exportStatement != "" {
		e.definesAndExports = append(e.definesAndExports, exportStatement)
	}
	e.definesAndExports = append(e.definesAndExports, defineStatement)
	return tableName, nil
}

// translateWithedTable renders a table defined in a WITH clause.
func (t *subqueryTranslator) translateWithedTable(table string) (string, error) {
	p := t.program
	e := p.execution
	parentTable := e.parentTable()
	if _, ok := e.tableToDefined[table]; !ok {
		tableName := t.allocator.AllocateTable(table)
		e.tableToDefined[table] = tableName
		// Named predicates have no free terms, so no external
		// vocabulary is passed.
		implementation, err := p.PredicateSql(table, t.allocator, nil)
		if err != nil {
			return "", err
		}
		e.tableToWithSQL[tableName] = implementation
	} else if !e.withCompiledFor[parentTable][table] {
		// Re-compile for this parent so ground dependencies of the
		// withed table are attached to it as well.
		if _, err := p.PredicateSql(table, t.allocator, nil); err != nil {
			return "", err
		}
		if e.withCompiledFor[parentTable] == nil {
			e.withCompiledFor[parentTable] = map[string]bool{}
		}
		e.withCompiledFor[parentTable][table] = true
	}
	// Dependencies are added at the end so the deepest come first,
	// which orders the WITH clause correctly.
	e.addWithDependency(parentTable, table)
	return e.tableToDefined[table], nil
}

// generateWithClauses renders the WITH ... prefix for queries that
// need it.
func (p *Program) generateWithClauses(predicateName string) string {
	dependencies := p.execution.withDependenciesOf(predicateName)
	if len(dependencies) == 0 {
		return ""
	}
	var bodies []string
	for _, dependency := range dependencies {
		tableName := p.execution.tableToDefined[dependency]
		sql := p.execution.tableToWithSQL[tableName]
		bodies = append(bodies, fmt.Sprintf("%s AS (%s)", tableName, sql))
	}
	return "WITH " + strings.Join(bodies, ",\n")
}

// useFlagsAsParametersChecked substitutes ${flag} values to a fixed
// point.  Flags may refer to other flags, so substitution loops; a flag
// that never stops expanding is recursive and disallowed.
func (p *Program) useFlagsAsParametersChecked(sql string) (string, error) {
	prev := ""
	for i := 0; sql != prev; i++ {
		if i > 100 {
			var flags []string
			for flag, value := range p.flagValues {
				flags = append(flags, fmt.Sprintf("--%s=%s", flag, value))
			}
			return "", annotationError(noSpan,
				"you seem to have recursive flags; it is disallowed:\n%s",
				strings.Join(flags, "\n"))
		}
		prev = sql
		for flag, value := range p.flagValues {
			sql = strings.ReplaceAll(sql, "${"+flag+"}", value)
		}
	}
	return sql, nil
}

func (p *Program) useFlagsAsParameters(sql string) string {
	result, err := p.useFlagsAsParametersChecked(sql)
	if err != nil {
		return sql
	}
	return result
}
