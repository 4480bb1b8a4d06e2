// Package sqlgen converts Logica expressions to SQL text and carries
// the per-engine dialect shims.
package sqlgen

import (
	"fmt"
	"sort"

	"github.com/logica-lang/logica/compiler/ast"
)

// Dialect parameterizes the SQL surface of a target engine: literal
// quoting, array and struct construction, subscripts, unnesting and the
// mapping of Logica built-ins to native functions.
type Dialect interface {
	Name() string

	// BuiltInFunctions overrides or extends the default function table.
	// A nil value removes the function for this dialect.
	BuiltInFunctions() map[string]*string

	// InfixOperators overrides the default infix operator table.
	InfixOperators() map[string]string

	// Subscript renders access to a field of a record value.
	Subscript(record, subscript string) string

	// LibraryProgram is a Logica program defining per-dialect built-in
	// predicates; it is parsed and merged into every program.
	LibraryProgram() string

	// UnnestPhrase is the FROM-clause template for "x in list".
	UnnestPhrase() string

	// ArrayPhrase is the template of an array literal.
	ArrayPhrase() string

	// GroupBySpecBy selects how GROUP BY keys are written: by "name",
	// by 1-based "index" or by repeated "expr".
	GroupBySpecBy() string

	// DecorateCombineRule lets a dialect adjust a combine rule to
	// resolve aggregation-scope ambiguity.
	DecorateCombineRule(rule *ast.Rule, varName string) *ast.Rule
}

// Engines lists the recognized engine names in alphabetical order.
func Engines() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var dialects = map[string]func() Dialect{
	"bigquery": func() Dialect { return &BigQueryDialect{} },
	"sqlite":   func() Dialect { return &SQLiteDialect{} },
	"psql":     func() Dialect { return &PostgreSQLDialect{} },
	"duckdb":   func() Dialect { return &DuckDBDialect{} },
}

// Get returns the dialect for the engine name.
func Get(engine string) (Dialect, error) {
	d, ok := dialects[engine]
	if !ok {
		return nil, fmt.Errorf("unrecognized engine: %s", engine)
	}
	return d(), nil
}

func str(s string) *string { return &s }

// BigQueryDialect is the default dialect.
type BigQueryDialect struct{}

func (*BigQueryDialect) Name() string { return "BigQuery" }

func (*BigQueryDialect) BuiltInFunctions() map[string]*string { return nil }

func (*BigQueryDialect) InfixOperators() map[string]string {
	return map[string]string{
		"++": "CONCAT(%s, %s)",
	}
}

func (*BigQueryDialect) Subscript(record, subscript string) string {
	return fmt.Sprintf("%s.%s", record, subscript)
}

func (*BigQueryDialect) LibraryProgram() string { return bigQueryLibrary }

func (*BigQueryDialect) UnnestPhrase() string { return "UNNEST(%[1]s) as %[2]s" }

func (*BigQueryDialect) ArrayPhrase() string { return "ARRAY[%s]" }

func (*BigQueryDialect) GroupBySpecBy() string { return "name" }

func (*BigQueryDialect) DecorateCombineRule(rule *ast.Rule, varName string) *ast.Rule {
	return rule
}

// SQLiteDialect compiles for SQLite, representing arrays and records as
// JSON values.
type SQLiteDialect struct{}

func (*SQLiteDialect) Name() string { return "SqLite" }

func (*SQLiteDialect) BuiltInFunctions() map[string]*string {
	return map[string]*string{
		"Set":     str("DistinctListAgg({0})"),
		"Element": str("JSON_EXTRACT({0}, '$[' || {1} || ']')"),
		"Range": str("(select json_group_array(n) from (with recursive t as" +
			"(select 0 as n union all " +
			"select n + 1 as n from t where n + 1 < {0}) " +
			"select n from t) where n < {0})"),
		"ValueOfUnnested": str("{0}.value"),
		"List":            str("JSON_GROUP_ARRAY({0})"),
		"Size":            str("JSON_ARRAY_LENGTH({0})"),
		"Join":            str("JOIN_STRINGS({0}, {1})"),
		"Count":           str("COUNT(DISTINCT {0})"),
		"StringAgg":       str("GROUP_CONCAT(%s)"),
		"Sort":            str("SortList({0})"),
		"MagicalEntangle": str("MagicalEntangle({0}, {1})"),
		"Format":          str("Printf(%s)"),
		"Least":           str("MIN(%s)"),
		"Greatest":        str("MAX(%s)"),
		"ToString":        str("CAST(%s AS TEXT)"),
		"Median":          nil,
		"ArrayConcatAgg":  nil,
	}
}

func (*SQLiteDialect) InfixOperators() map[string]string {
	return map[string]string{
		"++": "(%s) || (%s)",
		"%":  "(%s) %% (%s)",
		"in": "IN_LIST(%s, %s)",
	}
}

func (*SQLiteDialect) Subscript(record, subscript string) string {
	return fmt.Sprintf("JSON_EXTRACT(%s, \"$.%s\")", record, subscript)
}

func (*SQLiteDialect) LibraryProgram() string { return sqliteLibrary }

func (*SQLiteDialect) UnnestPhrase() string { return "JSON_EACH(%[1]s) as %[2]s" }

func (*SQLiteDialect) ArrayPhrase() string { return "JSON_ARRAY(%s)" }

func (*SQLiteDialect) GroupBySpecBy() string { return "expr" }

// DecorateCombineRule entangles the aggregated value with a variable
// unnested from a single-element list inside the combine, pinning the
// aggregation scope to the combine's own query.
func (*SQLiteDialect) DecorateCombineRule(rule *ast.Rule, varName string) *ast.Rule {
	rule = rule.Copy()
	headValue := rule.Head.Record.FieldValues[0].Value
	aggCall, ok := headValue.Aggregation.Expression.(*ast.Call)
	if !ok || len(aggCall.Record.FieldValues) == 0 {
		return rule
	}
	inner := aggCall.Record.FieldValues[0].Value
	aggCall.Record.FieldValues[0].Value = &ast.Value{
		Expression: &ast.Call{
			PredicateName: "MagicalEntangle",
			Record: &ast.Record{FieldValues: []*ast.FieldValue{
				{Field: ast.Positional(0), Value: inner},
				{Field: ast.Positional(1), Value: &ast.Value{
					Expression: &ast.Variable{Name: varName},
				}},
			}},
		},
	}
	if rule.Body == nil {
		rule.Body = &ast.Conjunction{}
	}
	rule.Body.Conjuncts = append(rule.Body.Conjuncts, &ast.Inclusion{
		Element: &ast.Variable{Name: varName},
		List: &ast.ListLiteral{
			Elements: []ast.Expr{&ast.NumberLiteral{Text: "0"}},
		},
	})
	return rule
}

// PostgreSQLDialect compiles for PostgreSQL.
type PostgreSQLDialect struct{}

func (*PostgreSQLDialect) Name() string { return "PostgreSQL" }

func (*PostgreSQLDialect) BuiltInFunctions() map[string]*string {
	return map[string]*string{
		"Range":    str("(SELECT ARRAY_AGG(x) FROM GENERATE_SERIES(0, {0} - 1) as x)"),
		"ToString": str("CAST(%s AS TEXT)"),
		"Element":  str("({0})[{1} + 1]"),
		"Size":     str("ARRAY_LENGTH(%s, 1)"),
		"Count":    str("COUNT(DISTINCT {0})"),
	}
}

func (*PostgreSQLDialect) InfixOperators() map[string]string {
	return map[string]string{
		"++": "CONCAT(%s, %s)",
	}
}

func (*PostgreSQLDialect) Subscript(record, subscript string) string {
	return fmt.Sprintf("(%s).%s", record, subscript)
}

func (*PostgreSQLDialect) LibraryProgram() string { return postgresLibrary }

func (*PostgreSQLDialect) UnnestPhrase() string { return "UNNEST(%[1]s) as %[2]s" }

func (*PostgreSQLDialect) ArrayPhrase() string { return "ARRAY[%s]" }

func (*PostgreSQLDialect) GroupBySpecBy() string { return "name" }

func (*PostgreSQLDialect) DecorateCombineRule(rule *ast.Rule, varName string) *ast.Rule {
	return rule
}

// DuckDBDialect compiles for DuckDB, which mostly follows PostgreSQL's
// surface with native list support.
type DuckDBDialect struct{}

func (*DuckDBDialect) Name() string { return "DuckDB" }

func (*DuckDBDialect) BuiltInFunctions() map[string]*string {
	return map[string]*string{
		"Range":    str("(SELECT ARRAY_AGG(x) FROM GENERATE_SERIES(0, {0} - 1) as t(x))"),
		"ToString": str("CAST(%s AS TEXT)"),
		"Element":  str("({0})[{1} + 1]"),
		"Size":     str("ARRAY_LENGTH(%s)"),
		"Count":    str("COUNT(DISTINCT {0})"),
		"Median":   str("MEDIAN(%s)"),
	}
}

func (*DuckDBDialect) InfixOperators() map[string]string {
	return map[string]string{
		"++": "CONCAT(%s, %s)",
	}
}

func (*DuckDBDialect) Subscript(record, subscript string) string {
	return fmt.Sprintf("(%s).%s", record, subscript)
}

func (*DuckDBDialect) LibraryProgram() string { return duckDBLibrary }

func (*DuckDBDialect) UnnestPhrase() string { return "UNNEST(%[1]s) as pushkin(%[2]s)" }

func (*DuckDBDialect) ArrayPhrase() string { return "ARRAY[%s]" }

func (*DuckDBDialect) GroupBySpecBy() string { return "name" }

func (*DuckDBDialect) DecorateCombineRule(rule *ast.Rule, varName string) *ast.Rule {
	return rule
}
