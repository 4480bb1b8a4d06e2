package sqlgen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/logica-lang/logica/compiler/ast"
)

// SubqueryTranslator turns combine expressions and predicate tables into
// SQL in the context of the enclosing universe.
type SubqueryTranslator interface {
	// TranslateRule compiles a combine rule as a correlated sub-query
	// with the surrounding rule's variables as parameters.
	TranslateRule(rule *ast.Rule, externalVocabulary map[string]string) (string, error)

	// TranslateTable renders a predicate as a FROM-clause table.
	TranslateTable(table string, externalVocabulary map[string]string) (string, error)
}

// builtInFunctions maps Logica built-ins to SQL templates.  Templates
// with "%s" join all arguments; templates with "{i}" substitute
// positionally.
var builtInFunctions = map[string]string{
	// Casting.
	"ToFloat64": "CAST(%s AS FLOAT64)",
	"ToInt64":   "CAST(%s AS INT64)",
	"ToUInt64":  "CAST(%s AS UINT64)",
	"ToString":  "CAST(%s AS STRING)",
	// Aggregation.
	"Aggr":           "%s", // Placeholder to use formulas for aggregation.
	"Agg+":           "SUM(%s)",
	"Agg++":          "ARRAY_CONCAT_AGG(%s)",
	"ArrayConcatAgg": "ARRAY_CONCAT_AGG(%s)",
	"Container":      "%s",
	"Count":          "APPROX_COUNT_DISTINCT(%s)",
	"ExactCount":     "COUNT(DISTINCT %s)",
	"List":           "ARRAY_AGG(%s)",
	"Max":            "MAX(%s)",
	"Min":            "MIN(%s)",
	"Sum":            "SUM(%s)",
	"Avg":            "AVG(%s)",
	"Median":         "APPROX_QUANTILES(%s, 2)[OFFSET(1)]",
	"SomeValue":      "ARRAY_AGG(%s IGNORE NULLS LIMIT 1)[OFFSET(0)]",
	// Other functions.
	"!":          "NOT %s",
	"-":          "- %s",
	"Concat":     "ARRAY_CONCAT({0}, {1})",
	"Constraint": "%s",
	"DateAddDay": "DATE_ADD({0}, INTERVAL {1} DAY)",
	"DateDiffDay": "DATE_DIFF({0}, {1}, DAY)",
	"Element":    "{0}[OFFSET({1})]",
	"Enumerate": "ARRAY(SELECT STRUCT(" +
		"ROW_NUMBER() OVER () AS n, x AS element) " +
		"FROM UNNEST(%s) as x)",
	"IsNull":  "(%s IS NULL)",
	"Join":    "ARRAY_TO_STRING(%s)",
	"Like":    "({0} LIKE {1})",
	"Range":   "GENERATE_ARRAY(0, %s - 1)",
	"RangeOf": "GENERATE_ARRAY(0, ARRAY_LENGTH(%s) - 1)",
	"Set":     "ARRAY_AGG(DISTINCT %s)",
	"Size":    "ARRAY_LENGTH(%s)",
	"Sort":    "ARRAY(SELECT x FROM UNNEST(%s) as x ORDER BY x)",
	"TimestampAddDays": "TIMESTAMP_ADD({0}, INTERVAL {1} DAY)",
	"Unique":           "ARRAY(SELECT DISTINCT x FROM UNNEST(%s) as x ORDER BY x)",
	"ValueOfUnnested":  "%s",
	"MagicalEntangle":  "{0}",
	"Abs":              "ABS(%s)",
	"Sqrt":             "SQRT(%s)",
	"Exp":              "EXP(%s)",
	"Log":              "LOG(%s)",
	"Sin":              "SIN(%s)",
	"Cos":              "COS(%s)",
	"Floor":            "FLOOR(%s)",
	"Ceil":             "CEIL(%s)",
	"Round":            "ROUND(%s)",
	"Upper":            "UPPER(%s)",
	"Lower":            "LOWER(%s)",
	"Length":           "LENGTH(%s)",
	"Substr":           "SUBSTR(%s)",
	"Coalesce":         "COALESCE(%s)",
	"Greatest":         "GREATEST(%s)",
	"Least":            "LEAST(%s)",
	"ArrayToString":    "ARRAY_TO_STRING({0}, {1})",
	// These functions are treated specially.
	"FlagValue": "UNUSED",
	"Cast":      "UNUSED",
	"SqlExpr":   "UNUSED",
	"If":        "UNUSED",
}

var builtInInfixOperators = map[string]string{
	"==": "%s = %s",
	"<=": "%s <= %s",
	"<":  "%s < %s",
	">=": "%s >= %s",
	">":  "%s > %s",
	"/":  "(%s) / (%s)",
	"+":  "(%s) + (%s)",
	"-":  "(%s) - (%s)",
	"*":  "(%s) * (%s)",
	"^":  "POW(%s, %s)",
	"!=": "%s != %s",
	"++": "CONCAT(%s, %s)",
	"in": "%s IN UNNEST(%s)",
	"||": "%s OR %s",
	"&&": "%s AND %s",
	"%":  "MOD(%s, %s)",
	"is": "%s IS %s",
	"is not": "%s IS NOT %s",
}

// analyticFunctions are window functions with (aggregant, partition,
// order[, frame]) arguments.
var analyticFunctions = map[string]string{
	"CumulativeSum": "SUM({0}) OVER (PARTITION BY {1} ORDER BY {2} " +
		"ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)",
	"CumulativeMax": "MAX({0}) OVER (PARTITION BY {1} ORDER BY {2} " +
		"ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)",
	"CumulativeMin": "MIN({0}) OVER (PARTITION BY {1} ORDER BY {2} " +
		"ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)",
	"WindowSum": "SUM({0}) OVER (PARTITION BY {1} ORDER BY {2} " +
		"ROWS BETWEEN {3} PRECEDING AND CURRENT ROW)",
	"WindowMax": "MAX({0}) OVER (PARTITION BY {1} ORDER BY {2} " +
		"ROWS BETWEEN {3} PRECEDING AND CURRENT ROW)",
	"WindowMin": "MIN({0}) OVER (PARTITION BY {1} ORDER BY {2} " +
		"ROWS BETWEEN {3} PRECEDING AND CURRENT ROW)",
}

var arityTwoFunctions = map[string]bool{
	"RegexpExtract": true, "Like": true, "ParseTimestamp": true,
	"FormatTimestamp": true, "TimestampAddDays": true, "Split": true,
	"Element": true, "Concat": true, "DateAddDay": true, "DateDiffDay": true,
	"Join": true, "MagicalEntangle": true, "ArrayToString": true,
}

var variadicFunctions = map[string]bool{
	"Coalesce": true, "Greatest": true, "Least": true, "Format": true,
	"StringAgg": true, "Substr": true,
}

// BasisFunctions returns the set of built-in function and operator
// names.  Calls outside this set resolve to predicates.
func BasisFunctions() map[string]bool {
	result := map[string]bool{}
	for f := range builtInFunctions {
		result[f] = true
	}
	for op := range builtInInfixOperators {
		result[op] = true
	}
	for f := range analyticFunctions {
		result[f] = true
	}
	return result
}

// QL translates Logica expressions into SQL text for one dialect.
type QL struct {
	// Vocabulary maps a Logica variable to the SQL expression holding
	// its value.
	Vocabulary map[string]string
	Subquery   SubqueryTranslator
	// Err builds the error raised on expression compilation failure,
	// carrying the offending rule's text.
	Err        func(format string, args ...any) error
	FlagValues map[string]string
	CustomUDFs map[string]string
	Dialect    Dialect
	// ConvertToJSON renders annotation arguments as JSON instead of SQL.
	ConvertToJSON bool

	functions map[string]string
	infix     map[string]string
}

func NewQL(vocabulary map[string]string, subquery SubqueryTranslator,
	errf func(format string, args ...any) error, flagValues map[string]string,
	customUDFs map[string]string, dialect Dialect) *QL {
	if dialect == nil {
		dialect = &BigQueryDialect{}
	}
	functions := map[string]string{}
	for k, v := range builtInFunctions {
		functions[k] = v
	}
	for k, v := range dialect.BuiltInFunctions() {
		if v == nil {
			delete(functions, k)
		} else {
			functions[k] = *v
		}
	}
	infix := map[string]string{}
	for k, v := range builtInInfixOperators {
		infix[k] = v
	}
	for k, v := range dialect.InfixOperators() {
		infix[k] = v
	}
	return &QL{
		Vocabulary: vocabulary,
		Subquery:   subquery,
		Err:        errf,
		FlagValues: flagValues,
		CustomUDFs: customUDFs,
		Dialect:    dialect,
		functions:  functions,
		infix:      infix,
	}
}

func (ql *QL) arityRange(f string) (int, int) {
	if f == "If" {
		return 3, 3
	}
	if arityTwoFunctions[f] {
		return 2, 2
	}
	if variadicFunctions[f] {
		return 1, 1 << 30
	}
	return 1, 1
}

// convertRecord renders every field value, returning values keyed by
// field in record order.
func (ql *QL) convertRecord(record *ast.Record) ([]ast.Field, map[string]string, error) {
	var order []ast.Field
	values := map[string]string{}
	for _, fv := range record.FieldValues {
		if fv.Value.Expression == nil {
			return nil, nil, ql.Err("bad record: aggregation in expression position")
		}
		sql, err := ql.ConvertToSql(fv.Value.Expression)
		if err != nil {
			return nil, nil, err
		}
		order = append(order, fv.Field)
		values[fv.Field.Key()] = sql
	}
	return order, values, nil
}

func (ql *QL) positionalArgs(order []ast.Field, values map[string]string) []string {
	args := make([]string, len(order))
	for i, f := range order {
		args[i] = values[f.Key()]
	}
	return args
}

var bracePlaceholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// applyTemplate instantiates a function template over positional args.
func applyTemplate(template string, args []string) string {
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(strings.Replace(template, "%s", "%[1]s", 1),
			strings.Join(args, ", "))
	}
	return bracePlaceholder.ReplaceAllStringFunc(template, func(m string) string {
		idx := 0
		fmt.Sscanf(m, "{%d}", &idx)
		if idx < len(args) {
			return args[idx]
		}
		return m
	})
}

// applyNamedTemplate instantiates a template with {name} placeholders.
func applyNamedTemplate(template string, args map[string]string) (string, bool) {
	missing := false
	result := bracePlaceholder.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := args[name]; ok {
			return v
		}
		missing = true
		return m
	})
	return result, !missing
}

func (ql *QL) variable(v *ast.Variable) (string, error) {
	if sql, ok := ql.Vocabulary[v.Name]; ok {
		return sql, nil
	}
	known := make([]string, 0, len(ql.Vocabulary))
	for k := range ql.Vocabulary {
		known = append(known, k)
	}
	sort.Strings(known)
	return "", ql.Err("found no interpretation for variable %s; in scope: %s",
		v.Name, strings.Join(known, ", "))
}

func (ql *QL) strLiteral(value string) string {
	switch ql.Dialect.Name() {
	case "PostgreSQL", "SqLite", "DuckDB":
		return "'" + strings.ReplaceAll(value, "'", "''") + "'"
	}
	quoted, _ := json.Marshal(value)
	return string(quoted)
}

// ConvertToSql converts a Logica expression into SQL.
func (ql *QL) ConvertToSql(e ast.Expr) (string, error) {
	switch e := e.(type) {
	case *ast.Variable:
		return ql.variable(e)
	case *ast.NumberLiteral:
		return e.Text, nil
	case *ast.StringLiteral:
		if ql.ConvertToJSON {
			quoted, _ := json.Marshal(e.Value)
			return string(quoted), nil
		}
		return ql.strLiteral(e.Value), nil
	case *ast.BoolLiteral:
		return e.Text, nil
	case *ast.NullLiteral:
		return "null", nil
	case *ast.ListLiteral:
		internals, err := ql.listInternals(e)
		if err != nil {
			return "", err
		}
		if ql.ConvertToJSON {
			return "[" + internals + "]", nil
		}
		return fmt.Sprintf(ql.Dialect.ArrayPhrase(), internals), nil
	case *ast.PredicateLiteral:
		if ql.ConvertToJSON {
			return fmt.Sprintf(`{"predicate_name": "%s"}`, e.PredicateName), nil
		}
		if ql.Dialect.Name() == "SqLite" {
			return fmt.Sprintf("JSON_OBJECT('predicate_name', '%s')", e.PredicateName), nil
		}
		return fmt.Sprintf(`STRUCT("%s" AS predicate_name)`, e.PredicateName), nil
	case *ast.SymbolLiteral:
		return "", ql.Err("symbol %s outside of subscript", e.Symbol)
	case *ast.Call:
		return ql.call(e)
	case *ast.Subscript:
		return ql.subscript(e)
	case *ast.RecordExpr:
		return ql.record(e.Record)
	case *ast.Combine:
		if ql.Subquery == nil {
			return "", ql.Err("combine expressions are not allowed here")
		}
		sql, err := ql.Subquery.TranslateRule(e.Rule, ql.Vocabulary)
		if err != nil {
			return "", err
		}
		return "(" + sql + ")", nil
	case *ast.Implication:
		return ql.implication(e)
	}
	return "", ql.Err("expression %T failed to compile", e)
}

func (ql *QL) listInternals(list *ast.ListLiteral) (string, error) {
	parts := make([]string, len(list.Elements))
	for i, el := range list.Elements {
		sql, err := ql.ConvertToSql(el)
		if err != nil {
			return "", err
		}
		parts[i] = sql
	}
	return strings.Join(parts, ", "), nil
}

func (ql *QL) call(call *ast.Call) (string, error) {
	name := call.PredicateName
	if _, ok := analyticFunctions[name]; ok {
		return ql.analytic(call)
	}
	switch name {
	case "SqlExpr":
		return ql.sqlExpr(call.Record)
	case "Cast":
		return ql.cast(call.Record)
	case "FlagValue":
		return ql.flagValue(call.Record)
	case "If":
		return ql.ifFunction(call.Record)
	}
	order, values, err := ql.convertRecord(call.Record)
	if err != nil {
		return "", err
	}
	if template, ok := ql.functions[name]; ok {
		// "-" is the only operator with variable arity.
		if !(name == "-" && len(order) == 2) {
			lo, hi := ql.arityRange(name)
			if len(order) < lo || len(order) > hi {
				return "", ql.Err(
					"built-in function %s takes [%d, %d] arguments, but %d were given",
					name, lo, hi, len(order))
			}
			return applyTemplate(template, ql.positionalArgs(order, values)), nil
		}
	}
	if udf, ok := ql.CustomUDFs[name]; ok {
		named := map[string]string{}
		for _, f := range order {
			named[f.SqlName()] = values[f.Key()]
		}
		result, ok := applyNamedTemplate(udf, named)
		if !ok {
			return "", ql.Err(
				"function %s call is inconsistent with its signature %s", name, udf)
		}
		return result, nil
	}
	if template, ok := ql.infix[name]; ok {
		left, right := values["left"], values["right"]
		return "(" + fmt.Sprintf(template, left, right) + ")", nil
	}
	return "", ql.Err("unsupported supposedly built-in function: %s", name)
}

func (ql *QL) analytic(call *ast.Call) (string, error) {
	name := call.PredicateName
	isWindow := strings.HasPrefix(name, "Window")
	want := 3
	if isWindow {
		want = 4
	}
	fvs := call.Record.FieldValues
	if len(fvs) != want {
		return "", ql.Err("function %s must have %d arguments", name, want)
	}
	aggregant, err := ql.ConvertToSql(fvs[0].Value.Expression)
	if err != nil {
		return "", err
	}
	groupBy, err := ql.analyticListArgument(fvs[1].Value.Expression)
	if err != nil {
		return "", err
	}
	orderBy, err := ql.analyticListArgument(fvs[2].Value.Expression)
	if err != nil {
		return "", err
	}
	args := []string{aggregant, groupBy, orderBy}
	if isWindow {
		windowSize, err := ql.ConvertToSql(fvs[3].Value.Expression)
		if err != nil {
			return "", err
		}
		args = append(args, windowSize)
	}
	return applyTemplate(analyticFunctions[name], args), nil
}

func (ql *QL) analyticListArgument(e ast.Expr) (string, error) {
	list, ok := e.(*ast.ListLiteral)
	if !ok {
		return "", ql.Err("analytic list argument must resolve to a list literal")
	}
	return ql.listInternals(list)
}

func (ql *QL) sqlExpr(record *ast.Record) (string, error) {
	fvs := record.FieldValues
	if len(fvs) != 2 {
		return "", ql.Err("SqlExpr must have 2 positional arguments")
	}
	template, ok := fvs[0].Value.Expression.(*ast.StringLiteral)
	if !ok {
		return "", ql.Err("SqlExpr must have its first argument be a string")
	}
	argsRecord, ok := fvs[1].Value.Expression.(*ast.RecordExpr)
	if !ok {
		return "", ql.Err("second argument of SqlExpr must be a record literal")
	}
	args := map[string]string{}
	for _, fv := range argsRecord.Record.FieldValues {
		sql, err := ql.ConvertToSql(fv.Value.Expression)
		if err != nil {
			return "", err
		}
		args[fv.Field.SqlName()] = sql
	}
	result, _ := applyNamedTemplate(template.Value, args)
	return result, nil
}

func (ql *QL) cast(record *ast.Record) (string, error) {
	fvs := record.FieldValues
	if len(fvs) != 2 {
		return "", ql.Err("Cast must have 2 arguments")
	}
	castTo, ok := fvs[1].Value.Expression.(*ast.StringLiteral)
	if !ok {
		return "", ql.Err("the second argument of Cast must be a string literal")
	}
	value, err := ql.ConvertToSql(fvs[0].Value.Expression)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CAST(%s AS %s)", value, castTo.Value), nil
}

func (ql *QL) flagValue(record *ast.Record) (string, error) {
	fvs := record.FieldValues
	if len(fvs) != 1 {
		return "", ql.Err("FlagValue argument must be a string literal")
	}
	flag, ok := fvs[0].Value.Expression.(*ast.StringLiteral)
	if !ok {
		return "", ql.Err("FlagValue argument must be a string literal")
	}
	value, ok := ql.FlagValues[flag.Value]
	if !ok {
		return "", ql.Err("unspecified flag: %s", flag.Value)
	}
	return ql.strLiteral(value), nil
}

func (ql *QL) ifFunction(record *ast.Record) (string, error) {
	fvs := record.FieldValues
	if len(fvs) != 3 {
		return "", ql.Err("If takes 3 arguments")
	}
	args := make([]string, 3)
	for i, fv := range fvs {
		sql, err := ql.ConvertToSql(fv.Value.Expression)
		if err != nil {
			return "", err
		}
		args[i] = sql
	}
	return fmt.Sprintf("IF(%s, %s, %s)", args[0], args[1], args[2]), nil
}

func (ql *QL) record(record *ast.Record) (string, error) {
	if ql.ConvertToJSON {
		parts := make([]string, len(record.FieldValues))
		for i, fv := range record.FieldValues {
			value, err := ql.ConvertToSql(fv.Value.Expression)
			if err != nil {
				return "", err
			}
			key := fv.Field.Name
			if fv.Field.IsPositional() {
				key = fmt.Sprintf("%d", fv.Field.Ordinal)
			}
			parts[i] = fmt.Sprintf("\"%s\": %s", key, value)
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	}
	switch ql.Dialect.Name() {
	case "SqLite":
		parts := make([]string, len(record.FieldValues))
		for i, fv := range record.FieldValues {
			value, err := ql.ConvertToSql(fv.Value.Expression)
			if err != nil {
				return "", err
			}
			parts[i] = fmt.Sprintf("'%s', %s", fv.Field.SqlName(), value)
		}
		return "JSON_OBJECT(" + strings.Join(parts, ", ") + ")", nil
	default:
		parts := make([]string, len(record.FieldValues))
		for i, fv := range record.FieldValues {
			value, err := ql.ConvertToSql(fv.Value.Expression)
			if err != nil {
				return "", err
			}
			parts[i] = fmt.Sprintf("%s AS %s", value, fv.Field.SqlName())
		}
		return "STRUCT(" + strings.Join(parts, ", ") + ")", nil
	}
}

func (ql *QL) subscript(sub *ast.Subscript) (string, error) {
	symbol := sub.Symbol.Symbol
	// A subscript of a record literal returns the field directly.
	if rec, ok := sub.Rec.(*ast.RecordExpr); ok {
		for _, fv := range rec.Record.FieldValues {
			if fv.Field.SqlName() == symbol {
				return ql.ConvertToSql(fv.Value.Expression)
			}
		}
	}
	// A subscript of an implication of records distributes inside.
	if imp, ok := sub.Rec.(*ast.Implication); ok {
		if simplified, ok, err := ql.subIfStruct(imp, symbol); err != nil {
			return "", err
		} else if ok {
			return simplified, nil
		}
	}
	record, err := ql.ConvertToSql(sub.Rec)
	if err != nil {
		return "", err
	}
	return ql.Dialect.Subscript(record, symbol), nil
}

// subIfStruct optimizes the subscript of an implication whose branches
// are all record literals.
func (ql *QL) subIfStruct(imp *ast.Implication, symbol string) (string, bool, error) {
	fieldOf := func(e ast.Expr) (ast.Expr, bool) {
		rec, ok := e.(*ast.RecordExpr)
		if !ok {
			return nil, false
		}
		for _, fv := range rec.Record.FieldValues {
			if fv.Field.SqlName() == symbol {
				return fv.Value.Expression, true
			}
		}
		return nil, false
	}
	newImp := &ast.Implication{Heritage: imp.Heritage}
	for _, it := range imp.IfThens {
		consequence, ok := fieldOf(it.Consequence)
		if !ok {
			return "", false, nil
		}
		newImp.IfThens = append(newImp.IfThens, &ast.IfThen{
			Condition:   it.Condition,
			Consequence: consequence,
		})
	}
	otherwise, ok := fieldOf(imp.Otherwise)
	if !ok {
		return "", false, nil
	}
	newImp.Otherwise = otherwise
	sql, err := ql.implication(newImp)
	if err != nil {
		return "", false, err
	}
	return sql, true, nil
}

func (ql *QL) implication(imp *ast.Implication) (string, error) {
	var clauses []string
	for _, it := range imp.IfThens {
		cond, err := ql.ConvertToSql(it.Condition)
		if err != nil {
			return "", err
		}
		cons, err := ql.ConvertToSql(it.Consequence)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, fmt.Sprintf("WHEN %s THEN %s", cond, cons))
	}
	otherwise, err := ql.ConvertToSql(imp.Otherwise)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CASE %s ELSE %s END",
		strings.Join(clauses, " "), otherwise), nil
}
