package translate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/sqlgen"
	"github.com/logica-lang/logica/compiler/srcfiles"
)

const stage = "Compiling"

// CompileError reports a user error detected at rule-compile time,
// anchored to the offending rule's full text.
func CompileError(ruleText srcfiles.Span, format string, args ...any) error {
	return srcfiles.ErrorAt(stage, ruleText, format, args...)
}

// Context is what rule lowering needs from the enclosing universe: the
// sub-query translator plus dialect, UDF and flag configuration.
type Context interface {
	sqlgen.SubqueryTranslator
	Dialect() sqlgen.Dialect
	CustomUDFs() map[string]string
	FlagValues() map[string]string
}

// TableVar binds one argument of a source table to a clause variable.
type TableVar struct {
	TableName  string // Alias of the table; empty for unnestings.
	TableField string // SQL field name, or an except-expression.
	ClauseVar  string
}

// Unification is a pending equality between two expressions.
type Unification struct {
	Left  ast.Expr
	Right ast.Expr
}

// SelectEntry is one output column of the head projection.
type SelectEntry struct {
	Field ast.Field
	Expr  ast.Expr
}

// Unnesting introduces Element as ranging over the List expression.
type Unnesting struct {
	Element ast.Expr // Always a variable.
	List    ast.Expr
}

// RuleStructure is the relational form of a single conjunctive rule.
// It can convert itself into a SQL SELECT statement.
//
// Tables maps table alias to predicate name and must preserve insertion
// order: injection and CTE emission depend on first-seen order.
type RuleStructure struct {
	ThisPredicateName string
	Tables            *linkedhashmap.Map // alias -> predicate name
	VarsMap           []*TableVar
	VarsUnification   []*Unification
	Constraints       []ast.Expr
	Select            []*SelectEntry
	Unnestings        []*Unnesting
	DistinctVars      []string
	DistinctDenoted   bool

	Allocator          *NamesAllocator
	ExternalVocabulary map[string]string
	SynonymLog         map[string][]string
	FullRuleText       srcfiles.Span
}

func NewRuleStructure(allocator *NamesAllocator,
	externalVocabulary map[string]string) *RuleStructure {
	return &RuleStructure{
		Tables:             linkedhashmap.New(),
		Allocator:          allocator,
		ExternalVocabulary: externalVocabulary,
		SynonymLog:         map[string][]string{},
	}
}

func (s *RuleStructure) SelectEntryOf(field ast.Field) *SelectEntry {
	for _, e := range s.Select {
		if e.Field.Equal(field) {
			return e
		}
	}
	return nil
}

// exceptPrefix recognizes except-expressions used as table fields for
// the rest-of splat.  Only except fields start with this text.
const exceptPrefix = "(SELECT AS STRUCT"

func buildExcept(tableName string, exceptFields []string) string {
	return fmt.Sprintf("(SELECT AS STRUCT %s.* EXCEPT (%s))",
		tableName, strings.Join(exceptFields, ","))
}

func isExceptField(field string) bool { return strings.HasPrefix(field, exceptPrefix) }

// OwnVarsVocabulary maps each clause variable to the SQL expression
// holding its value.
func (s *RuleStructure) OwnVarsVocabulary() map[string]string {
	result := map[string]string{}
	for _, tv := range s.VarsMap {
		switch {
		case isExceptField(tv.TableField):
			result[tv.ClauseVar] = tv.TableField
		case tv.TableName == "":
			result[tv.ClauseVar] = tv.TableField
		case tv.TableField == "*":
			result[tv.ClauseVar] = tv.TableName
		default:
			result[tv.ClauseVar] = tv.TableName + "." + tv.TableField
		}
	}
	return result
}

func (s *RuleStructure) VarsVocabulary() map[string]string {
	r := map[string]string{}
	for k, v := range s.OwnVarsVocabulary() {
		r[k] = v
	}
	for k, v := range s.ExternalVocabulary {
		r[k] = v
	}
	return r
}

func (s *RuleStructure) ExtractedVariables() ast.VarSet {
	r := ast.VarSet{}
	for k := range s.VarsVocabulary() {
		r[k] = true
	}
	return r
}

func (s *RuleStructure) AllVariables() ast.VarSet {
	r := ast.VarSet{}
	add := func(e ast.Expr) {
		if e == nil {
			return
		}
		for v := range ast.MentionedVariablesInExpr(e, false) {
			r[v] = true
		}
	}
	for _, e := range s.Select {
		add(e.Expr)
	}
	for _, u := range s.VarsUnification {
		add(u.Left)
		add(u.Right)
	}
	for _, c := range s.Constraints {
		add(c)
	}
	for _, u := range s.Unnestings {
		add(u.Element)
		add(u.List)
	}
	return r
}

func (s *RuleStructure) InternalVariables() ast.VarSet {
	all := s.AllVariables()
	for v := range s.ExtractedVariables() {
		delete(all, v)
	}
	return all
}

// ReplaceVariableEverywhere substitutes newExpr for oldVar across the
// structure, maintaining the synonym log for diagnostics.
func (s *RuleStructure) ReplaceVariableEverywhere(oldVar string, newExpr ast.Expr) {
	if v, ok := newExpr.(*ast.Variable); ok {
		log := append([]string{}, s.SynonymLog[v.Name]...)
		log = append(log, oldVar)
		log = append(log, s.SynonymLog[oldVar]...)
		s.SynonymLog[v.Name] = log
	}
	replace := func(e ast.Expr) ast.Expr {
		return ast.ReplaceVariableInExpr(e, oldVar, newExpr)
	}
	for _, entry := range s.Select {
		entry.Expr = replace(entry.Expr)
	}
	for _, u := range s.VarsUnification {
		u.Left = replace(u.Left)
		u.Right = replace(u.Right)
	}
	for i, c := range s.Constraints {
		s.Constraints[i] = replace(c)
	}
	for _, u := range s.Unnestings {
		u.Element = replace(u.Element)
		u.List = replace(u.List)
	}
}

// EliminateInternalVariables eliminates internal variables by
// substituting their unified expressions.
func (s *RuleStructure) EliminateInternalVariables(assertFullElimination bool) error {
	variables := s.InternalVariables()
	for {
		done := true
		for _, u := range s.VarsUnification {
			// Sides are re-read after every replacement: a substitution
			// updates the unification in place.
			for _, flip := range []bool{false, true} {
				k, r := u.Left, u.Right
				if flip {
					k, r = u.Right, u.Left
				}
				if ast.ExprEqual(k, r) {
					continue
				}
				v, ok := k.(*ast.Variable)
				if !ok {
					continue
				}
				urVariables := ast.MentionedVariablesInExpr(r, false)
				urVariablesInclCombines := ast.MentionedVariablesInExpr(r, true)
				if variables[v.Name] && !urVariablesInclCombines[v.Name] &&
					(urVariables.SubsetOf(s.ExtractedVariables()) ||
						!strings.HasPrefix(v.Name, "x_")) {
					s.ReplaceVariableEverywhere(v.Name, r)
					done = false
				}
			}
			// Assignments to variables in record fields.
			for _, flip := range []bool{false, true} {
				k, r := u.Left, u.Right
				if flip {
					k, r = u.Right, u.Left
				}
				if ast.ExprEqual(k, r) {
					continue
				}
				rec, ok := k.(*ast.RecordExpr)
				if !ok {
					continue
				}
				urVariables := ast.MentionedVariablesInExpr(r, false)
				if !urVariables.SubsetOf(s.ExtractedVariables()) {
					continue
				}
				urVariablesInclCombines := ast.MentionedVariablesInExpr(r, true)
				s.assignToRecord(rec, r, variables, urVariablesInclCombines, &done)
			}
		}
		if done {
			variables = s.InternalVariables()
			return s.checkElimination(variables, assertFullElimination)
		}
	}
}

// assignToRecord unwraps a record-to-expression unification, assigning
// each field variable the corresponding subscript of the source.
func (s *RuleStructure) assignToRecord(target *ast.RecordExpr, source ast.Expr,
	variables, urVariablesInclCombines ast.VarSet, done *bool) {
	for _, fv := range target.Record.FieldValues {
		if fv.Value.Expression == nil {
			continue
		}
		newSource := func() ast.Expr {
			return &ast.Subscript{
				Rec:    ast.CopyExpr(source),
				Symbol: &ast.SymbolLiteral{Symbol: fv.Field.SqlName()},
			}
		}
		if v, ok := fv.Value.Expression.(*ast.Variable); ok {
			if variables[v.Name] && !urVariablesInclCombines[v.Name] {
				s.ReplaceVariableEverywhere(v.Name, newSource())
				*done = false
			}
		}
		if rec, ok := fv.Value.Expression.(*ast.RecordExpr); ok {
			s.assignToRecord(rec, newSource(), variables, urVariablesInclCombines, done)
		}
	}
}

func (s *RuleStructure) checkElimination(variables ast.VarSet,
	assertFull bool) error {
	var unassigned []string
	for v := range variables {
		if assertFull || !strings.HasPrefix(v, "x_") {
			unassigned = append(unassigned, v)
		}
	}
	if len(unassigned) == 0 {
		return nil
	}
	violators := map[string]bool{}
	for _, v := range unassigned {
		for _, synonym := range s.SynonymLog[v] {
			if !strings.HasPrefix(synonym, "x_") {
				violators[strings.SplitN(synonym, " # disambiguated", 2)[0]] = true
			}
		}
		if !strings.HasPrefix(v, "x_") {
			violators[strings.SplitN(v, " # disambiguated", 2)[0]] = true
		}
	}
	if len(violators) == 0 {
		return CompileError(s.FullRuleText,
			"a required argument was not passed to some called predicate")
	}
	names := make([]string, 0, len(violators))
	for v := range violators {
		names = append(names, v)
	}
	sort.Strings(names)
	return CompileError(s.FullRuleText,
		"found no way to assign variables: %s; "+
			"this error might also come from injected sub-rules",
		strings.Join(names, ", "))
}

// UnificationsToConstraints converts the remaining unifications into
// equality constraints.
func (s *RuleStructure) UnificationsToConstraints() {
	for _, u := range s.VarsUnification {
		if ast.ExprEqual(u.Left, u.Right) {
			continue
		}
		s.Constraints = append(s.Constraints, &ast.Call{
			PredicateName: "==",
			Record: &ast.Record{FieldValues: []*ast.FieldValue{
				{Field: ast.Named("left"), Value: &ast.Value{Expression: u.Left}},
				{Field: ast.Named("right"), Value: &ast.Value{Expression: u.Right}},
			}},
		})
	}
	s.VarsUnification = nil
}

// SortUnnestings orders unnestings so each list expression only uses
// variables introduced by earlier unnestings.
func (s *RuleStructure) SortUnnestings() error {
	unnestingOf := map[string]*Unnesting{}
	var names []string
	for _, u := range s.Unnestings {
		name := u.Element.(*ast.Variable).Name
		unnestingOf[name] = u
		names = append(names, name)
	}
	unnestingVars := ast.VarSet{}
	for name := range unnestingOf {
		unnestingVars[name] = true
	}
	dependsOn := map[string]ast.VarSet{}
	for name, u := range unnestingOf {
		deps := ast.VarSet{}
		for v := range ast.MentionedVariablesInExpr(u.List, true) {
			if unnestingVars[v] {
				deps[v] = true
			}
		}
		dependsOn[name] = deps
	}
	sort.Strings(names)
	unnested := ast.VarSet{}
	var ordered []*Unnesting
	for len(ordered) < len(s.Unnestings) {
		progress := false
		for _, name := range names {
			u, ok := unnestingOf[name]
			if !ok {
				continue
			}
			if dependsOn[name].SubsetOf(unnested) {
				ordered = append(ordered, u)
				delete(unnestingOf, name)
				unnested[name] = true
				progress = true
				break
			}
		}
		if !progress {
			return CompileError(s.FullRuleText,
				"there seems to be a circular dependency of \"in\" calls; "+
					"this error might also come from injected sub-rules")
		}
	}
	s.Unnestings = ordered
	return nil
}

func indent2(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

// AsSql outputs the SQL SELECT statement representing this structure.
func (s *RuleStructure) AsSql(ctx Context) (string, error) {
	ql := sqlgen.NewQL(
		s.VarsVocabulary(),
		ctx,
		func(format string, args ...any) error {
			return CompileError(s.FullRuleText, format, args...)
		},
		ctx.FlagValues(),
		ctx.CustomUDFs(),
		ctx.Dialect())
	if len(s.Select) == 0 {
		return "", CompileError(s.FullRuleText,
			"tables with no columns are not allowed in StandardSQL, "+
				"so they are not allowed in Logica")
	}
	var fields []string
	for _, entry := range s.Select {
		value, err := ql.ConvertToSql(entry.Expr)
		if err != nil {
			return "", err
		}
		if entry.Field.IsSplat() {
			fields = append(fields, value+".*")
		} else {
			fields = append(fields, fmt.Sprintf("%s AS %s", value, entry.Field.SqlName()))
		}
	}
	var b strings.Builder
	b.WriteString("SELECT\n")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  " + f)
	}
	if s.Tables.Size() == 0 && len(s.Unnestings) == 0 &&
		len(s.Constraints) == 0 && !s.DistinctDenoted {
		return b.String(), nil
	}
	b.WriteString("\nFROM\n")
	var tables []string
	it := s.Tables.Iterator()
	for it.Next() {
		alias := it.Key().(string)
		predicate := it.Value().(string)
		sql, err := ctx.TranslateTable(predicate, s.ExternalVocabulary)
		if err != nil {
			return "", err
		}
		if sql == "" {
			return "", CompileError(s.FullRuleText,
				"rule uses table %s, which is not defined; "+
					"this error may come from injected sub-rules", predicate)
		}
		if sql != alias {
			tables = append(tables, sql+" AS "+alias)
		} else {
			tables = append(tables, sql)
		}
	}
	if err := s.SortUnnestings(); err != nil {
		return "", err
	}
	for _, u := range s.Unnestings {
		listSql, err := ql.ConvertToSql(u.List)
		if err != nil {
			return "", err
		}
		elementSql, err := ql.ConvertToSql(u.Element)
		if err != nil {
			return "", err
		}
		tables = append(tables,
			fmt.Sprintf(ctx.Dialect().UnnestPhrase(), listSql, elementSql))
	}
	if len(tables) == 0 {
		tables = append(tables, `(SELECT "singleton" as s) as unused_singleton`)
	}
	b.WriteString(indent2(strings.Join(tables, ", ")))
	if len(s.Constraints) > 0 {
		b.WriteString("\nWHERE\n")
		var constraints []string
		for _, c := range s.Constraints {
			sql, err := ql.ConvertToSql(c)
			if err != nil {
				return "", err
			}
			constraints = append(constraints, indent2(sql))
		}
		b.WriteString(strings.Join(constraints, " AND\n"))
	}
	if len(s.DistinctVars) > 0 {
		ordered := make([]string, 0, len(s.DistinctVars))
		distinct := map[string]bool{}
		for _, v := range s.DistinctVars {
			distinct[v] = true
		}
		for _, entry := range s.Select {
			if distinct[entry.Field.SqlName()] {
				ordered = append(ordered, entry.Field.SqlName())
			}
		}
		b.WriteString("\nGROUP BY ")
		switch ctx.Dialect().GroupBySpecBy() {
		case "name":
			b.WriteString(strings.Join(ordered, ", "))
		case "index":
			var indexes []string
			for i, entry := range s.Select {
				if distinct[entry.Field.SqlName()] {
					indexes = append(indexes, fmt.Sprintf("%d", i+1))
				}
			}
			b.WriteString(strings.Join(indexes, ", "))
		case "expr":
			var exprs []string
			for _, entry := range s.Select {
				if !distinct[entry.Field.SqlName()] {
					continue
				}
				sql, err := ql.ConvertToSql(entry.Expr)
				if err != nil {
					return "", err
				}
				exprs = append(exprs, sql)
			}
			b.WriteString(strings.Join(exprs, ", "))
		}
	}
	return b.String(), nil
}
