package universe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/functors"
	"github.com/logica-lang/logica/compiler/parser"
	"github.com/logica-lang/logica/compiler/rewrite"
	"github.com/logica-lang/logica/compiler/sqlgen"
	"github.com/logica-lang/logica/compiler/srcfiles"
	"github.com/logica-lang/logica/compiler/translate"
)

// noSpan anchors diagnostics that have no better source location.
var noSpan = srcfiles.Span{}

// injectionIterationLimit bounds the injection fixpoint; rules that keep
// growing their table set are recursive in a way unrolling did not
// eliminate.
const injectionIterationLimit = 1000

type namedRule struct {
	name string
	rule *ast.Rule
}

// Options configures program assembly.
type Options struct {
	// Engine overrides the @Engine annotation.
	Engine string
	// UserFlags override @DefineFlag defaults.
	UserFlags map[string]string
	// TableAliases maps undefined predicate names to engine table
	// names used in their place.
	TableAliases map[string]string
}

// Program is the assembled universe of rules, ready to produce SQL for
// any of its predicates.
type Program struct {
	rules             []namedRule
	definedPredicates ast.VarSet
	annotations       *Annotations
	functors          *functors.Functors
	flagValues        map[string]string
	tableAliases      map[string]string
	engine            string
	dialect           sqlgen.Dialect

	// customUDFs maps a function name to its application template;
	// customUDFDefinitions to the SQL defining it.
	customUDFs           map[string]string
	customUDFDefinitions map[string]string

	execution *execution
}

// execution accumulates per-compilation state: defines and exports of
// grounded tables, WITH-table bookkeeping and the workflow stack.
type execution struct {
	defines            []string
	exportStatements   []string
	definesAndExports  []string
	tableToDefined     map[string]string
	tableToWithSQL     map[string]string
	withDependencies   *linkedhashmap.Map // parent -> []string
	withCompiledFor    map[string]map[string]bool
	dependencyEdges    [][2]string
	tableToExportMap   map[string]string
	workflowStack      []string
	preamble           string
	compilingUdf       bool
	usedPredicates     []string
	allocator          *translate.NamesAllocator
}

func newExecution(mainPredicate string, preamble string,
	allocator *translate.NamesAllocator) *execution {
	return &execution{
		tableToDefined:   map[string]string{},
		tableToWithSQL:   map[string]string{},
		withDependencies: linkedhashmap.New(),
		withCompiledFor:  map[string]map[string]bool{},
		tableToExportMap: map[string]string{},
		workflowStack:    []string{mainPredicate},
		preamble:         preamble,
		allocator:        allocator,
	}
}

func (e *execution) parentTable() string {
	return e.workflowStack[len(e.workflowStack)-1]
}

func (e *execution) withDependenciesOf(parent string) []string {
	if deps, ok := e.withDependencies.Get(parent); ok {
		return deps.([]string)
	}
	return nil
}

func (e *execution) addWithDependency(parent, table string) {
	deps := e.withDependenciesOf(parent)
	for _, d := range deps {
		if d == table {
			return
		}
	}
	e.withDependencies.Put(parent, append(deps, table))
}

// New assembles a program from parsed rules: dialect library merge,
// functor instantiation, recursion unfolding, annotation extraction and
// UDF compilation.
func New(parsedRules []*ast.Rule, opts Options) (*Program, error) {
	p := &Program{
		tableAliases:         opts.TableAliases,
		customUDFs:           map[string]string{},
		customUDFDefinitions: map[string]string{},
	}
	bootstrap, err := NewAnnotations(parsedRules, opts.UserFlags)
	if err != nil {
		return nil, err
	}
	p.engine = opts.Engine
	if p.engine == "" {
		p.engine, err = bootstrap.Engine()
		if err != nil {
			return nil, err
		}
	}
	p.dialect, err = sqlgen.Get(p.engine)
	if err != nil {
		return nil, err
	}
	libraryRules, err := parseLibrary(p.dialect.LibraryProgram())
	if err != nil {
		return nil, err
	}
	rules := append(libraryRules, parsedRules...)

	extended, fs, err := runMakes(rules)
	if err != nil {
		return nil, err
	}
	annotations, err := NewAnnotations(extended, opts.UserFlags)
	if err != nil {
		return nil, err
	}
	// Recursive covers are unfolded into explicit fixed-point functors
	// and the makes are re-run over the unfolded program.
	unfolded, err := fs.UnfoldRecursions(rules, annotations.RecursionDepths())
	if err != nil {
		return nil, err
	}
	if len(unfolded) != len(rules) {
		extended, fs, err = runMakes(unfolded)
		if err != nil {
			return nil, err
		}
		annotations, err = NewAnnotations(extended, opts.UserFlags)
		if err != nil {
			return nil, err
		}
	}
	p.functors = fs
	p.annotations = annotations
	p.flagValues = annotations.FlagValues
	p.definedPredicates = ast.VarSet{}
	for _, rule := range extended {
		name := rule.Head.PredicateName
		p.definedPredicates[name] = true
		p.rules = append(p.rules, namedRule{name: name, rule: rule})
	}
	if err := p.checkDollarParams(); err != nil {
		return nil, err
	}
	if err := p.buildUdfs(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseLibrary(program string) ([]*ast.Rule, error) {
	source, err := parser.RemoveComments("", program)
	if err != nil {
		return nil, err
	}
	file, err := parser.ParseStatements(source)
	if err != nil {
		return nil, err
	}
	return rewrite.All(file.Rules)
}

func runMakes(rules []*ast.Rule) ([]*ast.Rule, *functors.Functors, error) {
	fs := functors.New(rules)
	var instructions []*functors.MakeInstruction
	for _, rule := range rules {
		if rule.Head.PredicateName != "@Make" {
			continue
		}
		instruction, err := functors.ParseMakeInstruction(rule)
		if err != nil {
			return nil, nil, err
		}
		instructions = append(instructions, instruction)
	}
	if err := fs.MakeAll(instructions); err != nil {
		return nil, nil, err
	}
	return fs.ExtendedRules, fs, nil
}

func (p *Program) checkDollarParams() error {
	params := map[string]bool{}
	for _, nr := range p.rules {
		for _, param := range dollarParams(nr.rule.FullText.Str()) {
			params[param] = true
		}
	}
	var undefined []string
	for param := range params {
		if _, ok := p.flagValues[param]; !ok {
			undefined = append(undefined, param)
		}
	}
	if len(undefined) > 0 {
		sort.Strings(undefined)
		return annotationError(noSpan,
			"parameters %s are undefined", strings.Join(undefined, ", "))
	}
	return nil
}

func dollarParams(s string) []string {
	var result []string
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '$' && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				break
			}
			param := s[i+2 : i+2+end]
			// Date macros are engine built-ins, not flags.
			if !strings.HasPrefix(param, "YYYY") && param != "MM" && param != "DD" {
				result = append(result, param)
			}
			i += 2 + end
		}
	}
	return result
}

// Engine returns the configured engine name.
func (p *Program) Engine() string { return p.engine }

// PredicateNames lists the defined predicates in first-seen order.
func (p *Program) PredicateNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, nr := range p.rules {
		if !seen[nr.name] {
			seen[nr.name] = true
			names = append(names, nr.name)
		}
	}
	return names
}

// rulesOf returns the rules defining the predicate, dropping disjuncts
// that reference the empty predicate "nil" (dead recursion seeds).
func (p *Program) rulesOf(name string) (kept []*ast.Rule, dropped int) {
	for _, nr := range p.rules {
		if nr.name != name {
			continue
		}
		if ruleCallsNil(nr.rule) {
			dropped++
			continue
		}
		kept = append(kept, nr.rule)
	}
	return kept, dropped
}

func ruleCallsNil(rule *ast.Rule) bool {
	called := ast.VarSet{}
	var walkProp func(p ast.Proposition)
	walkProp = func(pr ast.Proposition) {
		switch pr := pr.(type) {
		case *ast.Call:
			called[pr.PredicateName] = true
		case *ast.Conjunction:
			for _, c := range pr.Conjuncts {
				walkProp(c)
			}
		case *ast.Disjunction:
			for _, d := range pr.Disjuncts {
				walkProp(d)
			}
		}
	}
	if rule.Body != nil {
		walkProp(rule.Body)
	}
	ast.VisitExprs(rule, true, func(e ast.Expr) {
		if c, ok := e.(*ast.Combine); ok && c.Rule.Body != nil {
			walkProp(c.Rule.Body)
		}
	})
	return called["nil"]
}

// NewNamesAllocator returns an allocator aware of the program's UDFs.
func (p *Program) NewNamesAllocator() *translate.NamesAllocator {
	return translate.NewNamesAllocator(p.customUDFs)
}

// PredicateSql produces the SQL statement computing the predicate's
// extension.
func (p *Program) PredicateSql(name string, allocator *translate.NamesAllocator,
	externalVocabulary map[string]string) (string, error) {
	if allocator == nil {
		allocator = p.NewNamesAllocator()
	}
	if p.execution == nil {
		p.initializeExecution(name)
	}
	rules, dropped := p.rulesOf(name)
	if len(rules) == 0 && dropped > 0 {
		return "", annotationError(noSpan,
			"recursive predicate %s has no base case", name)
	}
	if len(rules) == 0 {
		suggestion := p.closestPredicate(name)
		msg := fmt.Sprintf("no rules are defining %s, but compilation was requested", name)
		if suggestion != "" {
			msg += fmt.Sprintf("; did you mean %s?", suggestion)
		}
		return "", annotationError(noSpan, "%s", msg)
	}
	if len(rules) == 1 {
		sql, err := p.singleRuleSql(rules[0], allocator, externalVocabulary)
		if err != nil {
			return "", err
		}
		return sql + p.annotations.OrderByClause(name) +
			p.annotations.LimitClause(name), nil
	}
	var rulesSql []string
	for _, rule := range rules {
		if rule.DistinctDenoted {
			return "", translate.CompileError(rule.FullText,
				"for distinct denoted predicates multiple rules are not currently "+
					"supported; consider taking union of bodies manually, if that "+
					"was what you intended")
		}
		sql, err := p.singleRuleSql(rule, allocator, externalVocabulary)
		if err != nil {
			return "", err
		}
		rulesSql = append(rulesSql, indent2(indent2("\n"+sql+"\n")))
	}
	return fmt.Sprintf("SELECT * FROM (\n%s\n) AS UNUSED_TABLE_NAME %s %s",
		strings.Join(rulesSql, " UNION ALL\n"),
		p.annotations.OrderByClause(name),
		p.annotations.LimitClause(name)), nil
}

// closestPredicate suggests the defined predicate nearest to the name.
func (p *Program) closestPredicate(name string) string {
	best, bestDistance := "", len(name)/2+1
	for _, candidate := range p.PredicateNames() {
		if strings.HasPrefix(candidate, "@") {
			continue
		}
		d := levenshtein.ComputeDistance(name, candidate)
		if d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	return best
}

// singleRuleSql produces SQL for a given rule of the program.
func (p *Program) singleRuleSql(rule *ast.Rule,
	allocator *translate.NamesAllocator,
	externalVocabulary map[string]string) (string, error) {
	s, err := translate.ExtractRuleStructure(rule, allocator, externalVocabulary)
	if err != nil {
		return "", err
	}
	if err := s.EliminateInternalVariables(false); err != nil {
		return "", err
	}
	if err := p.runInjections(s, allocator); err != nil {
		return "", err
	}
	if err := s.EliminateInternalVariables(true); err != nil {
		return "", err
	}
	s.UnificationsToConstraints()
	return s.AsSql(p.makeSubqueryTranslator(allocator))
}

// runInjections inlines injectable callees into the structure until the
// table set stops changing.
func (p *Program) runInjections(s *translate.RuleStructure,
	allocator *translate.NamesAllocator) error {
	for iteration := 0; ; iteration++ {
		if iteration > injectionIterationLimit {
			return translate.CompileError(s.FullRuleText,
				"the rule appears to use recursion not eliminated by unrolling")
		}
		newTables := linkedhashmap.New()
		changed := false
		it := s.Tables.Iterator()
		for it.Next() {
			alias := it.Key().(string)
			predicate := it.Value().(string)
			rules, _ := p.rulesOf(predicate)
			if len(rules) != 1 || rules[0].DistinctDenoted ||
				!p.annotations.OkInjection(predicate) {
				newTables.Put(alias, predicate)
				continue
			}
			rs, err := translate.ExtractRuleStructure(rules[0], allocator, nil)
			if err != nil {
				return err
			}
			if err := rs.EliminateInternalVariables(false); err != nil {
				return err
			}
			rsIt := rs.Tables.Iterator()
			for rsIt.Next() {
				newTables.Put(rsIt.Key(), rsIt.Value())
			}
			if err := injectStructure(s, rs, alias, predicate); err != nil {
				return err
			}
			changed = true
		}
		if !changed {
			return nil
		}
		s.Tables = newTables
	}
}

// injectStructure splices the injectable predicate's structure into the
// caller, unifying the caller's bindings with the callee's projections.
func injectStructure(s, rs *translate.RuleStructure, alias, predicate string) error {
	s.VarsUnification = append(s.VarsUnification, rs.VarsUnification...)
	s.Unnestings = append(s.Unnestings, rs.Unnestings...)
	s.Constraints = append(s.Constraints, rs.Constraints...)
	var keptVars []*translate.TableVar
	for _, tv := range s.VarsMap {
		if tv.TableName != alias {
			keptVars = append(keptVars, tv)
			continue
		}
		entry := selectEntryBySqlName(rs, tv.TableField)
		if entry == nil {
			if splat := selectEntryBySqlName(rs, "*"); splat != nil {
				s.VarsUnification = append(s.VarsUnification, &translate.Unification{
					Left: &ast.Variable{Name: tv.ClauseVar},
					Right: &ast.Subscript{
						Rec:    ast.CopyExpr(splat.Expr),
						Symbol: &ast.SymbolLiteral{Symbol: tv.TableField},
					},
				})
				continue
			}
			extraHint := ""
			if tv.TableField == "*" || strings.HasPrefix(tv.TableField, "(SELECT") {
				extraHint = "; are you using ..<rest of> for an injectible " +
					"predicate? Please list the fields that you extract explicitly"
			}
			return translate.CompileError(s.FullRuleText,
				"predicate %s does not have an argument %s, but this rule tries "+
					"to access it%s", predicate, tv.TableField, extraHint)
		}
		s.VarsUnification = append(s.VarsUnification, &translate.Unification{
			Left:  &ast.Variable{Name: tv.ClauseVar},
			Right: entry.Expr,
		})
	}
	s.VarsMap = append(keptVars, rs.VarsMap...)
	return nil
}

func selectEntryBySqlName(rs *translate.RuleStructure, name string) *translate.SelectEntry {
	for _, entry := range rs.Select {
		if entry.Field.SqlName() == name || (name == "*" && entry.Field.IsSplat()) {
			return entry
		}
	}
	return nil
}

func indent2(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
