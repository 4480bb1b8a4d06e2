// Package functors runs @Make instructions.
//
// In the context of @Make each predicate is also a function from the
// set of predicates to itself: the predicates used in its definition are
// the arguments.  Such predicate-to-predicate functions are functors.
package functors

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/srcfiles"
)

const stage = "Making"

// Error reports a bad @Make instruction.
func Error(functorName, format string, args ...any) error {
	src := srcfiles.NewSource("", functorName)
	return srcfiles.ErrorAt(stage, src.Whole(), format, args...)
}

// MakeInstruction is one parsed "@Make(Name, Applicant, {Slot: Value})".
type MakeInstruction struct {
	Name      string
	Applicant string
	// ArgsMap maps slot predicate names to substituted predicate
	// names, in record order.
	ArgsMap  []SlotValue
	RuleText srcfiles.Span
}

type SlotValue struct {
	Slot  string
	Value string
}

func (m *MakeInstruction) argValue(slot string) (string, bool) {
	for _, sv := range m.ArgsMap {
		if sv.Slot == slot {
			return sv.Value, true
		}
	}
	return "", false
}

// ParseMakeInstruction reads a @Make rule into a MakeInstruction.
func ParseMakeInstruction(rule *ast.Rule) (*MakeInstruction, error) {
	badMake := func() error {
		return Error(rule.FullText.Str(),
			"incorrect syntax for functor call; a functor call is made as\n"+
				"  R := F(A: V, ...)\n"+
				"or\n"+
				"  @Make(R, F, {A: V, ...})\n"+
				"where R, F, A's and V's are all predicate names")
	}
	fvs := rule.Head.Record.FieldValues
	if len(fvs) != 3 {
		return nil, badMake()
	}
	name, ok := fvs[0].Value.Expression.(*ast.PredicateLiteral)
	if !ok {
		return nil, badMake()
	}
	applicant, ok := fvs[1].Value.Expression.(*ast.PredicateLiteral)
	if !ok {
		return nil, badMake()
	}
	argsRecord, ok := fvs[2].Value.Expression.(*ast.RecordExpr)
	if !ok {
		return nil, badMake()
	}
	instruction := &MakeInstruction{
		Name:      name.PredicateName,
		Applicant: applicant.PredicateName,
		RuleText:  rule.FullText,
	}
	for _, fv := range argsRecord.Record.FieldValues {
		value, ok := fv.Value.Expression.(*ast.PredicateLiteral)
		if !ok || fv.Field.IsPositional() {
			return nil, badMake()
		}
		instruction.ArgsMap = append(instruction.ArgsMap, SlotValue{
			Slot:  fv.Field.Name,
			Value: value.PredicateName,
		})
	}
	return instruction, nil
}

// Functors creates new predicates from functor applications.
type Functors struct {
	// ExtendedRules is the rule list grown by every functor call.
	ExtendedRules []*ast.Rule

	rulesOf      map[string][]*ast.Rule
	rulesOrder   []string
	directArgsOf map[string]ast.VarSet
	argsOf       map[string]ast.VarSet

	creationCount int
	cachedCalls   map[string]string
}

func New(rules []*ast.Rule) *Functors {
	f := &Functors{
		ExtendedRules: ast.CopyRules(rules),
		cachedCalls:   map[string]string{},
	}
	f.rebuild()
	return f
}

func (f *Functors) rebuild() {
	f.rulesOf = map[string][]*ast.Rule{}
	f.rulesOrder = nil
	for _, r := range f.ExtendedRules {
		name := r.Head.PredicateName
		if _, ok := f.rulesOf[name]; !ok {
			f.rulesOrder = append(f.rulesOrder, name)
		}
		f.rulesOf[name] = append(f.rulesOf[name], r)
	}
	f.directArgsOf = map[string]ast.VarSet{}
	for name, rules := range f.rulesOf {
		args := ast.VarSet{}
		for _, rule := range rules {
			collectCalledPredicates(rule, args)
		}
		f.directArgsOf[name] = args
	}
	f.argsOf = map[string]ast.VarSet{}
}

// collectCalledPredicates collects every predicate name referenced by
// the rule's body and head record (excluding the head name itself).
func collectCalledPredicates(rule *ast.Rule, into ast.VarSet) {
	var walkProp func(p ast.Proposition)
	walkExpr := func(e ast.Expr) {
		switch e := e.(type) {
		case *ast.Call:
			into[e.PredicateName] = true
		case *ast.PredicateLiteral:
			into[e.PredicateName] = true
		case *ast.Combine:
			into[e.Rule.Head.PredicateName] = true
		}
	}
	walkProp = func(p ast.Proposition) {
		switch p := p.(type) {
		case *ast.Call:
			into[p.PredicateName] = true
		case *ast.Conjunction:
			for _, c := range p.Conjuncts {
				walkProp(c)
			}
		case *ast.Disjunction:
			for _, d := range p.Disjuncts {
				walkProp(d)
			}
		}
	}
	ast.VisitExprs(rule, true, walkExpr)
	if rule.Body != nil {
		walkProp(rule.Body)
	}
	// Combine bodies hold proposition-level calls too.
	ast.VisitExprs(rule, true, func(e ast.Expr) {
		if c, ok := e.(*ast.Combine); ok && c.Rule.Body != nil {
			walkProp(c.Rule.Body)
		}
	})
}

// ArgsOf returns the transitive argument set of the functor.
func (f *Functors) ArgsOf(functor string) ast.VarSet {
	if args, ok := f.argsOf[functor]; ok {
		return args
	}
	result := ast.VarSet{}
	queue := sortedNames(f.directArgsOf[functor])
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if result[e] {
			continue
		}
		result[e] = true
		queue = append(queue, sortedNames(f.directArgsOf[e])...)
	}
	f.argsOf[functor] = result
	return result
}

// AllRulesOf returns copies of all rules relevant to the functor: its
// own rules plus the rules of every transitive argument.
func (f *Functors) AllRulesOf(functor string) ([]*ast.Rule, error) {
	var result []*ast.Rule
	rules, ok := f.rulesOf[functor]
	if !ok {
		return nil, nil
	}
	result = append(result, rules...)
	for _, arg := range sortedNames(f.ArgsOf(functor)) {
		if arg == functor {
			return nil, Error(functor, "failed to eliminate recursion of %s", functor)
		}
		if argRules, ok := f.rulesOf[arg]; ok {
			result = append(result, argRules...)
		}
	}
	return ast.CopyRules(result), nil
}

// MakeAll runs all @Make instructions in dependency order.
func (f *Functors) MakeAll(instructions []*MakeInstruction) error {
	needsBuilding := map[string]bool{}
	for _, i := range instructions {
		needsBuilding[i.Name] = true
	}
	ordered := append([]*MakeInstruction{}, instructions...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Name < ordered[j].Name
	})
	for len(needsBuilding) > 0 {
		somethingBuilt := false
		for _, instruction := range ordered {
			if !needsBuilding[instruction.Name] ||
				needsBuilding[instruction.Applicant] ||
				intersects(f.ArgsOf(instruction.Applicant), needsBuilding) ||
				valueIntersects(instruction.ArgsMap, needsBuilding) {
				continue
			}
			if err := f.CallFunctor(instruction); err != nil {
				return err
			}
			somethingBuilt = true
			delete(needsBuilding, instruction.Name)
		}
		if len(needsBuilding) > 0 && !somethingBuilt {
			return Error(fmt.Sprintf("%v", sortedKeys(needsBuilding)),
				"could not resolve Make order")
		}
	}
	return nil
}

// CollectAnnotations returns copies of the @Limit, @OrderBy, @Ground,
// @NoInject and @Recursive annotations of the given predicates; cloned
// predicates inherit them.
func (f *Functors) CollectAnnotations(predicates ast.VarSet) []*ast.Rule {
	var result []*ast.Rule
	for _, annotation := range f.rulesOrder {
		switch annotation {
		case "@Limit", "@OrderBy", "@Ground", "@NoInject", "@Recursive":
		default:
			continue
		}
		for _, rule := range f.rulesOf[annotation] {
			fvs := rule.Head.Record.FieldValues
			if len(fvs) == 0 || fvs[0].Value.Expression == nil {
				continue
			}
			if lit, ok := fvs[0].Value.Expression.(*ast.PredicateLiteral); ok &&
				predicates[lit.PredicateName] {
				result = append(result, rule.Copy())
			}
		}
	}
	return result
}

// callKey canonically represents a functor call with its relevant
// arguments, for reusing already-instantiated predicates.
func (f *Functors) callKey(functor string, argsMap []SlotValue) string {
	relevant := f.ArgsOf(functor)
	var parts []string
	for _, sv := range argsMap {
		if relevant[sv.Slot] {
			parts = append(parts, fmt.Sprintf("%s: %s", sv.Slot, sv.Value))
		}
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s(%s)", functor, strings.Join(parts, ","))
}

// CallFunctor instantiates applicant(argsMap), storing the result under
// the instruction's name.
func (f *Functors) CallFunctor(instruction *MakeInstruction) error {
	applicantArgs := f.ArgsOf(instruction.Applicant)
	var badArgs []string
	for _, sv := range instruction.ArgsMap {
		if !applicantArgs[sv.Slot] {
			badArgs = append(badArgs, sv.Slot)
		}
	}
	if len(badArgs) > 0 {
		return Error(instruction.Name,
			"functor %s is applied to arguments %s, which it does not have",
			instruction.Applicant, strings.Join(badArgs, ","))
	}
	f.creationCount++
	allRules, err := f.AllRulesOf(instruction.Applicant)
	if err != nil {
		return err
	}
	args := ast.VarSet{}
	for _, sv := range instruction.ArgsMap {
		args[sv.Slot] = true
	}
	var rules []*ast.Rule
	for _, r := range allRules {
		name := r.Head.PredicateName
		if name == instruction.Applicant || intersectsSets(args, f.ArgsOf(name)) {
			rules = append(rules, r)
		}
	}
	if len(rules) == 0 {
		return Error(instruction.Name,
			"rules for %s when making %s are not found",
			instruction.Applicant, instruction.Name)
	}
	// extendedArgsMap eventually maps all args to substitutions, and
	// every predicate using one of the args to a fresh predicate name.
	extendedArgsMap := map[string]string{}
	for _, sv := range instruction.ArgsMap {
		extendedArgsMap[sv.Slot] = sv.Value
	}
	var rulesToUpdate []*ast.Rule
	cacheUpdate := map[string]string{}
	predicatesToAnnotate := ast.VarSet{}
	sort.SliceStable(rules, func(i, j int) bool {
		return ruleSortKey(rules[i]) < ruleSortKey(rules[j])
	})
	for _, r := range rules {
		name := r.Head.PredicateName
		if name == instruction.Applicant {
			extendedArgsMap[name] = instruction.Name
			rulesToUpdate = append(rulesToUpdate, r)
			predicatesToAnnotate[name] = true
			continue
		}
		if _, ok := instruction.argValue(name); ok {
			continue
		}
		key := f.callKey(name, instruction.ArgsMap)
		if cached, ok := f.cachedCalls[key]; ok {
			extendedArgsMap[name] = cached
			continue
		}
		newName := fmt.Sprintf("%s_f%d", name, f.creationCount)
		extendedArgsMap[name] = newName
		cacheUpdate[key] = newName
		rulesToUpdate = append(rulesToUpdate, r)
		predicatesToAnnotate[name] = true
	}
	rules = rulesToUpdate
	for k, v := range cacheUpdate {
		f.cachedCalls[k] = v
	}
	// Cloned predicates inherit annotations of the predicates they were
	// created from.  Functor argument values do not: that would collide
	// with their behavior in other contexts.
	rules = append(rules, f.CollectAnnotations(predicatesToAnnotate)...)
	for _, r := range rules {
		renameByMap(r, extendedArgsMap)
	}
	f.ExtendedRules = append(f.ExtendedRules, rules...)
	f.rebuild()
	return nil
}

// renameByMap renames predicate references (calls and predicate
// literals, not record fields) according to the map.
func renameByMap(rule *ast.Rule, renames map[string]string) {
	if to, ok := renames[rule.Head.PredicateName]; ok {
		rule.Head.PredicateName = to
	}
	var walkProp func(p ast.Proposition)
	walkProp = func(p ast.Proposition) {
		switch p := p.(type) {
		case *ast.Call:
			if to, ok := renames[p.PredicateName]; ok {
				p.PredicateName = to
			}
		case *ast.Conjunction:
			for _, c := range p.Conjuncts {
				walkProp(c)
			}
		case *ast.Disjunction:
			for _, d := range p.Disjuncts {
				walkProp(d)
			}
		}
	}
	if rule.Body != nil {
		walkProp(rule.Body)
	}
	ast.VisitExprs(rule, true, func(e ast.Expr) {
		switch e := e.(type) {
		case *ast.Call:
			if to, ok := renames[e.PredicateName]; ok {
				e.PredicateName = to
			}
		case *ast.PredicateLiteral:
			if to, ok := renames[e.PredicateName]; ok {
				e.PredicateName = to
			}
		case *ast.Combine:
			if c := e.Rule; c.Body != nil {
				walkProp(c.Body)
			}
		}
	})
}

func ruleSortKey(r *ast.Rule) string {
	rendered, _ := json.Marshal(ast.RuleJSON(r))
	return string(rendered)
}

func sortedNames(s ast.VarSet) []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func intersects(s ast.VarSet, m map[string]bool) bool {
	for k := range s {
		if m[k] {
			return true
		}
	}
	return false
}

func intersectsSets(a, b ast.VarSet) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

func valueIntersects(argsMap []SlotValue, m map[string]bool) bool {
	for _, sv := range argsMap {
		if m[sv.Value] {
			return true
		}
	}
	return false
}
