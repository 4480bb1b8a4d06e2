package functors

import (
	"fmt"
	"strings"

	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/parser"
	"github.com/logica-lang/logica/compiler/rewrite"
)

// DefaultRecursionDepth is the unroll depth used when @Recursive does
// not override it.
const DefaultRecursionDepth = 8

// recursionFunctorProgram returns the Logica program unfolding the
// recursion of predicate p to the given depth:
//
//	P_r0 := P_recursive_head(P_recursive: nil);
//	P_r1 := P_recursive_head(P_recursive: P_r0);
//	...
//	P := P_rN();
func recursionFunctorProgram(p string, depth int) string {
	var lines []string
	lines = append(lines,
		fmt.Sprintf("%s_r0 := %s_recursive_head(%s_recursive: nil);", p, p, p))
	for i := 0; i < depth; i++ {
		lines = append(lines, fmt.Sprintf("%s_r%d := %s_recursive_head(%s_recursive: %s_r%d);",
			p, i+1, p, p, p, i))
	}
	lines = append(lines, fmt.Sprintf("%s := %s_r%d();", p, p, depth))
	return strings.Join(lines, "\n")
}

// renamingFunctorProgram re-creates a recursive cover member from the
// unfolded root.
func renamingFunctorProgram(member, root string) string {
	return fmt.Sprintf("%s := %s_recursive_head(%s_recursive: %s);",
		member, member, root, root)
}

func parseLibraryRules(program string) ([]*ast.Rule, error) {
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

// RecursiveAnalysis finds recursive covers and picks the predicate that
// unfolds each of them.  deep lists predicates carrying an explicit
// @Recursive annotation, which are preferred as unfolding roots.
func (f *Functors) RecursiveAnalysis(deep ast.VarSet) (shouldRecurse []string,
	myCover map[string]ast.VarSet) {
	var cover []ast.VarSet
	covered := ast.VarSet{}
	for _, p := range f.rulesOrder {
		args := f.ArgsOf(p)
		if !args[p] || covered[p] || strings.Contains(p, rewrite.MultiBodyAggSuffix) {
			continue
		}
		c := ast.VarSet{p: true}
		for p2 := range args {
			if f.ArgsOf(p2)[p] {
				c[p2] = true
			}
		}
		cover = append(cover, c)
		for m := range c {
			covered[m] = true
		}
	}
	myCover = map[string]ast.VarSet{}
	for _, c := range cover {
		for p := range c {
			myCover[p] = c
		}
	}
	for _, c := range cover {
		var candidates []string
		for p := range c {
			if deep[p] {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) == 0 {
			candidates = sortedNames(c)
		}
		shouldRecurse = append(shouldRecurse, minString(candidates))
	}
	return shouldRecurse, myCover
}

func minString(ss []string) string {
	m := ss[0]
	for _, s := range ss[1:] {
		if s < m {
			m = s
		}
	}
	return m
}

// UnfoldRecursions rewrites every recursive cover into explicit
// fixed-point unrolling functors.  depthOf gives per-predicate unroll
// depths from @Recursive annotations.
func (f *Functors) UnfoldRecursions(rules []*ast.Rule,
	depthOf map[string]int) ([]*ast.Rule, error) {
	deep := ast.VarSet{}
	for p := range depthOf {
		deep[p] = true
	}
	shouldRecurse, myCover := f.RecursiveAnalysis(deep)
	if len(shouldRecurse) == 0 {
		return rules, nil
	}
	newRules := ast.CopyRules(rules)
	for _, p := range shouldRecurse {
		depth := DefaultRecursionDepth
		if d, ok := depthOf[p]; ok {
			depth = d
		}
		var err error
		newRules, err = f.unfoldRecursivePredicate(p, myCover[p], depth, newRules)
		if err != nil {
			return nil, err
		}
	}
	return newRules, nil
}

// unfoldRecursivePredicate renames the rules of the recursive cover and
// appends the unfolding functor programs.
func (f *Functors) unfoldRecursivePredicate(predicate string, cover ast.VarSet,
	depth int, rules []*ast.Rule) ([]*ast.Rule, error) {
	recursiveName := predicate + "_recursive"
	headName := predicate + "_recursive_head"

	coverMembers := ast.VarSet{}
	for c := range cover {
		if c != predicate {
			coverMembers[c] = true
		}
	}
	memberRenames := map[string]string{}
	for c := range coverMembers {
		memberRenames[c] = c + "_recursive_head"
	}
	for _, r := range rules {
		head := r.Head.PredicateName
		switch {
		case head == predicate:
			r.Head.PredicateName = headName
			renameByMap(r, map[string]string{predicate: recursiveName})
			renameByMap(r, memberRenames)
		case cover[head]:
			renameByMap(r, map[string]string{predicate: recursiveName})
			renameByMap(r, memberRenames)
		case strings.HasPrefix(head, "@") && head != "@Make":
			renameByMap(r, map[string]string{predicate: headName})
			renameByMap(r, memberRenames)
		default:
			// The rule merely uses the predicate; the name stays.
		}
	}
	libRules, err := parseLibraryRules(recursionFunctorProgram(predicate, depth))
	if err != nil {
		return nil, err
	}
	rules = append(rules, libRules...)
	for _, c := range sortedNames(coverMembers) {
		renameRules, err := parseLibraryRules(renamingFunctorProgram(c, predicate))
		if err != nil {
			return nil, err
		}
		rules = append(rules, renameRules...)
	}
	return rules, nil
}
