package rewrite

import (
	"github.com/logica-lang/logica/compiler/ast"
)

// DisjunctiveNormalForm eliminates explicit disjunction by bringing
// every rule body into DNF and emitting one rule per disjunct.
// Negation-as-aggregate is opaque: it lives inside an IsNull call and is
// not distributed.
func DisjunctiveNormalForm(rules []*ast.Rule) []*ast.Rule {
	var result []*ast.Rule
	for _, rule := range rules {
		result = append(result, ruleToRules(rule)...)
	}
	return result
}

func ruleToRules(rule *ast.Rule) []*ast.Rule {
	if rule.Body == nil {
		return []*ast.Rule{rule}
	}
	dnf := propositionToDNF(rule.Body)
	result := make([]*ast.Rule, 0, len(dnf))
	for _, conjuncts := range dnf {
		newRule := rule.Copy()
		copied := make([]ast.Proposition, len(conjuncts))
		for i, c := range conjuncts {
			copied[i] = ast.CopyProposition(c)
		}
		newRule.Body = &ast.Conjunction{
			Conjuncts: copied,
			Heritage:  rule.Body.Heritage,
		}
		result = append(result, newRule)
	}
	return result
}

func propositionToDNF(p ast.Proposition) [][]ast.Proposition {
	switch p := p.(type) {
	case *ast.Conjunction:
		return conjunctsToDNF(p.Conjuncts)
	case *ast.Disjunction:
		return disjunctsToDNF(p.Disjuncts)
	}
	return [][]ast.Proposition{{p}}
}

func conjunctsToDNF(conjuncts []ast.Proposition) [][]ast.Proposition {
	dnfs := make([][][]ast.Proposition, len(conjuncts))
	for i, c := range conjuncts {
		dnfs[i] = propositionToDNF(c)
	}
	return conjunctionOfDNFs(dnfs)
}

func conjunctionOfDNFs(dnfs [][][]ast.Proposition) [][]ast.Proposition {
	if len(dnfs) == 1 {
		return dnfs[0]
	}
	var result [][]ast.Proposition
	first := dnfs[0]
	rest := conjunctionOfDNFs(dnfs[1:])
	for _, a := range first {
		for _, b := range rest {
			conjunct := make([]ast.Proposition, 0, len(a)+len(b))
			conjunct = append(conjunct, a...)
			conjunct = append(conjunct, b...)
			result = append(result, conjunct)
		}
	}
	return result
}

func disjunctsToDNF(disjuncts []ast.Proposition) [][]ast.Proposition {
	var result [][]ast.Proposition
	for _, d := range disjuncts {
		result = append(result, propositionToDNF(d)...)
	}
	return result
}
