package translate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/logica-lang/logica/compiler/ast"
)

// headToSelect converts a rule head to the output projection, returning
// the aggregated field names.
func headToSelect(head *ast.Call) ([]*SelectEntry, []ast.Field) {
	var selects []*SelectEntry
	var aggregated []ast.Field
	for _, fv := range head.Record.FieldValues {
		if fv.Value.Aggregation != nil {
			selects = append(selects, &SelectEntry{
				Field: fv.Field,
				Expr:  ast.CopyExpr(fv.Value.Aggregation.Expression),
			})
			aggregated = append(aggregated, fv.Field)
		} else {
			selects = append(selects, &SelectEntry{
				Field: fv.Field,
				Expr:  fv.Value.Expression,
			})
		}
	}
	return selects, aggregated
}

// extractPredicateStructure updates the structure with a predicate call
// of the body.
func extractPredicateStructure(c *ast.Call, s *RuleStructure) {
	switch c.PredicateName {
	case "<=", "<", ">", ">=", "!=", "&&", "||", "!", "IsNull", "Like",
		"Constraint", "~", "is", "is not":
		s.Constraints = append(s.Constraints, c)
		return
	}
	tableName := s.Allocator.AllocateTable(c.PredicateName)
	s.Tables.Put(tableName, c.PredicateName)
	for _, fieldValue := range c.Record.FieldValues {
		var tableVar string
		if fieldValue.Field.IsSplat() && len(fieldValue.Except) > 0 {
			tableVar = buildExcept(tableName, fieldValue.Except)
		} else if fieldValue.Field.IsSplat() {
			tableVar = "*"
		} else {
			tableVar = fieldValue.Field.SqlName()
		}
		expr := fieldValue.Value.Expression
		varName := s.Allocator.AllocateVar(
			fmt.Sprintf("%s_%s", tableName, tableVar))
		s.VarsMap = append(s.VarsMap, &TableVar{
			TableName:  tableName,
			TableField: tableVar,
			ClauseVar:  varName,
		})
		s.VarsUnification = append(s.VarsUnification, &Unification{
			Left:  &ast.Variable{Name: varName},
			Right: expr,
		})
	}
}

// extractInclusionStructure updates the structure with an "x in list"
// inclusion.
func extractInclusionStructure(inclusion *ast.Inclusion, s *RuleStructure) {
	if call, ok := inclusion.List.(*ast.Call); ok && call.PredicateName == "Container" {
		// Inclusion in a container is a WHERE constraint.
		s.Constraints = append(s.Constraints, &ast.Call{
			PredicateName: "in",
			Record: &ast.Record{FieldValues: []*ast.FieldValue{
				{Field: ast.Named("left"), Value: &ast.Value{Expression: inclusion.Element}},
				{Field: ast.Named("right"), Value: &ast.Value{Expression: inclusion.List}},
			}},
		})
		return
	}
	// Otherwise the inclusion unnests the list.
	varName := s.Allocator.AllocateVar("unnest")
	s.VarsMap = append(s.VarsMap, &TableVar{
		TableName:  "",
		TableField: varName,
		ClauseVar:  varName,
	})
	s.Unnestings = append(s.Unnestings, &Unnesting{
		Element: &ast.Variable{Name: varName},
		List:    inclusion.List,
	})
	s.VarsUnification = append(s.VarsUnification, &Unification{
		Left: inclusion.Element,
		Right: &ast.Call{
			PredicateName: "ValueOfUnnested",
			Record: &ast.Record{FieldValues: []*ast.FieldValue{{
				Field: ast.Positional(0),
				Value: &ast.Value{Expression: &ast.Variable{Name: varName}},
			}}},
		},
	})
}

// extractConjunctiveStructure updates the structure with the body
// conjuncts.
func extractConjunctiveStructure(conjuncts []ast.Proposition, s *RuleStructure) error {
	for _, c := range conjuncts {
		switch c := c.(type) {
		case *ast.Call:
			extractPredicateStructure(c, s)
		case *ast.Unification:
			_, leftVar := c.Left.(*ast.Variable)
			_, rightVar := c.Right.(*ast.Variable)
			_, leftRec := c.Left.(*ast.RecordExpr)
			_, rightRec := c.Right.(*ast.RecordExpr)
			if leftVar || rightVar || leftRec || rightRec {
				s.VarsUnification = append(s.VarsUnification, &Unification{
					Left:  c.Left,
					Right: c.Right,
				})
			} else if !ast.ExprEqual(c.Left, c.Right) {
				s.Constraints = append(s.Constraints, &ast.Call{
					PredicateName: "==",
					Record: &ast.Record{FieldValues: []*ast.FieldValue{
						{Field: ast.Named("left"), Value: &ast.Value{Expression: c.Left}},
						{Field: ast.Named("right"), Value: &ast.Value{Expression: c.Right}},
					}},
				})
			}
		case *ast.Inclusion:
			extractInclusionStructure(c, s)
		default:
			return CompileError(s.FullRuleText, "unsupported conjunct %T", c)
		}
	}
	return nil
}

// inlinePredicateValues replaces expression-position predicate calls
// with a fresh variable bound by an extra body conjunct carrying the
// call's logica_value.  Rewriting is bottom-up so nested value calls
// resolve innermost first.
func inlinePredicateValues(rule *ast.Rule, allocator *NamesAllocator) {
	var extraConjuncts []ast.Proposition
	var rewriteExpr func(e ast.Expr) ast.Expr
	rewriteValue := func(v *ast.Value) {
		if v == nil {
			return
		}
		if v.Expression != nil {
			v.Expression = rewriteExpr(v.Expression)
		}
		if v.Aggregation != nil && v.Aggregation.Expression != nil {
			v.Aggregation.Expression = rewriteExpr(v.Aggregation.Expression)
		}
	}
	rewriteRecord := func(r *ast.Record) {
		if r == nil {
			return
		}
		for _, fv := range r.FieldValues {
			rewriteValue(fv.Value)
		}
	}
	rewriteExpr = func(e ast.Expr) ast.Expr {
		switch e := e.(type) {
		case *ast.ListLiteral:
			for i, el := range e.Elements {
				e.Elements[i] = rewriteExpr(el)
			}
		case *ast.RecordExpr:
			rewriteRecord(e.Record)
		case *ast.Subscript:
			e.Rec = rewriteExpr(e.Rec)
		case *ast.Implication:
			for _, it := range e.IfThens {
				it.Condition = rewriteExpr(it.Condition)
				it.Consequence = rewriteExpr(it.Consequence)
			}
			e.Otherwise = rewriteExpr(e.Otherwise)
		case *ast.Combine:
			// A combine resolves its variables via its own tables.
		case *ast.Call:
			rewriteRecord(e.Record)
			if !allocator.FunctionExists(e.PredicateName) {
				auxVar := allocator.AllocateVar("inline")
				predicate := e.Copy()
				predicate.Record.FieldValues = append(predicate.Record.FieldValues,
					&ast.FieldValue{
						Field: ast.Named("logica_value"),
						Value: &ast.Value{Expression: &ast.Variable{Name: auxVar}},
					})
				extraConjuncts = append(extraConjuncts, predicate)
				return &ast.Variable{Name: auxVar, Heritage: e.Heritage}
			}
		}
		return e
	}
	var rewriteProposition func(p ast.Proposition)
	rewriteProposition = func(p ast.Proposition) {
		switch p := p.(type) {
		case *ast.Call:
			rewriteRecord(p.Record)
		case *ast.Conjunction:
			for _, c := range p.Conjuncts {
				rewriteProposition(c)
			}
		case *ast.Disjunction:
			for _, d := range p.Disjuncts {
				rewriteProposition(d)
			}
		case *ast.Unification:
			p.Left = rewriteExpr(p.Left)
			p.Right = rewriteExpr(p.Right)
		case *ast.Inclusion:
			p.Element = rewriteExpr(p.Element)
			p.List = rewriteExpr(p.List)
		}
	}
	rewriteRecord(rule.Head.Record)
	if rule.Body != nil {
		rewriteProposition(rule.Body)
	}
	if len(extraConjuncts) > 0 {
		if rule.Body == nil {
			rule.Body = &ast.Conjunction{}
		}
		rule.Body.Conjuncts = append(rule.Body.Conjuncts, extraConjuncts...)
	}
}

// combineTree mirrors the nesting of combine expressions in a rule.
type combineTree struct {
	rule      *ast.Rule
	variables ast.VarSet
	subtrees  []*combineTree
}

func getTreeOfCombines(rule *ast.Rule) *combineTree {
	tree := &combineTree{rule: rule, variables: ast.VarSet{}}
	ast.VisitExprs(rule, false, func(e ast.Expr) {
		switch e := e.(type) {
		case *ast.Variable:
			tree.variables[e.Name] = true
		case *ast.Combine:
			tree.subtrees = append(tree.subtrees, getTreeOfCombines(e.Rule))
		}
	})
	return tree
}

// disambiguateCombineVariables appends a disambiguation suffix to the
// variables first mentioned inside combine expressions.  Variables of
// the same name in different combines are different variables; the
// shared name becomes a problem when one combine is substituted into
// another during unification processing.
func disambiguateCombineVariables(rule *ast.Rule, allocator *NamesAllocator) {
	var replace func(tree *combineTree, outer ast.VarSet)
	replace = func(tree *combineTree, outer ast.VarSet) {
		introduced := make([]string, 0, len(tree.variables))
		for v := range tree.variables {
			if !outer[v] {
				introduced = append(introduced, v)
			}
		}
		sort.Strings(introduced)
		all := tree.variables.Union(outer)
		for _, v := range introduced {
			if disambiguated(v) {
				// Already renamed: ExtractRuleStructure was called on
				// the combine expression itself.
				continue
			}
			newName := fmt.Sprintf("%s # disambiguated with %s",
				v, allocator.AllocateVar("combine_dis"))
			ast.ReplaceVariableInRule(tree.rule, v, &ast.Variable{Name: newName})
		}
		for _, sub := range tree.subtrees {
			replace(sub, all)
		}
	}
	tree := getTreeOfCombines(rule)
	for _, sub := range tree.subtrees {
		replace(sub, tree.variables)
	}
}

func disambiguated(v string) bool {
	return strings.Contains(v, " # disambiguated with ")
}

// ExtractRuleStructure lowers a rule to its relational structure.
func ExtractRuleStructure(rule *ast.Rule, allocator *NamesAllocator,
	externalVocabulary map[string]string) (*RuleStructure, error) {
	rule = rule.Copy()
	// Variables of a combine being extracted were already disambiguated
	// from the parent rule.
	if rule.Head.PredicateName != "Combine" {
		disambiguateCombineVariables(rule, allocator)
	}
	s := NewRuleStructure(allocator, externalVocabulary)
	inlinePredicateValues(rule, allocator)
	s.FullRuleText = rule.FullText
	s.ThisPredicateName = rule.Head.PredicateName
	selects, aggregated := headToSelect(rule.Head)
	s.Select = selects
	// Unify select arguments with fresh internal variables so user
	// variables of injected predicates do not leak into each other.
	for _, entry := range s.Select {
		if _, ok := entry.Expr.(*ast.Variable); ok {
			s.VarsUnification = append(s.VarsUnification, &Unification{
				Left: entry.Expr,
				Right: &ast.Variable{Name: s.Allocator.AllocateVar(
					fmt.Sprintf("extract_%s_%s", s.ThisPredicateName,
						entry.Field.SqlName()))},
			})
		}
	}
	if rule.Body != nil {
		if err := extractConjunctiveStructure(rule.Body.Conjuncts, s); err != nil {
			return nil, err
		}
	}
	s.DistinctDenoted = rule.DistinctDenoted
	if len(aggregated) > 0 && !rule.DistinctDenoted {
		return nil, CompileError(s.FullRuleText,
			"aggregating predicate must be \"distinct\" denoted")
	}
	if rule.DistinctDenoted {
		aggregatedNames := map[string]bool{}
		for _, f := range aggregated {
			aggregatedNames[f.SqlName()] = true
		}
		var distinct []string
		for _, entry := range s.Select {
			if !aggregatedNames[entry.Field.SqlName()] {
				distinct = append(distinct, entry.Field.SqlName())
			}
		}
		sort.Strings(distinct)
		s.DistinctVars = distinct
	}
	return s, nil
}
