package ast

// Typed traversal of the syntax tree.  All generic walks over rules are
// expressed through two combinators: an expression rewriter applied
// top-down with child write-back, and a read-only expression visitor.
// Combine sub-rules carry their own variable scope, so walks take an
// explicit diveCombines control.

// An ExprRewriter returns the replacement for an expression, or its
// argument unchanged.
type ExprRewriter func(Expr) Expr

// RewriteRule applies f to every expression of the rule in place.
func RewriteRule(r *Rule, diveCombines bool, f ExprRewriter) {
	rewriteCall(r.Head, diveCombines, f)
	if r.Body != nil {
		RewriteProposition(r.Body, diveCombines, f)
	}
}

func RewriteProposition(p Proposition, diveCombines bool, f ExprRewriter) {
	switch p := p.(type) {
	case *Call:
		rewriteCall(p, diveCombines, f)
	case *Conjunction:
		for _, c := range p.Conjuncts {
			RewriteProposition(c, diveCombines, f)
		}
	case *Disjunction:
		for _, d := range p.Disjuncts {
			RewriteProposition(d, diveCombines, f)
		}
	case *Unification:
		p.Left = RewriteExpr(p.Left, diveCombines, f)
		p.Right = RewriteExpr(p.Right, diveCombines, f)
	case *Inclusion:
		p.Element = RewriteExpr(p.Element, diveCombines, f)
		p.List = RewriteExpr(p.List, diveCombines, f)
	}
}

func rewriteCall(c *Call, diveCombines bool, f ExprRewriter) {
	RewriteRecord(c.Record, diveCombines, f)
}

func RewriteRecord(r *Record, diveCombines bool, f ExprRewriter) {
	if r == nil {
		return
	}
	for _, fv := range r.FieldValues {
		RewriteValue(fv.Value, diveCombines, f)
	}
}

func RewriteValue(v *Value, diveCombines bool, f ExprRewriter) {
	if v == nil {
		return
	}
	if v.Expression != nil {
		v.Expression = RewriteExpr(v.Expression, diveCombines, f)
	}
	if v.Aggregation != nil {
		if v.Aggregation.Argument != nil {
			v.Aggregation.Argument = RewriteExpr(v.Aggregation.Argument, diveCombines, f)
		}
		if v.Aggregation.Expression != nil {
			v.Aggregation.Expression = RewriteExpr(v.Aggregation.Expression, diveCombines, f)
		}
	}
}

// RewriteExpr applies f to e, then rewrites the children of the result.
func RewriteExpr(e Expr, diveCombines bool, f ExprRewriter) Expr {
	if e == nil {
		return nil
	}
	e = f(e)
	switch e := e.(type) {
	case *ListLiteral:
		for i, el := range e.Elements {
			e.Elements[i] = RewriteExpr(el, diveCombines, f)
		}
	case *RecordExpr:
		RewriteRecord(e.Record, diveCombines, f)
	case *Call:
		rewriteCall(e, diveCombines, f)
	case *Subscript:
		e.Rec = RewriteExpr(e.Rec, diveCombines, f)
	case *Combine:
		if diveCombines {
			RewriteRule(e.Rule, diveCombines, f)
		}
	case *Implication:
		for _, it := range e.IfThens {
			it.Condition = RewriteExpr(it.Condition, diveCombines, f)
			it.Consequence = RewriteExpr(it.Consequence, diveCombines, f)
		}
		e.Otherwise = RewriteExpr(e.Otherwise, diveCombines, f)
	}
	return e
}

// ReplaceVariable substitutes newExpr for every occurrence of the
// variable oldVar, including inside combine sub-rules.  The replacement
// is copied at every site.
func ReplaceVariable(oldVar string, newExpr Expr, rewrite func(ExprRewriter)) {
	rewrite(func(e Expr) Expr {
		if v, ok := e.(*Variable); ok && v.Name == oldVar {
			return CopyExpr(newExpr)
		}
		return e
	})
}

// ReplaceVariableInRule substitutes newExpr for oldVar throughout a rule.
func ReplaceVariableInRule(r *Rule, oldVar string, newExpr Expr) {
	ReplaceVariable(oldVar, newExpr, func(f ExprRewriter) {
		RewriteRule(r, true, f)
	})
}

// ReplaceVariableInExpr substitutes newExpr for oldVar in e, returning
// the (possibly replaced) expression.
func ReplaceVariableInExpr(e Expr, oldVar string, newExpr Expr) Expr {
	f := func(x Expr) Expr {
		if v, ok := x.(*Variable); ok && v.Name == oldVar {
			return CopyExpr(newExpr)
		}
		return x
	}
	return RewriteExpr(e, true, f)
}

// VisitExprs walks all expressions under the rule read-only.
func VisitExprs(r *Rule, diveCombines bool, visit func(Expr)) {
	RewriteRule(r, diveCombines, func(e Expr) Expr {
		visit(e)
		return e
	})
}

// VarSet is a set of variable names.
type VarSet map[string]bool

func (s VarSet) Contains(v string) bool { return s[v] }

func (s VarSet) SubsetOf(t VarSet) bool {
	for v := range s {
		if !t[v] {
			return false
		}
	}
	return true
}

func (s VarSet) Union(t VarSet) VarSet {
	u := VarSet{}
	for v := range s {
		u[v] = true
	}
	for v := range t {
		u[v] = true
	}
	return u
}

// MentionedVariablesInExpr collects variables mentioned in e.  Variables
// inside combine expressions may be resolved via the combine's own
// tables, so they are excluded unless diveCombines is set.
func MentionedVariablesInExpr(e Expr, diveCombines bool) VarSet {
	s := VarSet{}
	collect := func(x Expr) Expr {
		if v, ok := x.(*Variable); ok {
			s[v.Name] = true
		}
		return x
	}
	RewriteExpr(e, diveCombines, collect)
	return s
}

// RenamePredicate renames a predicate across rules, returning the number
// of renames.  Record field names match too: functors treat field names
// as predicate names.
func RenamePredicate(rules []*Rule, oldName, newName string) int {
	n := 0
	for _, r := range rules {
		n += RenamePredicateInRule(r, oldName, newName)
	}
	return n
}

func RenamePredicateInRule(r *Rule, oldName, newName string) int {
	n := 0
	rename := func(e Expr) Expr {
		switch e := e.(type) {
		case *Call:
			if e.PredicateName == oldName {
				e.PredicateName = newName
				n++
			}
		case *PredicateLiteral:
			if e.PredicateName == oldName {
				e.PredicateName = newName
				n++
			}
		}
		return e
	}
	renameRecordFields := func(rec *Record) {
		if rec == nil {
			return
		}
		for _, fv := range rec.FieldValues {
			if !fv.Field.IsPositional() && fv.Field.Name == oldName {
				fv.Field.Name = newName
				n++
			}
		}
	}
	if r.Head.PredicateName == oldName {
		r.Head.PredicateName = newName
		n++
	}
	renameRecordFields(r.Head.Record)
	var renameProp func(p Proposition)
	renameProp = func(p Proposition) {
		switch p := p.(type) {
		case *Call:
			if p.PredicateName == oldName {
				p.PredicateName = newName
				n++
			}
			renameRecordFields(p.Record)
		case *Conjunction:
			for _, c := range p.Conjuncts {
				renameProp(c)
			}
		case *Disjunction:
			for _, d := range p.Disjuncts {
				renameProp(d)
			}
		}
	}
	if r.Body != nil {
		renameProp(r.Body)
	}
	RewriteRule(r, true, func(e Expr) Expr {
		e = rename(e)
		switch e := e.(type) {
		case *RecordExpr:
			renameRecordFields(e.Record)
		case *Call:
			renameRecordFields(e.Record)
		case *Combine:
			if e.Rule.Head.PredicateName == oldName {
				e.Rule.Head.PredicateName = newName
				n++
			}
			renameRecordFields(e.Rule.Head.Record)
			if e.Rule.Body != nil {
				renameProp(e.Rule.Body)
			}
		}
		return e
	})
	return n
}

// PredicateNames collects every predicate mentioned in the rule, in
// calls, predicate literals and record field names.
func PredicateNames(r *Rule, into VarSet) {
	if into == nil {
		panic("ast: PredicateNames requires a destination set")
	}
	into[r.Head.PredicateName] = true
	recordFields := func(rec *Record) {
		if rec == nil {
			return
		}
		for _, fv := range rec.FieldValues {
			if !fv.Field.IsPositional() && !fv.Field.IsSplat() {
				into[fv.Field.Name] = true
			}
		}
	}
	var walkProp func(p Proposition)
	walkProp = func(p Proposition) {
		switch p := p.(type) {
		case *Call:
			into[p.PredicateName] = true
		case *Conjunction:
			for _, c := range p.Conjuncts {
				walkProp(c)
			}
		case *Disjunction:
			for _, d := range p.Disjuncts {
				walkProp(d)
			}
		}
	}
	if r.Body != nil {
		walkProp(r.Body)
	}
	recordFields(r.Head.Record)
	VisitExprs(r, true, func(e Expr) {
		switch e := e.(type) {
		case *Call:
			into[e.PredicateName] = true
		case *PredicateLiteral:
			into[e.PredicateName] = true
		case *Combine:
			into[e.Rule.Head.PredicateName] = true
			var names VarSet = into
			PredicateNames(e.Rule, names)
		}
	})
}

// HasCombine reports whether the expression contains a combine.
func HasCombine(e Expr) bool {
	found := false
	RewriteExpr(e, true, func(x Expr) Expr {
		if _, ok := x.(*Combine); ok {
			found = true
		}
		return x
	})
	return found
}
