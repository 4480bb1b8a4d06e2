package ast

import "fmt"

// Deep copies.  Rewrites mutate trees in place, so every rewrite that
// must not affect its input starts from a copy.

func CopyExpr(e Expr) Expr {
	if e == nil {
		return nil
	}
	switch e := e.(type) {
	case *NumberLiteral:
		c := *e
		return &c
	case *StringLiteral:
		c := *e
		return &c
	case *BoolLiteral:
		c := *e
		return &c
	case *NullLiteral:
		c := *e
		return &c
	case *ListLiteral:
		c := *e
		c.Elements = copyExprs(e.Elements)
		return &c
	case *PredicateLiteral:
		c := *e
		return &c
	case *SymbolLiteral:
		c := *e
		return &c
	case *Variable:
		c := *e
		return &c
	case *RecordExpr:
		c := *e
		c.Record = e.Record.Copy()
		return &c
	case *Call:
		return e.Copy()
	case *Subscript:
		c := *e
		c.Rec = CopyExpr(e.Rec)
		sym := *e.Symbol
		c.Symbol = &sym
		return &c
	case *Combine:
		c := *e
		c.Rule = e.Rule.Copy()
		return &c
	case *Implication:
		c := *e
		c.IfThens = make([]*IfThen, len(e.IfThens))
		for i, it := range e.IfThens {
			c.IfThens[i] = &IfThen{
				Condition:   CopyExpr(it.Condition),
				Consequence: CopyExpr(it.Consequence),
			}
		}
		c.Otherwise = CopyExpr(e.Otherwise)
		return &c
	}
	panic(fmt.Sprintf("ast: unknown expression type %T", e))
}

func copyExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = CopyExpr(e)
	}
	return out
}

func CopyProposition(p Proposition) Proposition {
	if p == nil {
		return nil
	}
	switch p := p.(type) {
	case *Call:
		return p.Copy()
	case *Conjunction:
		return p.Copy()
	case *Disjunction:
		c := *p
		c.Disjuncts = make([]Proposition, len(p.Disjuncts))
		for i, d := range p.Disjuncts {
			c.Disjuncts[i] = CopyProposition(d)
		}
		return &c
	case *Unification:
		c := *p
		c.Left = CopyExpr(p.Left)
		c.Right = CopyExpr(p.Right)
		return &c
	case *Inclusion:
		c := *p
		c.Element = CopyExpr(p.Element)
		c.List = CopyExpr(p.List)
		return &c
	}
	panic(fmt.Sprintf("ast: unknown proposition type %T", p))
}

func (c *Conjunction) Copy() *Conjunction {
	if c == nil {
		return nil
	}
	cc := *c
	cc.Conjuncts = make([]Proposition, len(c.Conjuncts))
	for i, p := range c.Conjuncts {
		cc.Conjuncts[i] = CopyProposition(p)
	}
	return &cc
}

func (c *Call) Copy() *Call {
	if c == nil {
		return nil
	}
	cc := *c
	cc.Record = c.Record.Copy()
	return &cc
}

func (r *Record) Copy() *Record {
	if r == nil {
		return nil
	}
	rr := &Record{FieldValues: make([]*FieldValue, len(r.FieldValues))}
	for i, fv := range r.FieldValues {
		rr.FieldValues[i] = fv.Copy()
	}
	return rr
}

func (fv *FieldValue) Copy() *FieldValue {
	c := &FieldValue{Field: fv.Field, Value: fv.Value.Copy()}
	if fv.Except != nil {
		c.Except = append([]string(nil), fv.Except...)
	}
	return c
}

func (v *Value) Copy() *Value {
	if v == nil {
		return nil
	}
	c := &Value{Expression: CopyExpr(v.Expression)}
	if v.Aggregation != nil {
		c.Aggregation = &Aggregation{
			Operator:   v.Aggregation.Operator,
			Argument:   CopyExpr(v.Aggregation.Argument),
			Expression: CopyExpr(v.Aggregation.Expression),
		}
	}
	return c
}

func (r *Rule) Copy() *Rule {
	if r == nil {
		return nil
	}
	return &Rule{
		Head:            r.Head.Copy(),
		Body:            r.Body.Copy(),
		DistinctDenoted: r.DistinctDenoted,
		FullText:        r.FullText,
	}
}

func CopyRules(rules []*Rule) []*Rule {
	out := make([]*Rule, len(rules))
	for i, r := range rules {
		out[i] = r.Copy()
	}
	return out
}
