package ast

// Structural equality of expressions, ignoring heritage spans.  Variable
// elimination and unification-to-constraint conversion use this to skip
// trivial equalities.

func ExprEqual(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch a := a.(type) {
	case *NumberLiteral:
		b, ok := b.(*NumberLiteral)
		return ok && a.Text == b.Text
	case *StringLiteral:
		b, ok := b.(*StringLiteral)
		return ok && a.Value == b.Value
	case *BoolLiteral:
		b, ok := b.(*BoolLiteral)
		return ok && a.Text == b.Text
	case *NullLiteral:
		_, ok := b.(*NullLiteral)
		return ok
	case *ListLiteral:
		b, ok := b.(*ListLiteral)
		if !ok || len(a.Elements) != len(b.Elements) {
			return false
		}
		for i := range a.Elements {
			if !ExprEqual(a.Elements[i], b.Elements[i]) {
				return false
			}
		}
		return true
	case *PredicateLiteral:
		b, ok := b.(*PredicateLiteral)
		return ok && a.PredicateName == b.PredicateName
	case *SymbolLiteral:
		b, ok := b.(*SymbolLiteral)
		return ok && a.Symbol == b.Symbol
	case *Variable:
		b, ok := b.(*Variable)
		return ok && a.Name == b.Name
	case *RecordExpr:
		b, ok := b.(*RecordExpr)
		return ok && recordEqual(a.Record, b.Record)
	case *Call:
		b, ok := b.(*Call)
		return ok && a.PredicateName == b.PredicateName &&
			recordEqual(a.Record, b.Record)
	case *Subscript:
		b, ok := b.(*Subscript)
		return ok && a.Symbol.Symbol == b.Symbol.Symbol && ExprEqual(a.Rec, b.Rec)
	case *Combine:
		b, ok := b.(*Combine)
		return ok && RuleEqual(a.Rule, b.Rule)
	case *Implication:
		b, ok := b.(*Implication)
		if !ok || len(a.IfThens) != len(b.IfThens) {
			return false
		}
		for i := range a.IfThens {
			if !ExprEqual(a.IfThens[i].Condition, b.IfThens[i].Condition) ||
				!ExprEqual(a.IfThens[i].Consequence, b.IfThens[i].Consequence) {
				return false
			}
		}
		return ExprEqual(a.Otherwise, b.Otherwise)
	}
	return false
}

func recordEqual(a, b *Record) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if len(a.FieldValues) != len(b.FieldValues) {
		return false
	}
	for i := range a.FieldValues {
		fa, fb := a.FieldValues[i], b.FieldValues[i]
		if !fa.Field.Equal(fb.Field) || !valueEqual(fa.Value, fb.Value) {
			return false
		}
		if len(fa.Except) != len(fb.Except) {
			return false
		}
		for j := range fa.Except {
			if fa.Except[j] != fb.Except[j] {
				return false
			}
		}
	}
	return true
}

func valueEqual(a, b *Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if (a.Aggregation == nil) != (b.Aggregation == nil) {
		return false
	}
	if a.Aggregation != nil {
		if a.Aggregation.Operator != b.Aggregation.Operator ||
			!ExprEqual(a.Aggregation.Argument, b.Aggregation.Argument) ||
			!ExprEqual(a.Aggregation.Expression, b.Aggregation.Expression) {
			return false
		}
	}
	return ExprEqual(a.Expression, b.Expression)
}

func RuleEqual(a, b *Rule) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.DistinctDenoted != b.DistinctDenoted {
		return false
	}
	if !ExprEqual(a.Head, b.Head) {
		return false
	}
	return propositionEqual(a.Body, b.Body)
}

func propositionEqual(a, b Proposition) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch a := a.(type) {
	case *Call:
		b, ok := b.(*Call)
		return ok && ExprEqual(a, b)
	case *Conjunction:
		b, ok := b.(*Conjunction)
		if !ok || len(a.Conjuncts) != len(b.Conjuncts) {
			return false
		}
		for i := range a.Conjuncts {
			if !propositionEqual(a.Conjuncts[i], b.Conjuncts[i]) {
				return false
			}
		}
		return true
	case *Disjunction:
		b, ok := b.(*Disjunction)
		if !ok || len(a.Disjuncts) != len(b.Disjuncts) {
			return false
		}
		for i := range a.Disjuncts {
			if !propositionEqual(a.Disjuncts[i], b.Disjuncts[i]) {
				return false
			}
		}
		return true
	case *Unification:
		b, ok := b.(*Unification)
		return ok && ExprEqual(a.Left, b.Left) && ExprEqual(a.Right, b.Right)
	case *Inclusion:
		b, ok := b.(*Inclusion)
		return ok && ExprEqual(a.Element, b.Element) && ExprEqual(a.List, b.List)
	}
	return false
}
