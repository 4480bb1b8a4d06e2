// Package ast declares the types used to represent syntax trees for
// Logica programs.
package ast

// This module follows the GO AST design pattern in
// https://golang.org/pkg/go/ast/

import (
	"fmt"

	"github.com/logica-lang/logica/compiler/srcfiles"
)

// Node is implemented by all syntax tree nodes that remember the source
// substring they were parsed from.
type Node interface {
	HeritageSpan() srcfiles.Span
}

// Heritage is embedded in every node to record its source span.
type Heritage struct {
	Span srcfiles.Span
}

func NewHeritage(span srcfiles.Span) Heritage { return Heritage{Span: span} }

func (h Heritage) HeritageSpan() srcfiles.Span { return h.Span }

// Text returns the exact source substring backing the node.
func (h Heritage) Text() string { return h.Span.Str() }

// Expr is the interface implemented by all expression nodes.
type Expr interface {
	Node
	ExprAST()
}

// Proposition is the interface implemented by all proposition nodes.
type Proposition interface {
	Node
	PropositionAST()
}

// Field identifies a record field: positional fields carry an ordinal,
// named fields a name.  The rest-of splat is the field named "*".
type Field struct {
	Name    string
	Ordinal int
}

func Named(name string) Field      { return Field{Name: name} }
func Positional(ord int) Field     { return Field{Name: "", Ordinal: ord} }
func (f Field) IsPositional() bool { return f.Name == "" }
func (f Field) IsSplat() bool      { return f.Name == "*" }

// SqlName is the column name of the field in generated SQL.
func (f Field) SqlName() string {
	if f.IsPositional() {
		return fmt.Sprintf("col%d", f.Ordinal)
	}
	return f.Name
}

// Key is a unique string key for the field, used by ordered indexes.
func (f Field) Key() string {
	if f.IsPositional() {
		return fmt.Sprintf("#%d", f.Ordinal)
	}
	return f.Name
}

func (f Field) Equal(g Field) bool {
	return f.Name == g.Name && f.Ordinal == g.Ordinal
}

// Aggregation is the "Op= argument" form of a head field value.  After
// the aggregation-as-expression rewrite the operator and argument are
// folded into Expression (a call to the aggregating function) and the
// original pair is cleared.
type Aggregation struct {
	Operator   string
	Argument   Expr
	Expression Expr
}

// Value is the right-hand side of a record field: exactly one of
// Expression and Aggregation is set.
type Value struct {
	Expression  Expr
	Aggregation *Aggregation
}

// FieldValue is one field of a record.  Except lists the fields already
// observed before a rest-of splat; it is only set when Field is "*".
type FieldValue struct {
	Field  Field
	Value  *Value
	Except []string
}

// Record is an ordered field list.
type Record struct {
	FieldValues []*FieldValue
}

// Find returns the field value with the given field, or nil.
func (r *Record) Find(f Field) *FieldValue {
	for _, fv := range r.FieldValues {
		if fv.Field.Equal(f) {
			return fv
		}
	}
	return nil
}

// Call is a predicate applied to a record of arguments.  It appears both
// as an expression (a function application) and as a proposition (a
// subgoal); the JSON layer serializes the two positions differently.
type Call struct {
	PredicateName string
	Record        *Record
	Heritage
}

func (*Call) ExprAST()        {}
func (*Call) PropositionAST() {}

// Literals.

type NumberLiteral struct {
	Text string // Verbatim source spelling, passed through to SQL.
	Heritage
}

type StringLiteral struct {
	Value string
	Heritage
}

type BoolLiteral struct {
	Text string // "true" or "false"
	Heritage
}

type NullLiteral struct {
	Heritage
}

type ListLiteral struct {
	Elements []Expr
	Heritage
}

type PredicateLiteral struct {
	PredicateName string
	Heritage
}

// SymbolLiteral names a record field in a subscript position.
type SymbolLiteral struct {
	Symbol string
	Heritage
}

func (*NumberLiteral) ExprAST()    {}
func (*StringLiteral) ExprAST()    {}
func (*BoolLiteral) ExprAST()      {}
func (*NullLiteral) ExprAST()      {}
func (*ListLiteral) ExprAST()      {}
func (*PredicateLiteral) ExprAST() {}
func (*SymbolLiteral) ExprAST()    {}

type Variable struct {
	Name string
	Heritage
}

func (*Variable) ExprAST() {}

// RecordExpr is a record literal in expression position.
type RecordExpr struct {
	Record *Record
	Heritage
}

func (*RecordExpr) ExprAST() {}

// Subscript is "record.field".
type Subscript struct {
	Rec    Expr
	Symbol *SymbolLiteral
	Heritage
}

func (*Subscript) ExprAST() {}

// Combine packages a one-row aggregating rule as an expression.  The
// rule's head predicate is always "Combine" with a single aggregating
// logica_value field.
type Combine struct {
	Rule *Rule
	Heritage
}

func (*Combine) ExprAST() {}

// IfThen is one branch of an implication.
type IfThen struct {
	Condition   Expr
	Consequence Expr
}

// Implication is "if c1 then e1 else if ... else e".
type Implication struct {
	IfThens   []*IfThen
	Otherwise Expr
	Heritage
}

func (*Implication) ExprAST() {}

// Propositions.

type Conjunction struct {
	Conjuncts []Proposition
	Heritage
}

type Disjunction struct {
	Disjuncts []Proposition
	Heritage
}

type Unification struct {
	Left  Expr
	Right Expr
	Heritage
}

type Inclusion struct {
	Element Expr
	List    Expr
	Heritage
}

func (*Conjunction) PropositionAST() {}
func (*Disjunction) PropositionAST() {}
func (*Unification) PropositionAST() {}
func (*Inclusion) PropositionAST()   {}

// Rule is a head call with an optional conjunctive body.  After the DNF
// rewrite every rule body is a flat conjunction.
type Rule struct {
	Head            *Call
	Body            *Conjunction
	DistinctDenoted bool
	FullText        srcfiles.Span
}

// File is a parsed Logica file with its import bookkeeping.  The JSON
// document emitted for external tooling mirrors this structure.
type File struct {
	Rules              []*Rule
	ImportedPredicates []*Import
	PredicatesPrefix   string
	FileName           string
}

// Import records a single "import path.Predicate [as Synonym]".
type Import struct {
	FilePath      string
	PredicateName string
	Synonym       string
}
