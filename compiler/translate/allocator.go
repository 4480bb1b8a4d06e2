// Package translate lowers a single conjunctive Logica rule to a
// relational structure (tables, unifications, constraints, projections)
// and linearizes that structure into a SQL SELECT statement.
package translate

import (
	"fmt"
	"strings"

	"github.com/logica-lang/logica/compiler/sqlgen"
)

// NamesAllocator allocates unique names for tables and variables within
// one compilation.  It also knows which function names exist, which is
// how expression-position predicate calls are told apart from built-ins.
type NamesAllocator struct {
	auxVarNum       int
	tableNum        int
	allocatedTables map[string]bool
	customUDFs      map[string]string
}

func NewNamesAllocator(customUDFs map[string]string) *NamesAllocator {
	return &NamesAllocator{
		allocatedTables: map[string]bool{},
		customUDFs:      customUDFs,
	}
}

// AllocateVar returns a fresh internal variable.  The "x_" prefix is
// reserved by the parser, so no user variable can collide.
func (a *NamesAllocator) AllocateVar(hint string) string {
	v := fmt.Sprintf("x_%d", a.auxVarNum)
	a.auxVarNum++
	return v
}

// AllocateTable returns a fresh table alias, preferring a sanitized
// form of the hint.
func (a *NamesAllocator) AllocateTable(hintForUser string) string {
	var suffix string
	if hintForUser != "" && len(hintForUser) < 100 {
		var b strings.Builder
		for i := 0; i < len(hintForUser); i++ {
			c := hintForUser[i]
			switch {
			case c == '.' || c == '/':
				b.WriteByte('_')
			case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
				c >= '0' && c <= '9' || c == '_':
				b.WriteByte(c)
			}
		}
		suffix = b.String()
	}
	var t string
	if suffix != "" && !a.allocatedTables[suffix] {
		t = suffix
	} else {
		if suffix != "" {
			suffix = "_" + suffix
		}
		t = fmt.Sprintf("t_%d%s", a.tableNum, suffix)
		a.tableNum++
	}
	a.allocatedTables[t] = true
	return t
}

// FunctionExists reports whether the name is a built-in function,
// operator or custom UDF.
func (a *NamesAllocator) FunctionExists(name string) bool {
	if sqlgen.BasisFunctions()[name] {
		return true
	}
	_, ok := a.customUDFs[name]
	return ok
}
