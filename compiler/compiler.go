// Package compiler ties the Logica compilation pipeline together:
// parsing with import resolution, program assembly and per-predicate
// SQL production.
package compiler

import (
	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/parser"
	"github.com/logica-lang/logica/compiler/universe"
)

// Options configures a compilation.
type Options struct {
	// Engine overrides the program's @Engine annotation.
	Engine string
	// ImportRoots is the search path for import statements.  When
	// empty, the LOGICAPATH environment variable and then the current
	// directory are used.
	ImportRoots []string
	// UserFlags override @DefineFlag defaults.
	UserFlags map[string]string
	// TableAliases map undefined predicates to engine table names.
	TableAliases map[string]string
}

func (o Options) roots() []string {
	if len(o.ImportRoots) > 0 {
		return o.ImportRoots
	}
	return parser.RootsFromEnv("")
}

// Parse parses a program and resolves its imports, returning the
// assembled file.
func Parse(program string, opts Options) (*ast.File, error) {
	resolver := parser.NewResolver(opts.roots())
	return resolver.ParseProgram(program)
}

// NewProgram parses the program text and assembles its universe.
func NewProgram(program string, opts Options) (*universe.Program, error) {
	file, err := Parse(program, opts)
	if err != nil {
		return nil, err
	}
	return universe.New(file.Rules, universe.Options{
		Engine:       opts.Engine,
		UserFlags:    opts.UserFlags,
		TableAliases: opts.TableAliases,
	})
}

// CompilePredicate produces a single self-contained SQL statement
// computing the predicate's extension.
func CompilePredicate(program, predicate string, opts Options) (string, error) {
	p, err := NewProgram(program, opts)
	if err != nil {
		return "", err
	}
	return p.FormattedPredicateSql(predicate)
}

// ParseToJSON renders the parsed program as the stable JSON document
// used by external tooling.
func ParseToJSON(program, fileName string, opts Options) ([]byte, error) {
	file, err := Parse(program, opts)
	if err != nil {
		return nil, err
	}
	if fileName != "" {
		file.FileName = fileName
	}
	return ast.MarshalFile(file)
}
