package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/rewrite"
	"github.com/logica-lang/logica/compiler/srcfiles"
)

// mainFileName is the synthetic name of the entry file.
const mainFileName = "main"

// Resolver loads imported files, detects import cycles, assigns per-file
// predicate-name prefixes and performs predicate renaming.  Each file is
// loaded at most once.
type Resolver struct {
	// Roots is the ordered list of directories searched for imports.
	Roots []string

	// parsed maps a dotted import path to its parsed file.  A present
	// key with a nil value marks a file whose parsing is in flight,
	// which is how cycles are detected.
	parsed map[string]*ast.File
	// order preserves first-import order for deterministic assembly.
	order []string
}

func NewResolver(roots []string) *Resolver {
	return &Resolver{Roots: roots, parsed: map[string]*ast.File{}}
}

// RootsFromEnv builds import roots from --import-root values and the
// LOGICAPATH environment variable.
func RootsFromEnv(flagRoots string) []string {
	paths := flagRoots
	if paths == "" {
		paths = os.Getenv("LOGICAPATH")
	}
	if paths == "" {
		return []string{"."}
	}
	return strings.Split(paths, ":")
}

// ParseProgram parses the main program text, resolving imports and
// applying the syntactic rewrites, and returns the assembled file.
func (r *Resolver) ParseProgram(text string) (*ast.File, error) {
	return r.parseFile(text, mainFileName, nil)
}

func (r *Resolver) parseFile(text, fileName string, chain []string) (*ast.File, error) {
	source, err := RemoveComments(fileName, text)
	if err != nil {
		return nil, err
	}
	file, err := ParseStatements(source)
	if err != nil {
		return nil, err
	}
	chain = append(chain, fileName)

	predicatesCreatedByImport := map[string]ast.VarSet{}
	for _, imp := range file.ImportedPredicates {
		if err := r.loadImport(imp.FilePath, chain); err != nil {
			return nil, err
		}
		if _, ok := predicatesCreatedByImport[imp.FilePath]; !ok {
			imported := r.parsed[imp.FilePath]
			predicatesCreatedByImport[imp.FilePath] =
				DefinedPredicates(imported.Rules).Union(MadePredicates(imported.Rules))
		}
	}

	file.Rules, err = rewrite.All(file.Rules)
	if err != nil {
		return nil, err
	}

	file.PredicatesPrefix = r.filePrefix(fileName)

	if fileName != mainFileName {
		owned := DefinedPredicates(file.Rules).Union(MadePredicates(file.Rules))
		for _, p := range sortedNames(owned) {
			if !strings.HasPrefix(p, "@") && p != "++?" {
				ast.RenamePredicate(file.Rules, p, file.PredicatesPrefix+p)
			}
		}
	}
	for _, imp := range file.ImportedPredicates {
		importPrefix := r.parsed[imp.FilePath].PredicatesPrefix
		importedAs := imp.PredicateName
		if imp.Synonym != "" {
			importedAs = imp.Synonym
		}
		target := importPrefix + imp.PredicateName
		renameCount := ast.RenamePredicate(file.Rules, importedAs, target)
		if !predicatesCreatedByImport[imp.FilePath][target] {
			return nil, importError(
				fmt.Sprintf("predicate %s from file %s is imported by %s, but is not defined",
					imp.PredicateName, imp.FilePath, fileName),
				imp.FilePath+" -> "+imp.PredicateName)
		}
		if renameCount == 0 {
			return nil, importError(
				fmt.Sprintf("predicate %s from file %s is imported by %s, but not used",
					imp.PredicateName, imp.FilePath, fileName),
				imp.FilePath+" -> "+importedAs)
		}
	}

	if fileName == mainFileName {
		defined := DefinedPredicates(file.Rules)
		for _, importPath := range r.order {
			imported := r.parsed[importPath]
			newPredicates := DefinedPredicates(imported.Rules)
			for _, p := range sortedNames(newPredicates) {
				if defined[p] && !strings.HasPrefix(p, "@") {
					return nil, importError(
						fmt.Sprintf("predicate %s from file %s is overridden by some importer",
							p, importPath),
						importPath+" -> "+p)
				}
			}
			defined = defined.Union(newPredicates)
			file.Rules = append(file.Rules, imported.Rules...)
		}
	}
	return file, nil
}

func (r *Resolver) loadImport(importPath string, chain []string) error {
	if parsed, ok := r.parsed[importPath]; ok {
		if parsed == nil {
			cycle := strings.Join(append(append([]string{}, chain...), importPath), " -> ")
			return importError("circular imports are not allowed: "+cycle, cycle)
		}
		return nil
	}
	r.parsed[importPath] = nil
	pathParts := strings.Split(importPath, ".")
	relative := filepath.Join(pathParts...) + ".l"
	var filePath string
	var considered []string
	for _, root := range r.Roots {
		candidate := filepath.Join(root, relative)
		considered = append(considered, candidate)
		if _, err := os.Stat(candidate); err == nil {
			filePath = candidate
			break
		}
	}
	if filePath == "" {
		return importError(
			"imported file not found; considered:\n- "+strings.Join(considered, "\n- "),
			importPath)
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	parsed, err := r.parseFile(string(content), importPath, chain)
	if err != nil {
		return err
	}
	r.parsed[importPath] = parsed
	r.order = append(r.order, importPath)
	return nil
}

// filePrefix builds a prefix unique among already parsed imports,
// derived from the trailing dotted path components.
func (r *Resolver) filePrefix(fileName string) string {
	if fileName == mainFileName {
		return ""
	}
	existing := map[string]bool{}
	for _, parsed := range r.parsed {
		if parsed != nil {
			existing[parsed.PredicatesPrefix] = true
		}
	}
	parts := strings.Split(fileName, ".")
	idx := len(parts) - 1
	prefix := capitalize(parts[idx]) + "_"
	for existing[prefix] {
		idx--
		if idx < 0 {
			// Paths equal modulo separators; disambiguate numerically.
			prefix = "X" + prefix
			continue
		}
		prefix = capitalize(parts[idx]) + prefix
	}
	return prefix
}

func capitalize(s string) string {
	if s == "" || !isLowerByte(s[0]) {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func sortedNames(s ast.VarSet) []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// importError anchors an import diagnostic to a synthetic span naming
// the import, in lieu of a real source location.
func importError(msg string, spanText string) error {
	src := srcfiles.NewSource("", spanText)
	return srcfiles.ErrorAt(stage, src.Whole(), "%s", msg)
}
