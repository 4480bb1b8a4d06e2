package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logica-lang/logica/compiler/ast"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestImportRenamesPredicates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "lib/util.l", `Shared(x) :- Base(x); Base(1); Base(2);`)
	resolver := NewResolver([]string{root})
	file, err := resolver.ParseProgram(
		`import lib.util.Shared; Q(x) :- Shared(x);`)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, r := range file.Rules {
		names[r.Head.PredicateName] = true
	}
	assert.True(t, names["Q"])
	assert.True(t, names["Util_Shared"])
	assert.True(t, names["Util_Base"])
	assert.False(t, names["Shared"])
	// The import call in Q's body now uses the prefixed name.
	for _, r := range file.Rules {
		if r.Head.PredicateName != "Q" {
			continue
		}
		call, ok := r.Body.Conjuncts[0].(*ast.Call)
		require.True(t, ok)
		assert.Equal(t, "Util_Shared", call.PredicateName)
	}
}

func TestImportWithSynonym(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "lib.l", `Shared(1);`)
	resolver := NewResolver([]string{root})
	file, err := resolver.ParseProgram(
		`import lib.Shared as S; Q(x) :- S(x);`)
	require.NoError(t, err)
	for _, r := range file.Rules {
		if r.Head.PredicateName != "Q" {
			continue
		}
		call, ok := r.Body.Conjuncts[0].(*ast.Call)
		require.True(t, ok)
		assert.Equal(t, "Lib_Shared", call.PredicateName)
	}
}

func TestImportMissingPredicate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "lib.l", `Shared(1);`)
	resolver := NewResolver([]string{root})
	_, err := resolver.ParseProgram(`import lib.Missing; Q(x) :- Missing(x);`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not defined")
}

func TestImportUnused(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "lib.l", `Shared(1);`)
	resolver := NewResolver([]string{root})
	_, err := resolver.ParseProgram(`import lib.Shared; Q(1);`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not used")
}

func TestImportCycle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.l", `import b.B; A(x) :- B(x);`)
	writeFile(t, root, "b.l", `import a.A; B(x) :- A(x);`)
	resolver := NewResolver([]string{root})
	_, err := resolver.ParseProgram(`import a.A; Q(x) :- A(x);`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular imports")
}

func TestImportFileNotFound(t *testing.T) {
	resolver := NewResolver([]string{t.TempDir()})
	_, err := resolver.ParseProgram(`import nowhere.P; Q(x) :- P(x);`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
