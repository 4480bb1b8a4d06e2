package universe_test

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logica-lang/logica/compiler/parser"
	"github.com/logica-lang/logica/compiler/universe"
)

func assemble(t *testing.T, program string, opts universe.Options) *universe.Program {
	t.Helper()
	resolver := parser.NewResolver([]string{"."})
	file, err := resolver.ParseProgram(program)
	require.NoError(t, err)
	p, err := universe.New(file.Rules, opts)
	require.NoError(t, err)
	return p
}

func TestFactSql(t *testing.T) {
	p := assemble(t, `T("x");`, universe.Options{Engine: "bigquery"})
	sql, err := p.FormattedPredicateSql("T")
	require.NoError(t, err)
	g := goldie.New(t)
	g.Assert(t, "fact", []byte(sql))
}

func TestInjectionCollapsesFacts(t *testing.T) {
	p := assemble(t, `T("a", 1); S(x) :- T(x, 1);`,
		universe.Options{Engine: "bigquery"})
	sql, err := p.FormattedPredicateSql("S")
	require.NoError(t, err)
	g := goldie.New(t)
	g.Assert(t, "inject", []byte(sql))
}

func TestMultiRuleUnion(t *testing.T) {
	p := assemble(t, `T("a"); T("b");`, universe.Options{Engine: "bigquery"})
	sql, err := p.FormattedPredicateSql("T")
	require.NoError(t, err)
	assert.Contains(t, sql, "UNION ALL")
	assert.Contains(t, sql, `"a" AS col0`)
	assert.Contains(t, sql, `"b" AS col0`)
}

func TestOrderByAndLimit(t *testing.T) {
	program := `
	@OrderBy(T, "col0", "DESC");
	@Limit(T, 3);
	T(1); T(2);
	`
	p := assemble(t, program, universe.Options{Engine: "bigquery"})
	sql, err := p.FormattedPredicateSql("T")
	require.NoError(t, err)
	assert.Contains(t, sql, "ORDER BY col0 DESC")
	assert.Contains(t, sql, "LIMIT 3")
}

func TestWithClauseEmitted(t *testing.T) {
	program := `T("a"); T("b"); S(x) :- T(x);`
	p := assemble(t, program, universe.Options{Engine: "bigquery"})
	sql, err := p.FormattedPredicateSql("S")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "WITH "), "expected WITH prefix:\n%s", sql)
}

func TestGroundedPredicateIsTableReference(t *testing.T) {
	program := `
	@Ground(Input, "mydataset.input_table");
	S(x) :- Input(col0: x);
	`
	p := assemble(t, program, universe.Options{Engine: "bigquery"})
	sql, err := p.FormattedPredicateSql("S")
	require.NoError(t, err)
	assert.Contains(t, sql, "mydataset.input_table")
	assert.NotContains(t, sql, "WITH ")
}

func TestDistinctMultiRuleGoesThroughAux(t *testing.T) {
	// A distinct predicate with several rules is merged through the
	// multi-body auxiliary, ending in a single grouped rule.
	program := `T(x) distinct :- A(x); T(x) distinct :- B(x);`
	p := assemble(t, program, universe.Options{Engine: "bigquery"})
	sql, err := p.FormattedPredicateSql("T")
	require.NoError(t, err)
	assert.Contains(t, sql, "UNION ALL")
	assert.Contains(t, sql, "GROUP BY")
}

func TestUnboundVariableError(t *testing.T) {
	program := `T(x) :- S(y);`
	p := assemble(t, program, universe.Options{Engine: "bigquery"})
	_, err := p.FormattedPredicateSql("T")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found no way to assign variables")
	assert.Contains(t, err.Error(), "x")
}

func TestAttachDatabasePreamble(t *testing.T) {
	program := `
	@Engine("sqlite");
	@AttachDatabase("logica_home", "home.db");
	T(1);
	`
	p := assemble(t, program, universe.Options{})
	sql, err := p.FormattedPredicateSql("T")
	require.NoError(t, err)
	assert.Contains(t, sql, "ATTACH DATABASE 'home.db' AS logica_home;")
}

func TestDefineFlagSubstitution(t *testing.T) {
	program := `
	@Engine("sqlite");
	@DefineFlag("greeting", "hello");
	T(FlagValue("greeting"));
	`
	p := assemble(t, program, universe.Options{})
	sql, err := p.FormattedPredicateSql("T")
	require.NoError(t, err)
	assert.Contains(t, sql, "'hello'")
}

func TestUserFlagOverride(t *testing.T) {
	program := `
	@Engine("sqlite");
	@DefineFlag("greeting", "hello");
	T(FlagValue("greeting"));
	`
	p := assemble(t, program, universe.Options{
		UserFlags: map[string]string{"greeting": "bonjour"},
	})
	sql, err := p.FormattedPredicateSql("T")
	require.NoError(t, err)
	assert.Contains(t, sql, "'bonjour'")
}

func TestUndefinedUserFlag(t *testing.T) {
	resolver := parser.NewResolver([]string{"."})
	file, err := resolver.ParseProgram(`T(1);`)
	require.NoError(t, err)
	_, err = universe.New(file.Rules, universe.Options{
		Engine:    "sqlite",
		UserFlags: map[string]string{"no_such_flag": "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined flags used")
}

func TestCompileAsUdf(t *testing.T) {
	program := `
	Add(a, b) --> a + b;
	`
	p := assemble(t, program, universe.Options{Engine: "bigquery"})
	sql, err := p.FormattedPredicateSql("Add")
	require.NoError(t, err)
	assert.Contains(t, sql, "CREATE TEMP FUNCTION Add(a ANY TYPE, b ANY TYPE)")
}
