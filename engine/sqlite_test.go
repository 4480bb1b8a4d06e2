package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	statements := SplitStatements(
		"CREATE TABLE t AS SELECT 1;\nSELECT 'a;b' AS x;")
	require.Len(t, statements, 2)
	assert.Equal(t, "CREATE TABLE t AS SELECT 1", statements[0])
	assert.Equal(t, "SELECT 'a;b' AS x", statements[1])

	statements = SplitStatements("SELECT (SELECT 1; ) FROM t")
	assert.Len(t, statements, 1)

	statements = SplitStatements("-- comment only;\nSELECT 1;")
	require.Len(t, statements, 1)
	assert.Equal(t, "SELECT 1", statements[0])
}

func TestRunSimpleQuery(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	result, err := Run(context.Background(), db,
		"CREATE TABLE t(x); INSERT INTO t VALUES (2), (1); "+
			"SELECT x FROM t ORDER BY x;")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, result.Columns)
	assert.Equal(t, [][]string{{"1"}, {"2"}}, result.Rows)
}

func TestLogicaFunctions(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	result, err := Run(context.Background(), db,
		`SELECT JOIN_STRINGS('["a","b"]', '-') AS joined;`)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a-b"}}, result.Rows)

	// SQLite booleans surface as 0/1.
	result, err = Run(context.Background(), db,
		`SELECT IN_LIST(2, '[1,2,3]') AS found, IN_LIST(9, '[1,2,3]') AS missing;`)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "0"}}, result.Rows)

	result, err = Run(context.Background(), db,
		`SELECT SortList('[3,1,2]') AS sorted;`)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"[1,2,3]"}}, result.Rows)

	result, err = Run(context.Background(), db,
		`SELECT MagicalEntangle(42, 0) AS value;`)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"42"}}, result.Rows)
}

func TestAggregators(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	result, err := Run(context.Background(), db,
		"CREATE TABLE s(name, score); "+
			"INSERT INTO s VALUES ('low', 1), ('high', 9), ('mid', 5); "+
			"SELECT ArgMax(name, score, 1) AS best FROM s;")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{`["high"]`}}, result.Rows)

	result, err = Run(context.Background(), db,
		"SELECT DistinctListAgg(x) AS xs FROM "+
			"(SELECT 1 AS x UNION ALL SELECT 1 UNION ALL SELECT 2);")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"[1,2]"}}, result.Rows)
}
